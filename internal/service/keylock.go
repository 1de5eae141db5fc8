package service

import "sync"

// keyLock hands out one mutex per key and frees it when the last holder
// releases it.
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[string]*refMutex)}
}

// Lock acquires the mutexes for keys in the given order and returns a
// function releasing them in reverse. Callers must use a consistent key
// order to avoid deadlock.
func (k *keyLock) Lock(keys ...string) func() {
	held := make([]string, 0, len(keys))
	for _, key := range keys {
		k.mu.Lock()
		m, ok := k.locks[key]
		if !ok {
			m = &refMutex{}
			k.locks[key] = m
		}
		m.refs++
		k.mu.Unlock()

		m.Lock()
		held = append(held, key)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			k.mu.Lock()
			m := k.locks[held[i]]
			m.refs--
			if m.refs == 0 {
				delete(k.locks, held[i])
			}
			k.mu.Unlock()
			m.Unlock()
		}
	}
}
