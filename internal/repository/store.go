package repository

import (
	"context"
	"sync"
)

// Store is the abstract key-value persistence KV repositories are written
// against. Values returns a snapshot: callers never observe a half-applied
// write.
type Store[V any] interface {
	Get(ctx context.Context, key string) (V, bool, error)
	Set(ctx context.Context, key string, v V) error
	Delete(ctx context.Context, key string) error
	Values(ctx context.Context) ([]V, error)
}

// MemoryStore is an insertion-ordered in-memory Store.
type MemoryStore[V any] struct {
	mu    sync.RWMutex
	items map[string]V
	keys  []string
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore[V any]() *MemoryStore[V] {
	return &MemoryStore[V]{items: make(map[string]V)}
}

func (s *MemoryStore[V]) Get(_ context.Context, key string) (V, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok, nil
}

func (s *MemoryStore[V]) Set(_ context.Context, key string, v V) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(key, v)
	return nil
}

func (s *MemoryStore[V]) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delete(key)
	return nil
}

func (s *MemoryStore[V]) Values(_ context.Context) ([]V, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values(), nil
}

func (s *MemoryStore[V]) set(key string, v V) {
	if _, exists := s.items[key]; !exists {
		s.keys = append(s.keys, key)
	}
	s.items[key] = v
}

func (s *MemoryStore[V]) delete(key string) {
	if _, exists := s.items[key]; !exists {
		return
	}
	delete(s.items, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
}

func (s *MemoryStore[V]) values() []V {
	out := make([]V, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, s.items[k])
	}
	return out
}
