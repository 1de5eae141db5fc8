package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// FileStore is a Store whose contents are mirrored to a JSON array document.
// Every mutation is written through to disk before it is acknowledged; a
// failed write rolls the in-memory change back.
type FileStore[V any] struct {
	mem  *MemoryStore[V]
	path string
	key  func(V) string
}

// OpenFileStore loads path (creating it as an empty array if missing). key
// extracts the store key from a decoded record. Documents written as a JSON
// object keyed by id are also accepted.
func OpenFileStore[V any](path string, key func(V) string) (*FileStore[V], error) {
	s := &FileStore[V]{mem: NewMemoryStore[V](), path: path, key: key}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		if err := s.persist(); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return s, nil
	}

	switch data[0] {
	case '[':
		var records []V
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		for _, r := range records {
			s.mem.set(key(r), r)
		}
	case '{':
		var records map[string]V
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		keys := make([]string, 0, len(records))
		for k := range records {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			s.mem.set(k, records[k])
		}
	default:
		return nil, fmt.Errorf("decode %s: expected JSON array or object", path)
	}
	return s, nil
}

func (s *FileStore[V]) Get(ctx context.Context, key string) (V, bool, error) {
	return s.mem.Get(ctx, key)
}

func (s *FileStore[V]) Values(ctx context.Context) ([]V, error) {
	return s.mem.Values(ctx)
}

func (s *FileStore[V]) Set(_ context.Context, key string, v V) error {
	s.mem.mu.Lock()
	defer s.mem.mu.Unlock()

	prev, had := s.mem.items[key]
	s.mem.set(key, v)
	if err := s.persist(); err != nil {
		if had {
			s.mem.items[key] = prev
		} else {
			s.mem.delete(key)
		}
		return err
	}
	return nil
}

func (s *FileStore[V]) Delete(_ context.Context, key string) error {
	s.mem.mu.Lock()
	defer s.mem.mu.Unlock()

	prev, had := s.mem.items[key]
	if !had {
		return nil
	}
	s.mem.delete(key)
	if err := s.persist(); err != nil {
		s.mem.set(key, prev)
		return err
	}
	return nil
}

// persist rewrites the document atomically. Caller holds the write lock.
func (s *FileStore[V]) persist() error {
	data, err := json.MarshalIndent(s.mem.values(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}
