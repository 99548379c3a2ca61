package storage

import (
	"context"
	"sync"
)

// MemoryStore is a process-local store, used for tests and ephemeral runs.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string][]byte

	// FailWrites makes every Set return this error when non-nil.
	FailWrites error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWrites != nil {
		return s.FailWrites
	}
	s.items[key] = append([]byte(nil), value...)
	return nil
}

// SetFailWrites toggles write failures.
func (s *MemoryStore) SetFailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FailWrites = err
}

func (s *MemoryStore) Close() error { return nil }
