// Package preferences persists the user's location, stock watch list and
// playlist URL. Values live in a string key/value Store; the Repository gives
// them types and defaults.
package preferences

import (
	"context"
	"errors"
	"sync"
)

// ErrStoreUnavailable wraps backend failures.
var ErrStoreUnavailable = errors.New("preference store unavailable")

// Store is a string key/value store. Get reports ok=false for a key never written.
// Set overwrites the whole value. Nothing is ever deleted.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Ping(ctx context.Context) error
}

// MemoryStore keeps preferences in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }
