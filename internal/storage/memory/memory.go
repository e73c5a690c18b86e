// Package memory provides an in-memory Store used by tests and previews.
package memory

import (
	"context"
	"sync"

	"github.com/serenemind/serene/backend/internal/storage"
)

// Store is a map-backed storage.Store. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{records: make(map[string][]byte)}
}

// Get returns the record for key, or storage.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.records[key]
	if !ok {
		return nil, storage.ErrNotFound
	}

	// Return a copy so callers cannot mutate the stored record.
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Set writes the record for key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = stored
	return nil
}

// Remove deletes the record for key.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// RemoveMulti deletes all given keys as one unit.
func (s *Store) RemoveMulti(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.records, key)
	}
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// Len returns the number of stored records. Test helper.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
