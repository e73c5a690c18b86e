// Package storage defines the local key-value persistence interface for the
// Serene core.
//
// Each coordinator (content sync, offline queue, activity logger, analytics
// buffer) owns a disjoint set of keys; the in-memory state of a coordinator is
// the read path and every mutation is mirrored here before it is considered
// complete. Implementations (bbolt, sqlite, memory) live in subpackages.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// Persisted record keys. One logical record per key.
const (
	KeyContentCache    = "content:cache"
	KeyContentVersion  = "content:version"
	KeyContentLastSync = "content:last_sync"
	KeyOfflineQueue    = "offline:queue"
	KeyActivityLog     = "activity:log"
	KeyActivityStats   = "activity:stats"
	KeyAnalyticsQueue  = "analytics:queue"
)

// Store is a durable key-value store holding one JSON record per key.
type Store interface {
	// Get returns the record for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes the record for key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes the record for key. Removing a missing key is not an
	// error.
	Remove(ctx context.Context, key string) error

	// RemoveMulti deletes all given keys as one unit: either every key is
	// removed or the call fails with none guaranteed removed.
	RemoveMulti(ctx context.Context, keys ...string) error

	// Close releases the underlying resources.
	Close() error
}
