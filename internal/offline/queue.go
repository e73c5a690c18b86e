// Package offline implements the durable offline operation queue.
//
// Mutations that cannot reach the server are persisted here and replayed
// oldest-first once connectivity returns. An operation leaves the queue only
// after confirmed remote success; after three failed replay attempts it is
// retained as permanently failed instead of being dropped.
package offline

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/serenemind/serene/backend/internal/api"
	apperrors "github.com/serenemind/serene/backend/internal/errors"
	"github.com/serenemind/serene/backend/internal/id"
	"github.com/serenemind/serene/backend/internal/logging"
	"github.com/serenemind/serene/backend/internal/models"
	"github.com/serenemind/serene/backend/internal/storage"
)

// DefaultBatchSize bounds how many operations one replay round trip carries.
const DefaultBatchSize = 50

// Listener receives a snapshot of the queue after every mutation.
type Listener func(ops []models.QueuedOperation)

// ReplayResult summarizes one replay pass.
type ReplayResult struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Manager owns the persisted operation queue.
type Manager struct {
	store     storage.Store
	client    api.Client
	online    func() bool
	log       *logging.Logger
	batchSize int
	now       func() time.Time

	mu        sync.RWMutex
	ops       []models.QueuedOperation
	listeners map[int]Listener
	nextID    int

	group singleflight.Group
}

// Config holds the queue manager's tunables.
type Config struct {
	BatchSize int
}

// NewManager creates an offline queue manager. online reports current
// connectivity; replay refuses to run while it returns false.
func NewManager(store storage.Store, client api.Client, online func() bool, log *logging.Logger, cfg Config) *Manager {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	return &Manager{
		store:     store,
		client:    client,
		online:    online,
		log:       log.WithComponent("offline"),
		batchSize: batch,
		now:       time.Now,
		listeners: make(map[int]Listener),
	}
}

// Initialize loads the persisted queue. Missing or corrupt data is logged and
// treated as an empty queue.
func (m *Manager) Initialize(ctx context.Context) {
	data, err := m.store.Get(ctx, storage.KeyOfflineQueue)
	if err != nil {
		if err != storage.ErrNotFound {
			m.log.Warn("failed to read persisted queue, starting empty",
				map[string]interface{}{"error": err.Error()})
		}
		return
	}

	var ops []models.QueuedOperation
	if err := json.Unmarshal(data, &ops); err != nil {
		m.log.Warn("persisted queue is corrupt, starting empty",
			map[string]interface{}{"error": err.Error()})
		return
	}

	m.mu.Lock()
	m.ops = ops
	m.mu.Unlock()

	m.log.Info("offline queue loaded", map[string]interface{}{"operations": len(ops)})
}

// Enqueue appends a mutation to the queue and persists it.
func (m *Manager) Enqueue(ctx context.Context, kind models.OperationKind, entity string, data json.RawMessage) (models.QueuedOperation, error) {
	op := models.QueuedOperation{
		ID:        id.NewOperationID(),
		Kind:      kind,
		Entity:    entity,
		Data:      data,
		CreatedAt: m.now(),
	}

	m.mu.Lock()
	m.ops = append(m.ops, op)
	err := m.persistLocked(ctx)
	m.mu.Unlock()

	if err != nil {
		return models.QueuedOperation{}, apperrors.Wrap(apperrors.ErrStorage, "persist queue", err)
	}

	m.log.Debug("operation enqueued", map[string]interface{}{
		"id": op.ID, "type": string(kind), "entity": entity,
	})
	m.notify()
	return op, nil
}

// Dequeue removes an operation after confirmed remote success.
func (m *Manager) Dequeue(ctx context.Context, opID string) error {
	m.mu.Lock()
	found := false
	for i, op := range m.ops {
		if op.ID == opID {
			m.ops = append(m.ops[:i], m.ops[i+1:]...)
			found = true
			break
		}
	}
	var err error
	if found {
		err = m.persistLocked(ctx)
	}
	m.mu.Unlock()

	if !found {
		return apperrors.New(apperrors.ErrOperationMissing, "operation "+opID+" not found")
	}
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "persist queue", err)
	}

	m.notify()
	return nil
}

// Snapshot returns a copy of the current queue, oldest first.
func (m *Manager) Snapshot() []models.QueuedOperation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() []models.QueuedOperation {
	out := make([]models.QueuedOperation, len(m.ops))
	copy(out, m.ops)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// FailedOperations returns the operations whose automatic retries are
// exhausted. They stay queued for manual inspection.
func (m *Manager) FailedOperations() []models.QueuedOperation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var failed []models.QueuedOperation
	for _, op := range m.ops {
		if op.Exhausted() {
			failed = append(failed, op)
		}
	}
	return failed
}

// Retry resets a permanently failed operation for another round of automatic
// attempts.
func (m *Manager) Retry(ctx context.Context, opID string) error {
	m.mu.Lock()
	found := false
	for i := range m.ops {
		if m.ops[i].ID == opID {
			m.ops[i].RetryCount = 0
			found = true
			break
		}
	}
	var err error
	if found {
		err = m.persistLocked(ctx)
	}
	m.mu.Unlock()

	if !found {
		return apperrors.New(apperrors.ErrOperationMissing, "operation "+opID+" not found")
	}
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "persist queue", err)
	}

	m.notify()
	return nil
}

// Subscribe registers a listener called with a queue snapshot on every
// mutation. The returned function unsubscribes it.
func (m *Manager) Subscribe(fn Listener) func() {
	m.mu.Lock()
	idx := m.nextID
	m.nextID++
	m.listeners[idx] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, idx)
		m.mu.Unlock()
	}
}

func (m *Manager) notify() {
	m.mu.RLock()
	snapshot := m.snapshotLocked()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.RUnlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}

// persistLocked mirrors the queue to storage. Callers hold m.mu.
func (m *Manager) persistLocked(ctx context.Context) error {
	data, err := json.Marshal(m.ops)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, storage.KeyOfflineQueue, data)
}

// Replay pushes queued operations to the server in creation-time order,
// batched to the configured maximum per round trip. Overlapping calls share
// one in-flight replay. Each operation is attempted at most once per call;
// successes are dequeued, failures get their retry count incremented, and
// exhausted operations are skipped entirely.
func (m *Manager) Replay(ctx context.Context) (*ReplayResult, error) {
	type outcome struct {
		result *ReplayResult
		err    error
	}
	v, _, _ := m.group.Do("replay", func() (interface{}, error) {
		result, err := m.doReplay(ctx)
		return outcome{result, err}, nil
	})
	o := v.(outcome)
	return o.result, o.err
}

func (m *Manager) doReplay(ctx context.Context) (*ReplayResult, error) {
	if m.online != nil && !m.online() {
		return nil, apperrors.New(apperrors.ErrOffline, "replay skipped while offline")
	}

	// Eligible operations, oldest first.
	m.mu.RLock()
	pending := make([]models.QueuedOperation, 0, len(m.ops))
	for _, op := range m.snapshotLocked() {
		if !op.Exhausted() {
			pending = append(pending, op)
		}
	}
	m.mu.RUnlock()

	result := &ReplayResult{}
	for start := 0; start < len(pending); start += m.batchSize {
		end := start + m.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		results, err := m.client.SyncOperations(ctx, batch)
		if err != nil {
			// Nothing in this batch reached the server; leave it queued.
			m.log.Warn("replay batch failed", map[string]interface{}{
				"batch_size": len(batch), "error": err.Error(),
			})
			return result, apperrors.Wrap(apperrors.ErrDeliveryError, "replay batch", err)
		}

		result.Attempted += len(batch)
		if err := m.applyBatchResults(ctx, results); err != nil {
			return result, err
		}
		for _, r := range results {
			if r.Success {
				result.Succeeded++
			} else {
				result.Failed++
			}
		}
	}

	if result.Attempted > 0 {
		m.log.Info("replay finished", map[string]interface{}{
			"attempted": result.Attempted,
			"succeeded": result.Succeeded,
			"failed":    result.Failed,
		})
	}
	return result, nil
}

// applyBatchResults dequeues successes and bumps retry counts on failures.
func (m *Manager) applyBatchResults(ctx context.Context, results []models.OperationResult) error {
	succeeded := make(map[string]bool)
	failed := make(map[string]bool)
	for _, r := range results {
		if r.Success {
			succeeded[r.ID] = true
		} else {
			failed[r.ID] = true
		}
	}

	m.mu.Lock()
	kept := m.ops[:0]
	for _, op := range m.ops {
		switch {
		case succeeded[op.ID]:
			continue
		case failed[op.ID]:
			op.RetryCount++
			if op.Exhausted() {
				m.log.Warn("operation retries exhausted", map[string]interface{}{
					"id": op.ID, "type": string(op.Kind), "entity": op.Entity,
				})
			}
			kept = append(kept, op)
		default:
			kept = append(kept, op)
		}
	}
	m.ops = kept
	err := m.persistLocked(ctx)
	m.mu.Unlock()

	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "persist queue", err)
	}
	m.notify()
	return nil
}
