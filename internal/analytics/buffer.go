// Package analytics buffers analytics events locally and delivers them to
// the backend in batches, tolerating extended offline periods.
//
// Events are never lost under delivery failure: a failed flush prepends its
// snapshot back in front of anything tracked in the meantime, preserving
// oldest-first order.
package analytics

import (
	"context"
	"encoding/json"
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

const (
	// DefaultFlushInterval is the periodic flush cadence while started.
	DefaultFlushInterval = 30 * time.Second

	// DefaultFlushThreshold triggers an early flush when the queue reaches
	// this length.
	DefaultFlushThreshold = 100
)

// Buffer is the local analytics event queue.
type Buffer struct {
	store     storage.Store
	client    api.Client
	log       *logging.Logger
	interval  time.Duration
	threshold int
	now       func() time.Time

	mu     sync.Mutex
	events []models.AnalyticsEvent

	group singleflight.Group

	runMu   sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

// Config holds the buffer's tunables.
type Config struct {
	FlushInterval  time.Duration
	FlushThreshold int
}

// NewBuffer creates an analytics event buffer.
func NewBuffer(store storage.Store, client api.Client, log *logging.Logger, cfg Config) *Buffer {
	interval := cfg.FlushInterval
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	threshold := cfg.FlushThreshold
	if threshold <= 0 {
		threshold = DefaultFlushThreshold
	}
	return &Buffer{
		store:     store,
		client:    client,
		log:       log.WithComponent("analytics"),
		interval:  interval,
		threshold: threshold,
		now:       time.Now,
	}
}

// Initialize loads the persisted queue. Missing or corrupt data is logged and
// treated as an empty queue.
func (b *Buffer) Initialize(ctx context.Context) {
	data, err := b.store.Get(ctx, storage.KeyAnalyticsQueue)
	if err != nil {
		if err != storage.ErrNotFound {
			b.log.Warn("failed to read persisted event queue, starting empty",
				map[string]interface{}{"error": err.Error()})
		}
		return
	}

	var events []models.AnalyticsEvent
	if err := json.Unmarshal(data, &events); err != nil {
		b.log.Warn("persisted event queue is corrupt, starting empty",
			map[string]interface{}{"error": err.Error()})
		return
	}

	b.mu.Lock()
	b.events = events
	b.mu.Unlock()

	b.log.Info("analytics queue loaded", map[string]interface{}{"events": len(events)})
}

// Track appends an event and persists the queue. It never blocks on network
// I/O; reaching the threshold kicks off a background flush.
func (b *Buffer) Track(ctx context.Context, name string, properties map[string]string) (models.AnalyticsEvent, error) {
	event := models.AnalyticsEvent{
		ID:         id.NewUUID(),
		Name:       name,
		Properties: properties,
		OccurredAt: b.now(),
	}

	b.mu.Lock()
	b.events = append(b.events, event)
	length := len(b.events)
	err := b.persistLocked(ctx)
	b.mu.Unlock()

	if err != nil {
		return models.AnalyticsEvent{}, apperrors.Wrap(apperrors.ErrStorage, "persist event queue", err)
	}

	if length >= b.threshold {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			if _, err := b.Flush(context.Background()); err != nil {
				b.log.Warn("threshold flush failed, events retained",
					map[string]interface{}{"error": err.Error()})
			}
		}()
	}
	return event, nil
}

// Pending returns the number of buffered events.
func (b *Buffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// persistLocked mirrors the queue to storage. Callers hold b.mu.
func (b *Buffer) persistLocked(ctx context.Context) error {
	data, err := json.Marshal(b.events)
	if err != nil {
		return err
	}
	return b.store.Set(ctx, storage.KeyAnalyticsQueue, data)
}

// Flush delivers the current queue as one batch. Overlapping calls share one
// in-flight flush. The queue is snapshotted and cleared up front so events
// tracked during delivery are not re-sent; on failure the snapshot is
// prepended back in front of them and persisted, so no event is lost and
// oldest-first order holds.
func (b *Buffer) Flush(ctx context.Context) (int, error) {
	type outcome struct {
		count int
		err   error
	}
	v, _, _ := b.group.Do("flush", func() (interface{}, error) {
		count, err := b.doFlush(ctx)
		return outcome{count, err}, nil
	})
	o := v.(outcome)
	return o.count, o.err
}

func (b *Buffer) doFlush(ctx context.Context) (int, error) {
	b.mu.Lock()
	if len(b.events) == 0 {
		b.mu.Unlock()
		return 0, nil
	}
	snapshot := b.events
	b.events = nil
	if err := b.persistLocked(ctx); err != nil {
		// Could not record the empty queue; put the snapshot back and bail
		// before touching the network.
		b.events = snapshot
		b.mu.Unlock()
		return 0, apperrors.Wrap(apperrors.ErrStorage, "persist event queue", err)
	}
	b.mu.Unlock()

	if err := b.client.TrackEvents(ctx, snapshot); err != nil {
		b.mu.Lock()
		b.events = append(snapshot, b.events...)
		if perr := b.persistLocked(ctx); perr != nil {
			b.log.Error("failed to persist restored event queue", perr)
		}
		b.mu.Unlock()
		return 0, apperrors.Wrap(apperrors.ErrFlushFailed, "deliver events", err)
	}

	b.log.Debug("events flushed", map[string]interface{}{"count": len(snapshot)})
	return len(snapshot), nil
}

// Start begins the periodic flush loop.
func (b *Buffer) Start() {
	b.runMu.Lock()
	defer b.runMu.Unlock()

	if b.running {
		return
	}
	b.running = true
	b.stopCh = make(chan struct{})

	b.wg.Add(1)
	go b.flushLoop(b.stopCh)

	b.log.Info("analytics flush loop started",
		map[string]interface{}{"interval": b.interval.String()})
}

// Stop halts the periodic flush loop and waits for in-flight flushes.
func (b *Buffer) Stop() {
	b.runMu.Lock()
	if !b.running {
		b.runMu.Unlock()
		return
	}
	b.running = false
	close(b.stopCh)
	b.runMu.Unlock()

	b.wg.Wait()
	b.log.Info("analytics flush loop stopped")
}

func (b *Buffer) flushLoop(stopCh chan struct{}) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if _, err := b.Flush(context.Background()); err != nil {
				b.log.Warn("periodic flush failed, events retained",
					map[string]interface{}{"error": err.Error()})
			}
		}
	}
}
