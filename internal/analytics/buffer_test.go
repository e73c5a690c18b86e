// Package analytics tests for the buffered event pipeline.
package analytics

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/serenemind/serene/backend/internal/api"
	"github.com/serenemind/serene/backend/internal/logging"
	"github.com/serenemind/serene/backend/internal/models"
	"github.com/serenemind/serene/backend/internal/storage"
	"github.com/serenemind/serene/backend/internal/storage/memory"
)

// fakeEventClient records delivered event batches and can fail on demand.
type fakeEventClient struct {
	mu        sync.Mutex
	delivered [][]models.AnalyticsEvent
	err       error
}

func (f *fakeEventClient) TrackEvents(ctx context.Context, events []models.AnalyticsEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	batch := make([]models.AnalyticsEvent, len(events))
	copy(batch, events)
	f.delivered = append(f.delivered, batch)
	return nil
}

func (f *fakeEventClient) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeEventClient) batches() [][]models.AnalyticsEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.delivered
}

func (f *fakeEventClient) CheckContentVersion(ctx context.Context, current int) (*api.VersionCheck, error) {
	return &api.VersionCheck{}, nil
}

func (f *fakeEventClient) FetchContent(ctx context.Context) ([]models.ContentItem, error) {
	return nil, nil
}

func (f *fakeEventClient) SyncOperations(ctx context.Context, ops []models.QueuedOperation) ([]models.OperationResult, error) {
	return nil, nil
}

func (f *fakeEventClient) LogActivities(ctx context.Context, entries []models.ActivityLogEntry) error {
	return nil
}

func (f *fakeEventClient) Ping(ctx context.Context) error { return nil }

func newTestBuffer(t *testing.T, cfg Config) (*Buffer, *fakeEventClient, *memory.Store) {
	t.Helper()
	store := memory.New()
	client := &fakeEventClient{}
	log := logging.New(io.Discard, logging.LevelError)
	return NewBuffer(store, client, log, cfg), client, store
}

// TestTrack verifies events are persisted immediately.
func TestTrack(t *testing.T) {
	b, _, store := newTestBuffer(t, Config{})
	ctx := context.Background()

	event, err := b.Track(ctx, "session_started", map[string]string{"category": "breathing"})
	if err != nil {
		t.Fatalf("Track error = %v", err)
	}
	if event.ID == "" {
		t.Error("Track should assign an event id")
	}
	if b.Pending() != 1 {
		t.Errorf("Pending = %d, want 1", b.Pending())
	}
	if _, err := store.Get(ctx, storage.KeyAnalyticsQueue); err != nil {
		t.Errorf("event queue not persisted: %v", err)
	}
}

// TestFlush verifies a successful flush empties the queue.
func TestFlush(t *testing.T) {
	b, client, _ := newTestBuffer(t, Config{})
	ctx := context.Background()

	b.Track(ctx, "e1", nil)
	b.Track(ctx, "e2", nil)

	count, err := b.Flush(ctx)
	if err != nil {
		t.Fatalf("Flush error = %v", err)
	}
	if count != 2 {
		t.Errorf("flushed count = %d, want 2", count)
	}
	if b.Pending() != 0 {
		t.Errorf("Pending after flush = %d, want 0", b.Pending())
	}

	batches := client.batches()
	if len(batches) != 1 || len(batches[0]) != 2 {
		t.Fatalf("delivered = %+v, want one batch of two", batches)
	}
	if batches[0][0].Name != "e1" || batches[0][1].Name != "e2" {
		t.Errorf("batch order = [%s %s], want [e1 e2]", batches[0][0].Name, batches[0][1].Name)
	}
}

// TestFlush_noLossOnFailure verifies the snapshot is prepended back in front
// of newer events after a failed delivery.
func TestFlush_noLossOnFailure(t *testing.T) {
	b, client, _ := newTestBuffer(t, Config{})
	ctx := context.Background()

	b.Track(ctx, "e1", nil)
	b.Track(ctx, "e2", nil)

	client.setErr(errors.New("502 bad gateway"))
	if _, err := b.Flush(ctx); err == nil {
		t.Fatal("Flush should fail when delivery fails")
	}

	b.Track(ctx, "e3", nil)

	b.mu.Lock()
	names := make([]string, len(b.events))
	for i, e := range b.events {
		names[i] = e.Name
	}
	b.mu.Unlock()

	if len(names) != 3 || names[0] != "e1" || names[1] != "e2" || names[2] != "e3" {
		t.Errorf("queue after failed flush = %v, want [e1 e2 e3]", names)
	}

	// Recovery: the next flush delivers everything once, in order.
	client.setErr(nil)
	count, err := b.Flush(ctx)
	if err != nil || count != 3 {
		t.Fatalf("recovery Flush = (%d, %v), want (3, nil)", count, err)
	}
}

// TestFlush_empty verifies flushing an empty queue is a no-op.
func TestFlush_empty(t *testing.T) {
	b, client, _ := newTestBuffer(t, Config{})

	count, err := b.Flush(context.Background())
	if err != nil || count != 0 {
		t.Errorf("Flush on empty = (%d, %v), want (0, nil)", count, err)
	}
	if len(client.batches()) != 0 {
		t.Error("empty flush should not call the API")
	}
}

// TestTrack_thresholdFlush verifies the early flush trigger.
func TestTrack_thresholdFlush(t *testing.T) {
	b, client, _ := newTestBuffer(t, Config{FlushThreshold: 3})
	ctx := context.Background()

	b.Track(ctx, "e1", nil)
	b.Track(ctx, "e2", nil)
	if len(client.batches()) != 0 {
		t.Fatal("flush fired below the threshold")
	}

	b.Track(ctx, "e3", nil)
	b.wg.Wait()

	batches := client.batches()
	if len(batches) != 1 || len(batches[0]) != 3 {
		t.Fatalf("delivered = %+v, want one batch of three after threshold", batches)
	}
	if b.Pending() != 0 {
		t.Errorf("Pending = %d, want 0 after threshold flush", b.Pending())
	}
}

// TestPeriodicFlush verifies the timer loop delivers buffered events.
func TestPeriodicFlush(t *testing.T) {
	b, client, _ := newTestBuffer(t, Config{FlushInterval: 20 * time.Millisecond})
	ctx := context.Background()

	b.Track(ctx, "e1", nil)
	b.Start()
	defer b.Stop()

	deadline := time.After(2 * time.Second)
	for {
		if len(client.batches()) > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("periodic flush never delivered the event")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// TestInitialize_restore verifies the queue survives restarts.
func TestInitialize_restore(t *testing.T) {
	store := memory.New()
	log := logging.New(io.Discard, logging.LevelError)
	ctx := context.Background()

	first := NewBuffer(store, &fakeEventClient{}, log, Config{})
	first.Track(ctx, "e1", nil)

	second := NewBuffer(store, &fakeEventClient{}, log, Config{})
	second.Initialize(ctx)

	if second.Pending() != 1 {
		t.Errorf("restored Pending = %d, want 1", second.Pending())
	}
}
