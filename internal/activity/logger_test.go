// Package activity tests for the session log and aggregates.
package activity

import (
	"context"
	"errors"
	"io"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/serenemind/serene/backend/internal/api"
	"github.com/serenemind/serene/backend/internal/logging"
	"github.com/serenemind/serene/backend/internal/models"
	"github.com/serenemind/serene/backend/internal/storage"
	"github.com/serenemind/serene/backend/internal/storage/memory"
)

// fakeDeliveryClient records delivered activity batches.
type fakeDeliveryClient struct {
	mu        sync.Mutex
	delivered [][]models.ActivityLogEntry
	err       error
}

func (f *fakeDeliveryClient) LogActivities(ctx context.Context, entries []models.ActivityLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	batch := make([]models.ActivityLogEntry, len(entries))
	copy(batch, entries)
	f.delivered = append(f.delivered, batch)
	return nil
}

func (f *fakeDeliveryClient) CheckContentVersion(ctx context.Context, current int) (*api.VersionCheck, error) {
	return &api.VersionCheck{}, nil
}

func (f *fakeDeliveryClient) FetchContent(ctx context.Context) ([]models.ContentItem, error) {
	return nil, nil
}

func (f *fakeDeliveryClient) SyncOperations(ctx context.Context, ops []models.QueuedOperation) ([]models.OperationResult, error) {
	return nil, nil
}

func (f *fakeDeliveryClient) TrackEvents(ctx context.Context, events []models.AnalyticsEvent) error {
	return nil
}

func (f *fakeDeliveryClient) Ping(ctx context.Context) error { return nil }

func newTestLogger(t *testing.T) (*Logger, *fakeDeliveryClient, *memory.Store) {
	t.Helper()
	store := memory.New()
	client := &fakeDeliveryClient{}
	log := logging.New(io.Discard, logging.LevelError)
	return NewLogger(store, client, log), client, store
}

func entry(category models.ContentCategory, dur int, completedAt time.Time) models.ActivityLogEntry {
	return models.ActivityLogEntry{
		Category:    category,
		ActivityID:  "act-1",
		Name:        "Session",
		StartedAt:   completedAt.Add(-time.Duration(dur) * time.Second),
		CompletedAt: completedAt,
		DurationSec: dur,
		Completed:   true,
	}
}

// TestLogActivity verifies id assignment, persistence, and aggregation.
func TestLogActivity(t *testing.T) {
	l, _, store := newTestLogger(t)
	ctx := context.Background()

	logged, err := l.LogActivity(ctx, entry(models.CategoryBreathing, 300, time.Now()))
	if err != nil {
		t.Fatalf("LogActivity error = %v", err)
	}
	if logged.ID == "" {
		t.Error("LogActivity should assign an id")
	}

	stats := l.Stats()
	if stats.Today.Sessions != 1 || stats.Today.Minutes != 5 {
		t.Errorf("Today = %+v, want 1 session / 5 minutes", stats.Today)
	}
	if stats.AllTime.ByCategory["breathing"] != 1 {
		t.Errorf("AllTime.ByCategory = %v, want breathing:1", stats.AllTime.ByCategory)
	}

	if _, err := store.Get(ctx, storage.KeyActivityLog); err != nil {
		t.Errorf("activity log not persisted: %v", err)
	}
	if _, err := store.Get(ctx, storage.KeyActivityStats); err != nil {
		t.Errorf("activity stats not persisted: %v", err)
	}
}

// TestDailyRollover verifies the Today bucket resets lazily on the next
// write after the date changes.
func TestDailyRollover(t *testing.T) {
	l, _, _ := newTestLogger(t)
	ctx := context.Background()

	// Tuesday and Wednesday of the same ISO week.
	day1 := time.Date(2025, 6, 10, 21, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 6, 11, 7, 0, 0, 0, time.UTC)

	l.now = func() time.Time { return day1 }
	l.LogActivity(ctx, entry(models.CategoryBreathing, 600, day1))

	if got := l.Stats().Today.Sessions; got != 1 {
		t.Fatalf("Today.Sessions = %d, want 1", got)
	}

	l.now = func() time.Time { return day2 }
	l.LogActivity(ctx, entry(models.CategorySleep, 300, day2))

	stats := l.Stats()
	if stats.Today.Sessions != 1 {
		t.Errorf("Today.Sessions after rollover = %d, want 1 (only the new day)", stats.Today.Sessions)
	}
	if stats.Today.ByCategory["breathing"] != 0 {
		t.Errorf("Today bucket kept yesterday's category counts: %v", stats.Today.ByCategory)
	}
	// Same ISO week: the weekly bucket keeps accumulating.
	if stats.ThisWeek.Sessions != 2 {
		t.Errorf("ThisWeek.Sessions = %d, want 2", stats.ThisWeek.Sessions)
	}
	if stats.AllTime.Sessions != 2 {
		t.Errorf("AllTime.Sessions = %d, want 2", stats.AllTime.Sessions)
	}
}

// TestWeeklyRollover verifies the weekly bucket resets across ISO weeks.
func TestWeeklyRollover(t *testing.T) {
	l, _, _ := newTestLogger(t)
	ctx := context.Background()

	sunday := time.Date(2025, 6, 8, 20, 0, 0, 0, time.UTC)
	monday := time.Date(2025, 6, 9, 8, 0, 0, 0, time.UTC)

	l.now = func() time.Time { return sunday }
	l.LogActivity(ctx, entry(models.CategoryMeditation, 1200, sunday))

	l.now = func() time.Time { return monday }
	l.LogActivity(ctx, entry(models.CategoryMeditation, 600, monday))

	stats := l.Stats()
	if stats.ThisWeek.Sessions != 1 {
		t.Errorf("ThisWeek.Sessions = %d, want 1 after week rollover", stats.ThisWeek.Sessions)
	}
	if stats.AllTime.Sessions != 2 {
		t.Errorf("AllTime.Sessions = %d, want 2", stats.AllTime.Sessions)
	}
}

// TestRetentionWindow verifies entries older than 30 days are pruned on
// write.
func TestRetentionWindow(t *testing.T) {
	l, _, _ := newTestLogger(t)
	ctx := context.Background()

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	old := entry(models.CategorySleep, 300, now.Add(-31*24*time.Hour))
	old.ID = "old-entry"
	recent := entry(models.CategorySleep, 300, now.Add(-2*24*time.Hour))
	recent.ID = "recent-entry"

	l.mu.Lock()
	l.entries = []models.ActivityLogEntry{old, recent}
	l.mu.Unlock()

	l.LogActivity(ctx, entry(models.CategoryBreathing, 60, now))

	ids := make([]string, 0)
	for _, e := range l.Entries() {
		ids = append(ids, e.ID)
	}
	if len(ids) != 2 {
		t.Fatalf("retained entries = %v, want the recent and new ones only", ids)
	}
	for _, got := range ids {
		if got == "old-entry" {
			t.Error("entry outside the 30-day window was retained")
		}
	}
}

// TestRecompute_matchesIncremental verifies scratch recomputation agrees with
// the incrementally maintained counters.
func TestRecompute_matchesIncremental(t *testing.T) {
	l, _, _ := newTestLogger(t)
	ctx := context.Background()

	now := time.Date(2025, 6, 12, 15, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.LogActivity(ctx, entry(models.CategoryBreathing, 300, now.Add(-2*time.Hour)))
	l.LogActivity(ctx, entry(models.CategoryMeditation, 900, now.Add(-time.Hour)))
	l.LogActivity(ctx, entry(models.CategorySleep, 1800, now))

	incremental := l.Stats()
	l.Recompute()
	recomputed := l.Stats()

	if !reflect.DeepEqual(incremental, recomputed) {
		t.Errorf("incremental stats %+v != recomputed stats %+v", incremental, recomputed)
	}
}

// TestSyncPending verifies delivery marks entries synced, permanently.
func TestSyncPending(t *testing.T) {
	l, client, _ := newTestLogger(t)
	ctx := context.Background()

	l.LogActivity(ctx, entry(models.CategoryBreathing, 300, time.Now()))
	l.LogActivity(ctx, entry(models.CategorySleep, 600, time.Now()))

	count, err := l.SyncPending(ctx)
	if err != nil {
		t.Fatalf("SyncPending error = %v", err)
	}
	if count != 2 {
		t.Errorf("delivered count = %d, want 2", count)
	}

	for _, e := range l.Entries() {
		if !e.IsSynced {
			t.Errorf("entry %s not marked synced after delivery", e.ID)
		}
	}

	// A second pass has nothing to deliver.
	count, err = l.SyncPending(ctx)
	if err != nil || count != 0 {
		t.Errorf("second SyncPending = (%d, %v), want (0, nil)", count, err)
	}
	if len(client.delivered) != 1 {
		t.Errorf("delivered batches = %d, want 1", len(client.delivered))
	}
}

// TestSyncPending_failure verifies entries stay unsynced on delivery failure.
func TestSyncPending_failure(t *testing.T) {
	l, client, _ := newTestLogger(t)
	ctx := context.Background()

	client.err = errors.New("503 unavailable")
	l.LogActivity(ctx, entry(models.CategoryBreathing, 300, time.Now()))

	if _, err := l.SyncPending(ctx); err == nil {
		t.Fatal("SyncPending should fail when delivery fails")
	}

	for _, e := range l.Entries() {
		if e.IsSynced {
			t.Error("entry marked synced despite delivery failure")
		}
	}
}

// TestInitialize_corruptStats verifies aggregates are rebuilt from the log.
func TestInitialize_corruptStats(t *testing.T) {
	store := memory.New()
	log := logging.New(io.Discard, logging.LevelError)
	ctx := context.Background()

	now := time.Now()
	first := NewLogger(store, &fakeDeliveryClient{}, log)
	first.now = func() time.Time { return now }
	first.LogActivity(ctx, entry(models.CategoryBreathing, 300, now))

	store.Set(ctx, storage.KeyActivityStats, []byte("{broken"))

	second := NewLogger(store, &fakeDeliveryClient{}, log)
	second.now = func() time.Time { return now }
	second.Initialize(ctx)

	stats := second.Stats()
	if stats.AllTime.Sessions != 1 {
		t.Errorf("rebuilt AllTime.Sessions = %d, want 1", stats.AllTime.Sessions)
	}
	if stats.Today.Sessions != 1 {
		t.Errorf("rebuilt Today.Sessions = %d, want 1", stats.Today.Sessions)
	}
}
