// Package activity records completed and abandoned sessions locally and
// delivers them to the backend in batches.
//
// The local log is bounded by a rolling 30-day window. Aggregate counters
// (today, this week, all time) are maintained incrementally on each write,
// with lazy rollover when the calendar date advances; they are never rebuilt
// by scanning history on the read path.
package activity

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

// Logger owns the local activity log and its derived aggregates.
type Logger struct {
	store  storage.Store
	client api.Client
	log    *logging.Logger
	now    func() time.Time

	mu      sync.RWMutex
	entries []models.ActivityLogEntry
	stats   models.ActivityStats

	group singleflight.Group
}

// NewLogger creates an activity logger.
func NewLogger(store storage.Store, client api.Client, log *logging.Logger) *Logger {
	return &Logger{
		store:  store,
		client: client,
		log:    log.WithComponent("activity"),
		now:    time.Now,
	}
}

// Initialize loads the persisted log and aggregates. Corrupt or missing data
// is logged and recovered: the log starts empty, and aggregates are rebuilt
// from whatever log entries survived.
func (l *Logger) Initialize(ctx context.Context) {
	if data, err := l.store.Get(ctx, storage.KeyActivityLog); err == nil {
		var entries []models.ActivityLogEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			l.log.Warn("persisted activity log is corrupt, starting empty",
				map[string]interface{}{"error": err.Error()})
		} else {
			l.mu.Lock()
			l.entries = entries
			l.mu.Unlock()
		}
	} else if err != storage.ErrNotFound {
		l.log.Warn("failed to read persisted activity log, starting empty",
			map[string]interface{}{"error": err.Error()})
	}

	statsLoaded := false
	if data, err := l.store.Get(ctx, storage.KeyActivityStats); err == nil {
		var stats models.ActivityStats
		if err := json.Unmarshal(data, &stats); err != nil {
			l.log.Warn("persisted activity stats are corrupt, recomputing",
				map[string]interface{}{"error": err.Error()})
		} else {
			l.mu.Lock()
			l.stats = stats
			l.mu.Unlock()
			statsLoaded = true
		}
	}

	if !statsLoaded {
		l.Recompute()
	}
}

// LogActivity appends one session record, prunes the retention window, folds
// the entry into the aggregates, and persists both records. It never touches
// the network.
func (l *Logger) LogActivity(ctx context.Context, entry models.ActivityLogEntry) (models.ActivityLogEntry, error) {
	if entry.ID == "" {
		entry.ID = id.NewUUID()
	}
	if entry.CompletedAt.IsZero() {
		entry.CompletedAt = l.now()
	}

	now := l.now()

	l.mu.Lock()
	l.rolloverLocked(now)
	l.entries = append(l.entries, entry)
	l.pruneLocked(now)
	l.stats.Today.Add(&entry)
	l.stats.ThisWeek.Add(&entry)
	l.stats.AllTime.Add(&entry)
	l.stats.LastLogDate = startOfDay(now)
	err := l.persistLocked(ctx)
	l.mu.Unlock()

	if err != nil {
		return models.ActivityLogEntry{}, apperrors.Wrap(apperrors.ErrActivityLog, "persist activity log", err)
	}

	l.log.Debug("activity logged", map[string]interface{}{
		"id": entry.ID, "category": string(entry.Category), "completed": entry.Completed,
	})
	return entry, nil
}

// rolloverLocked resets the Today and ThisWeek buckets when the calendar has
// advanced since the last write. Detection is lazy: it runs on the next write
// rather than on a background timer.
func (l *Logger) rolloverLocked(now time.Time) {
	if l.stats.LastLogDate.IsZero() {
		return
	}

	if !sameDay(l.stats.LastLogDate, now) {
		l.stats.Today = models.StatBucket{}
	}
	if !sameWeek(l.stats.LastLogDate, now) {
		l.stats.ThisWeek = models.StatBucket{}
	}
}

// pruneLocked drops entries older than the rolling retention window.
func (l *Logger) pruneLocked(now time.Time) {
	cutoff := now.Add(-models.ActivityRetention)
	kept := l.entries[:0]
	for _, e := range l.entries {
		if !e.CompletedAt.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	l.entries = kept
}

func (l *Logger) persistLocked(ctx context.Context) error {
	logData, err := json.Marshal(l.entries)
	if err != nil {
		return err
	}
	if err := l.store.Set(ctx, storage.KeyActivityLog, logData); err != nil {
		return err
	}
	statsData, err := json.Marshal(l.stats)
	if err != nil {
		return err
	}
	return l.store.Set(ctx, storage.KeyActivityStats, statsData)
}

// Entries returns a copy of the retained log, oldest first.
func (l *Logger) Entries() []models.ActivityLogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.ActivityLogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Stats returns a copy of the current aggregates.
func (l *Logger) Stats() models.ActivityStats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneStats(l.stats)
}

// Recompute rebuilds the aggregates from the retained log. Used when the
// persisted stats record is corrupt; also exercised by tests to check the
// incremental counters stay consistent with the history.
func (l *Logger) Recompute() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	stats := models.ActivityStats{LastLogDate: l.stats.LastLogDate}
	for i := range l.entries {
		e := &l.entries[i]
		if sameDay(e.CompletedAt, now) {
			stats.Today.Add(e)
		}
		if sameWeek(e.CompletedAt, now) {
			stats.ThisWeek.Add(e)
		}
		stats.AllTime.Add(e)
	}
	l.stats = stats
}

// SyncPending delivers unsynced entries to the backend and marks them synced.
// Overlapping calls share one in-flight delivery. A synced entry is never
// reset to unsynced.
func (l *Logger) SyncPending(ctx context.Context) (int, error) {
	type outcome struct {
		count int
		err   error
	}
	v, _, _ := l.group.Do("sync", func() (interface{}, error) {
		count, err := l.doSyncPending(ctx)
		return outcome{count, err}, nil
	})
	o := v.(outcome)
	return o.count, o.err
}

func (l *Logger) doSyncPending(ctx context.Context) (int, error) {
	l.mu.RLock()
	pending := make([]models.ActivityLogEntry, 0)
	for _, e := range l.entries {
		if !e.IsSynced {
			pending = append(pending, e)
		}
	}
	l.mu.RUnlock()

	if len(pending) == 0 {
		return 0, nil
	}

	if err := l.client.LogActivities(ctx, pending); err != nil {
		l.log.Warn("activity delivery failed, will retry later",
			map[string]interface{}{"pending": len(pending), "error": err.Error()})
		return 0, apperrors.Wrap(apperrors.ErrDeliveryError, "deliver activity log", err)
	}

	delivered := make(map[string]bool, len(pending))
	for _, e := range pending {
		delivered[e.ID] = true
	}

	l.mu.Lock()
	for i := range l.entries {
		if delivered[l.entries[i].ID] {
			l.entries[i].IsSynced = true
		}
	}
	err := l.persistLocked(ctx)
	l.mu.Unlock()

	if err != nil {
		return len(pending), apperrors.Wrap(apperrors.ErrStorage, "persist activity log", err)
	}

	l.log.Info("activity log delivered", map[string]interface{}{"entries": len(pending)})
	return len(pending), nil
}

func cloneStats(s models.ActivityStats) models.ActivityStats {
	out := s
	out.Today.ByCategory = cloneCounts(s.Today.ByCategory)
	out.ThisWeek.ByCategory = cloneCounts(s.ThisWeek.ByCategory)
	out.AllTime.ByCategory = cloneCounts(s.AllTime.ByCategory)
	return out
}

func cloneCounts(m map[string]int) map[string]int {
	if m == nil {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func sameWeek(a, b time.Time) bool {
	ay, aw := a.ISOWeek()
	by, bw := b.ISOWeek()
	return ay == by && aw == bw
}
