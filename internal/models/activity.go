package models

import "time"

// ActivityLogEntry records one completed or abandoned session (a breathing
// exercise, a meditation, a journal entry, ...). Entries are retained locally
// inside a rolling 30-day window and delivered to the backend in batches.
type ActivityLogEntry struct {
	ID          string            `json:"id"`
	Category    ContentCategory   `json:"category"`
	ActivityID  string            `json:"activity_id"`
	Name        string            `json:"name"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt time.Time         `json:"completed_at"`
	DurationSec int               `json:"duration_sec"`
	Completed   bool              `json:"completed"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	IsSynced    bool              `json:"is_synced"`
}

// ActivityRetention is the rolling window applied to the local activity log.
const ActivityRetention = 30 * 24 * time.Hour

// StatBucket aggregates sessions for one time window.
type StatBucket struct {
	Sessions   int            `json:"sessions"`
	Minutes    int            `json:"minutes"`
	ByCategory map[string]int `json:"byCategory"`
}

// Add folds one entry into the bucket.
func (b *StatBucket) Add(e *ActivityLogEntry) {
	if b.ByCategory == nil {
		b.ByCategory = make(map[string]int)
	}
	b.Sessions++
	b.Minutes += e.DurationSec / 60
	b.ByCategory[string(e.Category)]++
}

// ActivityStats holds the derived aggregate counters. They are maintained
// incrementally on each local log, with lazy rollover of the Today and
// ThisWeek buckets when the calendar date advances.
type ActivityStats struct {
	Today    StatBucket `json:"today"`
	ThisWeek StatBucket `json:"thisWeek"`
	AllTime  StatBucket `json:"allTime"`
	// LastLogDate is the calendar date (location-local midnight) of the most
	// recent log, used to detect rollover on the next write.
	LastLogDate time.Time `json:"last_log_date"`
}
