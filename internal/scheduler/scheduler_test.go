// Package scheduler tests for the background loops.
package scheduler

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/serenemind/serene/backend/internal/content"
	"github.com/serenemind/serene/backend/internal/logging"
	"github.com/serenemind/serene/backend/internal/network"
	"github.com/serenemind/serene/backend/internal/offline"
)

func testLogger() *logging.Logger {
	return logging.New(io.Discard, logging.LevelError)
}

// fakeServices counts how often each background pass runs.
type fakeServices struct {
	mu       sync.Mutex
	syncs    int
	replays  int
	activity int
	flushes  int
}

func (f *fakeServices) SyncIfStale(ctx context.Context) (*content.SyncResult, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncs++
	return &content.SyncResult{Success: true}, true
}

func (f *fakeServices) Replay(ctx context.Context) (*offline.ReplayResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replays++
	return &offline.ReplayResult{}, nil
}

func (f *fakeServices) SyncPending(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activity++
	return 0, nil
}

func (f *fakeServices) Flush(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	return 0, nil
}

func (f *fakeServices) counts() (syncs, replays, activity, flushes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.syncs, f.replays, f.activity, f.flushes
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func newTestScheduler(services *fakeServices) (*Scheduler, *network.Monitor) {
	monitor := network.NewMonitor(testLogger())
	s := New(monitor, services, services, services, services, testLogger(), Config{
		SyncInterval:   10 * time.Millisecond,
		ReplayInterval: 10 * time.Millisecond,
		OpTimeout:      time.Second,
	})
	return s, monitor
}

// TestScheduler_periodicPasses verifies the loops run all four passes while
// online.
func TestScheduler_periodicPasses(t *testing.T) {
	services := &fakeServices{}
	s, _ := newTestScheduler(services)

	s.Start()
	defer s.Stop()

	waitFor(t, func() bool {
		syncs, replays, activity, flushes := services.counts()
		return syncs > 0 && replays > 0 && activity > 0 && flushes > 0
	})
}

// TestScheduler_skipsWhileOffline verifies no passes run while the monitor
// reports offline.
func TestScheduler_skipsWhileOffline(t *testing.T) {
	services := &fakeServices{}
	s, monitor := newTestScheduler(services)
	monitor.SetOnline(false)

	s.Start()
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	syncs, replays, activity, flushes := services.counts()
	if syncs != 0 || replays != 0 || activity != 0 || flushes != 0 {
		t.Errorf("passes ran while offline: syncs=%d replays=%d activity=%d flushes=%d",
			syncs, replays, activity, flushes)
	}
}

// TestScheduler_replayOnReconnect verifies the offline-to-online transition
// triggers an immediate drain pass without waiting for the next tick.
func TestScheduler_replayOnReconnect(t *testing.T) {
	services := &fakeServices{}
	monitor := network.NewMonitor(testLogger())
	monitor.SetOnline(false)

	// Intervals long enough that only the transition can trigger a pass.
	s := New(monitor, services, services, services, services, testLogger(), Config{
		SyncInterval:   time.Hour,
		ReplayInterval: time.Hour,
		OpTimeout:      time.Second,
	})

	s.Start()
	defer s.Stop()

	monitor.SetOnline(true)

	waitFor(t, func() bool {
		_, replays, activity, flushes := services.counts()
		return replays == 1 && activity == 1 && flushes == 1
	})
}

// TestScheduler_stopIsIdempotent verifies Start/Stop tolerate repeated calls.
func TestScheduler_stopIsIdempotent(t *testing.T) {
	services := &fakeServices{}
	s, _ := newTestScheduler(services)

	s.Start()
	s.Start()
	s.Stop()
	s.Stop()
}

// TestScheduler_restart verifies the scheduler can run again after Stop.
func TestScheduler_restart(t *testing.T) {
	services := &fakeServices{}
	s, _ := newTestScheduler(services)

	s.Start()
	waitFor(t, func() bool {
		_, replays, _, _ := services.counts()
		return replays > 0
	})
	s.Stop()

	_, before, _, _ := services.counts()
	s.Start()
	defer s.Stop()

	waitFor(t, func() bool {
		_, replays, _, _ := services.counts()
		return replays > before
	})
}
