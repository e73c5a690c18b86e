// Package scheduler runs the background loops that keep local state and the
// remote API converging: periodic content sync checks, periodic queue replay,
// and an immediate replay burst when connectivity returns.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/serenemind/serene/backend/internal/content"
	"github.com/serenemind/serene/backend/internal/logging"
	"github.com/serenemind/serene/backend/internal/network"
	"github.com/serenemind/serene/backend/internal/offline"
)

// ContentSyncer refreshes the content cache when it has gone stale.
type ContentSyncer interface {
	SyncIfStale(ctx context.Context) (*content.SyncResult, bool)
}

// QueueReplayer drains the offline operation queue.
type QueueReplayer interface {
	Replay(ctx context.Context) (*offline.ReplayResult, error)
}

// ActivitySyncer uploads activity log entries not yet delivered.
type ActivitySyncer interface {
	SyncPending(ctx context.Context) (int, error)
}

// AnalyticsFlusher delivers buffered analytics events.
type AnalyticsFlusher interface {
	Flush(ctx context.Context) (int, error)
}

// Config holds scheduler tunables.
type Config struct {
	SyncInterval   time.Duration // how often to check content staleness
	ReplayInterval time.Duration // how often to replay the queue while online
	OpTimeout      time.Duration // per-pass deadline for background work
}

// DefaultConfig returns the built-in intervals.
func DefaultConfig() Config {
	return Config{
		SyncInterval:   15 * time.Minute,
		ReplayInterval: time.Minute,
		OpTimeout:      5 * time.Minute,
	}
}

// Scheduler owns the background goroutines. Start and Stop are idempotent.
type Scheduler struct {
	monitor   *network.Monitor
	contents  ContentSyncer
	queue     QueueReplayer
	activity  ActivitySyncer
	analytics AnalyticsFlusher
	log       *logging.Logger
	cfg       Config

	mu          sync.Mutex
	running     bool
	stopCh      chan struct{}
	wg          sync.WaitGroup
	unsubscribe func()
}

// New creates a Scheduler. Zero intervals in cfg fall back to the defaults.
func New(monitor *network.Monitor, contents ContentSyncer, queue QueueReplayer,
	activity ActivitySyncer, analytics AnalyticsFlusher, log *logging.Logger, cfg Config) *Scheduler {
	def := DefaultConfig()
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = def.SyncInterval
	}
	if cfg.ReplayInterval <= 0 {
		cfg.ReplayInterval = def.ReplayInterval
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = def.OpTimeout
	}

	return &Scheduler{
		monitor:   monitor,
		contents:  contents,
		queue:     queue,
		activity:  activity,
		analytics: analytics,
		log:       log.WithComponent("scheduler"),
		cfg:       cfg,
	}
}

// Start launches the background loops and subscribes to connectivity
// transitions so a reconnect triggers an immediate replay pass.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh

	s.unsubscribe = s.monitor.Subscribe(func(online bool) {
		if !online {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.log.Info("connectivity restored, draining queues", nil)
			s.drain()
		}()
	})

	s.wg.Add(2)
	go s.contentLoop(stopCh)
	go s.replayLoop(stopCh)
	s.mu.Unlock()

	s.log.Info("scheduler started", map[string]interface{}{
		"sync_interval":   s.cfg.SyncInterval.String(),
		"replay_interval": s.cfg.ReplayInterval.String(),
	})
}

// Stop halts the loops and waits for in-flight passes to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	s.wg.Wait()

	s.log.Info("scheduler stopped", nil)
}

// contentLoop periodically checks content staleness while online.
func (s *Scheduler) contentLoop(stopCh chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if !s.monitor.Online() {
				continue
			}
			s.syncContent()
		}
	}
}

// replayLoop periodically replays the queue and uploads pending activity
// and analytics while online.
func (s *Scheduler) replayLoop(stopCh chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.ReplayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if !s.monitor.Online() {
				continue
			}
			s.drain()
		}
	}
}

// syncContent runs one staleness-gated content sync pass.
func (s *Scheduler) syncContent() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.OpTimeout)
	defer cancel()

	result, ran := s.contents.SyncIfStale(ctx)
	if !ran {
		return
	}
	if !result.Success {
		s.log.Warn("periodic content sync failed",
			map[string]interface{}{"error": result.Error})
		return
	}
	s.log.Debug("periodic content sync completed",
		map[string]interface{}{"updated": result.Updated, "version": result.Version})
}

// drain runs one pass of queue replay, activity upload, and analytics flush.
// Each step tolerates the others failing.
func (s *Scheduler) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.OpTimeout)
	defer cancel()

	if result, err := s.queue.Replay(ctx); err != nil {
		s.log.Warn("queue replay failed", map[string]interface{}{"error": err.Error()})
	} else if result.Attempted > 0 {
		s.log.Info("queue replay completed", map[string]interface{}{
			"attempted": result.Attempted,
			"succeeded": result.Succeeded,
			"failed":    result.Failed,
		})
	}

	if n, err := s.activity.SyncPending(ctx); err != nil {
		s.log.Warn("activity upload failed", map[string]interface{}{"error": err.Error()})
	} else if n > 0 {
		s.log.Debug("activity upload completed", map[string]interface{}{"synced": n})
	}

	if n, err := s.analytics.Flush(ctx); err != nil {
		s.log.Warn("analytics flush failed", map[string]interface{}{"error": err.Error()})
	} else if n > 0 {
		s.log.Debug("analytics flush completed", map[string]interface{}{"flushed": n})
	}
}
