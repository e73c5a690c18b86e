// Package content implements the offline-first content sync coordinator.
//
// Callers read categorized content straight from the in-memory cache; the
// coordinator keeps that cache eventually consistent with the remote catalog
// through a single-flight sync gated by a staleness threshold. A failed sync
// never touches the previous good cache.
package content

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/serenemind/serene/backend/internal/api"
	"github.com/serenemind/serene/backend/internal/content/local"
	"github.com/serenemind/serene/backend/internal/logging"
	"github.com/serenemind/serene/backend/internal/models"
	"github.com/serenemind/serene/backend/internal/storage"
)

// DefaultStalenessThreshold is how old the last sync may be before a
// background refresh is attempted.
const DefaultStalenessThreshold = 24 * time.Hour

// SyncResult is the structured outcome of a sync. Failures are reported here
// rather than raised, so UI callers can render state without error plumbing.
type SyncResult struct {
	Success bool   `json:"success"`
	Updated bool   `json:"updated"`
	Version int    `json:"version"`
	Error   string `json:"error,omitempty"`
}

// Coordinator serves cached categorized content and synchronizes it with the
// remote catalog.
type Coordinator struct {
	store     storage.Store
	client    api.Client
	log       *logging.Logger
	staleness time.Duration
	now       func() time.Time

	mu    sync.RWMutex
	cache *models.CachedContentSet

	group singleflight.Group
	bg    sync.WaitGroup
}

// Config holds the coordinator's tunables.
type Config struct {
	StalenessThreshold time.Duration
}

// NewCoordinator creates a content sync coordinator.
func NewCoordinator(store storage.Store, client api.Client, log *logging.Logger, cfg Config) *Coordinator {
	staleness := cfg.StalenessThreshold
	if staleness <= 0 {
		staleness = DefaultStalenessThreshold
	}
	return &Coordinator{
		store:     store,
		client:    client,
		log:       log.WithComponent("content"),
		staleness: staleness,
		now:       time.Now,
	}
}

// Initialize loads the persisted cache into memory. Missing or corrupt
// persisted data is logged and treated as an empty cache; it is never
// surfaced to the caller.
func (c *Coordinator) Initialize(ctx context.Context) {
	data, err := c.store.Get(ctx, storage.KeyContentCache)
	if err != nil {
		if err != storage.ErrNotFound {
			c.log.Warn("failed to read persisted content cache, starting empty",
				map[string]interface{}{"error": err.Error()})
		}
		return
	}

	var cached models.CachedContentSet
	if err := json.Unmarshal(data, &cached); err != nil {
		c.log.Warn("persisted content cache is corrupt, starting empty",
			map[string]interface{}{"error": err.Error()})
		return
	}

	c.mu.Lock()
	c.cache = &cached
	c.mu.Unlock()

	c.log.Info("content cache loaded", map[string]interface{}{
		"version":    cached.Version,
		"categories": len(cached.Categories),
	})
}

// Shutdown waits for any in-flight background sync to settle.
func (c *Coordinator) Shutdown() {
	c.bg.Wait()
}

// GetContent returns the cached items for a category immediately. The cache
// may be stale or empty; a background staleness check is kicked off as a side
// effect. When the cache has nothing for the category, the bundled fallback
// dataset is returned instead.
func (c *Coordinator) GetContent(category models.ContentCategory) []models.ContentItem {
	c.mu.RLock()
	var items []models.ContentItem
	if c.cache != nil {
		cached := c.cache.Categories[category]
		items = make([]models.ContentItem, len(cached))
		copy(items, cached)
	}
	c.mu.RUnlock()

	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		c.backgroundSyncCheck()
	}()

	if len(items) == 0 {
		if provider := local.Lookup(category); provider != nil {
			return provider.Items()
		}
	}
	return items
}

// backgroundSyncCheck triggers a sync when the last one is older than the
// staleness threshold. Failures here are logged and swallowed; the foreground
// caller already has its (possibly stale) content.
func (c *Coordinator) backgroundSyncCheck() {
	result, ran := c.SyncIfStale(context.Background())
	if ran && !result.Success {
		c.log.Warn("background content sync failed",
			map[string]interface{}{"error": result.Error})
	}
}

// SyncIfStale runs a sync only when the last one is older than the staleness
// threshold. The second return reports whether a sync ran.
func (c *Coordinator) SyncIfStale(ctx context.Context) (*SyncResult, bool) {
	if !c.isStale() {
		return nil, false
	}
	return c.Sync(ctx), true
}

func (c *Coordinator) isStale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.cache == nil {
		return true
	}
	return c.now().Sub(c.cache.LastSync) > c.staleness
}

// Sync synchronizes the cache with the remote catalog. At most one sync is
// in flight system-wide: overlapping callers share the same in-flight call
// and receive the identical result object. Failures never corrupt the
// previous cache; they are converted into a structured failure result.
func (c *Coordinator) Sync(ctx context.Context) *SyncResult {
	v, _, _ := c.group.Do("sync", func() (interface{}, error) {
		return c.doSync(ctx), nil
	})
	return v.(*SyncResult)
}

func (c *Coordinator) doSync(ctx context.Context) *SyncResult {
	c.mu.RLock()
	currentVersion := 0
	if c.cache != nil {
		currentVersion = c.cache.Version
	}
	c.mu.RUnlock()

	check, err := c.client.CheckContentVersion(ctx, currentVersion)
	if err != nil {
		c.log.Error("content version check failed", err)
		return &SyncResult{Success: false, Version: currentVersion, Error: err.Error()}
	}

	if !check.HasUpdates {
		c.touchLastSync(ctx)
		return &SyncResult{Success: true, Updated: false, Version: currentVersion}
	}

	items, err := c.client.FetchContent(ctx)
	if err != nil {
		c.log.Error("content fetch failed", err)
		return &SyncResult{Success: false, Version: currentVersion, Error: err.Error()}
	}

	newSet := &models.CachedContentSet{
		Version:    check.LatestVersion,
		LastSync:   c.now(),
		Categories: organizeByCategory(items),
	}

	if err := c.persist(ctx, newSet); err != nil {
		c.log.Error("failed to persist content cache", err)
		return &SyncResult{Success: false, Version: currentVersion, Error: err.Error()}
	}

	// Swap only after persistence succeeded, so a failed sync leaves the
	// previous cache authoritative.
	c.mu.Lock()
	c.cache = newSet
	c.mu.Unlock()

	c.log.Info("content cache updated", map[string]interface{}{
		"version": newSet.Version,
		"items":   len(items),
	})
	return &SyncResult{Success: true, Updated: true, Version: newSet.Version}
}

// touchLastSync records a successful no-update check so the staleness gate
// does not re-check on every read.
func (c *Coordinator) touchLastSync(ctx context.Context) {
	now := c.now()

	c.mu.Lock()
	if c.cache == nil {
		c.mu.Unlock()
		return
	}
	c.cache.LastSync = now
	snapshot := c.cache.Clone()
	c.mu.Unlock()

	if err := c.persist(ctx, snapshot); err != nil {
		c.log.Warn("failed to persist sync timestamp",
			map[string]interface{}{"error": err.Error()})
	}
}

// persist mirrors the cache to the three persisted keys.
func (c *Coordinator) persist(ctx context.Context, set *models.CachedContentSet) error {
	data, err := json.Marshal(set)
	if err != nil {
		return err
	}
	if err := c.store.Set(ctx, storage.KeyContentCache, data); err != nil {
		return err
	}
	if err := c.store.Set(ctx, storage.KeyContentVersion, []byte(strconv.Itoa(set.Version))); err != nil {
		return err
	}
	return c.store.Set(ctx, storage.KeyContentLastSync, []byte(set.LastSync.Format(time.RFC3339)))
}

// organizeByCategory groups items into category buckets, stably sorted by
// ascending order within each bucket.
func organizeByCategory(items []models.ContentItem) map[models.ContentCategory][]models.ContentItem {
	buckets := make(map[models.ContentCategory][]models.ContentItem)
	for _, item := range items {
		buckets[item.Category] = append(buckets[item.Category], item)
	}
	for cat := range buckets {
		bucket := buckets[cat]
		sort.SliceStable(bucket, func(i, j int) bool {
			return bucket[i].Order < bucket[j].Order
		})
	}
	return buckets
}

// ClearCache clears the in-memory cache and removes the three persisted keys
// as one unit.
func (c *Coordinator) ClearCache(ctx context.Context) error {
	err := c.store.RemoveMulti(ctx,
		storage.KeyContentCache,
		storage.KeyContentVersion,
		storage.KeyContentLastSync,
	)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.cache = nil
	c.mu.Unlock()

	c.log.Info("content cache cleared")
	return nil
}

// CacheInfo returns the cached catalog's version and last sync time, or nil
// when no cache is loaded. It never triggers a sync.
func (c *Coordinator) CacheInfo() *models.CacheInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.cache == nil {
		return nil
	}
	return &models.CacheInfo{Version: c.cache.Version, LastSync: c.cache.LastSync}
}
