// Package models provides data model definitions for the Serene core.
package models

import (
	"encoding/json"
	"time"
)

// ContentCategory identifies a content bucket (breathing, meditation, sleep, ...).
type ContentCategory string

const (
	CategoryBreathing  ContentCategory = "breathing"
	CategoryMeditation ContentCategory = "meditation"
	CategorySleep      ContentCategory = "sleep"
	CategoryJournaling ContentCategory = "journaling"
	CategoryRituals    ContentCategory = "rituals"
)

// ContentItem represents one piece of curated content (an exercise, a story,
// a guided ritual). Items are immutable values once fetched; category
// membership and sort position are recomputed wholesale on each sync.
type ContentItem struct {
	ID          string          `json:"id"`
	Slug        string          `json:"slug"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Category    ContentCategory `json:"category"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Premium     bool            `json:"premium"`
	Order       int             `json:"order"`
	Version     int             `json:"version"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// CachedContentSet is the whole locally cached content catalog.
// Categories are replaced atomically on a successful sync, never merged.
type CachedContentSet struct {
	Version    int                               `json:"version"`
	LastSync   time.Time                         `json:"last_sync"`
	Categories map[ContentCategory][]ContentItem `json:"categories"`
}

// Clone returns a deep copy of the set. Callers hand clones to the outside so
// the cached slices are never mutated behind the coordinator's back.
func (s *CachedContentSet) Clone() *CachedContentSet {
	if s == nil {
		return nil
	}
	out := &CachedContentSet{
		Version:    s.Version,
		LastSync:   s.LastSync,
		Categories: make(map[ContentCategory][]ContentItem, len(s.Categories)),
	}
	for cat, items := range s.Categories {
		copied := make([]ContentItem, len(items))
		copy(copied, items)
		out.Categories[cat] = copied
	}
	return out
}

// CacheInfo is the read-only summary of the cached catalog.
type CacheInfo struct {
	Version  int       `json:"version"`
	LastSync time.Time `json:"last_sync"`
}
