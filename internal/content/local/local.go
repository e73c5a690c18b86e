// Package local provides the bundled fallback content datasets.
//
// When the cached catalog has nothing for a category, the coordinator serves
// the bundled dataset for that category instead. Providers are registered
// statically; there is no runtime module loading.
package local

import (
	"fmt"
	"time"

	"github.com/serenemind/serene/backend/internal/models"
)

// Provider supplies the bundled dataset for one category.
type Provider interface {
	// Category returns the category this provider covers.
	Category() models.ContentCategory

	// Items returns the bundled items converted to the cached item shape:
	// synthesized ids, ascending default ordering, version fixed at 1.
	Items() []models.ContentItem
}

// registry holds the statically registered providers.
var registry = map[models.ContentCategory]Provider{}

func register(p Provider) {
	registry[p.Category()] = p
}

// Lookup returns the provider for a category, or nil if none is bundled.
func Lookup(category models.ContentCategory) Provider {
	return registry[category]
}

// Categories returns every category with a bundled dataset.
func Categories() []models.ContentCategory {
	out := make([]models.ContentCategory, 0, len(registry))
	for cat := range registry {
		out = append(out, cat)
	}
	return out
}

// staticProvider converts a fixed name/description list into content items.
type staticProvider struct {
	category models.ContentCategory
	entries  []staticEntry
}

type staticEntry struct {
	slug        string
	name        string
	description string
	premium     bool
}

func (p *staticProvider) Category() models.ContentCategory {
	return p.category
}

func (p *staticProvider) Items() []models.ContentItem {
	items := make([]models.ContentItem, 0, len(p.entries))
	for i, e := range p.entries {
		items = append(items, models.ContentItem{
			ID:          fmt.Sprintf("local-%s-%d", p.category, i+1),
			Slug:        e.slug,
			Name:        e.name,
			Description: e.description,
			Category:    p.category,
			Premium:     e.premium,
			Order:       i + 1,
			Version:     1,
			UpdatedAt:   time.Time{},
		})
	}
	return items
}
