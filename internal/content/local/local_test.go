// Package local tests for the bundled fallback datasets.
package local

import (
	"testing"

	"github.com/serenemind/serene/backend/internal/models"
)

// TestLookup_registered verifies bundled categories resolve.
func TestLookup_registered(t *testing.T) {
	for _, cat := range []models.ContentCategory{
		models.CategoryBreathing, models.CategoryMeditation, models.CategorySleep,
	} {
		if Lookup(cat) == nil {
			t.Errorf("Lookup(%s) = nil, want a bundled provider", cat)
		}
	}
}

// TestLookup_unregistered verifies unknown categories return nil.
func TestLookup_unregistered(t *testing.T) {
	if Lookup(models.ContentCategory("yoga")) != nil {
		t.Error("Lookup(yoga) should be nil")
	}
}

// TestProvider_ItemShape verifies synthesized ids, ordering, and version.
func TestProvider_ItemShape(t *testing.T) {
	items := Lookup(models.CategoryBreathing).Items()

	if len(items) == 0 {
		t.Fatal("breathing provider returned no items")
	}

	for i, item := range items {
		if item.ID == "" {
			t.Errorf("item %d has no synthesized id", i)
		}
		if item.Version != 1 {
			t.Errorf("item %d version = %d, want fixed version 1", i, item.Version)
		}
		if item.Order != i+1 {
			t.Errorf("item %d order = %d, want %d", i, item.Order, i+1)
		}
		if item.Category != models.CategoryBreathing {
			t.Errorf("item %d category = %s, want breathing", i, item.Category)
		}
	}
}
