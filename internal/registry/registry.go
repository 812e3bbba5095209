// Package registry provides the static source table mapping documentation
// source identifiers to their canonical URLs and metadata. The table is
// loaded once at startup and is read-only afterwards.
package registry

import (
	"fmt"
	"strings"
)

// Category classifies a documentation source for grouping in link listings.
type Category string

const (
	CategoryPrimary   Category = "primary"
	CategoryDriver    Category = "driver"
	CategoryTools     Category = "tools"
	CategoryCommunity Category = "community"
)

// Categories lists all valid categories in display order.
var Categories = []Category{CategoryPrimary, CategoryDriver, CategoryTools, CategoryCommunity}

// Valid reports whether the category is one of the known values.
func (c Category) Valid() bool {
	switch c {
	case CategoryPrimary, CategoryDriver, CategoryTools, CategoryCommunity:
		return true
	}
	return false
}

// SourceDescriptor describes a single documentation source.
// Descriptors are immutable once the registry is built.
type SourceDescriptor struct {
	ID       string   // Unique identifier (e.g. "doca", "mlx5-kernel")
	URL      string   // Canonical documentation URL
	Title    string   // Human-readable title
	Category Category // Grouping for link listings
}

// UnknownSourceError is returned when a source identifier is not in the registry.
type UnknownSourceError struct {
	ID        string
	Available []string
}

func (e *UnknownSourceError) Error() string {
	return fmt.Sprintf("unknown source %q (available: %s)", e.ID, strings.Join(e.Available, ", "))
}

// CategoryGroup holds the descriptors of one category in registration order.
type CategoryGroup struct {
	Category Category
	Sources  []SourceDescriptor
}

// Registry is a validated, ordered source table. It performs no I/O and has
// no side effects; lookups are safe for concurrent use.
type Registry struct {
	byID  map[string]SourceDescriptor
	order []SourceDescriptor
}

// New builds a registry from the given descriptors, preserving their order.
// It rejects duplicate ids, empty fields, non-HTTP URLs, and unknown categories.
func New(sources []SourceDescriptor) (*Registry, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("source table cannot be empty")
	}

	r := &Registry{
		byID:  make(map[string]SourceDescriptor, len(sources)),
		order: make([]SourceDescriptor, 0, len(sources)),
	}

	for i, src := range sources {
		if src.ID == "" {
			return nil, fmt.Errorf("source %d: id cannot be empty", i)
		}
		if _, dup := r.byID[src.ID]; dup {
			return nil, fmt.Errorf("duplicate source id: %s", src.ID)
		}
		if src.Title == "" {
			return nil, fmt.Errorf("source %s: title cannot be empty", src.ID)
		}
		if !strings.HasPrefix(src.URL, "http://") && !strings.HasPrefix(src.URL, "https://") {
			return nil, fmt.Errorf("source %s: url must start with http:// or https://, got: %q", src.ID, src.URL)
		}
		if !src.Category.Valid() {
			return nil, fmt.Errorf("source %s: invalid category %q (must be one of: primary, driver, tools, community)", src.ID, src.Category)
		}

		r.byID[src.ID] = src
		r.order = append(r.order, src)
	}

	return r, nil
}

// Resolve returns the descriptor for the given id.
// Returns an UnknownSourceError if the id is not registered.
func (r *Registry) Resolve(id string) (SourceDescriptor, error) {
	desc, ok := r.byID[id]
	if !ok {
		return SourceDescriptor{}, &UnknownSourceError{ID: id, Available: r.IDs()}
	}
	return desc, nil
}

// List returns all descriptors in registration order.
func (r *Registry) List() []SourceDescriptor {
	out := make([]SourceDescriptor, len(r.order))
	copy(out, r.order)
	return out
}

// IDs returns all source ids in registration order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.order))
	for i, src := range r.order {
		ids[i] = src.ID
	}
	return ids
}

// GroupedByCategory returns non-empty category groups in display order,
// with sources inside each group in registration order.
func (r *Registry) GroupedByCategory() []CategoryGroup {
	groups := make([]CategoryGroup, 0, len(Categories))
	for _, cat := range Categories {
		var group CategoryGroup
		group.Category = cat
		for _, src := range r.order {
			if src.Category == cat {
				group.Sources = append(group.Sources, src)
			}
		}
		if len(group.Sources) > 0 {
			groups = append(groups, group)
		}
	}
	return groups
}

// Len returns the number of registered sources.
func (r *Registry) Len() int {
	return len(r.order)
}
