// Package store defines the document store contract used to persist the
// location index between runs. Implementations live under internal/storage.
package store

import (
	"context"

	"github.com/openagenda-tools/uniqloc/pkg/locations"
)

// Store persists location documents. Documents are returned in insertion order.
type Store interface {
	// InsertOne adds a new document. A duplicate key fails with errors.ErrAlreadyExists.
	InsertOne(ctx context.Context, doc *locations.Location) error

	// UpdateOne applies update to the first document matching filter. When no
	// document matches it returns a *errors.NotFoundError.
	UpdateOne(ctx context.Context, filter Filter, update Update) error

	// FindAll returns every document matching filter.
	FindAll(ctx context.Context, filter Filter) ([]*locations.Location, error)

	// Close releases the underlying resources.
	Close() error
}

// Filter selects documents. Zero fields match everything.
type Filter struct {
	Key         string
	CanonicalID string
	Assigned    *bool
}

// ByKey returns a filter matching one document key.
func ByKey(key string) Filter {
	return Filter{Key: key}
}

// Matches reports whether doc satisfies the filter.
func (f Filter) Matches(doc *locations.Location) bool {
	if f.Key != "" && doc.Key != f.Key {
		return false
	}
	if f.CanonicalID != "" && doc.CanonicalID != f.CanonicalID {
		return false
	}
	if f.Assigned != nil && doc.Assigned() != *f.Assigned {
		return false
	}
	return true
}

// String identifies the filter in error messages.
func (f Filter) String() string {
	switch {
	case f.Key != "":
		return f.Key
	case f.CanonicalID != "":
		return f.CanonicalID
	case f.Assigned != nil && *f.Assigned:
		return "assigned"
	case f.Assigned != nil:
		return "unassigned"
	default:
		return "any"
	}
}

// Update sets fields on a document. Nil fields are left unchanged.
type Update struct {
	CanonicalID  *string
	LinkedEvents []locations.LinkedEvent
}

// Apply writes the update into doc.
func (u Update) Apply(doc *locations.Location) {
	if u.CanonicalID != nil {
		doc.CanonicalID = *u.CanonicalID
	}
	if u.LinkedEvents != nil {
		doc.LinkedEvents = append(make([]locations.LinkedEvent, 0, len(u.LinkedEvents)), u.LinkedEvents...)
	}
}

// UpdateFrom builds the update that brings a stored document in line with loc.
func UpdateFrom(loc *locations.Location) Update {
	id := loc.CanonicalID
	events := loc.LinkedEvents
	if events == nil {
		events = []locations.LinkedEvent{}
	}
	return Update{CanonicalID: &id, LinkedEvents: events}
}

// Bool returns a pointer to b, for Filter.Assigned.
func Bool(b bool) *bool {
	return &b
}
