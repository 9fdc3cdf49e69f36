package reconciler

import (
	"context"

	"github.com/openagenda-tools/uniqloc/pkg/locations"
)

// Collection is one remote agenda to reconcile.
type Collection struct {
	ID    string `mapstructure:"uid" yaml:"uid" json:"uid"`
	Slug  string `mapstructure:"slug" yaml:"slug" json:"slug"`
	Title string `mapstructure:"title" yaml:"title" json:"title"`
}

// String returns the most readable name of the collection.
func (c Collection) String() string {
	switch {
	case c.Title != "":
		return c.Title
	case c.Slug != "":
		return c.Slug
	default:
		return c.ID
	}
}

// Event is a remote event reduced to what reconciliation needs.
type Event struct {
	ID           string
	CollectionID string
	Location     locations.Mention
}

// EventSource lists the events of a collection one page at a time. An empty
// page marks the end of the collection.
type EventSource interface {
	ListEvents(ctx context.Context, collectionID string, offset, limit int) ([]Event, error)
}
