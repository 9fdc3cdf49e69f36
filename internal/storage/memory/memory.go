// Package memory provides an in-memory store. It backs dry runs and tests and
// is the working set of the YAML file store.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/openagenda-tools/uniqloc/pkg/errors"
	"github.com/openagenda-tools/uniqloc/pkg/locations"
	"github.com/openagenda-tools/uniqloc/pkg/store"
)

// Store keeps documents in an ordered slice.
type Store struct {
	mu   sync.RWMutex
	docs []*locations.Location
	keys map[string]int
}

var _ store.Store = (*Store)(nil)

// New creates a store pre-populated with docs.
func New(docs ...*locations.Location) *Store {
	s := &Store{keys: make(map[string]int, len(docs))}
	for _, doc := range docs {
		if _, dup := s.keys[doc.Key]; dup {
			continue
		}
		s.keys[doc.Key] = len(s.docs)
		s.docs = append(s.docs, doc.Clone())
	}
	return s
}

// InsertOne implements store.Store.
func (s *Store) InsertOne(ctx context.Context, doc *locations.Location) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if doc == nil || doc.Key == "" {
		return errors.NewValidationError("key", nil, "document has no key")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.keys[doc.Key]; dup {
		return fmt.Errorf("location %s: %w", doc.Key, errors.ErrAlreadyExists)
	}
	s.keys[doc.Key] = len(s.docs)
	s.docs = append(s.docs, doc.Clone())
	return nil
}

// UpdateOne implements store.Store.
func (s *Store) UpdateOne(ctx context.Context, filter store.Filter, update store.Update) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, doc := range s.docs {
		if filter.Matches(doc) {
			update.Apply(doc)
			return nil
		}
	}
	return errors.NewNotFoundError("location", filter.String())
}

// FindAll implements store.Store.
func (s *Store) FindAll(ctx context.Context, filter store.Filter) ([]*locations.Location, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*locations.Location, 0, len(s.docs))
	for _, doc := range s.docs {
		if filter.Matches(doc) {
			out = append(out, doc.Clone())
		}
	}
	return out, nil
}

// Snapshot returns a copy of every document in insertion order.
func (s *Store) Snapshot() []*locations.Location {
	docs, _ := s.FindAll(context.Background(), store.Filter{})
	return docs
}

// Close implements store.Store.
func (s *Store) Close() error {
	return nil
}
