package reconciler

import (
	"context"
	"sync"
)

// StaticSource is an in-memory EventSource for tests and dry runs. It serves
// the events of each collection page by page and can be told to fail.
type StaticSource struct {
	mu     sync.Mutex
	events map[string][]Event
	fail   map[string]failure
	calls  []PageRequest
}

// PageRequest records one ListEvents call.
type PageRequest struct {
	CollectionID string
	Offset       int
	Limit        int
}

type failure struct {
	offset int
	err    error
}

// NewStaticSource creates an empty source.
func NewStaticSource() *StaticSource {
	return &StaticSource{
		events: make(map[string][]Event),
		fail:   make(map[string]failure),
	}
}

// Add appends events to a collection.
func (s *StaticSource) Add(collectionID string, events ...Event) *StaticSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range events {
		ev.CollectionID = collectionID
		s.events[collectionID] = append(s.events[collectionID], ev)
	}
	return s
}

// Declare sets the declared canonical id of an event, as the platform serves
// it once the id was written to the event. It reports whether the event exists.
func (s *StaticSource) Declare(collectionID, eventID, canonicalID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events[collectionID] {
		if s.events[collectionID][i].ID == eventID {
			s.events[collectionID][i].Location.DeclaredID = canonicalID
			return true
		}
	}
	return false
}

// FailAt makes requests for collectionID at or past offset return err.
func (s *StaticSource) FailAt(collectionID string, offset int, err error) *StaticSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[collectionID] = failure{offset: offset, err: err}
	return s
}

// Calls returns the page requests received so far.
func (s *StaticSource) Calls() []PageRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PageRequest(nil), s.calls...)
}

// ListEvents implements EventSource.
func (s *StaticSource) ListEvents(ctx context.Context, collectionID string, offset, limit int) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, PageRequest{CollectionID: collectionID, Offset: offset, Limit: limit})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f, ok := s.fail[collectionID]; ok && offset >= f.offset {
		return nil, f.err
	}

	all := s.events[collectionID]
	if offset >= len(all) {
		return []Event{}, nil
	}
	end := min(offset+limit, len(all))
	return append([]Event(nil), all[offset:end]...), nil
}
