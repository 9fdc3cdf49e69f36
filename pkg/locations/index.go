package locations

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/openagenda-tools/uniqloc/pkg/errors"
)

// Matcher decides whether two mentions refer to the same place.
type Matcher interface {
	IsSameLocation(a, b Mention) bool
}

// Change is a location that must be written back to the store.
type Change struct {
	Location *Location
	// New is true when the location has never been stored.
	New bool
}

// Index is the authoritative in-memory collection of locations for one run.
// Records are kept in insertion order. Callers mutate locations only through
// Index methods. An Index is not safe for concurrent use.
type Index struct {
	locs  []*Location
	byKey map[string]*Location
	byID  map[string]*Location
	owner map[eventRef]*Location
	isNew map[string]bool
	dirty map[string]bool
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		byKey: make(map[string]*Location),
		byID:  make(map[string]*Location),
		owner: make(map[eventRef]*Location),
		isNew: make(map[string]bool),
		dirty: make(map[string]bool),
	}
}

// Load adds previously stored locations. Loaded records start clean.
func (ix *Index) Load(locs ...*Location) error {
	for _, loc := range locs {
		if loc.Key == "" {
			return errors.NewValidationError("key", loc.Name, "stored location has no key")
		}
		if err := ix.add(loc); err != nil {
			return err
		}
	}
	return nil
}

// Insert adds a new location and assigns it a storage key when it has none.
func (ix *Index) Insert(loc *Location) (*Location, error) {
	if loc.Key == "" {
		loc.Key = uuid.NewString()
	}
	if loc.LinkedEvents == nil {
		loc.LinkedEvents = []LinkedEvent{}
	}
	if err := ix.add(loc); err != nil {
		return nil, err
	}
	ix.isNew[loc.Key] = true
	return loc, nil
}

func (ix *Index) add(loc *Location) error {
	if _, ok := ix.byKey[loc.Key]; ok {
		return fmt.Errorf("location %s: %w", loc.Key, errors.ErrAlreadyExists)
	}
	if loc.CanonicalID != "" {
		if other, ok := ix.byID[loc.CanonicalID]; ok {
			return errors.NewConflictError(other.Key, loc.CanonicalID, loc.CanonicalID)
		}
	}
	for _, ev := range loc.LinkedEvents {
		if other, ok := ix.owner[ev.ref()]; ok && other != loc {
			return fmt.Errorf("event %s in collection %s: %w", ev.EventID, ev.CollectionID, errors.ErrAlreadyLinked)
		}
	}

	ix.locs = append(ix.locs, loc)
	ix.byKey[loc.Key] = loc
	if loc.CanonicalID != "" {
		ix.byID[loc.CanonicalID] = loc
	}
	for _, ev := range loc.LinkedEvents {
		ix.owner[ev.ref()] = loc
	}
	return nil
}

// FindByCanonicalID returns the location holding id.
func (ix *Index) FindByCanonicalID(id string) (*Location, bool) {
	if id == "" {
		return nil, false
	}
	loc, ok := ix.byID[id]
	return loc, ok
}

// FindByKey returns the location stored under key.
func (ix *Index) FindByKey(key string) (*Location, bool) {
	loc, ok := ix.byKey[key]
	return loc, ok
}

// FindBySimilarity returns the first location, in insertion order, that the
// matcher considers the same place as m.
func (ix *Index) FindBySimilarity(m Mention, matcher Matcher) (*Location, bool) {
	for _, loc := range ix.locs {
		if matcher.IsSameLocation(loc.Mention(), m) {
			return loc, true
		}
	}
	return nil, false
}

// Owner returns the location an event is linked to.
func (ix *Index) Owner(eventID, collectionID string) (*Location, bool) {
	loc, ok := ix.owner[eventRef{eventID: eventID, collectionID: collectionID}]
	return loc, ok
}

// LinkEvent links ev to loc. Linking an event twice to the same location is a
// no-op, except that HasCanonicalID may move from false to true. Linking an
// event owned by another location fails with ErrAlreadyLinked.
func (ix *Index) LinkEvent(loc *Location, ev LinkedEvent) error {
	if err := ix.owned(loc); err != nil {
		return err
	}
	ref := ev.ref()
	if owner, ok := ix.owner[ref]; ok {
		if owner != loc {
			return fmt.Errorf("event %s in collection %s is linked to location %s: %w",
				ev.EventID, ev.CollectionID, owner.Key, errors.ErrAlreadyLinked)
		}
		for i := range loc.LinkedEvents {
			le := &loc.LinkedEvents[i]
			if le.ref() == ref && ev.HasCanonicalID && !le.HasCanonicalID {
				le.HasCanonicalID = true
				ix.dirty[loc.Key] = true
			}
		}
		return nil
	}

	loc.LinkedEvents = append(loc.LinkedEvents, ev)
	ix.owner[ref] = loc
	ix.dirty[loc.Key] = true
	return nil
}

// SetCanonicalID assigns id to loc. Setting the id a location already has is a
// no-op. A different existing id is never overwritten.
func (ix *Index) SetCanonicalID(loc *Location, id string) error {
	if err := ix.owned(loc); err != nil {
		return err
	}
	if id == "" {
		return errors.NewValidationError("canonical_id", id, "cannot be empty")
	}
	if loc.CanonicalID == id {
		return nil
	}
	if loc.CanonicalID != "" {
		return errors.NewConflictError(loc.Key, loc.CanonicalID, id)
	}
	if other, ok := ix.byID[id]; ok {
		return errors.NewConflictError(other.Key, id, id)
	}

	loc.CanonicalID = id
	ix.byID[id] = loc
	ix.dirty[loc.Key] = true
	return nil
}

// MarkPatched records that the canonical id was pushed to an event.
func (ix *Index) MarkPatched(loc *Location, eventID, collectionID string) error {
	if err := ix.owned(loc); err != nil {
		return err
	}
	ref := eventRef{eventID: eventID, collectionID: collectionID}
	for i := range loc.LinkedEvents {
		if loc.LinkedEvents[i].ref() == ref {
			loc.LinkedEvents[i].HasCanonicalID = true
			loc.LinkedEvents[i].Patched = true
			ix.dirty[loc.Key] = true
			return nil
		}
	}
	return errors.NewNotFoundError("linked event", eventID)
}

// UnlinkEvent removes an event from the location it is linked to and returns
// that location.
func (ix *Index) UnlinkEvent(eventID, collectionID string) (*Location, bool) {
	ref := eventRef{eventID: eventID, collectionID: collectionID}
	loc, ok := ix.owner[ref]
	if !ok {
		return nil, false
	}
	kept := make([]LinkedEvent, 0, len(loc.LinkedEvents))
	for _, ev := range loc.LinkedEvents {
		if ev.ref() != ref {
			kept = append(kept, ev)
		}
	}
	loc.LinkedEvents = kept
	delete(ix.owner, ref)
	ix.dirty[loc.Key] = true
	return loc, true
}

// ClearPatched resets the Patched flag of every linked event, so that it only
// reports patches made after the call. HasCanonicalID is left untouched.
func (ix *Index) ClearPatched() {
	for _, loc := range ix.locs {
		for i := range loc.LinkedEvents {
			if loc.LinkedEvents[i].Patched {
				loc.LinkedEvents[i].Patched = false
				ix.dirty[loc.Key] = true
			}
		}
	}
}

// CountAssigned returns the number of locations with a canonical id.
func (ix *Index) CountAssigned() int {
	return len(ix.byID)
}

// Unassigned returns the locations without a canonical id, in insertion order.
func (ix *Index) Unassigned() []*Location {
	var out []*Location
	for _, loc := range ix.locs {
		if !loc.Assigned() {
			out = append(out, loc)
		}
	}
	return out
}

// All returns every location in insertion order.
func (ix *Index) All() []*Location {
	return append([]*Location(nil), ix.locs...)
}

// Len returns the number of locations.
func (ix *Index) Len() int {
	return len(ix.locs)
}

// Pending returns the locations that differ from the store, in insertion order.
func (ix *Index) Pending() []Change {
	var changes []Change
	for _, loc := range ix.locs {
		switch {
		case ix.isNew[loc.Key]:
			changes = append(changes, Change{Location: loc, New: true})
		case ix.dirty[loc.Key]:
			changes = append(changes, Change{Location: loc})
		}
	}
	return changes
}

// MarkClean records that the given locations were written to the store.
func (ix *Index) MarkClean(keys ...string) {
	for _, key := range keys {
		delete(ix.isNew, key)
		delete(ix.dirty, key)
	}
}

func (ix *Index) owned(loc *Location) error {
	if loc == nil {
		return errors.NewValidationError("location", nil, "is nil")
	}
	if ix.byKey[loc.Key] != loc {
		return errors.NewNotFoundError("location", loc.Key)
	}
	return nil
}
