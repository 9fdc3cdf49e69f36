// Package locations holds the canonical location model, the in-memory index
// that owns every location record during a run, and the generator of
// canonical identifiers.
package locations

// Mention is a location as it appears inside one event. Any field may be
// missing: an empty Name or DeclaredID, or nil coordinates.
type Mention struct {
	Name       string
	Latitude   *float64
	Longitude  *float64
	DeclaredID string
}

// HasDeclaredID reports whether the event already carries a canonical id.
func (m Mention) HasDeclaredID() bool {
	return m.DeclaredID != ""
}

// LinkedEvent references one remote event that mentions a location.
type LinkedEvent struct {
	EventID        string `json:"event_id" yaml:"event_id"`
	CollectionID   string `json:"collection_id" yaml:"collection_id"`
	HasCanonicalID bool   `json:"has_canonical_id" yaml:"has_canonical_id"`
	// Patched is set only by the run that pushed the id.
	Patched        bool   `json:"patched" yaml:"patched"`
}

type eventRef struct {
	eventID      string
	collectionID string
}

func (e LinkedEvent) ref() eventRef {
	return eventRef{eventID: e.EventID, collectionID: e.CollectionID}
}

// Location is one distinct physical place. Name and coordinates come from the
// first mention and are never changed afterwards.
type Location struct {
	// Key is the storage identity, assigned on insert.
	Key string `json:"key" yaml:"key"`
	// CanonicalID is empty until one is declared or generated.
	CanonicalID  string        `json:"uniquelocationid,omitempty" yaml:"uniquelocationid,omitempty"`
	Name         string        `json:"name" yaml:"name"`
	Latitude     *float64      `json:"latitude,omitempty" yaml:"latitude,omitempty"`
	Longitude    *float64      `json:"longitude,omitempty" yaml:"longitude,omitempty"`
	LinkedEvents []LinkedEvent `json:"linked_events" yaml:"linked_events"`
}

// NewLocation creates an unsaved location from its first mention.
func NewLocation(m Mention, canonicalID string) *Location {
	return &Location{
		CanonicalID:  canonicalID,
		Name:         m.Name,
		Latitude:     copyFloat(m.Latitude),
		Longitude:    copyFloat(m.Longitude),
		LinkedEvents: []LinkedEvent{},
	}
}

// Mention returns the representative mention of the location.
func (l *Location) Mention() Mention {
	return Mention{
		Name:       l.Name,
		Latitude:   l.Latitude,
		Longitude:  l.Longitude,
		DeclaredID: l.CanonicalID,
	}
}

// Assigned reports whether the location has a canonical id.
func (l *Location) Assigned() bool {
	return l.CanonicalID != ""
}

// Clone returns a deep copy.
func (l *Location) Clone() *Location {
	if l == nil {
		return nil
	}
	c := *l
	c.Latitude = copyFloat(l.Latitude)
	c.Longitude = copyFloat(l.Longitude)
	c.LinkedEvents = append([]LinkedEvent(nil), l.LinkedEvents...)
	if c.LinkedEvents == nil {
		c.LinkedEvents = []LinkedEvent{}
	}
	return &c
}

// EventIDs returns the ids of every linked event.
func (l *Location) EventIDs() []string {
	ids := make([]string, 0, len(l.LinkedEvents))
	for _, ev := range l.LinkedEvents {
		ids = append(ids, ev.EventID)
	}
	return ids
}

// PatchedEventIDs returns the ids of linked events patched by the last run.
func (l *Location) PatchedEventIDs() []string {
	var ids []string
	for _, ev := range l.LinkedEvents {
		if ev.Patched {
			ids = append(ids, ev.EventID)
		}
	}
	return ids
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
