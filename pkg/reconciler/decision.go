package reconciler

import (
	"fmt"

	"github.com/openagenda-tools/uniqloc/pkg/errors"
	"github.com/openagenda-tools/uniqloc/pkg/locations"
)

// Kind is the outcome of deciding where an event's location belongs.
type Kind int

// Decision kinds.
const (
	// CreateNew inserts a new location for the event.
	CreateNew Kind = iota + 1
	// LinkExisting links the event to a location already in the index.
	LinkExisting
	// BackfillAndLink gives an unidentified location the event's declared id,
	// then links the event to it.
	BackfillAndLink
	// Unresolved leaves the event unlinked because its declared id disagrees
	// with the id of the location it resembles.
	Unresolved
)

// Kinds lists every decision kind in display order.
var Kinds = []Kind{CreateNew, LinkExisting, BackfillAndLink, Unresolved}

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case CreateNew:
		return "create_new"
	case LinkExisting:
		return "link_existing"
	case BackfillAndLink:
		return "backfill_and_link"
	case Unresolved:
		return "unresolved"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Match says how a target location was found.
type Match string

// Match values.
const (
	MatchNone       Match = ""
	MatchID         Match = "id"
	MatchSimilarity Match = "similarity"
)

// Decision is what to do with one event.
type Decision struct {
	Kind Kind
	// Target is the matched location. Nil for CreateNew.
	Target *locations.Location
	// CanonicalID is the id for a new location (may be empty) or the id to
	// back-fill.
	CanonicalID string
	// HasCanonicalID is the flag recorded on the linked event.
	HasCanonicalID bool
	Match          Match
}

// Decide applies the decision table. byID is the location holding the
// mention's declared id, bySimilarity the first location resembling it. Both
// may be nil. Decide has no side effects.
func Decide(m locations.Mention, byID, bySimilarity *locations.Location) Decision {
	if !m.HasDeclaredID() {
		if bySimilarity == nil {
			return Decision{Kind: CreateNew}
		}
		return Decision{Kind: LinkExisting, Target: bySimilarity, Match: MatchSimilarity}
	}

	switch {
	case byID != nil:
		return Decision{Kind: LinkExisting, Target: byID, HasCanonicalID: true, Match: MatchID}
	case bySimilarity == nil:
		return Decision{Kind: CreateNew, CanonicalID: m.DeclaredID, HasCanonicalID: true}
	case !bySimilarity.Assigned():
		return Decision{
			Kind:           BackfillAndLink,
			Target:         bySimilarity,
			CanonicalID:    m.DeclaredID,
			HasCanonicalID: true,
			Match:          MatchSimilarity,
		}
	default:
		return Decision{Kind: Unresolved, Target: bySimilarity, CanonicalID: m.DeclaredID, Match: MatchSimilarity}
	}
}

// apply executes d for ev against the index and returns the location the
// event ended up linked to. An event whose declared id names another location
// than the one it was linked to moves there. An unresolved event loses any
// earlier link.
func apply(ix *locations.Index, ev Event, d Decision) (*locations.Location, error) {
	link := locations.LinkedEvent{
		EventID:        ev.ID,
		CollectionID:   ev.CollectionID,
		HasCanonicalID: d.HasCanonicalID,
	}
	if owner, ok := ix.Owner(ev.ID, ev.CollectionID); ok && owner != d.Target && d.Kind != Unresolved {
		if d.Match != MatchID {
			return nil, fmt.Errorf("event %s in collection %s is linked to location %s: %w",
				ev.ID, ev.CollectionID, owner.Key, errors.ErrAlreadyLinked)
		}
		// The remote now declares the id of another location.
		ix.UnlinkEvent(ev.ID, ev.CollectionID)
	}

	switch d.Kind {
	case CreateNew:
		loc, err := ix.Insert(locations.NewLocation(ev.Location, d.CanonicalID))
		if err != nil {
			return nil, err
		}
		return loc, ix.LinkEvent(loc, link)

	case LinkExisting:
		return d.Target, ix.LinkEvent(d.Target, link)

	case BackfillAndLink:
		if err := ix.SetCanonicalID(d.Target, d.CanonicalID); err != nil {
			return nil, err
		}
		return d.Target, ix.LinkEvent(d.Target, link)

	case Unresolved:
		// A link from an earlier run must not be patched over the declared id.
		ix.UnlinkEvent(ev.ID, ev.CollectionID)
		return nil, errors.NewConflictError(d.Target.Key, d.Target.CanonicalID, d.CanonicalID)

	default:
		return nil, errors.NewValidationError("decision", d.Kind, "unknown decision kind")
	}
}
