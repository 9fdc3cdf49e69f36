package locations_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openagenda-tools/uniqloc/pkg/errors"
	"github.com/openagenda-tools/uniqloc/pkg/locations"
)

// nameMatcher treats mentions with equal names as the same place.
type nameMatcher struct{}

func (nameMatcher) IsSameLocation(a, b locations.Mention) bool {
	return a.Name != "" && a.Name == b.Name
}

func mention(name string) locations.Mention {
	return locations.Mention{Name: name, Latitude: locations.Float(48.87), Longitude: locations.Float(2.33)}
}

func TestInsertAssignsKey(t *testing.T) {
	ix := locations.NewIndex()
	loc, err := ix.Insert(locations.NewLocation(mention("Café de la Paix"), ""))
	require.NoError(t, err)

	assert.NotEmpty(t, loc.Key)
	assert.Empty(t, loc.CanonicalID)
	assert.Equal(t, 1, ix.Len())

	found, ok := ix.FindByKey(loc.Key)
	require.True(t, ok)
	assert.Same(t, loc, found)
}

func TestInsertDuplicateCanonicalID(t *testing.T) {
	ix := locations.NewIndex()
	_, err := ix.Insert(locations.NewLocation(mention("A"), "loc-1"))
	require.NoError(t, err)

	_, err = ix.Insert(locations.NewLocation(mention("B"), "loc-1"))
	assert.True(t, errors.IsConflict(err))
}

func TestFindByCanonicalID(t *testing.T) {
	ix := locations.NewIndex()
	loc, err := ix.Insert(locations.NewLocation(mention("A"), "loc-7"))
	require.NoError(t, err)

	found, ok := ix.FindByCanonicalID("loc-7")
	require.True(t, ok)
	assert.Same(t, loc, found)

	_, ok = ix.FindByCanonicalID("loc-8")
	assert.False(t, ok)
	_, ok = ix.FindByCanonicalID("")
	assert.False(t, ok)
}

func TestFindBySimilarityReturnsFirstInInsertionOrder(t *testing.T) {
	ix := locations.NewIndex()
	first, err := ix.Insert(locations.NewLocation(mention("Salle A"), ""))
	require.NoError(t, err)
	_, err = ix.Insert(locations.NewLocation(mention("Salle A"), "loc-2"))
	require.NoError(t, err)

	found, ok := ix.FindBySimilarity(mention("Salle A"), nameMatcher{})
	require.True(t, ok)
	assert.Same(t, first, found)

	_, ok = ix.FindBySimilarity(mention("Salle B"), nameMatcher{})
	assert.False(t, ok)
}

func TestLinkEvent(t *testing.T) {
	ix := locations.NewIndex()
	a, err := ix.Insert(locations.NewLocation(mention("A"), ""))
	require.NoError(t, err)
	b, err := ix.Insert(locations.NewLocation(mention("B"), ""))
	require.NoError(t, err)

	ev := locations.LinkedEvent{EventID: "e1", CollectionID: "c1"}

	t.Run("links once", func(t *testing.T) {
		require.NoError(t, ix.LinkEvent(a, ev))
		require.NoError(t, ix.LinkEvent(a, ev))
		assert.Len(t, a.LinkedEvents, 1)
	})

	t.Run("upgrades canonical flag", func(t *testing.T) {
		require.NoError(t, ix.LinkEvent(a, locations.LinkedEvent{EventID: "e1", CollectionID: "c1", HasCanonicalID: true}))
		assert.True(t, a.LinkedEvents[0].HasCanonicalID)
	})

	t.Run("same event id in another collection is distinct", func(t *testing.T) {
		require.NoError(t, ix.LinkEvent(b, locations.LinkedEvent{EventID: "e1", CollectionID: "c2"}))
		assert.Len(t, b.LinkedEvents, 1)
	})

	t.Run("refuses second owner", func(t *testing.T) {
		err := ix.LinkEvent(b, ev)
		assert.True(t, errors.IsAlreadyLinked(err))
		owner, ok := ix.Owner("e1", "c1")
		require.True(t, ok)
		assert.Same(t, a, owner)
	})

	t.Run("unknown location", func(t *testing.T) {
		stray := locations.NewLocation(mention("C"), "")
		assert.True(t, errors.IsNotFound(ix.LinkEvent(stray, ev)))
	})
}

func TestSetCanonicalID(t *testing.T) {
	ix := locations.NewIndex()
	loc, err := ix.Insert(locations.NewLocation(mention("A"), ""))
	require.NoError(t, err)
	other, err := ix.Insert(locations.NewLocation(mention("B"), "loc-9"))
	require.NoError(t, err)

	require.NoError(t, ix.SetCanonicalID(loc, "loc-1"))
	assert.Equal(t, "loc-1", loc.CanonicalID)
	assert.NoError(t, ix.SetCanonicalID(loc, "loc-1"))

	err = ix.SetCanonicalID(loc, "loc-2")
	var conflict *errors.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "loc-1", conflict.ExistingID)
	assert.Equal(t, "loc-2", conflict.DeclaredID)
	assert.Equal(t, "loc-1", loc.CanonicalID)

	assert.True(t, errors.IsValidationError(ix.SetCanonicalID(other, "")))
	assert.Equal(t, 2, ix.CountAssigned())
}

func TestSetCanonicalIDRejectsIDOwnedElsewhere(t *testing.T) {
	ix := locations.NewIndex()
	_, err := ix.Insert(locations.NewLocation(mention("A"), "loc-1"))
	require.NoError(t, err)
	loc, err := ix.Insert(locations.NewLocation(mention("B"), ""))
	require.NoError(t, err)

	assert.True(t, errors.IsConflict(ix.SetCanonicalID(loc, "loc-1")))
	assert.Empty(t, loc.CanonicalID)
}

func TestMarkPatched(t *testing.T) {
	ix := locations.NewIndex()
	loc, err := ix.Insert(locations.NewLocation(mention("A"), "loc-1"))
	require.NoError(t, err)
	require.NoError(t, ix.LinkEvent(loc, locations.LinkedEvent{EventID: "e1", CollectionID: "c1"}))

	require.NoError(t, ix.MarkPatched(loc, "e1", "c1"))
	assert.True(t, loc.LinkedEvents[0].HasCanonicalID)
	assert.True(t, loc.LinkedEvents[0].Patched)
	assert.Equal(t, []string{"e1"}, loc.PatchedEventIDs())

	assert.True(t, errors.IsNotFound(ix.MarkPatched(loc, "e2", "c1")))
}

func TestUnlinkEvent(t *testing.T) {
	ix := locations.NewIndex()
	loc, err := ix.Insert(locations.NewLocation(mention("A"), "loc-1"))
	require.NoError(t, err)
	require.NoError(t, ix.LinkEvent(loc, locations.LinkedEvent{EventID: "e1", CollectionID: "c1"}))
	require.NoError(t, ix.LinkEvent(loc, locations.LinkedEvent{EventID: "e2", CollectionID: "c1"}))
	ix.MarkClean(loc.Key)

	from, ok := ix.UnlinkEvent("e1", "c1")
	require.True(t, ok)
	assert.Same(t, loc, from)
	assert.Equal(t, []string{"e2"}, loc.EventIDs())
	_, owned := ix.Owner("e1", "c1")
	assert.False(t, owned)
	require.Len(t, ix.Pending(), 1)

	_, ok = ix.UnlinkEvent("e1", "c1")
	assert.False(t, ok)

	// The event can now be linked elsewhere.
	other, err := ix.Insert(locations.NewLocation(mention("B"), "loc-2"))
	require.NoError(t, err)
	assert.NoError(t, ix.LinkEvent(other, locations.LinkedEvent{EventID: "e1", CollectionID: "c1"}))
}

func TestClearPatched(t *testing.T) {
	stored := &locations.Location{
		Key:         "k1",
		CanonicalID: "loc-1",
		Name:        "A",
		LinkedEvents: []locations.LinkedEvent{
			{EventID: "e1", CollectionID: "c1", HasCanonicalID: true, Patched: true},
			{EventID: "e2", CollectionID: "c1", HasCanonicalID: true},
		},
	}
	untouched := &locations.Location{
		Key:          "k2",
		CanonicalID:  "loc-2",
		Name:         "B",
		LinkedEvents: []locations.LinkedEvent{{EventID: "e3", CollectionID: "c1", HasCanonicalID: true}},
	}
	ix := locations.NewIndex()
	require.NoError(t, ix.Load(stored, untouched))

	ix.ClearPatched()
	assert.Empty(t, stored.PatchedEventIDs())
	assert.True(t, stored.LinkedEvents[0].HasCanonicalID)

	pending := ix.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "k1", pending[0].Location.Key)
}

func TestPendingTracksNewAndDirty(t *testing.T) {
	stored := &locations.Location{
		Key:          "k1",
		CanonicalID:  "loc-1",
		Name:         "A",
		LinkedEvents: []locations.LinkedEvent{{EventID: "e1", CollectionID: "c1", HasCanonicalID: true}},
	}
	ix := locations.NewIndex()
	require.NoError(t, ix.Load(stored))
	assert.Empty(t, ix.Pending())

	fresh, err := ix.Insert(locations.NewLocation(mention("B"), ""))
	require.NoError(t, err)
	require.NoError(t, ix.LinkEvent(stored, locations.LinkedEvent{EventID: "e2", CollectionID: "c1"}))

	pending := ix.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "k1", pending[0].Location.Key)
	assert.False(t, pending[0].New)
	assert.Same(t, fresh, pending[1].Location)
	assert.True(t, pending[1].New)

	ix.MarkClean("k1", fresh.Key)
	assert.Empty(t, ix.Pending())
}

func TestLoadRejectsInconsistentDocuments(t *testing.T) {
	ix := locations.NewIndex()
	assert.True(t, errors.IsValidationError(ix.Load(&locations.Location{Name: "no key"})))

	require.NoError(t, ix.Load(&locations.Location{Key: "k1", LinkedEvents: []locations.LinkedEvent{{EventID: "e1", CollectionID: "c1"}}}))
	err := ix.Load(&locations.Location{Key: "k2", LinkedEvents: []locations.LinkedEvent{{EventID: "e1", CollectionID: "c1"}}})
	assert.True(t, errors.IsAlreadyLinked(err))
	assert.True(t, errors.IsAlreadyExists(ix.Load(&locations.Location{Key: "k1"})))
}

func TestUnassignedAndAll(t *testing.T) {
	ix := locations.NewIndex()
	a, _ := ix.Insert(locations.NewLocation(mention("A"), ""))
	_, _ = ix.Insert(locations.NewLocation(mention("B"), "loc-1"))
	c, _ := ix.Insert(locations.NewLocation(mention("C"), ""))

	assert.Equal(t, []*locations.Location{a, c}, ix.Unassigned())
	assert.Len(t, ix.All(), 3)
	assert.Equal(t, 1, ix.CountAssigned())
}

func TestCloneIsDeep(t *testing.T) {
	loc := locations.NewLocation(mention("A"), "loc-1")
	loc.LinkedEvents = append(loc.LinkedEvents, locations.LinkedEvent{EventID: "e1", CollectionID: "c1"})

	c := loc.Clone()
	*c.Latitude = 0
	c.LinkedEvents[0].Patched = true

	assert.InDelta(t, 48.87, *loc.Latitude, 1e-9)
	assert.False(t, loc.LinkedEvents[0].Patched)
}
