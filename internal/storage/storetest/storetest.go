// Package storetest holds the behaviour every store.Store backend must share.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openagenda-tools/uniqloc/pkg/errors"
	"github.com/openagenda-tools/uniqloc/pkg/locations"
	"github.com/openagenda-tools/uniqloc/pkg/store"
)

// Factory returns an empty store. Each call must return an isolated store.
type Factory func(t *testing.T) store.Store

// Run exercises a backend against the store contract.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("insert keeps order", func(t *testing.T) { testInsertOrder(t, newStore(t)) })
	t.Run("duplicate key", func(t *testing.T) { testDuplicate(t, newStore(t)) })
	t.Run("round trip", func(t *testing.T) { testRoundTrip(t, newStore(t)) })
	t.Run("update one", func(t *testing.T) { testUpdateOne(t, newStore(t)) })
	t.Run("update first match", func(t *testing.T) { testUpdateFirstMatch(t, newStore(t)) })
	t.Run("update missing", func(t *testing.T) { testUpdateMissing(t, newStore(t)) })
	t.Run("filters", func(t *testing.T) { testFilters(t, newStore(t)) })
}

// Doc builds a test document.
func Doc(key, id, name string, events ...locations.LinkedEvent) *locations.Location {
	if events == nil {
		events = []locations.LinkedEvent{}
	}
	return &locations.Location{
		Key:          key,
		CanonicalID:  id,
		Name:         name,
		Latitude:     locations.Float(48.8708),
		Longitude:    locations.Float(2.3316),
		LinkedEvents: events,
	}
}

func keys(docs []*locations.Location) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Key)
	}
	return out
}

func testInsertOrder(t *testing.T, s store.Store) {
	ctx := context.Background()
	for _, k := range []string{"k3", "k1", "k2"} {
		require.NoError(t, s.InsertOne(ctx, Doc(k, "", "Salle "+k)))
	}

	docs, err := s.FindAll(ctx, store.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"k3", "k1", "k2"}, keys(docs))
}

func testDuplicate(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.InsertOne(ctx, Doc("k1", "", "A")))

	err := s.InsertOne(ctx, Doc("k1", "", "B"))
	assert.True(t, errors.IsAlreadyExists(err), "got %v", err)

	docs, err := s.FindAll(ctx, store.Filter{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "A", docs[0].Name)
}

func testRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	full := Doc("k1", "loc-1", "Café de la Paix",
		locations.LinkedEvent{EventID: "e1", CollectionID: "c1", HasCanonicalID: true},
		locations.LinkedEvent{EventID: "e2", CollectionID: "c2", HasCanonicalID: true, Patched: true})
	bare := &locations.Location{Key: "k2", Name: "Lieu sans coordonnées", LinkedEvents: []locations.LinkedEvent{}}

	require.NoError(t, s.InsertOne(ctx, full))
	require.NoError(t, s.InsertOne(ctx, bare))

	docs, err := s.FindAll(ctx, store.Filter{})
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, full, docs[0])
	assert.Equal(t, "k2", docs[1].Key)
	assert.Empty(t, docs[1].CanonicalID)
	assert.Nil(t, docs[1].Latitude)
	assert.Nil(t, docs[1].Longitude)
	assert.Empty(t, docs[1].LinkedEvents)
}

func testUpdateOne(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.InsertOne(ctx, Doc("k1", "", "A", locations.LinkedEvent{EventID: "e1", CollectionID: "c1"})))

	id := "loc-1"
	events := []locations.LinkedEvent{{EventID: "e1", CollectionID: "c1", HasCanonicalID: true, Patched: true}}
	require.NoError(t, s.UpdateOne(ctx, store.ByKey("k1"), store.Update{CanonicalID: &id, LinkedEvents: events}))

	docs, err := s.FindAll(ctx, store.Filter{CanonicalID: "loc-1"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "A", docs[0].Name)
	assert.Equal(t, events, docs[0].LinkedEvents)

	// nil fields leave the document alone
	require.NoError(t, s.UpdateOne(ctx, store.ByKey("k1"), store.Update{}))
	docs, err = s.FindAll(ctx, store.ByKey("k1"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "loc-1", docs[0].CanonicalID)
	assert.Len(t, docs[0].LinkedEvents, 1)
}

func testUpdateFirstMatch(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.InsertOne(ctx, Doc("k1", "loc-1", "A")))
	require.NoError(t, s.InsertOne(ctx, Doc("k2", "", "B")))
	require.NoError(t, s.InsertOne(ctx, Doc("k3", "", "C")))

	id := "loc-2"
	require.NoError(t, s.UpdateOne(ctx, store.Filter{Assigned: store.Bool(false)}, store.Update{CanonicalID: &id}))

	docs, err := s.FindAll(ctx, store.Filter{})
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "loc-2", docs[1].CanonicalID)
	assert.Empty(t, docs[2].CanonicalID)
}

func testUpdateMissing(t *testing.T, s store.Store) {
	id := "loc-1"
	err := s.UpdateOne(context.Background(), store.ByKey("nope"), store.Update{CanonicalID: &id})

	var nf *errors.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "nope", nf.ID)
}

func testFilters(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.InsertOne(ctx, Doc("k1", "loc-1", "A")))
	require.NoError(t, s.InsertOne(ctx, Doc("k2", "", "B")))
	require.NoError(t, s.InsertOne(ctx, Doc("k3", "loc-3", "C")))

	tests := []struct {
		name   string
		filter store.Filter
		want   []string
	}{
		{name: "assigned", filter: store.Filter{Assigned: store.Bool(true)}, want: []string{"k1", "k3"}},
		{name: "unassigned", filter: store.Filter{Assigned: store.Bool(false)}, want: []string{"k2"}},
		{name: "canonical id", filter: store.Filter{CanonicalID: "loc-3"}, want: []string{"k3"}},
		{name: "key", filter: store.ByKey("k2"), want: []string{"k2"}},
		{name: "no match", filter: store.ByKey("k9"), want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := s.FindAll(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, keys(docs))
		})
	}
}
