package uniqloc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openagenda-tools/uniqloc/internal/storage/memory"
	"github.com/openagenda-tools/uniqloc/pkg/errors"
	"github.com/openagenda-tools/uniqloc/pkg/locations"
	"github.com/openagenda-tools/uniqloc/pkg/store"
)

// failingStore fails every write once failAfter writes succeeded.
type failingStore struct {
	*memory.Store
	writes    int
	failAfter int
}

func (s *failingStore) InsertOne(ctx context.Context, doc *locations.Location) error {
	if s.writes >= s.failAfter {
		return errors.WrapIO("write", "test", errors.New("disk full"))
	}
	s.writes++
	return s.Store.InsertOne(ctx, doc)
}

func mention(name string) locations.Mention {
	return locations.Mention{Name: name}
}

func TestFlushInsertsAndUpdates(t *testing.T) {
	st := memory.New()
	ix := locations.NewIndex()

	a, err := ix.Insert(locations.NewLocation(mention("A"), ""))
	require.NoError(t, err)
	_, err = ix.Insert(locations.NewLocation(mention("B"), ""))
	require.NoError(t, err)

	n, err := flush(t.Context(), st, ix)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, ix.Pending())

	require.NoError(t, ix.SetCanonicalID(a, "p_1"))
	n, err = flush(t.Context(), st, ix)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	docs, err := st.FindAll(t.Context(), store.Filter{Assigned: store.Bool(true)})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "p_1", docs[0].CanonicalID)

	n, err = flush(t.Context(), st, ix)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing pending")
}

func TestFlushFallsBack(t *testing.T) {
	t.Run("insert of a stored document updates it", func(t *testing.T) {
		stored := &locations.Location{Key: "k1", Name: "A", LinkedEvents: []locations.LinkedEvent{}}
		st := memory.New(stored)

		ix := locations.NewIndex()
		_, err := ix.Insert(&locations.Location{Key: "k1", Name: "A", CanonicalID: "p_1"})
		require.NoError(t, err)

		_, err = flush(t.Context(), st, ix)
		require.NoError(t, err)
		docs := st.Snapshot()
		require.Len(t, docs, 1)
		assert.Equal(t, "p_1", docs[0].CanonicalID)
	})

	t.Run("update of a missing document inserts it", func(t *testing.T) {
		st := memory.New()
		ix := locations.NewIndex()
		loc := &locations.Location{Key: "k1", Name: "A", LinkedEvents: []locations.LinkedEvent{}}
		require.NoError(t, ix.Load(loc))
		require.NoError(t, ix.SetCanonicalID(loc, "p_1"))

		_, err := flush(t.Context(), st, ix)
		require.NoError(t, err)
		docs := st.Snapshot()
		require.Len(t, docs, 1)
		assert.Equal(t, "p_1", docs[0].CanonicalID)
	})
}

func TestFlushStopsOnFailure(t *testing.T) {
	st := &failingStore{Store: memory.New(), failAfter: 1}
	ix := locations.NewIndex()
	for _, name := range []string{"A", "B", "C"} {
		_, err := ix.Insert(locations.NewLocation(mention(name), ""))
		require.NoError(t, err)
	}

	n, err := flush(t.Context(), st, ix)
	require.Error(t, err)
	assert.Equal(t, 1, n)
	var ioErr *errors.IOError
	assert.ErrorAs(t, err, &ioErr)
	assert.Len(t, ix.Pending(), 2, "unwritten changes stay pending")
}

func TestLoad(t *testing.T) {
	st := memory.New(
		&locations.Location{Key: "k1", CanonicalID: "p_1", Name: "A"},
		&locations.Location{Key: "k2", Name: "B"},
	)
	ix, err := load(t.Context(), st)
	require.NoError(t, err)
	assert.Equal(t, 2, ix.Len())
	assert.Empty(t, ix.Pending())

	bad := memory.New(
		&locations.Location{Key: "k1", CanonicalID: "p_1"},
		&locations.Location{Key: "k2", CanonicalID: "p_1"},
	)
	_, err = load(t.Context(), bad)
	require.Error(t, err)
}
