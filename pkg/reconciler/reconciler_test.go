package reconciler_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	uerrors "github.com/openagenda-tools/uniqloc/pkg/errors"
	"github.com/openagenda-tools/uniqloc/pkg/locations"
	"github.com/openagenda-tools/uniqloc/pkg/logging"
	"github.com/openagenda-tools/uniqloc/pkg/reconciler"
	"github.com/openagenda-tools/uniqloc/pkg/similarity"
)

func event(id, name string, lat, lon float64, declared string) reconciler.Event {
	return reconciler.Event{
		ID: id,
		Location: locations.Mention{
			Name:       name,
			Latitude:   locations.Float(lat),
			Longitude:  locations.Float(lon),
			DeclaredID: declared,
		},
	}
}

func newReconciler(t *testing.T, src reconciler.EventSource, opts ...reconciler.Option) *reconciler.Reconciler {
	t.Helper()
	cmp, err := similarity.New(similarity.DefaultConfig())
	require.NoError(t, err)
	gen, err := locations.NewIDGenerator("loc-")
	require.NoError(t, err)
	r, err := reconciler.New(src, cmp, gen, opts...)
	require.NoError(t, err)
	return r
}

func collections(ids ...string) []reconciler.Collection {
	out := make([]reconciler.Collection, 0, len(ids))
	for _, id := range ids {
		out = append(out, reconciler.Collection{ID: id})
	}
	return out
}

func TestNewValidation(t *testing.T) {
	cmp, err := similarity.New(similarity.DefaultConfig())
	require.NoError(t, err)
	gen, err := locations.NewIDGenerator("loc-")
	require.NoError(t, err)
	src := reconciler.NewStaticSource()

	_, err = reconciler.New(nil, cmp, gen)
	assert.True(t, uerrors.IsValidationError(err))
	_, err = reconciler.New(src, nil, gen)
	assert.True(t, uerrors.IsValidationError(err))
	_, err = reconciler.New(src, cmp, nil)
	assert.True(t, uerrors.IsValidationError(err))
	_, err = reconciler.New(src, cmp, gen, reconciler.WithPageSize(0))
	assert.True(t, uerrors.IsValidationError(err))
	_, err = reconciler.New(src, cmp, gen, reconciler.WithPageSize(1000))
	assert.True(t, uerrors.IsValidationError(err))
	_, err = reconciler.New(src, cmp, gen, reconciler.WithDecisionHook(nil))
	assert.True(t, uerrors.IsValidationError(err))
}

func TestSimilarNamesTenMetersApartShareOneLocation(t *testing.T) {
	src := reconciler.NewStaticSource().Add("c1",
		event("e1", "Café de la Paix", 48.87080, 2.33160, ""),
		event("e2", "Cafe de la Paix", 48.87089, 2.33160, ""),
	)
	ix := locations.NewIndex()

	res, err := newReconciler(t, src).Reconcile(context.Background(), ix, collections("c1"))
	require.NoError(t, err)

	require.Equal(t, 1, ix.Len())
	loc := ix.All()[0]
	assert.Equal(t, "Café de la Paix", loc.Name, "first mention stays representative")
	assert.Equal(t, []string{"e1", "e2"}, loc.EventIDs())
	assert.Empty(t, loc.CanonicalID)
	assert.Equal(t, 1, res.Decisions[reconciler.CreateNew])
	assert.Equal(t, 1, res.Decisions[reconciler.LinkExisting])
}

func TestDeclaredIDWithoutMatchCreatesLocation(t *testing.T) {
	src := reconciler.NewStaticSource().Add("c1", event("e1", "Le Bataclan", 48.8631, 2.3708, "X"))
	ix := locations.NewIndex()

	_, err := newReconciler(t, src).Reconcile(context.Background(), ix, collections("c1"))
	require.NoError(t, err)

	loc, ok := ix.FindByCanonicalID("X")
	require.True(t, ok)
	assert.Equal(t, []locations.LinkedEvent{{EventID: "e1", CollectionID: "c1", HasCanonicalID: true}}, loc.LinkedEvents)
}

func TestBackfillAcrossCollections(t *testing.T) {
	src := reconciler.NewStaticSource().
		Add("c1", event("e1", "Salle Pleyel", 48.8790, 2.3000, "")).
		Add("c2", event("e2", "Salle Pleyel", 48.8790, 2.3000, "P7"))
	ix := locations.NewIndex()

	res, err := newReconciler(t, src).Reconcile(context.Background(), ix, collections("c1", "c2"))
	require.NoError(t, err)

	require.Equal(t, 1, ix.Len())
	loc := ix.All()[0]
	assert.Equal(t, "P7", loc.CanonicalID)
	assert.False(t, loc.LinkedEvents[0].HasCanonicalID)
	assert.True(t, loc.LinkedEvents[1].HasCanonicalID)
	assert.Equal(t, 1, res.Metadata.Stats.IDsBackfilled)
}

func TestConflictNeverOverwrites(t *testing.T) {
	captured := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), captured.Logger)

	src := reconciler.NewStaticSource().Add("c1",
		event("e1", "Salle Pleyel", 48.8790, 2.3000, "A"),
		event("e2", "Salle Pleyel", 48.8790, 2.3000, "B"),
	)
	ix := locations.NewIndex()

	res, err := newReconciler(t, src).Reconcile(ctx, ix, collections("c1"))
	require.NoError(t, err)

	require.Equal(t, 1, ix.Len())
	assert.Equal(t, "A", ix.All()[0].CanonicalID)
	assert.Equal(t, []string{"e1"}, ix.All()[0].EventIDs())
	_, linked := ix.Owner("e2", "c1")
	assert.False(t, linked)

	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "B", res.Conflicts[0].DeclaredID)
	assert.Equal(t, 1, res.Decisions[reconciler.Unresolved])
	captured.AssertContains(t, "event left unlinked")
}

func TestEveryProcessedEventLinkedOnce(t *testing.T) {
	src := reconciler.NewStaticSource().
		Add("c1",
			event("e1", "Théâtre de la Ville", 48.8566, 2.3470, ""),
			event("e2", "Theatre de la Ville", 48.8567, 2.3470, ""),
			event("e3", "Opéra Bastille", 48.8520, 2.3690, "OB"),
			reconciler.Event{ID: "e4", Location: locations.Mention{Name: "Sans coordonnées"}},
		).
		Add("c2",
			event("e1", "Théâtre de la Ville", 48.8566, 2.3470, ""),
			event("e5", "Opera Bastille", 48.8521, 2.3690, ""),
		)
	ix := locations.NewIndex()

	res, err := newReconciler(t, src, reconciler.WithPageSize(2)).Reconcile(context.Background(), ix, collections("c1", "c2"))
	require.NoError(t, err)
	assert.Equal(t, 6, res.Metadata.Stats.EventsProcessed)

	owners := map[string]int{}
	for _, loc := range ix.All() {
		for _, ev := range loc.LinkedEvents {
			owners[ev.CollectionID+"/"+ev.EventID]++
		}
	}
	assert.Len(t, owners, 6)
	for ref, n := range owners {
		assert.Equal(t, 1, n, ref)
	}
	assert.Equal(t, 3, ix.Len())
}

func TestPagingStopsOnEmptyPage(t *testing.T) {
	src := reconciler.NewStaticSource().Add("c1",
		event("e1", "A", 1, 1, ""), event("e2", "B", 2, 2, ""), event("e3", "C", 3, 3, ""))
	ix := locations.NewIndex()

	res, err := newReconciler(t, src, reconciler.WithPageSize(2)).Reconcile(context.Background(), ix, collections("c1"))
	require.NoError(t, err)

	assert.Equal(t, []reconciler.PageRequest{
		{CollectionID: "c1", Offset: 0, Limit: 2},
		{CollectionID: "c1", Offset: 2, Limit: 2},
		{CollectionID: "c1", Offset: 4, Limit: 2},
	}, src.Calls())
	assert.Equal(t, 3, res.Collections[0].Pages)
	assert.Equal(t, 3, res.Collections[0].Fetched)
}

func TestFetchErrorKeepsFetchedEventsAndContinues(t *testing.T) {
	boom := errors.New("connection reset")
	src := reconciler.NewStaticSource().
		Add("c1", event("e1", "A", 1, 1, ""), event("e2", "B", 2, 2, ""), event("e3", "C", 3, 3, "")).
		FailAt("c1", 2, boom).
		Add("c2", event("e4", "D", 4, 4, ""))
	ix := locations.NewIndex()

	res, err := newReconciler(t, src, reconciler.WithPageSize(2)).Reconcile(context.Background(), ix, collections("c1", "c2"))
	require.NoError(t, err)

	assert.False(t, res.IsSuccess())
	require.Len(t, res.Errors, 1)
	var ferr *uerrors.FetchError
	require.ErrorAs(t, res.Errors[0], &ferr)
	assert.Equal(t, "c1", ferr.CollectionID)
	assert.Equal(t, 2, ferr.Offset)
	assert.ErrorIs(t, res.Errors[0], boom)

	assert.Equal(t, 3, ix.Len(), "e1, e2 from c1 and e4 from c2")
	assert.Equal(t, 1, res.Metadata.Stats.FetchErrors)
	assert.Contains(t, res.Summary(), "1 fetch errors")
}

func TestSkipsEventsWithoutIDAndRepeats(t *testing.T) {
	src := reconciler.NewStaticSource().Add("c1",
		event("", "A", 1, 1, ""),
		event("e1", "B", 2, 2, ""),
		event("e1", "B", 2, 2, ""),
	)
	ix := locations.NewIndex()

	res, err := newReconciler(t, src).Reconcile(context.Background(), ix, collections("c1"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Metadata.Stats.EventsSkipped)
	assert.Equal(t, 1, ix.Len())
}

func TestCancellationStopsPass(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := reconciler.NewStaticSource().
		Add("c1", event("e1", "A", 1, 1, ""), event("e2", "B", 2, 2, "")).
		Add("c2", event("e3", "C", 3, 3, ""))
	ix := locations.NewIndex()

	seen := 0
	r := newReconciler(t, src, reconciler.WithDecisionHook(func(reconciler.Event, reconciler.Decision) {
		seen++
		cancel()
	}))

	res, err := r.Reconcile(ctx, ix, collections("c1", "c2"))
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, 1, seen)
	assert.Equal(t, 1, ix.Len(), "the event being processed completes")
}

func TestAssignIDs(t *testing.T) {
	src := reconciler.NewStaticSource().Add("c1",
		event("e1", "A", 1, 1, ""),
		event("e2", "B", 2, 2, "loc-2"),
		event("e3", "C", 3, 3, ""),
		event("e4", "D", 4, 4, ""),
	)
	ix := locations.NewIndex()
	r := newReconciler(t, src)

	_, err := r.Reconcile(context.Background(), ix, collections("c1"))
	require.NoError(t, err)

	n, err := r.AssignIDs(context.Background(), ix)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Empty(t, ix.Unassigned())

	ids := map[string]bool{}
	for _, loc := range ix.All() {
		assert.False(t, ids[loc.CanonicalID], "duplicate id %s", loc.CanonicalID)
		ids[loc.CanonicalID] = true
	}
	assert.Equal(t, map[string]bool{"loc-2": true, "loc-3": true, "loc-4": true, "loc-5": true}, ids)
}

func TestRerunIsIdempotent(t *testing.T) {
	src := reconciler.NewStaticSource().Add("c1",
		event("e1", "Café de la Paix", 48.87080, 2.33160, ""),
		event("e2", "Cafe de la Paix", 48.87089, 2.33160, ""),
		reconciler.Event{ID: "e3", Location: locations.Mention{Name: "Nowhere"}},
	)
	ix := locations.NewIndex()
	r := newReconciler(t, src)

	_, err := r.Reconcile(context.Background(), ix, collections("c1"))
	require.NoError(t, err)
	_, err = r.AssignIDs(context.Background(), ix)
	require.NoError(t, err)

	// reload into a fresh index, as a second run would
	stored := make([]*locations.Location, 0, ix.Len())
	for _, loc := range ix.All() {
		stored = append(stored, loc.Clone())
	}
	second := locations.NewIndex()
	require.NoError(t, second.Load(stored...))

	_, err = r.Reconcile(context.Background(), second, collections("c1"))
	require.NoError(t, err)
	n, err := r.AssignIDs(context.Background(), second)
	require.NoError(t, err)

	assert.Zero(t, n)
	assert.Equal(t, ix.Len(), second.Len())
	for i, loc := range second.All() {
		assert.Equal(t, ix.All()[i].LinkedEvents, loc.LinkedEvents)
	}
	assert.Empty(t, second.Pending())
}

func TestDeclaredIDChangedBetweenRuns(t *testing.T) {
	firstRun := func(t *testing.T) (*reconciler.StaticSource, *reconciler.Reconciler, *locations.Index) {
		t.Helper()
		src := reconciler.NewStaticSource().Add("c1",
			event("e1", "Salle Pleyel", 48.8790, 2.3000, ""),
			event("e2", "Opéra Garnier", 48.8720, 2.3316, "OG"),
		)
		ix := locations.NewIndex()
		r := newReconciler(t, src)
		_, err := r.Reconcile(context.Background(), ix, collections("c1"))
		require.NoError(t, err)
		_, err = r.AssignIDs(context.Background(), ix)
		require.NoError(t, err)
		return src, r, ix
	}

	t.Run("unknown id on a linked event unlinks it", func(t *testing.T) {
		src, r, ix := firstRun(t)
		pleyel, ok := ix.Owner("e1", "c1")
		require.True(t, ok)
		require.True(t, src.Declare("c1", "e1", "SP-REMOTE"))

		res, err := r.Reconcile(context.Background(), ix, collections("c1"))
		require.NoError(t, err)

		assert.Equal(t, 1, res.Decisions[reconciler.Unresolved])
		_, linked := ix.Owner("e1", "c1")
		assert.False(t, linked, "an unresolved event is linked nowhere")
		assert.Empty(t, pleyel.LinkedEvents)
		assert.NotEqual(t, "SP-REMOTE", pleyel.CanonicalID)
	})

	t.Run("id of another location moves the event", func(t *testing.T) {
		src, r, ix := firstRun(t)
		pleyel, ok := ix.Owner("e1", "c1")
		require.True(t, ok)
		require.True(t, src.Declare("c1", "e1", "OG"))

		res, err := r.Reconcile(context.Background(), ix, collections("c1"))
		require.NoError(t, err)

		assert.Zero(t, res.Decisions[reconciler.Unresolved])
		assert.Empty(t, res.Errors)
		garnier, ok := ix.FindByCanonicalID("OG")
		require.True(t, ok)
		owner, ok := ix.Owner("e1", "c1")
		require.True(t, ok)
		assert.Same(t, garnier, owner)
		assert.Empty(t, pleyel.LinkedEvents)
		for _, le := range garnier.LinkedEvents {
			assert.True(t, le.HasCanonicalID, "event %s needs no patch", le.EventID)
		}
	})
}
