package patcher_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	uerrors "github.com/openagenda-tools/uniqloc/pkg/errors"
	"github.com/openagenda-tools/uniqloc/pkg/locations"
	"github.com/openagenda-tools/uniqloc/pkg/logging"
	"github.com/openagenda-tools/uniqloc/pkg/patcher"
)

type call struct {
	collectionID, eventID, canonicalID string
}

type recorder struct {
	calls []call
	fail  map[string]error
}

func (r *recorder) Patch(_ context.Context, collectionID, eventID, canonicalID string) error {
	r.calls = append(r.calls, call{collectionID, eventID, canonicalID})
	return r.fail[eventID]
}

func buildIndex(t *testing.T) (*locations.Index, *locations.Location, *locations.Location) {
	t.Helper()
	ix := locations.NewIndex()
	a, err := ix.Insert(locations.NewLocation(locations.Mention{Name: "A"}, "loc-1"))
	require.NoError(t, err)
	b, err := ix.Insert(locations.NewLocation(locations.Mention{Name: "B"}, "X"))
	require.NoError(t, err)

	require.NoError(t, ix.LinkEvent(a, locations.LinkedEvent{EventID: "e1", CollectionID: "c1"}))
	require.NoError(t, ix.LinkEvent(a, locations.LinkedEvent{EventID: "e2", CollectionID: "c2"}))
	require.NoError(t, ix.LinkEvent(b, locations.LinkedEvent{EventID: "e3", CollectionID: "c1", HasCanonicalID: true}))
	ix.MarkClean(a.Key, b.Key)
	return ix, a, b
}

func TestSyncPatchesOnlyEventsWithoutID(t *testing.T) {
	ix, a, b := buildIndex(t)
	rec := &recorder{}
	s, err := patcher.New(rec)
	require.NoError(t, err)

	res, err := s.Sync(context.Background(), ix)
	require.NoError(t, err)

	assert.Equal(t, []call{{"c1", "e1", "loc-1"}, {"c2", "e2", "loc-1"}}, rec.calls)
	assert.Equal(t, 2, res.Pending)
	assert.Equal(t, 2, res.Succeeded)
	for _, ev := range a.LinkedEvents {
		assert.True(t, ev.HasCanonicalID)
		assert.True(t, ev.Patched)
	}
	assert.False(t, b.LinkedEvents[0].Patched, "declared ids are never patched")
	assert.Len(t, ix.Pending(), 1)
}

func TestSyncContinuesAfterFailure(t *testing.T) {
	captured := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), captured.Logger)

	ix, a, _ := buildIndex(t)
	boom := errors.New("status 500")
	rec := &recorder{fail: map[string]error{"e1": boom}}
	s, err := patcher.New(rec)
	require.NoError(t, err)

	res, err := s.Sync(ctx, ix)
	require.NoError(t, err)

	assert.Len(t, rec.calls, 2)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Succeeded)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "e1", res.Failures[0].EventID)
	assert.ErrorIs(t, res.Failures[0], boom)

	assert.False(t, a.LinkedEvents[0].HasCanonicalID)
	assert.False(t, a.LinkedEvents[0].Patched)
	assert.True(t, a.LinkedEvents[1].Patched)
	captured.AssertContains(t, `"event_id":"e1"`)
	captured.AssertContains(t, "Patch failed")
}

func TestSyncDryRun(t *testing.T) {
	ix, a, _ := buildIndex(t)
	s, err := patcher.New(nil, patcher.WithDryRun(true))
	require.NoError(t, err)

	res, err := s.Sync(context.Background(), ix)
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Equal(t, 2, res.Pending)
	assert.Zero(t, res.Succeeded)
	assert.False(t, a.LinkedEvents[0].Patched)
}

func TestSyncSkipsUnassignedLocations(t *testing.T) {
	ix := locations.NewIndex()
	loc, err := ix.Insert(locations.NewLocation(locations.Mention{Name: "A"}, ""))
	require.NoError(t, err)
	require.NoError(t, ix.LinkEvent(loc, locations.LinkedEvent{EventID: "e1", CollectionID: "c1"}))

	rec := &recorder{}
	s, err := patcher.New(rec)
	require.NoError(t, err)

	res, err := s.Sync(context.Background(), ix)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, rec.calls)
}

func TestSyncCancellation(t *testing.T) {
	ix, _, _ := buildIndex(t)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	s, err := patcher.New(patcher.Func(func(context.Context, string, string, string) error {
		calls++
		cancel()
		return nil
	}))
	require.NoError(t, err)

	_, err = s.Sync(ctx, ix)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestNewRequiresPatcher(t *testing.T) {
	_, err := patcher.New(nil)
	assert.True(t, uerrors.IsValidationError(err))
}
