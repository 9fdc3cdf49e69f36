package uniqloc

import (
	"context"

	"github.com/openagenda-tools/uniqloc/pkg/errors"
	"github.com/openagenda-tools/uniqloc/pkg/locations"
	"github.com/openagenda-tools/uniqloc/pkg/logging"
	"github.com/openagenda-tools/uniqloc/pkg/store"
)

// load builds an index from every stored document.
func load(ctx context.Context, st store.Store) (*locations.Index, error) {
	docs, err := st.FindAll(ctx, store.Filter{})
	if err != nil {
		return nil, errors.WrapResource("find", "location", "", err)
	}

	ix := locations.NewIndex()
	if err := ix.Load(docs...); err != nil {
		return nil, errors.WrapResource("load", "index", "", err)
	}

	logging.FromContext(ctx).Debug().Int("locations", ix.Len()).Msg("Index loaded")
	return ix, nil
}

// flush writes every pending change to the store and returns how many
// documents were written. Written documents are marked clean; the first
// failure stops the flush so the remaining changes stay pending.
func flush(ctx context.Context, st store.Store, ix *locations.Index) (int, error) {
	written := 0
	for _, change := range ix.Pending() {
		loc := change.Location
		if err := write(ctx, st, change); err != nil {
			return written, errors.WrapResource("write", "location", loc.Key, err)
		}
		ix.MarkClean(loc.Key)
		written++
	}

	if written > 0 {
		logging.FromContext(ctx).Debug().Int("documents", written).Msg("Index flushed")
	}
	return written, nil
}

// write inserts new documents and updates known ones, falling back to the
// other operation when the store disagrees about the document's existence.
func write(ctx context.Context, st store.Store, change locations.Change) error {
	loc := change.Location
	if change.New {
		err := st.InsertOne(ctx, loc.Clone())
		if !errors.IsAlreadyExists(err) {
			return err
		}
		return st.UpdateOne(ctx, store.ByKey(loc.Key), store.UpdateFrom(loc))
	}

	err := st.UpdateOne(ctx, store.ByKey(loc.Key), store.UpdateFrom(loc))
	if errors.IsNotFound(err) {
		return st.InsertOne(ctx, loc.Clone())
	}
	return err
}
