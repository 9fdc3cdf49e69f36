// Package uniqloc reconciles the locations referenced by OpenAgenda events.
//
// A run loads the location index from a store, matches every event of the
// configured collections against it, gives each location without one a
// generated canonical id, writes the ids back onto the events and finally
// exports the index as a CSV report. The index is flushed to the store at
// every phase boundary, so an interrupted run is resumed by running again.
//
// Example usage:
//
//	st, err := storage.Open(ctx, storage.Config{Driver: "file", DSN: "./uniqloc-index.yaml"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
//
//	oa, err := openagenda.New(openagenda.Config{SecretKey: secret})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	p, err := uniqloc.New(st, oa, oa, uniqloc.Config{
//	    Similarity:  similarity.DefaultConfig(),
//	    IDPrefix:    "nvrs_",
//	    Collections: []reconciler.Collection{{ID: "12345"}},
//	}, uniqloc.WithReportDir("./reports"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := p.Run(ctx)
package uniqloc

import (
	"context"

	"github.com/openagenda-tools/uniqloc/pkg/errors"
	"github.com/openagenda-tools/uniqloc/pkg/locations"
	"github.com/openagenda-tools/uniqloc/pkg/patcher"
	"github.com/openagenda-tools/uniqloc/pkg/reconciler"
	"github.com/openagenda-tools/uniqloc/pkg/similarity"
	"github.com/openagenda-tools/uniqloc/pkg/store"
)

// Config is what a run matches with and against.
type Config struct {
	Similarity  similarity.Config
	IDPrefix    string
	Collections []reconciler.Collection
}

// Validate checks the configuration before any phase runs.
func (c Config) Validate() error {
	if len(c.Collections) == 0 {
		return errors.NewValidationError("target_agendas", nil, "at least one agenda is required")
	}
	for i, col := range c.Collections {
		if col.ID == "" {
			return errors.NewValidationError("target_agendas", i, "agenda uid cannot be empty")
		}
	}
	if c.IDPrefix == "" {
		return errors.NewValidationError("id_prefix", c.IDPrefix, "cannot be empty")
	}
	return c.Similarity.Validate()
}

// Pipeline runs the reconciliation phases against one store.
type Pipeline struct {
	cfg        Config
	options    *options
	store      store.Store
	reconciler *reconciler.Reconciler
	sync       *patcher.Synchronizer
}

// New creates a Pipeline. The patcher may be nil in dry-run mode.
func New(st store.Store, source reconciler.EventSource, p patcher.Patcher, cfg Config, opts ...Option) (*Pipeline, error) {
	if st == nil {
		return nil, &errors.ValidationError{Field: "store", Message: "cannot be nil"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}

	comparator, err := similarity.New(cfg.Similarity)
	if err != nil {
		return nil, err
	}
	generator, err := locations.NewIDGenerator(cfg.IDPrefix)
	if err != nil {
		return nil, err
	}

	rec, err := reconciler.New(source, comparator, generator,
		reconciler.WithPageSize(options.pageSize),
		reconciler.WithDecisionHook(options.hooks.triggerDecision),
	)
	if err != nil {
		return nil, err
	}

	syncer, err := patcher.New(p, patcher.WithDryRun(options.dryRun))
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:        cfg,
		options:    options,
		store:      st,
		reconciler: rec,
		sync:       syncer,
	}, nil
}

// Locations returns the stored index, in insertion order.
func (p *Pipeline) Locations(ctx context.Context) ([]*locations.Location, error) {
	return Locations(ctx, p.store)
}

// Locations returns every location stored in st, in insertion order.
func Locations(ctx context.Context, st store.Store) ([]*locations.Location, error) {
	ix, err := load(ctx, st)
	if err != nil {
		return nil, err
	}
	return ix.All(), nil
}
