// Package reconciler groups the locations mentioned by remote events into
// canonical locations. The matching pass walks every configured collection,
// decides for each event whether its location is new, known, or in conflict,
// and applies that decision to the location index. A second pass then gives
// every location still lacking one a generated canonical id.
package reconciler

import (
	"context"

	"github.com/openagenda-tools/uniqloc/pkg/errors"
	"github.com/openagenda-tools/uniqloc/pkg/locations"
	"github.com/openagenda-tools/uniqloc/pkg/logging"
)

// Reconciler drives the matching and id assignment passes.
type Reconciler struct {
	source    EventSource
	matcher   locations.Matcher
	generator *locations.IDGenerator
	collector *collector
	onDecide  func(Event, Decision)
}

// New creates a Reconciler.
func New(source EventSource, matcher locations.Matcher, generator *locations.IDGenerator, opts ...Option) (*Reconciler, error) {
	switch {
	case source == nil:
		return nil, &errors.ValidationError{Field: "source", Message: "cannot be nil"}
	case matcher == nil:
		return nil, &errors.ValidationError{Field: "matcher", Message: "cannot be nil"}
	case generator == nil:
		return nil, &errors.ValidationError{Field: "generator", Message: "cannot be nil"}
	}

	options, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}

	return &Reconciler{
		source:    source,
		matcher:   matcher,
		generator: generator,
		collector: newCollector(source, options.pageSize),
		onDecide:  options.onDecide,
	}, nil
}

// Reconcile runs the matching pass over collections, in order. Fetch errors
// are recorded in the result and the pass moves on to the next collection.
// Only context cancellation stops it early, in which case the partial result
// is returned with the context error.
func (r *Reconciler) Reconcile(ctx context.Context, ix *locations.Index, collections []Collection) (*Result, error) {
	ctx = logging.WithPhase(ctx, "reconcile")
	logger := logging.FromContext(ctx)
	result := NewResult()
	defer result.finish()

	logger.Info().
		Int("collections", len(collections)).
		Int("known_locations", ix.Len()).
		Msg("Starting location matching")

	for _, col := range collections {
		if err := r.reconcileCollection(ctx, ix, col, result); err != nil {
			return result, err
		}
	}

	logger.Info().
		Int("events", result.Metadata.Stats.EventsProcessed).
		Int("locations", ix.Len()).
		Int("unresolved", result.Decisions[Unresolved]).
		Int("fetch_errors", result.Metadata.Stats.FetchErrors).
		Msg("Location matching finished")
	return result, nil
}

func (r *Reconciler) reconcileCollection(ctx context.Context, ix *locations.Index, col Collection, result *Result) error {
	ctx = logging.WithCollection(ctx, col.ID)
	logger := logging.FromContext(ctx)

	events, pages, fetchErr := r.collector.collect(ctx, col)
	cr := CollectionResult{Collection: col, Pages: pages, Fetched: len(events)}
	result.Metadata.Stats.EventsFetched += len(events)

	if fetchErr != nil {
		if ctx.Err() != nil {
			result.Collections = append(result.Collections, cr)
			return ctx.Err()
		}
		cr.Err = fetchErr
		result.Errors = append(result.Errors, fetchErr)
		result.Metadata.Stats.FetchErrors++
		logger.Error().Err(fetchErr).
			Int("fetched", len(events)).
			Msg("Fetching collection failed, processing the events already fetched")
	}

	logger.Info().
		Str("collection", col.String()).
		Int("events", len(events)).
		Int("pages", pages).
		Msg("Processing collection")

	flt := newFilter()
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			result.Collections = append(result.Collections, cr)
			return err
		}

		if ok, reason := flt.accept(ev); !ok {
			cr.Skipped++
			result.Metadata.Stats.EventsSkipped++
			logger.Warn().Str("event_id", ev.ID).Str("reason", reason).Msg("Skipping event")
			continue
		}

		r.process(ctx, ix, ev, result)
		cr.Processed++
	}

	result.Collections = append(result.Collections, cr)
	return nil
}

// process decides and applies one event, recording the outcome.
func (r *Reconciler) process(ctx context.Context, ix *locations.Index, ev Event, result *Result) {
	logger := logging.FromContext(logging.WithEvent(ctx, ev.ID))
	result.Metadata.Stats.EventsProcessed++

	d := r.DecideFor(ix, ev)
	if r.onDecide != nil {
		r.onDecide(ev, d)
	}

	loc, err := apply(ix, ev, d)
	switch {
	case err == nil:
	case errors.IsConflict(err):
		var conflict *errors.ConflictError
		if errors.As(err, &conflict) {
			result.Conflicts = append(result.Conflicts, conflict)
		}
		result.Decisions[Unresolved]++
		logger.Warn().Err(err).
			Str("location_name", ev.Location.Name).
			Msg("Declared id conflicts with matched location, event left unlinked")
		return
	default:
		result.Errors = append(result.Errors, err)
		result.Metadata.Stats.EventsSkipped++
		logger.Error().Err(err).Str("decision", d.Kind.String()).Msg("Could not apply decision")
		return
	}

	result.Decisions[d.Kind]++
	switch d.Kind {
	case CreateNew:
		result.Metadata.Stats.LocationsCreated++
	case BackfillAndLink:
		result.Metadata.Stats.IDsBackfilled++
	}

	logger.Debug().
		Str("decision", d.Kind.String()).
		Str("match", string(d.Match)).
		Str("location_key", loc.Key).
		Str("canonical_id", loc.CanonicalID).
		Msg("Event reconciled")
}

// DecideFor looks up the index for ev and returns the decision without applying
// it. A declared id is looked up first. Without an id match, a location the
// event is already linked to (from an earlier run) is preferred to a
// similarity scan.
func (r *Reconciler) DecideFor(ix *locations.Index, ev Event) Decision {
	var byID, bySimilarity *locations.Location
	if ev.Location.HasDeclaredID() {
		byID, _ = ix.FindByCanonicalID(ev.Location.DeclaredID)
	}
	if byID == nil {
		if owner, ok := ix.Owner(ev.ID, ev.CollectionID); ok {
			bySimilarity = owner
		} else {
			bySimilarity, _ = ix.FindBySimilarity(ev.Location, r.matcher)
		}
	}
	return Decide(ev.Location, byID, bySimilarity)
}

// AssignIDs gives a generated canonical id to every location that has none,
// in insertion order. It must run after the matching pass is complete.
func (r *Reconciler) AssignIDs(ctx context.Context, ix *locations.Index) (int, error) {
	ctx = logging.WithPhase(ctx, "assign")
	logger := logging.FromContext(ctx)

	pending := ix.Unassigned()
	logger.Info().Int("unassigned", len(pending)).Msg("Assigning canonical ids")

	assigned := 0
	for _, loc := range pending {
		if err := ctx.Err(); err != nil {
			return assigned, err
		}
		id := r.generator.Next(ix)
		if err := ix.SetCanonicalID(loc, id); err != nil {
			return assigned, err
		}
		assigned++
		logger.Debug().Str("location_key", loc.Key).Str("canonical_id", id).Msg("Assigned canonical id")
	}

	logger.Info().Int("assigned", assigned).Int("locations", ix.Len()).Msg("Canonical ids assigned")
	return assigned, nil
}
