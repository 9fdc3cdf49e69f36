// Package patcher pushes canonical ids back to the remote events that do not
// carry them yet.
package patcher

import (
	"context"
	"time"

	"github.com/openagenda-tools/uniqloc/pkg/errors"
	"github.com/openagenda-tools/uniqloc/pkg/locations"
	"github.com/openagenda-tools/uniqloc/pkg/logging"
)

// Patcher writes a canonical id onto one remote event. Any error is a failure
// for that event only.
type Patcher interface {
	Patch(ctx context.Context, collectionID, eventID, canonicalID string) error
}

// Func adapts a function to the Patcher interface.
type Func func(ctx context.Context, collectionID, eventID, canonicalID string) error

// Patch implements Patcher.
func (f Func) Patch(ctx context.Context, collectionID, eventID, canonicalID string) error {
	return f(ctx, collectionID, eventID, canonicalID)
}

// Synchronizer walks the index and patches every linked event lacking the
// canonical id of its location.
type Synchronizer struct {
	patcher Patcher
	dryRun  bool
}

// Option configures a Synchronizer.
type Option func(*Synchronizer) error

// WithDryRun counts pending patches without calling the patcher.
func WithDryRun(dryRun bool) Option {
	return func(s *Synchronizer) error {
		s.dryRun = dryRun
		return nil
	}
}

// New creates a Synchronizer. The patcher may be nil only in dry-run mode.
func New(p Patcher, opts ...Option) (*Synchronizer, error) {
	s := &Synchronizer{patcher: p}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.patcher == nil && !s.dryRun {
		return nil, &errors.ValidationError{Field: "patcher", Message: "cannot be nil"}
	}
	return s, nil
}

// Result summarizes a synchronization pass.
type Result struct {
	DryRun bool
	// Pending is the number of linked events that needed a patch.
	Pending   int
	Succeeded int
	Failed    int
	// Skipped counts events whose location still has no canonical id.
	Skipped  int
	Failures []*errors.PatchError

	StartTime time.Time
	Duration  time.Duration
}

// Sync patches every linked event with HasCanonicalID false. A successful
// patch marks the event patched in the index; a failed one is logged and
// left for a later run. Only context cancellation stops the walk.
func (s *Synchronizer) Sync(ctx context.Context, ix *locations.Index) (*Result, error) {
	ctx = logging.WithPhase(ctx, "patch")
	logger := logging.FromContext(ctx)
	result := &Result{DryRun: s.dryRun, StartTime: time.Now()}
	defer func() { result.Duration = time.Since(result.StartTime) }()

	for _, loc := range ix.All() {
		for _, ev := range append([]locations.LinkedEvent(nil), loc.LinkedEvents...) {
			if ev.HasCanonicalID {
				continue
			}
			if err := ctx.Err(); err != nil {
				return result, err
			}
			result.Pending++

			if !loc.Assigned() {
				result.Skipped++
				logger.Warn().Str("location_key", loc.Key).Str("event_id", ev.EventID).
					Msg("Location has no canonical id, not patching")
				continue
			}
			if s.dryRun {
				continue
			}

			if err := s.patcher.Patch(ctx, ev.CollectionID, ev.EventID, loc.CanonicalID); err != nil {
				if ctx.Err() != nil {
					return result, ctx.Err()
				}
				perr := errors.NewPatchError(ev.CollectionID, ev.EventID, err)
				result.Failed++
				result.Failures = append(result.Failures, perr)
				logger.Error().Err(err).
					Str("collection_id", ev.CollectionID).
					Str("event_id", ev.EventID).
					Str("canonical_id", loc.CanonicalID).
					Msg("Patch failed")
				continue
			}

			if err := ix.MarkPatched(loc, ev.EventID, ev.CollectionID); err != nil {
				return result, err
			}
			result.Succeeded++
			logger.Debug().
				Str("collection_id", ev.CollectionID).
				Str("event_id", ev.EventID).
				Str("canonical_id", loc.CanonicalID).
				Msg("Event patched")
		}
	}

	logger.Info().
		Bool("dry_run", s.dryRun).
		Int("pending", result.Pending).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Msg("Patch pass finished")
	return result, nil
}
