package uniqloc

import (
	"context"
	"time"

	"github.com/openagenda-tools/uniqloc/internal/report"
	"github.com/openagenda-tools/uniqloc/pkg/errors"
	"github.com/openagenda-tools/uniqloc/pkg/locations"
	"github.com/openagenda-tools/uniqloc/pkg/logging"
	"github.com/openagenda-tools/uniqloc/pkg/store"
)

// Run executes every phase: load, match, assign ids, patch, report. The index
// is flushed after each phase. When a phase fails or ctx is canceled, the
// partial index is still flushed with a detached context so the next run
// resumes from it, and the partial result is returned with the error.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	runID := logging.NewRunID()
	ctx = logging.WithRunID(ctx, runID)
	logger := logging.FromContext(ctx)
	result := newResult(runID, p.options.dryRun)
	defer p.publish(ctx, result)

	logger.Info().
		Int("collections", len(p.cfg.Collections)).
		Bool("dry_run", p.options.dryRun).
		Msg("Starting run")

	ix, err := load(ctx, p.store)
	p.options.hooks.triggerPhase(PhaseLoad, err)
	if err != nil {
		return result, err
	}
	result.LocationsLoaded = ix.Len()
	// Patched flags describe a single run.
	ix.ClearPatched()

	// Phase 1: match every event
	rec, err := p.reconciler.Reconcile(ctx, ix, p.cfg.Collections)
	result.Reconcile = rec
	p.options.recorder.ObserveReconcile(rec)
	if err := p.checkpoint(ctx, ix, result, PhaseReconcile, err); err != nil {
		return result, err
	}

	// Phase 2: generate the missing ids
	start := time.Now()
	assigned, err := p.reconciler.AssignIDs(ctx, ix)
	result.Assigned = assigned
	p.options.recorder.ObserveAssign(assigned, time.Since(start))
	if err := p.checkpoint(ctx, ix, result, PhaseAssign, err); err != nil {
		return result, err
	}

	// Phase 3: write the ids back onto the events
	synced, err := p.sync.Sync(ctx, ix)
	result.Sync = synced
	p.options.recorder.ObserveSync(synced)
	if err := p.checkpoint(ctx, ix, result, PhasePatch, err); err != nil {
		return result, err
	}

	// Phase 4: export
	if p.options.report != nil {
		path, err := writeReport(ctx, ix, p.options.report)
		p.options.hooks.triggerPhase(PhaseReport, err)
		if err != nil {
			return result, err
		}
		result.ReportPath = path
	}

	result.Locations = ix.Len()
	logger.Info().
		Int("locations", result.Locations).
		Int("assigned", result.Assigned).
		Int("unresolved", result.Unresolved()).
		Msg("Run finished")
	return result, nil
}

// Export writes the CSV report of the stored index without contacting the
// remote platform. Without a configured report writer it writes into the
// working directory.
func (p *Pipeline) Export(ctx context.Context) (string, error) {
	w := p.options.report
	if w == nil {
		w = report.NewWriter("")
	}
	return Export(ctx, p.store, w)
}

// Export writes the CSV report of the index stored in st.
func Export(ctx context.Context, st store.Store, w *report.Writer) (string, error) {
	if w == nil {
		return "", &errors.ValidationError{Field: "report", Message: "cannot be nil"}
	}
	ix, err := load(ctx, st)
	if err != nil {
		return "", err
	}
	return writeReport(ctx, ix, w)
}

// checkpoint ends a phase: it flushes the index, with a detached context when
// the phase failed, and reports the phase to hooks.
func (p *Pipeline) checkpoint(ctx context.Context, ix *locations.Index, result *Result, phase Phase, phaseErr error) error {
	result.Locations = ix.Len()

	if phaseErr != nil {
		msg := "Run aborted, saving partial index"
		if errors.IsCanceled(phaseErr) {
			msg = "Run canceled, saving partial index"
		}
		logging.FromContext(ctx).Warn().
			Err(phaseErr).
			Str("phase", string(phase)).
			Msg(msg)

		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.options.flushTimeout)
		defer cancel()
		n, flushErr := flush(flushCtx, p.store, ix)
		result.Flushed += n
		err := phaseErr
		if flushErr != nil {
			err = errors.Join(phaseErr, flushErr)
		}
		p.options.hooks.triggerPhase(phase, err)
		return err
	}

	n, err := flush(ctx, p.store, ix)
	result.Flushed += n
	p.options.hooks.triggerPhase(phase, err)
	return err
}

func writeReport(ctx context.Context, ix *locations.Index, w *report.Writer) (string, error) {
	path, err := w.Write(ix.All())
	if err != nil {
		return "", err
	}
	logging.FromContext(ctx).Info().
		Str("path", path).
		Int("locations", ix.Len()).
		Msg("Report written")
	return path, nil
}

// publish records the end of the run and pushes metrics, whatever the outcome.
func (p *Pipeline) publish(ctx context.Context, result *Result) {
	result.finish()
	if p.options.recorder == nil {
		return
	}

	p.options.recorder.ObserveRun(result.Locations, result.IsSuccess(), result.EndTime)

	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.options.flushTimeout)
	defer cancel()
	if err := p.options.pusher.Push(pushCtx, p.options.recorder); err != nil {
		logging.FromContext(ctx).Error().Err(err).Msg("Failed to push metrics")
	}
}
