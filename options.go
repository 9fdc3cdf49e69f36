package uniqloc

import (
	"time"

	"github.com/openagenda-tools/uniqloc/internal/metrics"
	"github.com/openagenda-tools/uniqloc/internal/report"
	"github.com/openagenda-tools/uniqloc/pkg/constants"
	"github.com/openagenda-tools/uniqloc/pkg/errors"
)

// Option is a function that configures a Pipeline
type Option func(*options) error

type options struct {
	dryRun       bool
	pageSize     int
	report       *report.Writer
	recorder     *metrics.Recorder
	pusher       *metrics.Pusher
	flushTimeout time.Duration
	hooks        *hooks
}

func defaultOptions() *options {
	return &options{
		pageSize:     constants.DefaultPageSize,
		flushTimeout: constants.FlushTimeout,
		hooks:        newHooks(),
	}
}

func newOptions(opts ...Option) (*options, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// WithDryRun counts pending patches instead of sending them. Matching and id
// assignment still run and are stored.
func WithDryRun(enabled bool) Option {
	return func(o *options) error {
		o.dryRun = enabled
		return nil
	}
}

// WithPageSize sets how many events are requested per page
func WithPageSize(size int) Option {
	return func(o *options) error {
		if size <= 0 || size > constants.MaxPageSize {
			return &errors.ValidationError{Field: "page_size", Value: size, Message: "must be between 1 and 300"}
		}
		o.pageSize = size
		return nil
	}
}

// WithReportDir writes the CSV report into dir at the end of a run
func WithReportDir(dir string) Option {
	return func(o *options) error {
		o.report = report.NewWriter(dir)
		return nil
	}
}

// WithReportWriter writes the CSV report with w at the end of a run. A nil
// writer disables the report.
func WithReportWriter(w *report.Writer) Option {
	return func(o *options) error {
		o.report = w
		return nil
	}
}

// WithMetrics records run counters into r and, when pusher is not nil, pushes
// them once the run is over
func WithMetrics(r *metrics.Recorder, pusher *metrics.Pusher) Option {
	return func(o *options) error {
		if r == nil {
			return &errors.ValidationError{Field: "metrics", Message: "cannot be nil"}
		}
		o.recorder = r
		o.pusher = pusher
		return nil
	}
}

// WithFlushTimeout bounds the final flush of an aborted run
func WithFlushTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return &errors.ValidationError{Field: "flush_timeout", Value: d, Message: "must be positive"}
		}
		o.flushTimeout = d
		return nil
	}
}

// WithDecisionHook registers a callback run for every matching decision
func WithDecisionHook(fn DecisionHook) Option {
	return func(o *options) error {
		if fn == nil {
			return &errors.ValidationError{Field: "decision_hook", Message: "cannot be nil"}
		}
		o.hooks.OnDecision(fn)
		return nil
	}
}

// WithPhaseHook registers a callback run after each phase
func WithPhaseHook(fn PhaseHook) Option {
	return func(o *options) error {
		if fn == nil {
			return &errors.ValidationError{Field: "phase_hook", Message: "cannot be nil"}
		}
		o.hooks.OnPhase(fn)
		return nil
	}
}

