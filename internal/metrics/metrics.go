// Package metrics counts what a run did and pushes the counters to a
// Prometheus Pushgateway once the run is over.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/openagenda-tools/uniqloc/pkg/errors"
	"github.com/openagenda-tools/uniqloc/pkg/patcher"
	"github.com/openagenda-tools/uniqloc/pkg/reconciler"
)

const namespace = "uniqloc"

// DefaultJob is the Pushgateway job name.
const DefaultJob = "uniqloc"

// Recorder holds the run counters on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	EventsFetched   prometheus.Counter
	EventsProcessed prometheus.Counter
	EventsSkipped   prometheus.Counter
	FetchErrors     prometheus.Counter
	Decisions       *prometheus.CounterVec
	IDsAssigned     prometheus.Counter
	Patches         *prometheus.CounterVec
	Locations       prometheus.Gauge
	PhaseDuration   *prometheus.GaugeVec
	LastSuccess     prometheus.Gauge
}

// NewRecorder creates a Recorder with every collector registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		EventsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_fetched_total",
			Help:      "Total number of events read from collections",
		}),
		EventsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_processed_total",
			Help:      "Total number of events that went through the decision table",
		}),
		EventsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_skipped_total",
			Help:      "Total number of events ignored (no id or repeated)",
		}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Total number of collections cut short by a fetch error",
		}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Applied decisions by kind",
		}, []string{"kind"}),
		IDsAssigned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ids_assigned_total",
			Help:      "Total number of generated canonical ids",
		}),
		Patches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "patches_total",
			Help:      "Patch attempts by outcome",
		}, []string{"outcome"}),
		Locations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "locations",
			Help:      "Number of locations in the index at the end of the run",
		}),
		PhaseDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Duration of the last run by phase",
		}, []string{"phase"}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that completed without error",
		}),
	}

	r.registry.MustRegister(
		r.EventsFetched,
		r.EventsProcessed,
		r.EventsSkipped,
		r.FetchErrors,
		r.Decisions,
		r.IDsAssigned,
		r.Patches,
		r.Locations,
		r.PhaseDuration,
		r.LastSuccess,
	)
	for _, k := range reconciler.Kinds {
		r.Decisions.WithLabelValues(k.String())
	}
	for _, o := range []string{"succeeded", "failed", "skipped", "pending"} {
		r.Patches.WithLabelValues(o)
	}
	return r
}

// Registry returns the registry holding the collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveReconcile records the matching pass.
func (r *Recorder) ObserveReconcile(res *reconciler.Result) {
	if r == nil || res == nil {
		return
	}
	s := res.Metadata.Stats
	r.EventsFetched.Add(float64(s.EventsFetched))
	r.EventsProcessed.Add(float64(s.EventsProcessed))
	r.EventsSkipped.Add(float64(s.EventsSkipped))
	r.FetchErrors.Add(float64(s.FetchErrors))
	for kind, n := range res.Decisions {
		r.Decisions.WithLabelValues(kind.String()).Add(float64(n))
	}
	r.PhaseDuration.WithLabelValues("reconcile").Set(res.Metadata.Duration.Seconds())
}

// ObserveAssign records generated ids.
func (r *Recorder) ObserveAssign(n int, d time.Duration) {
	if r == nil {
		return
	}
	r.IDsAssigned.Add(float64(n))
	r.PhaseDuration.WithLabelValues("assign").Set(d.Seconds())
}

// ObserveSync records the patch phase. A dry run only counts pending patches.
func (r *Recorder) ObserveSync(res *patcher.Result) {
	if r == nil || res == nil {
		return
	}
	if res.DryRun {
		r.Patches.WithLabelValues("pending").Add(float64(res.Pending))
	} else {
		r.Patches.WithLabelValues("succeeded").Add(float64(res.Succeeded))
		r.Patches.WithLabelValues("failed").Add(float64(res.Failed))
	}
	r.Patches.WithLabelValues("skipped").Add(float64(res.Skipped))
	r.PhaseDuration.WithLabelValues("patch").Set(res.Duration.Seconds())
}

// ObserveRun records the end of a run.
func (r *Recorder) ObserveRun(locations int, ok bool, at time.Time) {
	if r == nil {
		return
	}
	r.Locations.Set(float64(locations))
	if ok {
		r.LastSuccess.Set(float64(at.Unix()))
	}
}

// Pusher sends the registry to a Pushgateway.
type Pusher struct {
	url string
	job string
}

// NewPusher returns nil when url is empty, which disables pushing.
func NewPusher(url, job string) *Pusher {
	if url == "" {
		return nil
	}
	if job == "" {
		job = DefaultJob
	}
	return &Pusher{url: url, job: job}
}

// Push replaces the job's metrics on the Pushgateway. A nil Pusher does nothing.
func (p *Pusher) Push(ctx context.Context, r *Recorder) error {
	if p == nil || r == nil {
		return nil
	}
	err := push.New(p.url, p.job).
		Gatherer(r.registry).
		PushContext(ctx)
	if err != nil {
		return errors.WrapResource("push", "metrics", p.url, err)
	}
	return nil
}
