package uniqloc

import (
	"fmt"
	"strings"
	"time"

	"github.com/openagenda-tools/uniqloc/pkg/patcher"
	"github.com/openagenda-tools/uniqloc/pkg/reconciler"
)

// Result is the outcome of one run. Phase results are nil for phases that did
// not run.
type Result struct {
	RunID  string
	DryRun bool

	// LocationsLoaded is the size of the index read from the store.
	LocationsLoaded int
	// Locations is the size of the index at the end of the run.
	Locations int

	Reconcile *reconciler.Result
	// Assigned is the number of generated canonical ids.
	Assigned int
	Sync     *patcher.Result

	// ReportPath is empty when no report was written.
	ReportPath string
	// Flushed counts documents written to the store.
	Flushed int

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

func newResult(runID string, dryRun bool) *Result {
	return &Result{RunID: runID, DryRun: dryRun, StartTime: time.Now()}
}

func (r *Result) finish() {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
}

// Unresolved returns the number of events left unlinked by an id conflict.
func (r *Result) Unresolved() int {
	if r.Reconcile == nil {
		return 0
	}
	return r.Reconcile.Decisions[reconciler.Unresolved]
}

// IsSuccess reports whether every phase ran and nothing failed on the way.
func (r *Result) IsSuccess() bool {
	if r.Reconcile == nil || r.Sync == nil {
		return false
	}
	return r.Reconcile.IsSuccess() && r.Sync.Failed == 0
}

// Summary returns a human-readable summary of the result.
func (r *Result) Summary() string {
	var parts []string
	if r.Reconcile != nil {
		parts = append(parts, r.Reconcile.Summary())
	}
	parts = append(parts, fmt.Sprintf("%d ids assigned", r.Assigned))
	if r.Sync != nil {
		if r.Sync.DryRun {
			parts = append(parts, fmt.Sprintf("%d patches pending (dry run)", r.Sync.Pending))
		} else {
			parts = append(parts, fmt.Sprintf("%d patched, %d failed", r.Sync.Succeeded, r.Sync.Failed))
		}
	}
	parts = append(parts, fmt.Sprintf("%d locations", r.Locations))
	return strings.Join(parts, "; ")
}
