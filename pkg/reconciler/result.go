package reconciler

import (
	"fmt"
	"time"

	"github.com/openagenda-tools/uniqloc/pkg/errors"
)

// Result is the outcome of the matching pass over every collection.
type Result struct {
	// Collections in processing order.
	Collections []CollectionResult

	// Decisions counts applied decisions by kind.
	Decisions map[Kind]int

	// Conflicts lists events left unlinked because their declared id
	// disagreed with their matched location.
	Conflicts []*errors.ConflictError

	// Errors holds fetch failures and refused links. None of them stop a run.
	Errors []error

	Metadata ResultMetadata
}

// CollectionResult describes one collection of the pass.
type CollectionResult struct {
	Collection Collection
	Pages      int
	Fetched    int
	Processed  int
	Skipped    int
	// Err is the fetch error that cut the collection short, if any.
	Err error
}

// ResultMetadata contains metadata about the pass.
type ResultMetadata struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Stats     ResultStatistics
}

// ResultStatistics contains counters about the pass.
type ResultStatistics struct {
	EventsFetched    int
	EventsProcessed  int
	EventsSkipped    int
	LocationsCreated int
	IDsBackfilled    int
	FetchErrors      int
}

// NewResult creates an empty result.
func NewResult() *Result {
	return &Result{
		Decisions: make(map[Kind]int),
		Errors:    []error{},
		Metadata: ResultMetadata{
			StartTime: time.Now(),
		},
	}
}

// IsSuccess returns true if every collection was read completely and no event
// was refused.
func (r *Result) IsSuccess() bool {
	return len(r.Errors) == 0
}

// Summary returns a human-readable summary of the result.
func (r *Result) Summary() string {
	s := r.Metadata.Stats
	summary := fmt.Sprintf("%d events in %d collections: %d created, %d linked, %d back-filled, %d unresolved",
		s.EventsProcessed, len(r.Collections),
		r.Decisions[CreateNew], r.Decisions[LinkExisting], r.Decisions[BackfillAndLink], r.Decisions[Unresolved])
	if s.FetchErrors > 0 {
		summary += fmt.Sprintf(", %d fetch errors", s.FetchErrors)
	}
	return summary
}

func (r *Result) finish() {
	r.Metadata.EndTime = time.Now()
	r.Metadata.Duration = r.Metadata.EndTime.Sub(r.Metadata.StartTime)
}
