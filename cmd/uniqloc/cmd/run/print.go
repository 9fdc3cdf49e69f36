package run

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/openagenda-tools/uniqloc"
	"github.com/openagenda-tools/uniqloc/internal/cmd/output"
	"github.com/openagenda-tools/uniqloc/pkg/reconciler"
)

// Summary is the machine-readable form of a run result.
type Summary struct {
	RunID           string         `json:"run_id" yaml:"run_id"`
	DryRun          bool           `json:"dry_run" yaml:"dry_run"`
	Success         bool           `json:"success" yaml:"success"`
	LocationsLoaded int            `json:"locations_loaded" yaml:"locations_loaded"`
	Locations       int            `json:"locations" yaml:"locations"`
	EventsProcessed int            `json:"events_processed" yaml:"events_processed"`
	EventsSkipped   int            `json:"events_skipped" yaml:"events_skipped"`
	FetchErrors     int            `json:"fetch_errors" yaml:"fetch_errors"`
	Decisions       map[string]int `json:"decisions" yaml:"decisions"`
	IDsAssigned     int            `json:"ids_assigned" yaml:"ids_assigned"`
	PatchesPending  int            `json:"patches_pending" yaml:"patches_pending"`
	PatchesSent     int            `json:"patches_sent" yaml:"patches_sent"`
	PatchesFailed   int            `json:"patches_failed" yaml:"patches_failed"`
	ReportPath      string         `json:"report_path,omitempty" yaml:"report_path,omitempty"`
	StartedAt       time.Time      `json:"started_at" yaml:"started_at"`
	Duration        string         `json:"duration" yaml:"duration"`
}

// NewSummary flattens a run result.
func NewSummary(r *uniqloc.Result) Summary {
	s := Summary{
		RunID:           r.RunID,
		DryRun:          r.DryRun,
		Success:         r.IsSuccess(),
		LocationsLoaded: r.LocationsLoaded,
		Locations:       r.Locations,
		Decisions:       make(map[string]int, len(reconciler.Kinds)),
		IDsAssigned:     r.Assigned,
		ReportPath:      r.ReportPath,
		StartedAt:       r.StartTime,
		Duration:        r.Duration.String(),
	}
	if r.Reconcile != nil {
		stats := r.Reconcile.Metadata.Stats
		s.EventsProcessed = stats.EventsProcessed
		s.EventsSkipped = stats.EventsSkipped
		s.FetchErrors = stats.FetchErrors
		for _, k := range reconciler.Kinds {
			s.Decisions[k.String()] = r.Reconcile.Decisions[k]
		}
	}
	if r.Sync != nil {
		s.PatchesPending = r.Sync.Pending
		s.PatchesSent = r.Sync.Succeeded
		s.PatchesFailed = r.Sync.Failed
	}
	return s
}

func printResult(w io.Writer, r *uniqloc.Result, format output.Format, noColor bool) error {
	summary := NewSummary(r)
	switch format {
	case output.FormatJSON, output.FormatYAML:
		return output.NewFormatter(format).Format(w, summary)
	}
	printSummary(w, summary, noColor)
	return nil
}

func printSummary(w io.Writer, s Summary, noColor bool) {
	paint := func(attr color.Attribute) *color.Color {
		c := color.New(attr)
		if noColor {
			c.DisableColor()
		}
		return c
	}
	bold := paint(color.Bold)
	green := paint(color.FgGreen)
	yellow := paint(color.FgYellow)
	red := paint(color.FgRed)
	dim := paint(color.FgHiBlack)

	title := "Run finished"
	if s.DryRun {
		title += " (dry run)"
	}
	_, _ = bold.Fprintln(w, title)
	_, _ = dim.Fprintf(w, "  run %s in %s\n", s.RunID, s.Duration)

	fmt.Fprintf(w, "  Events:     %d processed, %d skipped\n", s.EventsProcessed, s.EventsSkipped)
	fmt.Fprintf(w, "  Locations:  %d (was %d), %d new ids\n", s.Locations, s.LocationsLoaded, s.IDsAssigned)
	fmt.Fprintf(w, "  Decisions:  %d created, %d linked, %d back-filled",
		s.Decisions[reconciler.CreateNew.String()],
		s.Decisions[reconciler.LinkExisting.String()],
		s.Decisions[reconciler.BackfillAndLink.String()])
	if n := s.Decisions[reconciler.Unresolved.String()]; n > 0 {
		_, _ = yellow.Fprintf(w, ", %d unresolved", n)
	}
	fmt.Fprintln(w)

	if s.DryRun {
		_, _ = yellow.Fprintf(w, "  Patches:    %d pending, none sent\n", s.PatchesPending)
	} else {
		fmt.Fprintf(w, "  Patches:    %s", green.Sprintf("%d sent", s.PatchesSent))
		if s.PatchesFailed > 0 {
			fmt.Fprintf(w, ", %s", red.Sprintf("%d failed", s.PatchesFailed))
		}
		fmt.Fprintln(w)
	}
	if s.FetchErrors > 0 {
		_, _ = red.Fprintf(w, "  Fetch errors: %d (see logs)\n", s.FetchErrors)
	}
	if s.ReportPath != "" {
		fmt.Fprintf(w, "  Report:     %s\n", s.ReportPath)
	}

	if s.Success {
		_, _ = green.Fprintln(w, "✓ All done")
	} else {
		_, _ = yellow.Fprintln(w, "! Completed with problems, run again to retry")
	}
}
