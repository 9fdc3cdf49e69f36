// Package run implements the run command: every reconciliation phase against
// the configured agendas.
package run

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/openagenda-tools/uniqloc/internal/cmd/application"
	"github.com/openagenda-tools/uniqloc/internal/cmd/output"
	"github.com/openagenda-tools/uniqloc/pkg/constants"
	"github.com/openagenda-tools/uniqloc/pkg/logging"
)

// NewCommand creates the run command.
func NewCommand(app application.Application) *cobra.Command {
	var opts application.RunOptions

	cmd := &cobra.Command{
		Use:     "run",
		GroupID: "core",
		Short:   "Reconcile locations and write canonical ids back to events",
		Long: `Run fetches every event of the configured agendas, groups their locations,
gives each location a canonical id and patches the events that do not carry it
yet. The index is saved after each phase and a CSV report is written at the end.

With --dry-run nothing is sent to OpenAgenda: the index is still updated and the
pending patches are only counted.`,
		Example: `  uniqloc run                         # Full run
  uniqloc run --dry-run               # Match and count pending patches only
  uniqloc run --report-dir ./reports  # Write the CSV report elsewhere
  uniqloc run --no-report -o json     # Machine-readable summary, no CSV`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return execute(cmd, app, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "do not patch remote events")
	cmd.Flags().StringVar(&opts.ReportDir, "report-dir", "", "directory for the CSV report (default from report.dir)")
	cmd.Flags().BoolVar(&opts.NoReport, "no-report", false, "do not write the CSV report")

	return cmd
}

func execute(cmd *cobra.Command, app application.Application, opts application.RunOptions) error {
	logger := app.Logger()
	ctx := logging.WithLogger(cmd.Context(), logger)
	ctx, cancel := context.WithTimeout(ctx, constants.RunTimeout)
	defer cancel()

	st, err := app.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close store")
		}
	}()

	pipeline, err := app.Pipeline(st, opts)
	if err != nil {
		return err
	}

	result, runErr := pipeline.Run(ctx)
	if result != nil {
		format := output.DetectFormat(app.OutputFormat())
		if err := printResult(cmd.OutOrStdout(), result, format, app.NoColor()); err != nil {
			logger.Error().Err(err).Msg("Failed to print summary")
		}
	}
	return runErr
}
