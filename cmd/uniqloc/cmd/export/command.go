// Package export implements the export command, which writes the CSV report
// of the stored index.
package export

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openagenda-tools/uniqloc"
	"github.com/openagenda-tools/uniqloc/internal/cmd/application"
	"github.com/openagenda-tools/uniqloc/internal/report"
	"github.com/openagenda-tools/uniqloc/pkg/logging"
)

// NewCommand creates the export command.
func NewCommand(app application.Application) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:     "export",
		GroupID: "core",
		Short:   "Write the CSV report of the stored index",
		Long: `Export writes unique-locations-<date>.csv from the location index saved
by the last run, without contacting OpenAgenda.`,
		Example: `  uniqloc export
  uniqloc export --report-dir ./reports`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dir == "" {
				dir = app.ReportDir()
			}

			ctx := logging.WithLogger(cmd.Context(), app.Logger())
			st, err := app.OpenStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			path, err := uniqloc.Export(ctx, st, report.NewWriter(dir))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}

	cmd.Flags().StringVar(&dir, "report-dir", "", "directory for the CSV report (default from report.dir)")
	return cmd
}
