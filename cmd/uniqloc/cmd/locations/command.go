// Package locations implements the locations command, which lists the stored
// location index.
package locations

import (
	"github.com/spf13/cobra"

	"github.com/openagenda-tools/uniqloc"
	"github.com/openagenda-tools/uniqloc/internal/cmd/application"
	"github.com/openagenda-tools/uniqloc/internal/cmd/output"
	"github.com/openagenda-tools/uniqloc/pkg/locations"
	"github.com/openagenda-tools/uniqloc/pkg/logging"
)

// NewCommand creates the locations command.
func NewCommand(app application.Application) *cobra.Command {
	var unassigned bool

	cmd := &cobra.Command{
		Use:     "locations",
		Aliases: []string{"ls"},
		GroupID: "core",
		Short:   "List the stored locations",
		Long: `Locations prints the location index as saved by the last run, in the
order the locations were first seen. Nothing is fetched from OpenAgenda.`,
		Example: `  uniqloc locations                # Table on a terminal, JSON when piped
  uniqloc locations -o wide        # Include linked event ids
  uniqloc locations -o yaml
  uniqloc locations --unassigned   # Locations still waiting for an id`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := output.ParseFormat(app.OutputFormat())
			if err != nil {
				return err
			}

			ctx := logging.WithLogger(cmd.Context(), app.Logger())
			st, err := app.OpenStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			locs, err := uniqloc.Locations(ctx, st)
			if err != nil {
				return err
			}
			if unassigned {
				locs = filterUnassigned(locs)
			}

			return output.FormatLocations(cmd.OutOrStdout(), locs, output.DetectFormat(string(format)))
		},
	}

	cmd.Flags().BoolVar(&unassigned, "unassigned", false, "only list locations without a canonical id")
	return cmd
}

func filterUnassigned(locs []*locations.Location) []*locations.Location {
	out := make([]*locations.Location, 0, len(locs))
	for _, loc := range locs {
		if !loc.Assigned() {
			out = append(out, loc)
		}
	}
	return out
}
