package app

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/openagenda-tools/uniqloc/cmd/uniqloc/cmd/export"
	"github.com/openagenda-tools/uniqloc/cmd/uniqloc/cmd/locations"
	"github.com/openagenda-tools/uniqloc/cmd/uniqloc/cmd/run"
	"github.com/openagenda-tools/uniqloc/cmd/uniqloc/cmd/version"
)

// Execute runs the uniqloc CLI with the given arguments.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "uniqloc",
		Short:   "Deduplicate OpenAgenda event locations",
		Version: a.version,
		Long: `uniqloc reconciles the locations referenced by the events of one or more
OpenAgenda agendas. Every distinct place gets one canonical identifier, which is
written back onto each event that mentions it.

The location index is kept in a local store between runs, so a run can be
interrupted and resumed at any time.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.AddGroup(&cobra.Group{ID: "core", Title: "Core Commands:"})

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.flags.configFile, "config", "", "config file (default is $HOME/.uniqloc.yaml)")
	flags.BoolVarP(&a.flags.verbose, "verbose", "v", false, "verbose output (shortcut for --log-level=debug)")
	flags.BoolVarP(&a.flags.quiet, "quiet", "q", false, "minimal output (shortcut for --log-level=warn)")
	flags.BoolVar(&a.flags.noColor, "no-color", false, "disable colored output")
	flags.StringVarP(&a.flags.format, "format", "o", "", "output format: table, wide, json, yaml")
	flags.StringVar(&a.flags.logLevel, "log-level", "", "log level: trace, debug, info, warn, error (overrides -v/-q)")

	rootCmd.SetVersionTemplate("uniqloc {{.Version}}\n")

	rootCmd.AddCommand(run.NewCommand(a))
	rootCmd.AddCommand(locations.NewCommand(a))
	rootCmd.AddCommand(export.NewCommand(a))
	rootCmd.AddCommand(version.NewCommand(a))

	return rootCmd
}

// setupCommand reloads the configuration with the --config file, applies the
// global flags and rebuilds the logger.
func (a *App) setupCommand(_ *cobra.Command, _ []string) error {
	config := a.config
	if !a.fixedConfig {
		loaded, err := LoadConfig(a.flags.configFile)
		if err != nil {
			return err
		}
		config = loaded
	}

	config.UpdateFromFlags(a.flags.verbose, a.flags.quiet, a.flags.noColor, a.flags.format, a.flags.logLevel)
	a.setConfig(config)
	return nil
}

// ExitOnError prints an error and exits with status 1.
func ExitOnError(err error) {
	if err != nil {
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
