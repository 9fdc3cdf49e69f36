// Package app wires configuration, logging and collaborators for the uniqloc
// CLI and builds the cobra command tree.
package app

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/openagenda-tools/uniqloc"
	"github.com/openagenda-tools/uniqloc/internal/cmd/application"
	"github.com/openagenda-tools/uniqloc/internal/metrics"
	"github.com/openagenda-tools/uniqloc/internal/openagenda"
	"github.com/openagenda-tools/uniqloc/internal/storage"
	"github.com/openagenda-tools/uniqloc/pkg/errors"
	"github.com/openagenda-tools/uniqloc/pkg/logging"
	"github.com/openagenda-tools/uniqloc/pkg/store"
)

// App holds the configuration, the logger and build information shared by
// every command.
type App struct {
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger
	flags  globalFlags
	// fixedConfig is set when the configuration was injected and must not be
	// reloaded from files.
	fixedConfig bool
}

// globalFlags are the persistent flags of the root command.
type globalFlags struct {
	configFile string
	verbose    bool
	quiet      bool
	noColor    bool
	format     string
	logLevel   string
}

// Ensure App implements application.Application at compile time.
var _ application.Application = (*App)(nil)

// New creates an App with the configuration found in the default locations.
// The configuration is loaded again once flags are parsed.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
	}

	config, err := LoadConfig("")
	if err != nil {
		return nil, err
	}
	app.setConfig(config)

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}
	return app, nil
}

func (a *App) setConfig(config *Config) {
	a.config = config
	logger := NewLogger(config)
	a.logger = &logger
	logging.SetDefault(logger)
}

// Version returns the version information.
func (a *App) Version() string { return a.version }

// Commit returns the git commit hash.
func (a *App) Commit() string { return a.commit }

// Date returns the build date.
func (a *App) Date() string { return a.date }

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string { return a.builtBy }

// Config returns the application configuration.
func (a *App) Config() *Config { return a.config }

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger { return a.logger }

// OutputFormat returns the configured output format.
func (a *App) OutputFormat() string { return a.config.Format }

// NoColor reports whether colored output is disabled.
func (a *App) NoColor() bool { return a.config.NoColor }

// ReportDir returns the configured report directory.
func (a *App) ReportDir() string { return a.config.Report.Dir }

// OpenStore opens the configured location store.
func (a *App) OpenStore(ctx context.Context) (store.Store, error) {
	st, err := storage.Open(ctx, a.config.Store)
	if err != nil {
		return nil, errors.WrapResource("open", "store", a.config.Store.Driver, err)
	}
	a.logger.Debug().
		Str("driver", a.config.Store.Driver).
		Msg("Store opened")
	return st, nil
}

// Pipeline validates the configuration and builds a pipeline over st backed
// by the OpenAgenda client.
func (a *App) Pipeline(st store.Store, opts application.RunOptions) (*uniqloc.Pipeline, error) {
	if err := a.config.Validate(opts.DryRun); err != nil {
		return nil, err
	}

	client, err := openagenda.New(a.config.OpenAgenda,
		openagenda.WithIDField(a.config.IDField),
		openagenda.WithUserAgent("uniqloc/"+a.version),
	)
	if err != nil {
		return nil, errors.NewConfigError("openagenda", err.Error(), err)
	}

	pipelineOpts := []uniqloc.Option{
		uniqloc.WithDryRun(opts.DryRun),
		uniqloc.WithPageSize(a.config.OpenAgenda.PageSize),
		uniqloc.WithMetrics(metrics.NewRecorder(), metrics.NewPusher(a.config.Metrics.PushgatewayURL, metrics.DefaultJob)),
	}
	if !opts.NoReport {
		dir := opts.ReportDir
		if dir == "" {
			dir = a.config.Report.Dir
		}
		pipelineOpts = append(pipelineOpts, uniqloc.WithReportDir(dir))
	}

	return uniqloc.New(st, client, client, uniqloc.Config{
		Similarity:  a.config.Similarity,
		IDPrefix:    a.config.IDPrefix,
		Collections: a.config.Agendas,
	}, pipelineOpts...)
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		if config == nil {
			return &errors.ValidationError{Field: "config", Message: "cannot be nil"}
		}
		a.setConfig(config)
		a.fixedConfig = true
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}
