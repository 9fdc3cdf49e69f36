// Package application defines what commands need from the CLI application.
// Commands accept this interface rather than the concrete App so they can be
// tested with Mock.
package application

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/openagenda-tools/uniqloc"
	"github.com/openagenda-tools/uniqloc/pkg/store"
)

// RunOptions are the per-invocation settings of the run command.
type RunOptions struct {
	DryRun    bool
	ReportDir string
	NoReport  bool
}

// Application is the dependency surface shared by all commands.
type Application interface {
	// OpenStore opens the configured location store. Callers close it.
	OpenStore(ctx context.Context) (store.Store, error)

	// Pipeline builds a reconciliation pipeline over st.
	Pipeline(st store.Store, opts RunOptions) (*uniqloc.Pipeline, error)

	// ReportDir returns the configured report directory.
	ReportDir() string

	// Logger returns the configured logger instance.
	Logger() *zerolog.Logger

	// OutputFormat returns the configured output format (table, wide, json, yaml).
	OutputFormat() string

	// NoColor reports whether colored output is disabled.
	NoColor() bool

	Version() string
	Commit() string
	Date() string
	BuiltBy() string
}
