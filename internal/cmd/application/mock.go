package application

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/openagenda-tools/uniqloc"
	"github.com/openagenda-tools/uniqloc/internal/storage/memory"
	"github.com/openagenda-tools/uniqloc/pkg/store"
)

// Mock provides a mock implementation of Application for testing.
// Each method can be customized by setting the corresponding function field.
// If a function field is nil, the method returns a default value.
//
// Example Usage:
//
//	st := memory.New(locs...)
//	mock := &application.Mock{
//	    OpenStoreFunc: func(context.Context) (store.Store, error) {
//	        return st, nil
//	    },
//	}
//	cmd := locations.NewCommand(mock)
type Mock struct {
	OpenStoreFunc    func(ctx context.Context) (store.Store, error)
	PipelineFunc     func(st store.Store, opts RunOptions) (*uniqloc.Pipeline, error)
	ReportDirFunc    func() string
	LoggerFunc       func() *zerolog.Logger
	OutputFormatFunc func() string
	NoColorFunc      func() bool
	VersionFunc      func() string
	CommitFunc       func() string
	DateFunc         func() string
	BuiltByFunc      func() string
}

// OpenStore returns a store using the mock function or an empty memory store.
func (m *Mock) OpenStore(ctx context.Context) (store.Store, error) {
	if m.OpenStoreFunc != nil {
		return m.OpenStoreFunc(ctx)
	}
	return memory.New(), nil
}

// Pipeline returns a pipeline using the mock function or nil.
func (m *Mock) Pipeline(st store.Store, opts RunOptions) (*uniqloc.Pipeline, error) {
	if m.PipelineFunc != nil {
		return m.PipelineFunc(st, opts)
	}
	return nil, nil
}

// ReportDir returns the report directory using the mock function or ".".
func (m *Mock) ReportDir() string {
	if m.ReportDirFunc != nil {
		return m.ReportDirFunc()
	}
	return "."
}

// Logger returns a logger using the mock function or a no-op logger.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	logger := zerolog.Nop()
	return &logger
}

// OutputFormat returns output format using the mock function or "table".
func (m *Mock) OutputFormat() string {
	if m.OutputFormatFunc != nil {
		return m.OutputFormatFunc()
	}
	return "table"
}

// NoColor returns the mock function result or true.
func (m *Mock) NoColor() bool {
	if m.NoColorFunc != nil {
		return m.NoColorFunc()
	}
	return true
}

// Version returns version using the mock function or "dev".
func (m *Mock) Version() string {
	if m.VersionFunc != nil {
		return m.VersionFunc()
	}
	return "dev"
}

// Commit returns commit using the mock function or "unknown".
func (m *Mock) Commit() string {
	if m.CommitFunc != nil {
		return m.CommitFunc()
	}
	return "unknown"
}

// Date returns date using the mock function or "unknown".
func (m *Mock) Date() string {
	if m.DateFunc != nil {
		return m.DateFunc()
	}
	return "unknown"
}

// BuiltBy returns builtBy using the mock function or "test".
func (m *Mock) BuiltBy() string {
	if m.BuiltByFunc != nil {
		return m.BuiltByFunc()
	}
	return "test"
}

// Ensure Mock implements Application at compile time.
var _ Application = (*Mock)(nil)
