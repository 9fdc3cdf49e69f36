package logging_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openagenda-tools/uniqloc/pkg/logging"
)

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.Same(t, logging.Default(), logging.FromContext(context.Background()))
	//nolint:staticcheck // nil context is accepted on purpose
	assert.Same(t, logging.Default(), logging.FromContext(nil))
}

func TestWithRunID(t *testing.T) {
	testLogger := logging.NewTestLogger(t)

	runID := logging.NewRunID()
	_, err := uuid.Parse(runID)
	require.NoError(t, err)

	ctx := logging.WithLogger(context.Background(), testLogger.Logger)
	ctx = logging.WithRunID(ctx, runID)

	assert.Equal(t, runID, logging.RunID(ctx))
	logging.Ctx(ctx).Info().Msg("run started")
	testLogger.AssertContains(t, runID)
}

func TestFieldHelpers(t *testing.T) {
	tests := []struct {
		name  string
		apply func(context.Context) context.Context
		want  string
	}{
		{
			name:  "phase",
			apply: func(ctx context.Context) context.Context { return logging.WithPhase(ctx, "reconcile") },
			want:  `"phase":"reconcile"`,
		},
		{
			name: "fields",
			apply: func(ctx context.Context) context.Context {
				return logging.WithFields(ctx, map[string]any{"page": 2, "dry_run": true})
			},
			want: `"page":2`,
		},
		{
			name:  "error",
			apply: func(ctx context.Context) context.Context { return logging.WithError(ctx, errors.New("boom")) },
			want:  `"error":"boom"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testLogger := logging.NewTestLogger(t)
			ctx := tt.apply(logging.WithLogger(context.Background(), testLogger.Logger))
			logging.FromContext(ctx).Info().Msg("entry")
			testLogger.AssertContains(t, tt.want)
		})
	}
}

func TestWithErrorNil(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, logging.WithError(ctx, nil))
}
