package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/openagenda-tools/uniqloc/internal/storage/postgres"
	"github.com/openagenda-tools/uniqloc/internal/storage/storetest"
	"github.com/openagenda-tools/uniqloc/pkg/store"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("uniqloc"),
		tcpostgres.WithUsername("uniqloc"),
		tcpostgres.WithPassword("uniqloc"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func TestContract(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := postgres.Open(ctx, dsn)
		require.NoError(t, err)
		_, err = s.DB().ExecContext(ctx, "TRUNCATE locations RESTART IDENTITY")
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}
