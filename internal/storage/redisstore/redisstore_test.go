package redisstore_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/openagenda-tools/uniqloc/internal/storage/redisstore"
	"github.com/openagenda-tools/uniqloc/internal/storage/storetest"
	"github.com/openagenda-tools/uniqloc/pkg/errors"
	"github.com/openagenda-tools/uniqloc/pkg/store"
)

func startRedis(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	return "redis://" + endpoint + "/0"
}

func TestContract(t *testing.T) {
	url := startRedis(t)
	n := 0

	storetest.Run(t, func(t *testing.T) store.Store {
		n++
		s, err := redisstore.Open(context.Background(), url, redisstore.WithPrefix(fmt.Sprintf("test%d", n)))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestSkipsOrphanedKeys(t *testing.T) {
	url := startRedis(t)
	ctx := context.Background()

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	s := redisstore.New(client, redisstore.WithPrefix("orphan"))
	defer s.Close()

	require.NoError(t, s.InsertOne(ctx, storetest.Doc("k1", "", "A")))
	require.NoError(t, s.InsertOne(ctx, storetest.Doc("k2", "", "B")))
	require.NoError(t, client.Del(ctx, "orphan:doc:k1").Err())

	docs, err := s.FindAll(ctx, store.Filter{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "k2", docs[0].Key)
}

func TestOpenRejectsBadURL(t *testing.T) {
	_, err := redisstore.Open(context.Background(), "")
	assert.True(t, errors.IsValidationError(err))

	_, err = redisstore.Open(context.Background(), "mysql://nope")
	var cerr *errors.ConfigError
	assert.ErrorAs(t, err, &cerr)
}
