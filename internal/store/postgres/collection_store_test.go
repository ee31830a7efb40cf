package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/alanyoungcy/rwadiscovery/internal/domain"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/rwa?sslmode=disable",
		DSN(ClientConfig{User: "u", Password: "p", Host: "db", Database: "rwa"}))
	assert.Equal(t, "postgres://x", DSN(ClientConfig{DSN: "postgres://x", Host: "ignored"}))
	assert.Equal(t, "postgres://svc:p%40ss%2Fword@db:6543/rwa?sslmode=require",
		DSN(ClientConfig{User: "svc", Password: "p@ss/word", Host: "db", Port: 6543, Database: "rwa", SSLMode: "require"}))
}

func TestMigrationFiles(t *testing.T) {
	names, err := migrationFiles()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_user_collections.sql", names[0])
	assert.IsIncreasing(t, names)
}

// setupClient starts a PostgreSQL container and applies the embedded
// migrations. Skipped unless RWA_INTEGRATION=1.
func setupClient(t *testing.T) *Client {
	t.Helper()
	if os.Getenv("RWA_INTEGRATION") != "1" {
		t.Skip("set RWA_INTEGRATION=1 to run PostgreSQL integration tests")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("rwa"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	client, err := New(ctx, ClientConfig{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	require.NoError(t, client.RunMigrations(ctx))
	// A second run is a no-op.
	require.NoError(t, client.RunMigrations(ctx))
	return client
}

func TestCollectionStoreIntegration(t *testing.T) {
	client := setupClient(t)
	store := NewCollectionStore(client.Pool())
	ctx := context.Background()

	cards, err := store.Get(ctx, "0xABC")
	require.NoError(t, err)
	assert.Empty(t, cards)

	first := domain.CollectionCard{TokenID: "1", AssetAddress: "0x01", ChainID: 1, Name: "A", Symbol: "A"}
	second := domain.CollectionCard{TokenID: "2", AssetAddress: "0x02", ChainID: 1, Name: "B", Symbol: "B"}
	require.NoError(t, store.Append(ctx, "0xABC", first))
	require.NoError(t, store.Append(ctx, "0xabc", second))

	cards, err = store.Get(ctx, "0xabc")
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, "1", cards[0].TokenID)
	assert.Equal(t, "2", cards[1].TokenID)

	require.NoError(t, client.Health(ctx))
}
