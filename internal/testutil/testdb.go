package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/josh-kwaku/stripe-wallet/internal/repository"
)

// SetupTestDB returns a migrated, empty database. TEST_DATABASE_URL points the
// tests at an existing server; otherwise a throwaway container is started.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		dsn = startContainer(t, ctx)
	}

	require.NoError(t, repository.RunMigrations(dsn), "run migrations")

	db, err := repository.NewPostgresDB(ctx, dsn, repository.PoolConfig{
		MaxOpenConns:     20,
		MaxIdleConns:     5,
		ConnMaxLifetimeS: 60,
		ConnMaxIdleTimeS: 30,
	})
	require.NoError(t, err, "open db")
	t.Cleanup(func() { db.Close() })

	_, err = db.ExecContext(ctx, `TRUNCATE wallet_credits, wallets, webhook_events`)
	require.NoError(t, err, "reset tables")

	return db
}

func startContainer(t *testing.T, ctx context.Context) string {
	t.Helper()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("wallet_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "container connection string")
	return dsn
}
