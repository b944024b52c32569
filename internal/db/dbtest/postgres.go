// Package dbtest starts a throwaway PostgreSQL with the listings schema
// applied, for integration tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"gigalert/discovery-service/internal/db"
)

const postgresImage = "postgres:16-alpine"

// NewPool starts a PostgreSQL container, runs the embedded migrations and
// returns a pool on it. The container is removed when t finishes. The test is
// skipped in -short mode or when no Docker provider is reachable.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping PostgreSQL integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, postgresImage,
		postgres.WithDatabase("gigalert"),
		postgres.WithUsername("gigalert"),
		postgres.WithPassword("gigalert"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err, "start postgres container")

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	_, err = db.Migrate(dsn, "up")
	require.NoError(t, err, "apply migrations")

	pool, err := db.NewPostgresPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

// Exec runs each statement in order, failing t on the first error.
func Exec(t *testing.T, pool *pgxpool.Pool, statements ...string) {
	t.Helper()
	for _, stmt := range statements {
		_, err := pool.Exec(context.Background(), stmt)
		require.NoError(t, err, stmt)
	}
}
