package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// mustLifecycleDB starts a disposable Postgres, applies the lifecycle DDL and
// returns a LifecycleDB bound to it. Skipped in -short mode.
func mustLifecycleDB(t *testing.T) (*LifecycleDB, *pgxpool.Pool) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping lifecycle store integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("retailops"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp").WithStartupTimeout(2*time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pgContainer.Terminate(context.Background())
	})

	connString, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, PoolConfig{ConnString: connString, MaxConns: 8})
	require.NoError(t, err)
	t.Cleanup(func() { ClosePool(pool) })

	require.NoError(t, BootstrapLifecycleSchema(ctx, pool, DefaultSchema))
	// a second run must be a no-op
	require.NoError(t, BootstrapLifecycleSchema(ctx, pool, DefaultSchema))

	return NewLifecycleDB(LifecycleDBConfig{Pool: pool, Schema: DefaultSchema}), pool
}
