package postgres

import (
	"context"
	stdsql "database/sql"
	"os"
	"strconv"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/nnmtech/verisynthos/pkg/database"
)

// newTestDB spins up a disposable postgres container (or uses
// CI_DATABASE_URL's host/port when present) and applies embedded
// migrations through pkg/database.NewClient, mirroring the teacher's
// test/database helper.
func newTestDB(t *testing.T) *stdsql.DB {
	ctx := context.Background()

	cfg := database.Config{
		User:            "test",
		Password:        "test",
		Database:        "test",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	}

	if host := os.Getenv("CI_DATABASE_HOST"); host != "" {
		cfg.Host = host
		port, err := strconv.Atoi(os.Getenv("CI_DATABASE_PORT"))
		require.NoError(t, err)
		cfg.Port = port
	} else {
		t.Log("using testcontainers for postgres")
		pgContainer, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase(cfg.Database),
			postgres.WithUsername(cfg.User),
			postgres.WithPassword(cfg.Password),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		require.NoError(t, err)
		t.Cleanup(func() {
			if err := testcontainers.TerminateContainer(pgContainer); err != nil {
				t.Logf("failed to terminate container: %v", err)
			}
		})

		host, err := pgContainer.Host(ctx)
		require.NoError(t, err)
		mappedPort, err := pgContainer.MappedPort(ctx, "5432/tcp")
		require.NoError(t, err)
		cfg.Host = host
		cfg.Port = mappedPort.Int()
	}

	client, err := database.NewClient(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client.DB()
}
