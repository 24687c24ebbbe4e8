//go:build integration

package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/valkyrie/internal/config"
	"github.com/rafaeljc/valkyrie/internal/database"
	"github.com/rafaeljc/valkyrie/internal/testsupport"
)

func TestPostgres_Metrics_Integration(t *testing.T) {
	// 1. Setup Infrastructure
	ctx := context.Background()
	pgCtr, err := testsupport.StartPostgresContainer(ctx, "../../migrations")
	require.NoError(t, err)
	defer pgCtr.Terminate(ctx)

	dbCfg := &config.DatabaseConfig{
		URL:            pgCtr.ConnectionString,
		MaxConns:       5,
		MinConns:       2,
		ConnectTimeout: 5 * time.Second,
	}

	pool, err := database.NewPostgresPool(ctx, dbCfg)
	require.NoError(t, err)
	defer pool.Close()

	// 2. Start Sidecar Monitor
	monitorCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go database.RunPoolMonitor(monitorCtx, pool, 10*time.Millisecond)

	// 3. Test Scenarios
	t.Run("Should report the configured pool size", func(t *testing.T) {
		require.Eventually(t, func() bool {
			return testsupport.GetMetricValue(t, "valkyrie_database_pool_connections", map[string]string{"state": "max"}) == 5
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("Should report acquired connections as in use", func(t *testing.T) {
		conn, err := pool.Acquire(ctx)
		require.NoError(t, err)
		defer conn.Release()

		require.Eventually(t, func() bool {
			return testsupport.GetMetricValue(t, "valkyrie_database_pool_connections", map[string]string{"state": "in_use"}) >= 1
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("Should pass the readiness check", func(t *testing.T) {
		checker := database.NewHealthChecker(pool)
		assert.Equal(t, "postgres", checker.Name())
		assert.NoError(t, checker.Check(ctx))
	})

	t.Run("Should apply the statement timeout to every connection", func(t *testing.T) {
		timedCfg := *dbCfg
		timedCfg.StatementTimeout = 1500 * time.Millisecond
		timed, err := database.NewPostgresPool(ctx, &timedCfg)
		require.NoError(t, err)
		defer timed.Close()

		var got string
		require.NoError(t, timed.QueryRow(ctx, "SHOW statement_timeout").Scan(&got))
		assert.Equal(t, "1500ms", got)
	})

	t.Run("Should fail readiness when the schema is missing", func(t *testing.T) {
		_, err := pool.Exec(ctx, "ALTER TABLE experiments RENAME TO experiments_off")
		require.NoError(t, err)
		defer func() {
			_, _ = pool.Exec(ctx, "ALTER TABLE experiments_off RENAME TO experiments")
		}()

		assert.Error(t, database.NewHealthChecker(pool).Check(ctx))
	})
}
