//go:build integration

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/valkyrie/internal/store"
	"github.com/rafaeljc/valkyrie/internal/testsupport"
)

// TestPostgresStore_Integration spins up a real PostgreSQL container once and
// runs the repository contract against it.
func TestPostgresStore_Integration(t *testing.T) {
	ctx := context.Background()

	// Relative path from 'internal/store' to the 'migrations' folder in root.
	pgContainer, err := testsupport.StartPostgresContainer(ctx, "../../migrations")
	require.NoError(t, err, "failed to start postgres container")

	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}()

	repo := store.NewPostgresStore(pgContainer.DB)

	runRepositoryContract(t, repo)

	t.Run("Should store raw variants as JSONB in declared order", func(t *testing.T) {
		require.NoError(t, pgContainer.Truncate(ctx, "experiments"))

		_, err := repo.CreateExperiment(ctx, newDefinition(t, "layout"))
		require.NoError(t, err)

		var first string
		err = pgContainer.DB.QueryRow(ctx,
			`SELECT variants->0->>'id' FROM experiments WHERE id = $1`, "layout",
		).Scan(&first)
		require.NoError(t, err)
		assert.Equal(t, "control", first)
	})

	t.Run("Should enforce the id pattern in the schema", func(t *testing.T) {
		_, err := pgContainer.DB.Exec(ctx,
			`INSERT INTO experiments (id, variants) VALUES ($1, '[]'::jsonb)`, "bad id!",
		)
		assert.Error(t, err)
	})

	t.Run("Should panic on nil pool", func(t *testing.T) {
		assert.Panics(t, func() { store.NewPostgresStore(nil) })
	})
}
