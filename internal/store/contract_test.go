package store_test

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/valkyrie/internal/experiment"
	"github.com/rafaeljc/valkyrie/internal/store"
)

func weight(w int) *int { return &w }

func newDefinition(t *testing.T, id string) *experiment.Definition {
	t.Helper()
	def, err := experiment.New(experiment.Config{
		ID: id,
		Variants: []experiment.VariantConfig{
			{ID: "control", Weight: weight(3), EntityID: id + "-a"},
			{ID: "bold", Weight: weight(1), EntityID: id + "-b"},
		},
	})
	require.NoError(t, err)
	return def
}

// runRepositoryContract exercises behavior every ExperimentRepository must share.
// repo must start empty.
func runRepositoryContract(t *testing.T, repo store.ExperimentRepository) {
	ctx := context.Background()

	t.Run("Should create and read back an experiment", func(t *testing.T) {
		def := newDefinition(t, "hero")

		created, err := repo.CreateExperiment(ctx, def)
		require.NoError(t, err)
		assert.False(t, created.CreatedAt.IsZero())

		got, err := repo.GetExperiment(ctx, "hero")
		require.NoError(t, err)
		assert.Equal(t, def.Variants(), got.Definition.Variants(), "normalized weights survive the round-trip")
		assert.Equal(t, 3, got.Definition.At(0).RawWeight)
		assert.Equal(t, 75, got.Definition.At(0).Weight)
	})

	t.Run("Should reject duplicate ids", func(t *testing.T) {
		_, err := repo.CreateExperiment(ctx, newDefinition(t, "hero"))
		assert.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("Should return not found for unknown ids", func(t *testing.T) {
		_, err := repo.GetExperiment(ctx, "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("Should paginate", func(t *testing.T) {
		for i := range 4 {
			_, err := repo.CreateExperiment(ctx, newDefinition(t, fmt.Sprintf("exp-%d", i)))
			require.NoError(t, err)
		}

		seen := map[string]bool{}
		for offset := 0; offset < 5; offset += 2 {
			page, total, err := repo.ListExperiments(ctx, 2, offset)
			require.NoError(t, err)
			assert.Equal(t, int64(5), total)
			for _, exp := range page {
				assert.False(t, seen[exp.Definition.ID()], "pages must not overlap")
				seen[exp.Definition.ID()] = true
			}
		}
		assert.Len(t, seen, 5)

		page, total, err := repo.ListExperiments(ctx, 10, 50)
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		assert.Empty(t, page)
	})

	t.Run("Should page at the edges of the int range", func(t *testing.T) {
		page, total, err := repo.ListExperiments(ctx, 100, math.MaxInt)
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		assert.Empty(t, page)

		page, _, err = repo.ListExperiments(ctx, math.MaxInt, 1)
		require.NoError(t, err)
		assert.Len(t, page, 4)
	})

	t.Run("Should delete experiments", func(t *testing.T) {
		require.NoError(t, repo.DeleteExperiment(ctx, "hero"))

		_, err := repo.GetExperiment(ctx, "hero")
		assert.ErrorIs(t, err, store.ErrNotFound)

		assert.ErrorIs(t, repo.DeleteExperiment(ctx, "hero"), store.ErrNotFound)
	})
}
