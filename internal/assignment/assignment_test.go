package assignment_test

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/valkyrie/internal/assignment"
	"github.com/rafaeljc/valkyrie/internal/experiment"
	"github.com/rafaeljc/valkyrie/internal/session"
	"github.com/rafaeljc/valkyrie/internal/testsupport"
)

func weight(w int) *int { return &w }

func heroExperiment(t *testing.T, weights ...int) *experiment.Definition {
	t.Helper()
	names := []string{"control", "bold", "minimal", "video"}
	cfg := experiment.Config{ID: "hero"}
	for i, w := range weights {
		cfg.Variants = append(cfg.Variants, experiment.VariantConfig{
			ID:       names[i],
			Weight:   weight(w),
			EntityID: "presentation-" + names[i],
		})
	}
	def, err := experiment.New(cfg)
	require.NoError(t, err)
	return def
}

// recordingStore counts writes so that tests can assert the one-write contract.
type recordingStore struct {
	mu     sync.Mutex
	values map[string]string
	gets   int
	sets   int
}

func newRecordingStore() *recordingStore {
	return &recordingStore{values: make(map[string]string)}
}

func (r *recordingStore) Get(key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	v, ok := r.values[key]
	return v, ok
}

func (r *recordingStore) Set(key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets++
	r.values[key] = value
}

func seeded(seed uint64) assignment.IntN {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	var mu sync.Mutex
	return func(n int) int {
		mu.Lock()
		defer mu.Unlock()
		return r.IntN(n)
	}
}

func TestParseStrategy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    assignment.Strategy
		wantErr bool
	}{
		{input: "cookie", want: assignment.StrategyCookie},
		{input: "Random", want: assignment.StrategyRandom},
		{input: " HASH ", want: assignment.StrategyHash},
		{input: "sticky", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("Should parse %q", tt.input), func(t *testing.T) {
			got, err := assignment.ParseStrategy(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, assignment.ErrUnknownStrategy)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEngine_Hash(t *testing.T) {
	t.Parallel()

	engine := assignment.New(nil)
	def := heroExperiment(t, 50, 30, 20)

	t.Run("Should return the same variant for the same visitor", func(t *testing.T) {
		for _, visitor := range []string{"v-1", "v-2", "alice@example.com", "0"} {
			sc := assignment.SelectionContext{Strategy: assignment.StrategyHash, VisitorID: visitor}
			first, err := engine.Assign(def, sc)
			require.NoError(t, err)

			for range 10 {
				got, err := engine.Assign(def, sc)
				require.NoError(t, err)
				assert.Equal(t, first, got)
			}
		}
	})

	t.Run("Should match the bucket computed from the salted key", func(t *testing.T) {
		for i := range 200 {
			visitor := fmt.Sprintf("visitor-%d", i)
			bucket := int(assignment.Bucket(def.ID(), visitor))

			var want string
			switch {
			case bucket < 50:
				want = "control"
			case bucket < 80:
				want = "bold"
			default:
				want = "minimal"
			}

			got, err := engine.Assign(def, assignment.SelectionContext{Strategy: assignment.StrategyHash, VisitorID: visitor})
			require.NoError(t, err)
			assert.Equal(t, want, got, "visitor %s bucket %d", visitor, bucket)
		}
	})

	t.Run("Should reject an empty visitor id", func(t *testing.T) {
		_, err := engine.Assign(def, assignment.SelectionContext{Strategy: assignment.StrategyHash})
		assert.ErrorIs(t, err, assignment.ErrMissingVisitorID)
	})

	t.Run("Should not write to the sticky store", func(t *testing.T) {
		store := newRecordingStore()
		_, err := engine.Assign(def, assignment.SelectionContext{
			Strategy:  assignment.StrategyHash,
			VisitorID: "v-1",
			Sticky:    store,
		})
		require.NoError(t, err)
		assert.Zero(t, store.sets)
		assert.Zero(t, store.gets)
	})
}

func TestEngine_Random(t *testing.T) {
	t.Parallel()

	t.Run("Should follow weights within tolerance", func(t *testing.T) {
		engine := assignment.New(nil, assignment.WithRandomSource(seeded(42)))
		def := heroExperiment(t, 80, 20)

		counts := map[string]int{}
		for range 1000 {
			v, err := engine.Assign(def, assignment.SelectionContext{Strategy: assignment.StrategyRandom})
			require.NoError(t, err)
			counts[v]++
		}

		share := float64(counts["control"]) / 1000
		assert.GreaterOrEqual(t, share, 0.70)
		assert.LessOrEqual(t, share, 0.90)
	})

	t.Run("Should map draws to cumulative weight boundaries", func(t *testing.T) {
		def := heroExperiment(t, 50, 30, 20)

		tests := []struct {
			draw int // value returned by IntN(100); the selector adds one
			want string
		}{
			{draw: 0, want: "control"},
			{draw: 49, want: "control"},
			{draw: 50, want: "bold"},
			{draw: 79, want: "bold"},
			{draw: 80, want: "minimal"},
			{draw: 99, want: "minimal"},
		}
		for _, tt := range tests {
			engine := assignment.New(nil, assignment.WithRandomSource(func(int) int { return tt.draw }))
			got, err := engine.Assign(def, assignment.SelectionContext{Strategy: assignment.StrategyRandom})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got, "draw %d", tt.draw+1)
		}
	})

	t.Run("Should fall back to the last variant when rounding leaves a gap", func(t *testing.T) {
		// 1:1:1 normalizes to 33/33/33, leaving draw 100 uncovered.
		def := heroExperiment(t, 1, 1, 1)
		require.Equal(t, 99, def.TotalNormalizedWeight())

		engine := assignment.New(nil, assignment.WithRandomSource(func(n int) int { return n - 1 }))
		got, err := engine.Assign(def, assignment.SelectionContext{Strategy: assignment.StrategyRandom})
		require.NoError(t, err)
		assert.Equal(t, "minimal", got)
	})

	t.Run("Should never select a zero-weight variant", func(t *testing.T) {
		def := heroExperiment(t, 0, 100)
		engine := assignment.New(nil, assignment.WithRandomSource(seeded(7)))
		for range 500 {
			got, err := engine.Assign(def, assignment.SelectionContext{Strategy: assignment.StrategyRandom})
			require.NoError(t, err)
			assert.Equal(t, "bold", got)
		}
	})
}

func TestEngine_Cookie(t *testing.T) {
	t.Parallel()

	def := heroExperiment(t, 50, 50)

	t.Run("Should write once and then reuse the stored variant", func(t *testing.T) {
		engine := assignment.New(nil, assignment.WithRandomSource(seeded(1)))
		store := newRecordingStore()
		sc := assignment.SelectionContext{Strategy: assignment.StrategyCookie, Sticky: store}

		first, err := engine.Assign(def, sc)
		require.NoError(t, err)
		assert.True(t, def.Has(first))

		for range 20 {
			got, err := engine.Assign(def, sc)
			require.NoError(t, err)
			assert.Equal(t, first, got)
		}

		assert.Equal(t, 1, store.sets, "only the first call may write session state")
		assert.Equal(t, 21, store.gets)
		assert.Equal(t, first, store.values["hero"])
	})

	t.Run("Should report session provenance", func(t *testing.T) {
		engine := assignment.New(nil)
		store := session.NewMap()
		sc := assignment.SelectionContext{Strategy: assignment.StrategyCookie, Sticky: store}

		res, err := engine.AssignResult(def, sc)
		require.NoError(t, err)
		assert.False(t, res.FromSession)

		res, err = engine.AssignResult(def, sc)
		require.NoError(t, err)
		assert.True(t, res.FromSession)
	})

	t.Run("Should replace tampered or stale values", func(t *testing.T) {
		tampered := []string{
			"<script>alert(1)</script>",
			"removed-variant",
			"control; DROP TABLE",
			"",
		}

		for _, value := range tampered {
			engine := assignment.New(nil, assignment.WithRandomSource(seeded(3)))
			store := newRecordingStore()
			store.values["hero"] = value

			testsupport.AssertMetricDelta(t, "valkyrie_assignment_stale_session_values_total", nil, 1, func() {
				got, err := engine.Assign(def, assignment.SelectionContext{Strategy: assignment.StrategyCookie, Sticky: store})
				require.NoError(t, err)
				assert.True(t, def.Has(got), "value %q must be replaced by a known variant", value)
				assert.Equal(t, got, store.values["hero"])
			})
			assert.Equal(t, 1, store.sets)
		}
	})

	t.Run("Should fail without a sticky store", func(t *testing.T) {
		engine := assignment.New(nil)
		_, err := engine.Assign(def, assignment.SelectionContext{Strategy: assignment.StrategyCookie})
		assert.ErrorIs(t, err, assignment.ErrMissingStickyStore)
	})

	t.Run("Should keep experiments independent within one session", func(t *testing.T) {
		engine := assignment.New(nil)
		store := session.NewMap()
		other := experiment.MustNew(experiment.Config{
			ID: "pricing",
			Variants: []experiment.VariantConfig{
				{ID: "monthly", EntityID: "p-monthly"},
				{ID: "annual", EntityID: "p-annual"},
			},
		})

		a, err := engine.Assign(def, assignment.SelectionContext{Strategy: assignment.StrategyCookie, Sticky: store})
		require.NoError(t, err)
		b, err := engine.Assign(other, assignment.SelectionContext{Strategy: assignment.StrategyCookie, Sticky: store})
		require.NoError(t, err)

		assert.True(t, def.Has(a))
		assert.True(t, other.Has(b))
	})
}

func TestEngine_Errors(t *testing.T) {
	t.Parallel()

	engine := assignment.New(nil)

	t.Run("Should reject a nil definition", func(t *testing.T) {
		_, err := engine.Assign(nil, assignment.SelectionContext{Strategy: assignment.StrategyRandom})
		assert.ErrorIs(t, err, assignment.ErrNilDefinition)
	})

	t.Run("Should reject an unknown strategy", func(t *testing.T) {
		def := heroExperiment(t, 100)
		_, err := engine.Assign(def, assignment.SelectionContext{Strategy: "weighted"})
		assert.ErrorIs(t, err, assignment.ErrUnknownStrategy)
	})

	t.Run("Should always return the only variant of a single-variant experiment", func(t *testing.T) {
		def := heroExperiment(t, 100)
		for _, st := range []assignment.Strategy{assignment.StrategyRandom, assignment.StrategyHash, assignment.StrategyCookie} {
			got, err := engine.Assign(def, assignment.SelectionContext{
				Strategy:  st,
				VisitorID: "v",
				Sticky:    session.NewMap(),
			})
			require.NoError(t, err)
			assert.Equal(t, "control", got)
		}
	})
}
