package assignment

import (
	"math/rand/v2"

	"github.com/rafaeljc/valkyrie/internal/experiment"
)

// IntN returns a uniform integer in [0, n). It must be safe for concurrent use
// when the Engine is shared between goroutines.
type IntN func(n int) int

// RandomSelector draws a weighted variant on every call. It has no side effects.
type RandomSelector struct {
	intN IntN
}

// NewRandomSelector creates a RandomSelector. A nil source uses math/rand/v2.
func NewRandomSelector(source IntN) *RandomSelector {
	if source == nil {
		source = rand.IntN
	}
	return &RandomSelector{intN: source}
}

// Select draws an integer uniformly from [1,100] and returns the first variant
// whose cumulative weight reaches it.
func (s *RandomSelector) Select(def *experiment.Definition, _ SelectionContext) (Result, error) {
	return Result{VariantID: s.pick(def)}, nil
}

func (s *RandomSelector) pick(def *experiment.Definition) string {
	draw := s.intN(experiment.TotalWeight) + 1
	return walkCumulative(def, func(cumulative int) bool {
		return cumulative >= draw
	})
}
