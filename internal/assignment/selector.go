package assignment

import "github.com/rafaeljc/valkyrie/internal/experiment"

// Selector is the interface that all assignment strategies implement.
type Selector interface {
	// Select picks one variant of def for the caller described by sc.
	// It must always return a variant id known to def when err is nil.
	Select(def *experiment.Definition, sc SelectionContext) (Result, error)
}

// walkCumulative returns the first variant whose cumulative normalized weight
// satisfies hit, falling back to the last variant in declared order.
//
// The fallback only triggers when normalization rounding leaves the total
// below the drawn value. It keeps assignment total, but it is not
// statistically neutral: the last variant absorbs the missing mass.
func walkCumulative(def *experiment.Definition, hit func(cumulative int) bool) string {
	cumulative := 0
	for i := range def.Len() {
		v := def.At(i)
		cumulative += v.Weight
		if hit(cumulative) {
			return v.ID
		}
	}
	return def.At(def.Len() - 1).ID
}
