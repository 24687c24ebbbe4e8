package assignment

import (
	"log/slog"

	"github.com/rafaeljc/valkyrie/internal/experiment"
	"github.com/rafaeljc/valkyrie/internal/observability"
)

// StickySelector implements the cookie strategy: the first assignment in a
// session is drawn at random and persisted; later calls reuse it.
//
// It performs at most one read and one write of session state per call, and
// writes only when no valid value was found.
type StickySelector struct {
	random *RandomSelector
	logger *slog.Logger
}

// NewStickySelector creates a StickySelector drawing fresh picks from random.
func NewStickySelector(random *RandomSelector, logger *slog.Logger) *StickySelector {
	if random == nil {
		random = NewRandomSelector(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StickySelector{random: random, logger: logger}
}

// Select returns the variant stored in sc.Sticky for def when it is still one
// of def's variants. Otherwise it draws a weighted random variant, stores it
// and returns it with FromSession unset. It fails with ErrMissingStickyStore
// when sc carries no session store.
func (s *StickySelector) Select(def *experiment.Definition, sc SelectionContext) (Result, error) {
	if sc.Sticky == nil {
		return Result{}, ErrMissingStickyStore
	}

	if stored, ok := sc.Sticky.Get(def.ID()); ok {
		// Session values are untrusted: they may be left over from an older
		// definition or point at a variant that was removed.
		if experiment.IDPattern.MatchString(stored) && def.Has(stored) {
			return Result{VariantID: stored, FromSession: true}, nil
		}

		observability.StaleSessionValues.Inc()
		s.logger.Debug("ignoring stale sticky assignment",
			slog.String("experiment_id", def.ID()),
			slog.Int("stored_len", len(stored)),
		)
	}

	chosen := s.random.pick(def)
	sc.Sticky.Set(def.ID(), chosen)

	return Result{VariantID: chosen}, nil
}
