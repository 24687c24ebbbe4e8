package report

import (
	"context"
	"fmt"
	"time"

	"github.com/rafaeljc/valkyrie/internal/experiment"
)

// GetVariantStats builds one report per variant of def, keyed by variant id,
// from the events of each variant's entity.
//
// A nil agg means no analytics are attached: the result is an empty map and
// no error.
func GetVariantStats(ctx context.Context, agg *Aggregator, def *experiment.Definition, start, end *time.Time) (map[string]*Report, error) {
	stats := make(map[string]*Report)
	if agg == nil || def == nil {
		return stats, nil
	}

	for _, v := range def.Variants() {
		rep, err := agg.Report(ctx, v.EntityID, start, end)
		if err != nil {
			return nil, fmt.Errorf("variant %s: %w", v.ID, err)
		}
		stats[v.ID] = rep
	}

	return stats, nil
}
