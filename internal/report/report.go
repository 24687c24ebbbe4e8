// Package report aggregates the event log into per-entity reports.
package report

import (
	"errors"
	"time"

	"github.com/rafaeljc/valkyrie/internal/events"
)

var (
	// ErrInvalidRange is returned when start is after end.
	ErrInvalidRange = errors.New("report range start is after end")

	// ErrRangeTooWide is returned when a range exceeds the configured maximum.
	ErrRangeTooWide = errors.New("report range exceeds the configured maximum")
)

// Report is the derived summary of one entity over a time range.
// It is recomputed on every request and never persisted.
type Report struct {
	EntityID    string    `json:"entity_id"`
	RangeStart  time.Time `json:"range_start"`
	RangeEnd    time.Time `json:"range_end"`
	Impressions int       `json:"impressions"`
	Clicks      int       `json:"clicks"`

	// CTR is Clicks/Impressions, or 0 without impressions.
	CTR float64 `json:"ctr"`

	// MostViewedSlide is the slide with the most impressions; ties go to the
	// smallest index. Nil without impressions.
	MostViewedSlide *int `json:"most_viewed_slide"`

	InteractionBreakdown map[string]int `json:"interaction_breakdown"`
	SlideImpressions     map[int]int    `json:"slide_impressions"`
}

func newReport(entityID string, start, end time.Time) *Report {
	return &Report{
		EntityID:             entityID,
		RangeStart:           start,
		RangeEnd:             end,
		InteractionBreakdown: make(map[string]int),
		SlideImpressions:     make(map[int]int),
	}
}

func (r *Report) add(e *events.Event) {
	switch e.Kind {
	case events.KindImpression:
		r.Impressions++
		if e.SlideIndex != nil {
			r.SlideImpressions[*e.SlideIndex]++
		}
	case events.KindClick:
		r.Clicks++
	case events.KindInteraction:
		r.InteractionBreakdown[e.BreakdownKey()]++
	}
}

func (r *Report) finish() {
	if r.Impressions > 0 {
		r.CTR = float64(r.Clicks) / float64(r.Impressions)
	}

	best, bestCount := 0, 0
	for slide, count := range r.SlideImpressions {
		if count > bestCount || (count == bestCount && slide < best) {
			best, bestCount = slide, count
		}
	}
	if bestCount > 0 {
		r.MostViewedSlide = &best
	}
}
