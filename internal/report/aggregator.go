package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rafaeljc/valkyrie/internal/config"
	"github.com/rafaeljc/valkyrie/internal/events"
	"github.com/rafaeljc/valkyrie/internal/eventstore"
	"github.com/rafaeljc/valkyrie/internal/observability"
	"github.com/rafaeljc/valkyrie/internal/validation"
)

const (
	defaultWindow = 30 * 24 * time.Hour
	// defaultMaxRange is one leap year.
	defaultMaxRange = 366 * 24 * time.Hour
)

// DayReader returns the events logged on one UTC calendar day.
// *eventstore.Store implements it.
type DayReader interface {
	ReadDay(day time.Time) ([]events.Event, error)
}

// Aggregator builds reports by scanning day-files.
type Aggregator struct {
	reader        DayReader
	clock         func() time.Time
	defaultWindow time.Duration
	maxRange      time.Duration
	logger        *slog.Logger
}

// Option customizes an Aggregator.
type Option func(*Aggregator)

// WithClock replaces time.Now for default range bounds.
func WithClock(clock func() time.Time) Option {
	return func(a *Aggregator) {
		a.clock = clock
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

// NewAggregator creates an Aggregator over reader.
// A nil cfg uses a 30 day default window and a one year range limit.
func NewAggregator(reader DayReader, cfg *config.ReportConfig, opts ...Option) *Aggregator {
	validation.AssertPresent(reader, "day reader")

	a := &Aggregator{
		reader:        reader,
		clock:         time.Now,
		defaultWindow: defaultWindow,
		maxRange:      defaultMaxRange,
		logger:        slog.Default(),
	}
	if cfg != nil {
		if cfg.DefaultWindow > 0 {
			a.defaultWindow = cfg.DefaultWindow
		}
		if cfg.MaxRange > 0 {
			a.maxRange = cfg.MaxRange
		}
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Report summarizes entityID's events between start and end, both inclusive.
//
// A nil start defaults to now minus the default window, a nil end to now.
// When either bound is given, events are filtered by exact timestamp (second
// precision); otherwise whole days are counted. Unparseable day-files are
// skipped and counted in metrics, so the result may undercount.
func (a *Aggregator) Report(ctx context.Context, entityID string, start, end *time.Time) (*Report, error) {
	timer := time.Now()
	defer func() {
		observability.ReportDuration.Observe(time.Since(timer).Seconds())
	}()

	from, to := a.resolveRange(start, end)
	if from.After(to) {
		return nil, fmt.Errorf("%w: %s > %s", ErrInvalidRange, from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	if to.Sub(from) > a.maxRange {
		return nil, fmt.Errorf("%w: %s > %s", ErrRangeTooWide, to.Sub(from), a.maxRange)
	}

	bounded := start != nil || end != nil
	fromUnix, toUnix := from.Unix(), to.Unix()

	rep := newReport(entityID, from, to)

	for day := truncateDay(from); !day.After(to); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		evs, err := a.reader.ReadDay(day)
		observability.ReportDaysScanned.Inc()
		if err != nil {
			if errors.Is(err, eventstore.ErrCorruptDayFile) {
				observability.ReportCorruptDaysSkipped.Inc()
				a.logger.Warn("skipping corrupt day-file",
					slog.String("day", eventstore.DayKey(day)),
					slog.String("error", err.Error()),
				)
				continue
			}
			return nil, fmt.Errorf("read events for %s: %w", eventstore.DayKey(day), err)
		}

		for i := range evs {
			e := &evs[i]
			if e.EntityID != entityID {
				continue
			}
			if bounded && (e.Timestamp < fromUnix || e.Timestamp > toUnix) {
				continue
			}
			rep.add(e)
		}
	}

	rep.finish()
	return rep, nil
}

func (a *Aggregator) resolveRange(start, end *time.Time) (time.Time, time.Time) {
	now := a.clock().UTC()

	from := now.Add(-a.defaultWindow)
	if start != nil {
		from = start.UTC()
	}
	to := now
	if end != nil {
		to = end.UTC()
	}
	return from, to
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
