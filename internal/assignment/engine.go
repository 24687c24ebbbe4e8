package assignment

import (
	"fmt"
	"log/slog"

	"github.com/rafaeljc/valkyrie/internal/experiment"
	"github.com/rafaeljc/valkyrie/internal/observability"
)

// Engine is the orchestrator for variant assignment.
type Engine struct {
	strategies map[Strategy]Selector
	logger     *slog.Logger
}

// Option customizes an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	source IntN
}

// WithRandomSource replaces the entropy used by the random and cookie strategies.
func WithRandomSource(source IntN) Option {
	return func(o *engineOptions) {
		o.source = source
	}
}

// New creates a new Engine with the three built-in strategies.
// If logger is nil, it defaults to slog.Default().
func New(logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	var o engineOptions
	for _, opt := range opts {
		opt(&o)
	}

	random := NewRandomSelector(o.source)

	return &Engine{
		logger: logger,
		strategies: map[Strategy]Selector{
			StrategyRandom: random,
			StrategyHash:   HashSelector{},
			StrategyCookie: NewStickySelector(random, logger),
		},
	}
}

// Assign returns the variant id the caller should see.
// It is meant to be called once per request.
func (e *Engine) Assign(def *experiment.Definition, sc SelectionContext) (string, error) {
	res, err := e.AssignResult(def, sc)
	if err != nil {
		return "", err
	}
	return res.VariantID, nil
}

// AssignResult is Assign with provenance: it also reports whether the variant
// was served from the session.
func (e *Engine) AssignResult(def *experiment.Definition, sc SelectionContext) (Result, error) {
	if def == nil {
		return Result{}, ErrNilDefinition
	}

	selector, ok := e.strategies[sc.Strategy]
	if !ok {
		observability.AssignmentsTotal.WithLabelValues(string(sc.Strategy), "error").Inc()
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, sc.Strategy)
	}

	res, err := selector.Select(def, sc)
	if err != nil {
		observability.AssignmentsTotal.WithLabelValues(string(sc.Strategy), "error").Inc()
		e.logger.Warn("variant assignment failed",
			slog.String("experiment_id", def.ID()),
			slog.String("strategy", string(sc.Strategy)),
			slog.String("error", err.Error()),
		)
		return Result{}, err
	}

	outcome := "computed"
	if res.FromSession {
		outcome = "sticky"
	}
	observability.AssignmentsTotal.WithLabelValues(string(sc.Strategy), outcome).Inc()

	return res, nil
}
