// Package assignment routes visitors to experiment variants.
// It implements a Strategy pattern: each Strategy has a Selector that turns an
// experiment definition and a selection context into one variant id.
package assignment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rafaeljc/valkyrie/internal/session"
)

// Strategy names a selection algorithm.
type Strategy string

const (
	// StrategyCookie reuses the variant stored in the visitor's session, or
	// picks one at random and stores it. Idempotent per session.
	StrategyCookie Strategy = "cookie"

	// StrategyRandom draws a fresh weighted variant on every call.
	StrategyRandom Strategy = "random"

	// StrategyHash buckets the visitor id deterministically. Idempotent per visitor.
	StrategyHash Strategy = "hash"
)

var (
	// ErrUnknownStrategy is returned for a strategy with no registered Selector.
	ErrUnknownStrategy = errors.New("unknown assignment strategy")

	// ErrMissingVisitorID is returned by the hash strategy when no visitor id is given.
	ErrMissingVisitorID = errors.New("hash strategy requires a visitor id")

	// ErrMissingStickyStore is returned by the cookie strategy when no session store is given.
	ErrMissingStickyStore = errors.New("cookie strategy requires a sticky store")

	// ErrNilDefinition is returned when Assign is called without an experiment.
	ErrNilDefinition = errors.New("experiment definition is nil")
)

// ParseStrategy converts a case-insensitive name into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case StrategyCookie, StrategyRandom, StrategyHash:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// SelectionContext carries everything a Selector may need about the caller.
type SelectionContext struct {
	// Strategy selects the algorithm.
	Strategy Strategy

	// VisitorID is the stable visitor identity. Required by StrategyHash.
	VisitorID string

	// Sticky is the visitor's session state. Required by StrategyCookie.
	Sticky session.Store
}

// Result is the outcome of one selection.
type Result struct {
	VariantID string

	// FromSession is true when the cookie strategy reused a stored value.
	FromSession bool
}
