// Package store provides the Data Access Layer (Repository) for experiment definitions.
// Definitions are persisted in their raw form and rebuilt through experiment.New on
// every read, so normalization rules live in a single place.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/rafaeljc/valkyrie/internal/experiment"
)

var (
	// ErrNotFound is returned when no experiment has the requested id.
	ErrNotFound = errors.New("experiment not found")

	// ErrAlreadyExists is returned when creating an experiment whose id is taken.
	ErrAlreadyExists = errors.New("experiment already exists")
)

// Experiment is a stored definition with its bookkeeping fields.
type Experiment struct {
	Definition *experiment.Definition
	CreatedAt  time.Time
}

// ExperimentRepository defines the interface for experiment persistence operations.
type ExperimentRepository interface {
	// CreateExperiment stores def. Ids are unique.
	CreateExperiment(ctx context.Context, def *experiment.Definition) (*Experiment, error)

	// GetExperiment returns the experiment with the given id or ErrNotFound.
	GetExperiment(ctx context.Context, id string) (*Experiment, error)

	// ListExperiments retrieves a page of experiments, newest first, and the total count.
	ListExperiments(ctx context.Context, limit, offset int) ([]*Experiment, int64, error)

	// DeleteExperiment removes the experiment or returns ErrNotFound.
	// Events already logged for its entities are kept.
	DeleteExperiment(ctx context.Context, id string) error
}
