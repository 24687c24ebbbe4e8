package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var errNilPool = errors.New("database pool is nil")

// HealthChecker reports the experiment registry as ready when the pool can
// reach Postgres and the experiments table is queryable.
type HealthChecker struct {
	pool *pgxpool.Pool
}

// NewHealthChecker returns a readiness checker for pool.
func NewHealthChecker(pool *pgxpool.Pool) *HealthChecker {
	return &HealthChecker{pool: pool}
}

// Name implements observability.Checker.
func (h *HealthChecker) Name() string { return "postgres" }

// Check implements observability.Checker. A missing schema fails readiness
// rather than every registry call.
func (h *HealthChecker) Check(ctx context.Context) error {
	if h.pool == nil {
		return errNilPool
	}
	if err := h.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}

	var exists bool
	if err := h.pool.QueryRow(ctx, `SELECT to_regclass('public.experiments') IS NOT NULL`).Scan(&exists); err != nil {
		return fmt.Errorf("schema check: %w", err)
	}
	if !exists {
		return errors.New("experiments table is missing; run migrations")
	}
	return nil
}
