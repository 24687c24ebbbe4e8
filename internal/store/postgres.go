package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaeljc/valkyrie/internal/experiment"
)

// Compile-time check to verify that PostgresStore implements ExperimentRepository.
var _ ExperimentRepository = (*PostgresStore)(nil)

// PostgresStore is the implementation of ExperimentRepository backed by PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new repository instance with the given connection pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	if db == nil {
		panic("store: database pool cannot be nil")
	}
	return &PostgresStore{db: db}
}

// CreateExperiment inserts a new experiment. The raw variant configuration is
// stored as JSONB in declared order.
func (s *PostgresStore) CreateExperiment(ctx context.Context, def *experiment.Definition) (*Experiment, error) {
	variants, err := json.Marshal(def.Config().Variants)
	if err != nil {
		return nil, fmt.Errorf("failed to encode variants: %w", err)
	}

	query := `
		INSERT INTO experiments (id, variants)
		VALUES ($1, $2)
		RETURNING created_at
	`

	exp := &Experiment{Definition: def}
	err = s.db.QueryRow(ctx, query, def.ID(), variants).Scan(&exp.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			// Error Code 23505: unique_violation
			if pgErr.Code == "23505" {
				return nil, fmt.Errorf("%w: %q", ErrAlreadyExists, def.ID())
			}
		}
		return nil, fmt.Errorf("failed to insert experiment: %w", err)
	}

	return exp, nil
}

// GetExperiment loads a single experiment by id.
func (s *PostgresStore) GetExperiment(ctx context.Context, id string) (*Experiment, error) {
	query := `
		SELECT id, variants, created_at
		FROM experiments
		WHERE id = $1
	`

	exp, err := scanExperiment(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
		}
		return nil, err
	}
	return exp, nil
}

// ListExperiments retrieves a subset of experiments based on pagination parameters.
// It executes two queries: one for the total count and one for the page.
func (s *PostgresStore) ListExperiments(ctx context.Context, limit, offset int) ([]*Experiment, int64, error) {
	var total int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM experiments`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count experiments: %w", err)
	}

	if total == 0 || limit <= 0 {
		return []*Experiment{}, total, nil
	}
	offset = max(offset, 0)

	query := `
		SELECT id, variants, created_at
		FROM experiments
		ORDER BY created_at DESC, id ASC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list experiments: %w", err)
	}
	// Ensure rows are closed to prevent connection leaks in the pool.
	defer rows.Close()

	out := make([]*Experiment, 0, min(int64(limit), total))
	for rows.Next() {
		exp, err := scanExperiment(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, exp)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration error: %w", err)
	}

	return out, total, nil
}

// DeleteExperiment removes an experiment by id.
func (s *PostgresStore) DeleteExperiment(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM experiments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete experiment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return nil
}

// scanExperiment decodes one row and rebuilds the definition from its raw form.
func scanExperiment(row pgx.Row) (*Experiment, error) {
	var (
		id        string
		variants  []byte
		createdAt time.Time
	)
	if err := row.Scan(&id, &variants, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan experiment row: %w", err)
	}

	cfg := experiment.Config{ID: id}
	if err := json.Unmarshal(variants, &cfg.Variants); err != nil {
		return nil, fmt.Errorf("failed to decode variants of %q: %w", id, err)
	}

	def, err := experiment.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("stored experiment %q is invalid: %w", id, err)
	}

	return &Experiment{Definition: def, CreatedAt: createdAt}, nil
}
