package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rafaeljc/valkyrie/internal/experiment"
)

var _ ExperimentRepository = (*MemoryStore)(nil)

// MemoryStore is an in-process ExperimentRepository. Contents are lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*Experiment
	clock func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]*Experiment),
		clock: time.Now,
	}
}

func (s *MemoryStore) CreateExperiment(ctx context.Context, def *experiment.Definition) (*Experiment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[def.ID()]; ok {
		return nil, fmt.Errorf("%w: %q", ErrAlreadyExists, def.ID())
	}

	exp := &Experiment{Definition: def, CreatedAt: s.clock().UTC()}
	s.items[def.ID()] = exp

	out := *exp
	return &out, nil
}

func (s *MemoryStore) GetExperiment(ctx context.Context, id string) (*Experiment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	exp, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	out := *exp
	return &out, nil
}

// ListExperiments orders like the Postgres implementation: newest first, then by id.
func (s *MemoryStore) ListExperiments(ctx context.Context, limit, offset int) ([]*Experiment, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	s.mu.RLock()
	all := make([]*Experiment, 0, len(s.items))
	for _, exp := range s.items {
		out := *exp
		all = append(all, &out)
	}
	s.mu.RUnlock()

	slices.SortFunc(all, func(a, b *Experiment) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Definition.ID(), b.Definition.ID())
	})

	total := int64(len(all))
	offset = max(offset, 0)
	if offset >= len(all) || limit <= 0 {
		return []*Experiment{}, total, nil
	}
	end := len(all)
	if limit < end-offset {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

func (s *MemoryStore) DeleteExperiment(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	delete(s.items, id)
	return nil
}
