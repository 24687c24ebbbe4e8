// Package flusher implements the background worker that periodically persists
// buffered events from the event store to its day-files.
package flusher

import (
	"context"
	"log/slog"
	"time"

	"github.com/rafaeljc/valkyrie/internal/validation"
)

// Flusher is the part of the event store the service drives.
// *eventstore.Store implements it.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Config holds the configuration for the flusher service.
type Config struct {
	// Interval is the duration between flushes.
	Interval time.Duration

	// Timeout bounds a single flush. Zero means Interval.
	Timeout time.Duration
}

// Service flushes the event store on a ticker.
type Service struct {
	logger *slog.Logger
	config Config
	target Flusher
}

// New creates a new flusher service.
func New(logger *slog.Logger, cfg Config, target Flusher) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	validation.AssertPresent(target, "flush target")

	if cfg.Interval < 100*time.Millisecond {
		cfg.Interval = 2 * time.Second // Safe default
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = cfg.Interval
	}

	return &Service{
		logger: logger,
		config: cfg,
		target: target,
	}
}

// Run starts the flush loop. It blocks until ctx is cancelled, then flushes
// one last time with a fresh deadline so that buffered events are not lost.
// Failures are logged and retried on the next tick; Run never returns early.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("starting flusher service", slog.String("interval", s.config.Interval.String()))

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("flusher service stopping...")
			s.flush(context.WithoutCancel(ctx))
			return nil
		case <-ticker.C:
			s.flush(ctx)
		}
	}
}

func (s *Service) flush(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, s.config.Timeout)
	defer cancel()

	start := time.Now()
	if err := s.target.Flush(ctx); err != nil {
		// Events stay buffered in the store; the next tick retries them.
		s.logger.Error("flush failed",
			slog.String("error", err.Error()),
			slog.String("duration", time.Since(start).String()),
		)
	}
}
