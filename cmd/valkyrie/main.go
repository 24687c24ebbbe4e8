// Package main initializes and runs the Valkyrie service.
//
// It acts as the composition root: it loads configuration, wires the
// experiment registry, session backend, assignment engine, event store and
// report aggregator into the REST API, and runs the API server, the
// observability server and the background workers until a shutdown signal.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rafaeljc/valkyrie/internal/api"
	"github.com/rafaeljc/valkyrie/internal/assignment"
	"github.com/rafaeljc/valkyrie/internal/config"
	"github.com/rafaeljc/valkyrie/internal/database"
	"github.com/rafaeljc/valkyrie/internal/eventstore"
	"github.com/rafaeljc/valkyrie/internal/flusher"
	"github.com/rafaeljc/valkyrie/internal/logger"
	"github.com/rafaeljc/valkyrie/internal/observability"
	"github.com/rafaeljc/valkyrie/internal/report"
	"github.com/rafaeljc/valkyrie/internal/session"
	"github.com/rafaeljc/valkyrie/internal/store"
)

const monitorInterval = 15 * time.Second

// main is the application entrypoint.
func main() {
	if err := run(); err != nil {
		log.Printf("Fatal error: %v", err)
		os.Exit(1)
	}
}

// run executes the service lifecycle.
func run() error {
	// -------------------------------------------------------------------------
	// 1. Configuration & Logging
	// -------------------------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logg := logger.New(&cfg.App)
	slog.SetDefault(logg)
	cfg.LogConfig(logg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx = logger.WithContext(ctx, logg)

	g, gctx := errgroup.WithContext(ctx)
	var checkers []observability.Checker

	// -------------------------------------------------------------------------
	// 2. Infrastructure Setup
	// -------------------------------------------------------------------------

	var experiments store.ExperimentRepository = store.NewMemoryStore()
	if cfg.Registry.UsesPostgres() {
		pool, err := database.NewPostgresPool(ctx, &cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		defer pool.Close()

		experiments = store.NewPostgresStore(pool)
		checkers = append(checkers, database.NewHealthChecker(pool))
		g.Go(func() error {
			database.RunPoolMonitor(gctx, pool, monitorInterval)
			return nil
		})
	}

	var sessions session.Backend
	if cfg.Session.UsesRedis() {
		client, err := session.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer client.Close()

		sessions = session.NewRedisBackend(client, cfg.Session.TTL, logg)
		checkers = append(checkers, session.NewRedisChecker(client))
		g.Go(func() error {
			session.RunPoolMonitor(gctx, client, monitorInterval)
			return nil
		})
	} else {
		mem, err := session.NewMemoryBackend(cfg.Session.Capacity, cfg.Session.TTL)
		if err != nil {
			return fmt.Errorf("failed to create session cache: %w", err)
		}
		defer mem.Close()

		sessions = mem
		g.Go(func() error {
			mem.RunMetricsCollector(gctx, monitorInterval)
			return nil
		})
	}

	events, err := eventstore.Open(&cfg.EventStore, eventstore.WithLogger(logg))
	if err != nil {
		return fmt.Errorf("failed to open event store: %w", err)
	}
	checkers = append(checkers, eventstore.NewDirChecker(events))

	// -------------------------------------------------------------------------
	// 3. Wiring (Dependency Injection)
	// -------------------------------------------------------------------------
	restAPI := api.NewAPI(api.Dependencies{
		Experiments: experiments,
		Engine:      assignment.New(logg),
		Sessions:    sessions,
		Events:      events,
		Reports:     report.NewAggregator(events, &cfg.Report, report.WithLogger(logg)),
		Logger:      logg,
	}, api.Config{
		APIKeyHash:   cfg.Server.APIKeyHash,
		SkipAuth:     cfg.Server.APIKeyHash == "" && cfg.App.Environment != config.EnvironmentProduction,
		CookieName:   cfg.Session.CookieName,
		CookieSecure: cfg.Session.CookieSecure,
		SessionTTL:   cfg.Session.TTL,
	})

	if cfg.Server.APIKeyHash == "" {
		logg.Warn("API authentication is disabled: no API key hash configured")
	}

	// -------------------------------------------------------------------------
	// 4. Servers & Workers
	// -------------------------------------------------------------------------
	httpServer := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           restAPI.Router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		MaxHeaderBytes:    cfg.Server.MaxHeaderBytes,
	}

	g.Go(func() error {
		logg.Info("starting api server",
			slog.String("addr", httpServer.Addr),
			slog.Bool("tls", cfg.Server.TLSEnabled),
		)

		var err error
		if cfg.Server.TLSEnabled {
			err = httpServer.ListenAndServeTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logg.Info("stopping api server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	obsServer := observability.NewServer(logg, &cfg.Observability, checkers...)
	g.Go(func() error {
		return obsServer.Run(gctx)
	})

	flush := flusher.New(logg, flusher.Config{Interval: cfg.EventStore.FlushInterval}, events)
	g.Go(func() error {
		return flush.Run(gctx)
	})

	// -------------------------------------------------------------------------
	// 5. Shutdown
	// -------------------------------------------------------------------------
	runErr := g.Wait()

	// The API server is down, so no more events can arrive.
	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := events.Close(closeCtx); err != nil {
		logg.Error("failed to close event store", slog.String("error", err.Error()))
		runErr = errors.Join(runErr, err)
	}

	logg.Info("valkyrie stopped")
	return runErr
}
