// Package api implements the REST API for Valkyrie: experiment management,
// variant assignment, event tracking and reports.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/rafaeljc/valkyrie/internal/assignment"
	"github.com/rafaeljc/valkyrie/internal/events"
	"github.com/rafaeljc/valkyrie/internal/report"
	"github.com/rafaeljc/valkyrie/internal/session"
	"github.com/rafaeljc/valkyrie/internal/store"
	"github.com/rafaeljc/valkyrie/internal/validation"
)

// EventRecorder is the event log as seen by the API.
// *eventstore.Store implements it.
type EventRecorder interface {
	events.Sink

	// Err returns the last unreported storage error.
	Err() error
}

// Dependencies groups the collaborators of the API.
// Events and Reports are optional: without them the analytics routes answer 503
// and experiment stats are empty.
type Dependencies struct {
	Experiments store.ExperimentRepository
	Engine      *assignment.Engine
	Sessions    session.Backend
	Events      EventRecorder
	Reports     *report.Aggregator
	Logger      *slog.Logger
}

// Config holds HTTP-level settings.
type Config struct {
	// APIKeyHash is the hex SHA-256 hash of the valid API key.
	APIKeyHash string

	// SkipAuth disables authentication (test/dev environments only).
	SkipAuth bool

	// CookieName names the session cookie. It only carries an opaque id.
	CookieName string

	// CookieSecure sets the Secure attribute on the session cookie.
	CookieSecure bool

	// SessionTTL is the cookie lifetime. Zero makes it a browser-session cookie.
	SessionTTL time.Duration
}

// API is the main struct that holds dependencies and the router.
type API struct {
	// Router is the Chi multiplexer that handles HTTP requests.
	Router *chi.Mux

	experiments store.ExperimentRepository
	engine      *assignment.Engine
	sessions    session.Backend
	events      EventRecorder
	reports     *report.Aggregator
	logger      *slog.Logger
	cfg         Config
}

// NewAPI creates a new API instance.
//
// Panics if:
//   - Experiments, Engine or Sessions are nil
//   - APIKeyHash is empty when authentication is enabled
func NewAPI(deps Dependencies, cfg Config) *API {
	validation.AssertPresent(deps.Experiments, "experiment repository")
	validation.AssertPresent(deps.Sessions, "session backend")
	validation.AssertNotNil(deps.Engine, "assignment engine")

	if !cfg.SkipAuth && cfg.APIKeyHash == "" {
		panic("api: APIKeyHash cannot be empty when authentication is enabled")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "valkyrie_session"
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	a := &API{
		Router:      chi.NewRouter(),
		experiments: deps.Experiments,
		engine:      deps.Engine,
		sessions:    deps.Sessions,
		events:      deps.Events,
		reports:     deps.Reports,
		logger:      deps.Logger,
		cfg:         cfg,
	}

	a.configureRoutes()
	return a
}

// configureRoutes registers the global middleware stack and API endpoints.
func (a *API) configureRoutes() {
	// RequestID: Adds a unique ID to each request context (essential for tracing).
	a.Router.Use(middleware.RequestID)
	// RealIP: correctly sets the IP if behind a proxy/LB.
	a.Router.Use(middleware.RealIP)
	a.Router.Use(a.RequestLogger)
	a.Router.Use(Metrics)
	// Recoverer: Prevents the server from crashing on panics, returning 500 instead.
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(render.SetContentType(render.ContentTypeJSON))

	a.Router.Get("/health", a.handleHealthCheck)

	a.Router.Route("/api/v1", func(r chi.Router) {
		r.Use(a.authenticateAPIKey)

		r.Route("/experiments", func(r chi.Router) {
			r.Post("/", a.handleCreateExperiment)
			r.Get("/", a.handleListExperiments)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", a.handleGetExperiment)
				r.Delete("/", a.handleDeleteExperiment)
				r.Post("/assign", a.handleAssign)
				r.Get("/stats", a.handleExperimentStats)
			})
		})

		r.Route("/events", func(r chi.Router) {
			r.Post("/", a.handleTrackEvent)
			r.Get("/status", a.handleEventStatus)
		})

		r.Get("/entities/{id}/report", a.handleEntityReport)
	})
}

// handleHealthCheck verifies that the HTTP server is serving.
// Dependency checks live on the observability server's readiness endpoint.
func (a *API) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"status": "ok"})
}
