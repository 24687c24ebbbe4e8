package api

import (
	"log/slog"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/rafaeljc/valkyrie/internal/assignment"
	"github.com/rafaeljc/valkyrie/internal/experiment"
	"github.com/rafaeljc/valkyrie/internal/logger"
	"github.com/rafaeljc/valkyrie/internal/report"
)

// handleCreateExperiment processes POST /api/v1/experiments.
// The definition is validated and normalized before it is stored.
func (a *API) handleCreateExperiment(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req CreateExperimentRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		respondBadJSON(w, r, err)
		return
	}
	req.Sanitize()

	def, err := experiment.New(experiment.Config{ID: req.ID, Variants: req.Variants})
	if err != nil {
		respondError(w, r, err)
		return
	}

	exp, err := a.experiments.CreateExperiment(r.Context(), def)
	if err != nil {
		respondError(w, r, err)
		return
	}

	log.Info("experiment created",
		slog.String("experiment_id", def.ID()),
		slog.Int("variants", def.Len()),
	)
	respond(w, r, http.StatusCreated, mapExperimentToResponse(exp))
}

// handleListExperiments processes GET /api/v1/experiments?page=&page_size=.
func (a *API) handleListExperiments(w http.ResponseWriter, r *http.Request) {
	page, err := parseOptionalInt(r, "page", 1)
	if err != nil {
		respondQueryError(w, r, err)
		return
	}

	pageSize, err := parseOptionalInt(r, "page_size", 10)
	if err != nil {
		respondQueryError(w, r, err)
		return
	}

	// Out-of-bounds values are clamped rather than rejected.
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}

	// A page too large to address is past the end of any store.
	offset := math.MaxInt
	if page-1 <= math.MaxInt/pageSize {
		offset = (page - 1) * pageSize
	}

	exps, totalItems, err := a.experiments.ListExperiments(r.Context(), pageSize, offset)
	if err != nil {
		respondError(w, r, err)
		return
	}

	dtos := make([]Experiment, len(exps))
	for i, exp := range exps {
		dtos[i] = mapExperimentToResponse(exp)
	}

	totalPages := 0
	if totalItems > 0 {
		totalPages = int(math.Ceil(float64(totalItems) / float64(pageSize)))
	}

	respond(w, r, http.StatusOK, PaginatedResponse{
		Data: dtos,
		Pagination: Pagination{
			TotalItems:  totalItems,
			TotalPages:  totalPages,
			CurrentPage: page,
			PageSize:    pageSize,
		},
	})
}

// handleGetExperiment processes GET /api/v1/experiments/{id}.
func (a *API) handleGetExperiment(w http.ResponseWriter, r *http.Request) {
	exp, err := a.experiments.GetExperiment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, mapExperimentToResponse(exp))
}

// handleDeleteExperiment processes DELETE /api/v1/experiments/{id}.
// Logged events of the experiment's entities are kept.
func (a *API) handleDeleteExperiment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.experiments.DeleteExperiment(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}

	logger.FromContext(r.Context()).Info("experiment deleted", slog.String("experiment_id", id))
	w.WriteHeader(http.StatusNoContent)
}

// handleAssign processes POST /api/v1/experiments/{id}/assign.
//
// The cookie strategy keys session state by an opaque id carried in the
// session cookie; a new id is issued when the cookie is missing or malformed.
func (a *API) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		respondBadJSON(w, r, err)
		return
	}

	strategy, err := assignment.ParseStrategy(req.Strategy)
	if err != nil {
		respondError(w, r, err)
		return
	}

	exp, err := a.experiments.GetExperiment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	def := exp.Definition

	ctx, log := logger.With(r.Context(),
		slog.String("experiment_id", def.ID()),
		slog.String("strategy", string(strategy)),
	)
	r = r.WithContext(ctx)

	sc := assignment.SelectionContext{Strategy: strategy, VisitorID: req.VisitorID}
	if strategy == assignment.StrategyCookie {
		sc.Sticky = a.sessions.Session(r.Context(), a.sessionID(w, r))
	}

	res, err := a.engine.AssignResult(def, sc)
	if err != nil {
		respondError(w, r, err)
		return
	}

	log.Debug("variant assigned",
		slog.String("variant_id", res.VariantID),
		slog.Bool("from_session", res.FromSession),
	)

	variant, _ := def.Variant(res.VariantID)
	respond(w, r, http.StatusOK, AssignResponse{
		ExperimentID: def.ID(),
		VariantID:    res.VariantID,
		EntityID:     variant.EntityID,
		Strategy:     string(strategy),
		FromSession:  res.FromSession,
	})
}

// handleExperimentStats processes GET /api/v1/experiments/{id}/stats?start=&end=.
func (a *API) handleExperimentStats(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r)
	if err != nil {
		respondQueryError(w, r, err)
		return
	}

	exp, err := a.experiments.GetExperiment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	stats, err := report.GetVariantStats(r.Context(), a.reports, exp.Definition, start, end)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, stats)
}

// sessionID returns the caller's session id, issuing a new cookie when the
// current one is absent or not a UUID.
func (a *API) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(a.cfg.CookieName); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String()
		}
	}

	id := uuid.NewString()
	cookie := &http.Cookie{
		Name:     a.cfg.CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   a.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if a.cfg.SessionTTL > 0 {
		cookie.MaxAge = int(a.cfg.SessionTTL.Seconds())
	}
	http.SetCookie(w, cookie)

	return id
}
