package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/rafaeljc/valkyrie/internal/events"
	"github.com/rafaeljc/valkyrie/internal/eventstore"
	"github.com/rafaeljc/valkyrie/internal/logger"
)

func respondAnalyticsDisabled(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusServiceUnavailable, ErrorResponse{
		Code:    "ERR_ANALYTICS_DISABLED",
		Message: "Event tracking is not configured",
	})
}

// handleTrackEvent processes POST /api/v1/events.
//
// Tracking is best-effort: a 202 means the event was accepted into the write
// queue. Storage failures surface through GET /events/status instead.
func (a *API) handleTrackEvent(w http.ResponseWriter, r *http.Request) {
	if a.events == nil {
		respondAnalyticsDisabled(w, r)
		return
	}

	var req TrackEventRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		respondBadJSON(w, r, err)
		return
	}

	kind, err := events.ParseKind(req.Kind)
	if err != nil {
		respondError(w, r, err)
		return
	}

	switch kind {
	case events.KindImpression, events.KindClick:
		if req.SlideIndex == nil {
			respond(w, r, http.StatusBadRequest, ErrorResponse{
				Code:    "ERR_INVALID_INPUT",
				Message: "slide_index is required for " + string(kind) + " events",
			})
			return
		}
		if kind == events.KindImpression {
			err = a.events.TrackImpression(req.EntityID, *req.SlideIndex)
		} else {
			err = a.events.TrackClick(req.EntityID, *req.SlideIndex, req.URL)
		}
	case events.KindInteraction:
		err = a.events.TrackInteraction(req.EntityID, req.InteractionType, req.Data)
	}

	if err != nil {
		if errors.Is(err, eventstore.ErrClosed) {
			respond(w, r, http.StatusServiceUnavailable, ErrorResponse{
				Code:    "ERR_SHUTTING_DOWN",
				Message: "Event store is closed",
			})
			return
		}
		respondError(w, r, err)
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]string{"status": "accepted"})
}

// handleEventStatus processes GET /api/v1/events/status.
// Each storage error is reported once.
func (a *API) handleEventStatus(w http.ResponseWriter, r *http.Request) {
	if a.events == nil {
		respondAnalyticsDisabled(w, r)
		return
	}

	if err := a.events.Err(); err != nil {
		logger.FromContext(r.Context()).Warn("event store reported a storage error", slog.String("error", err.Error()))
		respond(w, r, http.StatusOK, EventStatusResponse{Healthy: false, Error: err.Error()})
		return
	}

	respond(w, r, http.StatusOK, EventStatusResponse{Healthy: true})
}

// handleEntityReport processes GET /api/v1/entities/{id}/report?start=&end=.
func (a *API) handleEntityReport(w http.ResponseWriter, r *http.Request) {
	if a.reports == nil {
		respondAnalyticsDisabled(w, r)
		return
	}

	start, end, err := parseRange(r)
	if err != nil {
		respondQueryError(w, r, err)
		return
	}

	rep, err := a.reports.Report(r.Context(), chi.URLParam(r, "id"), start, end)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, rep)
}
