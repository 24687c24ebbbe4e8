package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/render"

	"github.com/rafaeljc/valkyrie/internal/assignment"
	"github.com/rafaeljc/valkyrie/internal/events"
	"github.com/rafaeljc/valkyrie/internal/experiment"
	"github.com/rafaeljc/valkyrie/internal/logger"
	"github.com/rafaeljc/valkyrie/internal/report"
	"github.com/rafaeljc/valkyrie/internal/store"
)

func respond(w http.ResponseWriter, r *http.Request, status int, body any) {
	render.Status(r, status)
	render.JSON(w, r, body)
}

// respondError maps domain errors to status codes. Unknown errors are logged
// and answered with a generic 500 so internals do not leak.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var cfgErr *experiment.ConfigurationError

	switch {
	case errors.As(err, &cfgErr):
		respond(w, r, http.StatusBadRequest, ErrorResponse{
			Code:    "ERR_INVALID_INPUT",
			Message: err.Error(),
			Details: []ErrorDetail{{Field: cfgErr.Field, Issue: cfgErr.Reason}},
		})
	case errors.Is(err, assignment.ErrUnknownStrategy),
		errors.Is(err, assignment.ErrMissingVisitorID),
		errors.Is(err, events.ErrInvalidEvent):
		respond(w, r, http.StatusBadRequest, ErrorResponse{Code: "ERR_INVALID_INPUT", Message: err.Error()})
	case errors.Is(err, report.ErrInvalidRange), errors.Is(err, report.ErrRangeTooWide):
		respond(w, r, http.StatusBadRequest, ErrorResponse{Code: "ERR_INVALID_RANGE", Message: err.Error()})
	case errors.Is(err, store.ErrNotFound):
		respond(w, r, http.StatusNotFound, ErrorResponse{Code: "ERR_NOT_FOUND", Message: err.Error()})
	case errors.Is(err, store.ErrAlreadyExists):
		respond(w, r, http.StatusConflict, ErrorResponse{Code: "ERR_CONFLICT", Message: err.Error()})
	default:
		logger.FromContext(r.Context()).Error("request failed", slog.String("error", err.Error()))
		respond(w, r, http.StatusInternalServerError, ErrorResponse{
			Code:    "ERR_INTERNAL",
			Message: "Internal server error",
		})
	}
}

func respondBadJSON(w http.ResponseWriter, r *http.Request, err error) {
	logger.FromContext(r.Context()).Warn("invalid json payload", slog.String("error", err.Error()))
	respond(w, r, http.StatusBadRequest, ErrorResponse{
		Code:    "ERR_INVALID_JSON",
		Message: "Invalid JSON payload: " + err.Error(),
	})
}

func respondQueryError(w http.ResponseWriter, r *http.Request, err error) {
	respond(w, r, http.StatusBadRequest, ErrorResponse{
		Code:    "ERR_INVALID_QUERY_PARAM",
		Message: err.Error(),
	})
}

// parseOptionalInt extracts an integer from the query string.
// If the parameter is missing, it returns the defaultValue.
// It only returns an error if the parameter is present but malformed.
func parseOptionalInt(r *http.Request, key string, defaultValue int) (int, error) {
	valStr := r.URL.Query().Get(key)
	if valStr == "" {
		return defaultValue, nil
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return 0, fmt.Errorf("parameter '%s' must be an integer", key)
	}
	return val, nil
}

// parseOptionalTime extracts an RFC 3339 timestamp from the query string.
// A missing parameter yields nil.
func parseOptionalTime(r *http.Request, key string) (*time.Time, error) {
	valStr := r.URL.Query().Get(key)
	if valStr == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, valStr)
	if err != nil {
		return nil, fmt.Errorf("parameter '%s' must be an RFC 3339 timestamp", key)
	}
	return &t, nil
}

func parseRange(r *http.Request) (start, end *time.Time, err error) {
	if start, err = parseOptionalTime(r, "start"); err != nil {
		return nil, nil, err
	}
	if end, err = parseOptionalTime(r, "end"); err != nil {
		return nil, nil, err
	}
	return start, end, nil
}
