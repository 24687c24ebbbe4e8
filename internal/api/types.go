package api

import (
	"strings"
	"time"

	"github.com/rafaeljc/valkyrie/internal/experiment"
	"github.com/rafaeljc/valkyrie/internal/store"
)

// CreateExperimentRequest defines the payload of POST /experiments.
// It is the raw experiment configuration; weights are normalized on create.
type CreateExperimentRequest struct {
	ID       string                     `json:"id"`
	Variants []experiment.VariantConfig `json:"variants"`
}

// Sanitize trims whitespace from ids so that copy-pasted payloads validate.
func (r *CreateExperimentRequest) Sanitize() {
	r.ID = strings.TrimSpace(r.ID)
	for i := range r.Variants {
		r.Variants[i].ID = strings.TrimSpace(r.Variants[i].ID)
		r.Variants[i].EntityID = strings.TrimSpace(r.Variants[i].EntityID)
	}
}

// Experiment is the experiment resource returned by the API.
type Experiment struct {
	ID        string               `json:"id"`
	Variants  []experiment.Variant `json:"variants"`
	CreatedAt time.Time            `json:"created_at"`
}

func mapExperimentToResponse(exp *store.Experiment) Experiment {
	return Experiment{
		ID:        exp.Definition.ID(),
		Variants:  exp.Definition.Variants(),
		CreatedAt: exp.CreatedAt,
	}
}

// AssignRequest defines the payload of POST /experiments/{id}/assign.
type AssignRequest struct {
	// Strategy is one of cookie, random or hash.
	Strategy string `json:"strategy"`

	// VisitorID is required by the hash strategy.
	VisitorID string `json:"visitor_id,omitempty"`
}

// AssignResponse tells the caller which variant to render.
type AssignResponse struct {
	ExperimentID string `json:"experiment_id"`
	VariantID    string `json:"variant_id"`
	EntityID     string `json:"entity_id"`
	Strategy     string `json:"strategy"`
	FromSession  bool   `json:"from_session"`
}

// TrackEventRequest defines the payload of POST /events.
type TrackEventRequest struct {
	Kind            string         `json:"kind"`
	EntityID        string         `json:"entity_id"`
	SlideIndex      *int           `json:"slide_index,omitempty"`
	URL             *string        `json:"url,omitempty"`
	InteractionType string         `json:"interaction_type,omitempty"`
	Data            map[string]any `json:"data,omitempty"`
}

// EventStatusResponse reports whether the event log is currently durable.
type EventStatusResponse struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// PaginatedResponse is a standard wrapper for list endpoints to support offset pagination.
type PaginatedResponse struct {
	Data       any        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// Pagination metadata for the frontend pager.
type Pagination struct {
	TotalItems  int64 `json:"total_items"`
	TotalPages  int   `json:"total_pages"`
	CurrentPage int   `json:"current_page"`
	PageSize    int   `json:"page_size"`
}

// ErrorResponse represents a standard structured API error.
type ErrorResponse struct {
	// Code is a machine-readable error code (e.g., "ERR_INVALID_INPUT").
	Code string `json:"code"`

	// Message is a human-readable description of the error.
	Message string `json:"message"`

	// Details provides optional granular validation errors.
	Details []ErrorDetail `json:"details,omitempty"`
}

// ErrorDetail provides context about specific field validation failures.
type ErrorDetail struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}
