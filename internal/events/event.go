// Package events defines the interaction events recorded against a variant's
// backing entity and the Sink that accepts them.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Kind identifies the type of an Event.
type Kind string

const (
	KindImpression  Kind = "impression"
	KindClick       Kind = "click"
	KindInteraction Kind = "interaction"
)

// UnknownInteraction is the breakdown bucket for interactions logged without a type.
const UnknownInteraction = "unknown"

// ErrInvalidEvent is returned for events that cannot be recorded.
var ErrInvalidEvent = errors.New("invalid event")

// ParseKind converts a wire value into a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindImpression, KindClick, KindInteraction:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, s)
	}
}

// Event is one append-only log record.
//
// SlideIndex is set for impressions and clicks, URL only for clicks,
// InteractionType and Data only for interactions.
type Event struct {
	Kind            Kind           `json:"kind"`
	EntityID        string         `json:"entity_id"`
	SlideIndex      *int           `json:"slide_index,omitempty"`
	URL             *string        `json:"url,omitempty"`
	InteractionType *string        `json:"interaction_type,omitempty"`
	Data            map[string]any `json:"data,omitempty"`
	Timestamp       int64          `json:"timestamp"`
}

// Time returns the event timestamp in UTC.
func (e *Event) Time() time.Time {
	return time.Unix(e.Timestamp, 0).UTC()
}

// Validate checks the fields required for the event's kind.
func (e *Event) Validate() error {
	if e.EntityID == "" {
		return fmt.Errorf("%w: entity id is required", ErrInvalidEvent)
	}

	switch e.Kind {
	case KindImpression, KindClick:
		if e.SlideIndex == nil {
			return fmt.Errorf("%w: %s requires a slide index", ErrInvalidEvent, e.Kind)
		}
		if *e.SlideIndex < 0 {
			return fmt.Errorf("%w: slide index cannot be negative, got %d", ErrInvalidEvent, *e.SlideIndex)
		}
	case KindInteraction:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, e.Kind)
	}

	return nil
}

// Detach returns a copy of e that shares no memory with the caller: pointer
// fields are copied and Data is deep-copied through a JSON round-trip. Data that
// cannot be encoded as JSON (NaN, channels, funcs) yields ErrInvalidEvent, so an
// accepted event is always writable.
func (e Event) Detach() (Event, error) {
	if e.SlideIndex != nil {
		v := *e.SlideIndex
		e.SlideIndex = &v
	}
	if e.URL != nil {
		v := *e.URL
		e.URL = &v
	}
	if e.InteractionType != nil {
		v := *e.InteractionType
		e.InteractionType = &v
	}

	if e.Data == nil {
		return e, nil
	}
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return Event{}, fmt.Errorf("%w: data is not JSON-encodable: %v", ErrInvalidEvent, err)
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return Event{}, fmt.Errorf("%w: data is not JSON-encodable: %v", ErrInvalidEvent, err)
	}
	e.Data = data
	return e, nil
}

// BreakdownKey returns the interaction type, or UnknownInteraction when unset.
func (e *Event) BreakdownKey() string {
	if e.InteractionType == nil || *e.InteractionType == "" {
		return UnknownInteraction
	}
	return *e.InteractionType
}

// NewImpression builds an impression event.
func NewImpression(entityID string, slide int, at time.Time) Event {
	return Event{Kind: KindImpression, EntityID: entityID, SlideIndex: &slide, Timestamp: at.Unix()}
}

// NewClick builds a click event. url may be nil.
func NewClick(entityID string, slide int, url *string, at time.Time) Event {
	return Event{Kind: KindClick, EntityID: entityID, SlideIndex: &slide, URL: url, Timestamp: at.Unix()}
}

// NewInteraction builds a custom interaction event. An empty type is stored
// as absent and reported under UnknownInteraction.
func NewInteraction(entityID, interactionType string, data map[string]any, at time.Time) Event {
	e := Event{Kind: KindInteraction, EntityID: entityID, Data: data, Timestamp: at.Unix()}
	if interactionType != "" {
		e.InteractionType = &interactionType
	}
	return e
}
