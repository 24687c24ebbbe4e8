package events

// Sink records events for later aggregation.
//
// Implementations may buffer: a nil error means the event was accepted, not
// that it is durable.
type Sink interface {
	TrackImpression(entityID string, slideIndex int) error
	TrackClick(entityID string, slideIndex int, url *string) error
	TrackInteraction(entityID, interactionType string, data map[string]any) error
}
