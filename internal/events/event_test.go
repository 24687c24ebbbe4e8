package events_test

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/valkyrie/internal/events"
)

func TestEvent_Validate(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	negative := -1

	tests := []struct {
		name    string
		event   events.Event
		wantErr bool
	}{
		{name: "Should accept an impression", event: events.NewImpression("e1", 0, now)},
		{name: "Should accept a click without url", event: events.NewClick("e1", 2, nil, now)},
		{name: "Should accept an untyped interaction", event: events.NewInteraction("e1", "", nil, now)},
		{
			name:    "Should reject a missing entity id",
			event:   events.NewImpression("", 0, now),
			wantErr: true,
		},
		{
			name:    "Should reject an impression without slide index",
			event:   events.Event{Kind: events.KindImpression, EntityID: "e1"},
			wantErr: true,
		},
		{
			name:    "Should reject a negative slide index",
			event:   events.Event{Kind: events.KindClick, EntityID: "e1", SlideIndex: &negative},
			wantErr: true,
		},
		{
			name:    "Should reject an unknown kind",
			event:   events.Event{Kind: "hover", EntityID: "e1"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, events.ErrInvalidEvent)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestEvent_JSON(t *testing.T) {
	t.Parallel()

	url := "https://example.com/buy"
	e := events.NewClick("e1", 3, &url, time.Unix(1700000000, 0))

	raw, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"click","entity_id":"e1","slide_index":3,"url":"https://example.com/buy","timestamp":1700000000}`, string(raw))

	t.Run("Should report untyped interactions under unknown", func(t *testing.T) {
		var in events.Event
		require.NoError(t, json.Unmarshal([]byte(`{"kind":"interaction","entity_id":"e1","data":{"x":1},"timestamp":1}`), &in))
		assert.Equal(t, events.UnknownInteraction, in.BreakdownKey())
		assert.Equal(t, float64(1), in.Data["x"])
	})
}

func TestEvent_Detach(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Should not share data with the caller", func(t *testing.T) {
		data := map[string]any{"n": 0, "nested": map[string]any{"k": "v"}}
		url := "https://example.com"
		src := events.NewInteraction("e1", "tap", data, now)
		src.URL = &url

		got, err := src.Detach()
		require.NoError(t, err)

		data["n"] = 999
		data["nested"].(map[string]any)["k"] = "changed"
		url = "https://other.example.com"

		assert.Equal(t, float64(0), got.Data["n"])
		assert.Equal(t, "v", got.Data["nested"].(map[string]any)["k"])
		assert.Equal(t, "https://example.com", *got.URL)
	})

	t.Run("Should reject data that cannot be encoded", func(t *testing.T) {
		src := events.NewInteraction("e1", "tap", map[string]any{"score": math.NaN()}, now)

		_, err := src.Detach()
		assert.ErrorIs(t, err, events.ErrInvalidEvent)
	})

	t.Run("Should keep nil data nil", func(t *testing.T) {
		got, err := events.NewImpression("e1", 0, now).Detach()
		require.NoError(t, err)
		assert.Nil(t, got.Data)
	})
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	k, err := events.ParseKind("impression")
	require.NoError(t, err)
	assert.Equal(t, events.KindImpression, k)

	_, err = events.ParseKind("Impression")
	assert.ErrorIs(t, err, events.ErrInvalidEvent)
}
