package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFamilyPartitioning(t *testing.T) {
	tests := []struct {
		eventType EventType
		family    Family
	}{
		{EventKeyDown, FamilyKeystroke},
		{EventKeyUp, FamilyKeystroke},
		{EventMouseMove, FamilyPointer},
		{EventMouseDown, FamilyPointer},
		{EventMouseUp, FamilyPointer},
		{EventClick, FamilyPointer},
		{EventScroll, FamilyScroll},
	}

	for _, tt := range tests {
		ev := CaptureEvent{Type: tt.eventType}
		assert.Equal(t, tt.family, ev.Family(), "type %s", tt.eventType)
	}
}

func TestValidEventType(t *testing.T) {
	assert.True(t, ValidEventType(EventKeyDown))
	assert.True(t, ValidEventType(EventScroll))
	assert.False(t, ValidEventType("wheel"))
	assert.False(t, ValidEventType(""))
}

func TestBatchRecordWireShape(t *testing.T) {
	batch := BatchRecord{
		BatchID:       "b1",
		ClientID:      "c1",
		UserID:        AnonymousUser,
		Timestamp:     "2026-01-02T15:04:05Z",
		KeystrokeData: []CaptureEvent{},
		MouseData:     []CaptureEvent{},
		ScrollData:    []CaptureEvent{},
		Metadata: BatchMetadata{
			UserAgent:        "Mozilla/5.0",
			ScreenResolution: "1920x1080",
			ViewportSize:     "1280x720",
			URL:              "https://app.example.com",
			Referrer:         "https://login.example.com",
		},
	}

	data, err := json.Marshal(batch)
	require.NoError(t, err)

	var wire map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &wire))

	for _, key := range []string{"user_id", "timestamp", "keystroke_data", "mouse_data", "scroll_data", "metadata"} {
		assert.Contains(t, wire, key)
	}

	var meta map[string]string
	require.NoError(t, json.Unmarshal(wire["metadata"], &meta))
	assert.Equal(t, "1920x1080", meta["screen_resolution"])
	assert.Equal(t, "1280x720", meta["viewport_size"])
	assert.Equal(t, "https://app.example.com", meta["url"])
}

func TestEventCount(t *testing.T) {
	batch := BatchRecord{
		KeystrokeData: make([]CaptureEvent, 19),
		ScrollData:    make([]CaptureEvent, 1),
	}
	assert.Equal(t, 20, batch.EventCount())
}

func TestCaptureEventNullTarget(t *testing.T) {
	ev := CaptureEvent{Type: EventKeyDown, Timestamp: 1, Key: &KeyData{Key: "a"}}

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var wire map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.Equal(t, "null", string(wire["target"]))
}
