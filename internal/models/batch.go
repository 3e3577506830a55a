package models

// AnonymousUser is the actor identity recorded when no session is active
// or the session lookup fails.
const AnonymousUser = "anonymous"

// BatchMetadata is the session/context block attached to every batch
type BatchMetadata struct {
	UserAgent        string `json:"user_agent"`
	ScreenResolution string `json:"screen_resolution"`
	ViewportSize     string `json:"viewport_size"`
	URL              string `json:"url"`
	Referrer         string `json:"referrer"`
}

// BatchRecord is one behavior_logs insert: an immutable snapshot of the
// three buffered event sequences plus session metadata, taken at flush time.
type BatchRecord struct {
	BatchID       string         `json:"batch_id"`
	ClientID      string         `json:"client_id"`
	UserID        string         `json:"user_id"`
	Timestamp     string         `json:"timestamp"` // ISO-8601 send time
	KeystrokeData []CaptureEvent `json:"keystroke_data"`
	MouseData     []CaptureEvent `json:"mouse_data"`
	ScrollData    []CaptureEvent `json:"scroll_data"`
	Metadata      BatchMetadata  `json:"metadata"`
}

// EventCount returns the total number of events across all three sequences
func (b BatchRecord) EventCount() int {
	return len(b.KeystrokeData) + len(b.MouseData) + len(b.ScrollData)
}
