package models

// RawTarget is the unvalidated element snapshot sent by the extension.
// Text may exceed the stored limit; the capturer truncates it.
type RawTarget struct {
	Tag     string   `json:"tag"`
	ID      string   `json:"id"`
	Classes []string `json:"classes"`
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Text    string   `json:"text"`
	Value   *string  `json:"value"`
}

// RawEvent is one interaction event as posted by the browser extension,
// before normalization. Field presence depends on Type.
type RawEvent struct {
	Type      EventType  `json:"type"`
	Timestamp int64      `json:"timestamp"` // milliseconds since epoch
	Target    *RawTarget `json:"target"`

	// keyboard
	Key    string `json:"key,omitempty"`
	Code   string `json:"code,omitempty"`
	Ctrl   bool   `json:"ctrl,omitempty"`
	Shift  bool   `json:"shift,omitempty"`
	Alt    bool   `json:"alt,omitempty"`
	Meta   bool   `json:"meta,omitempty"`
	Repeat bool   `json:"repeat,omitempty"`

	// pointer
	X      int `json:"x,omitempty"`
	Y      int `json:"y,omitempty"`
	Button int `json:"button,omitempty"`

	// scroll
	ScrollX int `json:"scroll_x,omitempty"`
	ScrollY int `json:"scroll_y,omitempty"`

	// viewport/document extents (mousemove and scroll)
	ViewportW int `json:"viewport_w,omitempty"`
	ViewportH int `json:"viewport_h,omitempty"`
	DocW      int `json:"doc_w,omitempty"`
	DocH      int `json:"doc_h,omitempty"`
}
