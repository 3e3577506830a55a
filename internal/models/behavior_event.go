package models

// EventType identifies the kind of raw interaction an event was captured from
type EventType string

const (
	EventKeyDown   EventType = "keydown"
	EventKeyUp     EventType = "keyup"
	EventMouseMove EventType = "mousemove"
	EventMouseDown EventType = "mousedown"
	EventMouseUp   EventType = "mouseup"
	EventClick     EventType = "click"
	EventScroll    EventType = "scroll"
)

// Family is the buffer partition key for a capture event
type Family string

const (
	FamilyKeystroke Family = "keystroke"
	FamilyPointer   Family = "pointer"
	FamilyScroll    Family = "scroll"
)

// MaxTargetTextLen bounds the text content copied from a target element
const MaxTargetTextLen = 100

// Target is a by-copy snapshot of the UI element an event originated from.
// The live element may be mutated or removed before the batch is flushed,
// so nothing here references it.
type Target struct {
	Tag     string   `json:"tag"`
	ID      string   `json:"id,omitempty"`
	Classes []string `json:"classes,omitempty"`
	Name    string   `json:"name,omitempty"`
	Type    string   `json:"type,omitempty"`
	Text    string   `json:"text,omitempty"`
	Value   *string  `json:"value"`
}

// KeyData carries the keyboard-specific fields of a keydown/keyup event
type KeyData struct {
	Key    string `json:"key"`
	Code   string `json:"code"`
	Ctrl   bool   `json:"ctrl"`
	Shift  bool   `json:"shift"`
	Alt    bool   `json:"alt"`
	Meta   bool   `json:"meta"`
	Repeat bool   `json:"repeat,omitempty"` // keydown only
}

// MoveData carries the pointer-move fields
type MoveData struct {
	X               int   `json:"x"`
	Y               int   `json:"y"`
	ViewportW       int   `json:"viewport_w"`
	ViewportH       int   `json:"viewport_h"`
	SinceLastMoveMS int64 `json:"since_last_move_ms"` // 0 if no previous move
}

// ButtonData carries the pointer down/up/click fields
type ButtonData struct {
	Button int `json:"button"`
	X      int `json:"x"`
	Y      int `json:"y"`
}

// ScrollData carries the scroll fields
type ScrollData struct {
	ScrollX           int   `json:"scroll_x"`
	ScrollY           int   `json:"scroll_y"`
	ViewportW         int   `json:"viewport_w"`
	ViewportH         int   `json:"viewport_h"`
	DocW              int   `json:"doc_w"`
	DocH              int   `json:"doc_h"`
	SinceLastScrollMS int64 `json:"since_last_scroll_ms"` // 0 if no previous scroll
}

// CaptureEvent is one normalized interaction event. Exactly one of the
// family payloads is set, matching Type.
type CaptureEvent struct {
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"` // milliseconds since epoch
	Target    *Target   `json:"target"`

	Key    *KeyData    `json:"key_data,omitempty"`
	Move   *MoveData   `json:"move_data,omitempty"`
	Button *ButtonData `json:"button_data,omitempty"`
	Scroll *ScrollData `json:"scroll_data,omitempty"`
}

// Family returns the buffer partition the event belongs to
func (e CaptureEvent) Family() Family {
	switch e.Type {
	case EventKeyDown, EventKeyUp:
		return FamilyKeystroke
	case EventScroll:
		return FamilyScroll
	default:
		return FamilyPointer
	}
}

// ValidEventType reports whether t is one of the capture event types
func ValidEventType(t EventType) bool {
	switch t {
	case EventKeyDown, EventKeyUp, EventMouseMove, EventMouseDown, EventMouseUp, EventClick, EventScroll:
		return true
	}
	return false
}
