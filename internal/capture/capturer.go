// Package capture normalizes raw interaction events from the browser
// extension into typed capture events and hands them to the monitor.
package capture

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Shanaa-yasmin/Cognivex/internal/models"
	"github.com/Shanaa-yasmin/Cognivex/internal/throttle"
)

// Recorder receives normalized events. Implemented by the monitor.
type Recorder interface {
	Record(ev models.CaptureEvent)
	IsMonitoring() bool
}

// Source is a raw event stream the capturer can subscribe to. Implemented
// by the capture server. The returned function releases the subscription.
type Source interface {
	Subscribe(handler func(models.RawEvent)) (unsubscribe func())
}

// Capturer translates raw events into capture events. Pointer movement and
// scroll are throttled; keyboard and discrete pointer events never are.
type Capturer struct {
	recorder   Recorder
	moveGate   *throttle.Throttle
	scrollGate *throttle.Throttle
	logger     *zap.Logger

	mu           sync.Mutex
	lastMoveTS   *int64
	lastScrollTS *int64
	unsubscribe  func()
}

// New creates a capturer
func New(recorder Recorder, moveThrottle, scrollThrottle time.Duration, logger *zap.Logger) *Capturer {
	return &Capturer{
		recorder:   recorder,
		moveGate:   throttle.New(moveThrottle),
		scrollGate: throttle.New(scrollThrottle),
		logger:     logger,
	}
}

// Attach subscribes the capturer to a raw event source. A previous
// subscription is released first.
func (c *Capturer) Attach(src Source) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	c.unsubscribe = src.Subscribe(c.HandleRaw)
	c.logger.Info("Capturer attached to event source")
}

// Close releases the source subscription
func (c *Capturer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
		c.logger.Info("Capturer detached from event source")
	}
}

// HandleRaw processes one raw event. A no-op while monitoring is stopped:
// events are dropped, not queued, and throttle/delta state stays untouched.
func (c *Capturer) HandleRaw(raw models.RawEvent) {
	if !c.recorder.IsMonitoring() {
		return
	}
	if !models.ValidEventType(raw.Type) {
		c.logger.Debug("Skipping unknown event type", zap.String("type", string(raw.Type)))
		return
	}

	ev := models.CaptureEvent{
		Type:      raw.Type,
		Timestamp: raw.Timestamp,
		Target:    normalizeTarget(raw.Target),
	}

	switch raw.Type {
	case models.EventKeyDown, models.EventKeyUp:
		ev.Key = &models.KeyData{
			Key:   raw.Key,
			Code:  raw.Code,
			Ctrl:  raw.Ctrl,
			Shift: raw.Shift,
			Alt:   raw.Alt,
			Meta:  raw.Meta,
		}
		if raw.Type == models.EventKeyDown {
			ev.Key.Repeat = raw.Repeat
		}

	case models.EventMouseMove:
		if !c.moveGate.Allow() {
			return
		}
		ev.Move = &models.MoveData{
			X:               raw.X,
			Y:               raw.Y,
			ViewportW:       raw.ViewportW,
			ViewportH:       raw.ViewportH,
			SinceLastMoveMS: c.sinceLastMove(raw.Timestamp),
		}

	case models.EventMouseDown, models.EventMouseUp, models.EventClick:
		ev.Button = &models.ButtonData{
			Button: raw.Button,
			X:      raw.X,
			Y:      raw.Y,
		}

	case models.EventScroll:
		if !c.scrollGate.Allow() {
			return
		}
		ev.Scroll = &models.ScrollData{
			ScrollX:           raw.ScrollX,
			ScrollY:           raw.ScrollY,
			ViewportW:         raw.ViewportW,
			ViewportH:         raw.ViewportH,
			DocW:              raw.DocW,
			DocH:              raw.DocH,
			SinceLastScrollMS: c.sinceLastScroll(raw.Timestamp),
		}
	}

	c.recorder.Record(ev)
}

// sinceLastMove returns the milliseconds since the previous forwarded move,
// 0 when there is none, then records ts as the new last move
func (c *Capturer) sinceLastMove(ts int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var delta int64
	if c.lastMoveTS != nil && ts > *c.lastMoveTS {
		delta = ts - *c.lastMoveTS
	}
	c.lastMoveTS = &ts
	return delta
}

func (c *Capturer) sinceLastScroll(ts int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var delta int64
	if c.lastScrollTS != nil && ts > *c.lastScrollTS {
		delta = ts - *c.lastScrollTS
	}
	c.lastScrollTS = &ts
	return delta
}

// normalizeTarget snapshots the originating element by copy. A missing
// element is recorded as nil; text content is truncated so payloads stay
// bounded no matter what the page contains.
func normalizeTarget(raw *models.RawTarget) *models.Target {
	if raw == nil {
		return nil
	}

	t := &models.Target{
		Tag:  raw.Tag,
		ID:   raw.ID,
		Name: raw.Name,
		Type: raw.Type,
		Text: truncate(raw.Text, models.MaxTargetTextLen),
	}
	if len(raw.Classes) > 0 {
		t.Classes = make([]string, len(raw.Classes))
		copy(t.Classes, raw.Classes)
	}
	if raw.Value != nil {
		v := *raw.Value
		t.Value = &v
	}
	return t
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
