// Package buffer holds captured events between flushes, partitioned by
// capture family. A Buffer is not self-locking: it is owned exclusively by
// the monitor, which serializes all access.
package buffer

import (
	"github.com/Shanaa-yasmin/Cognivex/internal/models"
)

// Buffer is three ordered append-only event sequences
type Buffer struct {
	keystrokes []models.CaptureEvent
	pointer    []models.CaptureEvent
	scroll     []models.CaptureEvent
}

// Snapshot is a detached copy of the buffer contents at a point in time
type Snapshot struct {
	Keystrokes []models.CaptureEvent
	Pointer    []models.CaptureEvent
	Scroll     []models.CaptureEvent
}

// New creates an empty buffer
func New() *Buffer {
	return &Buffer{}
}

// Append adds an event to the sequence of its family, preserving insertion order
func (b *Buffer) Append(ev models.CaptureEvent) {
	switch ev.Family() {
	case models.FamilyKeystroke:
		b.keystrokes = append(b.keystrokes, ev)
	case models.FamilyScroll:
		b.scroll = append(b.scroll, ev)
	default:
		b.pointer = append(b.pointer, ev)
	}
}

// Len returns the total event count across all three sequences
func (b *Buffer) Len() int {
	return len(b.keystrokes) + len(b.pointer) + len(b.scroll)
}

// Counts returns the per-family event counts
func (b *Buffer) Counts() (keystrokes, pointer, scroll int) {
	return len(b.keystrokes), len(b.pointer), len(b.scroll)
}

// Snapshot copies all three sequences into fresh slices. The buffer is
// left unchanged.
func (b *Buffer) Snapshot() Snapshot {
	return Snapshot{
		Keystrokes: copyEvents(b.keystrokes),
		Pointer:    copyEvents(b.pointer),
		Scroll:     copyEvents(b.scroll),
	}
}

// Clear empties all three sequences atomically
func (b *Buffer) Clear() {
	b.keystrokes = nil
	b.pointer = nil
	b.scroll = nil
}

// Restore re-merges a detached snapshot ahead of events captured since the
// snapshot was taken, preserving insertion order within each family. Used
// when a send fails and the detached batch must not be dropped.
func (b *Buffer) Restore(s Snapshot) {
	b.keystrokes = append(copyEvents(s.Keystrokes), b.keystrokes...)
	b.pointer = append(copyEvents(s.Pointer), b.pointer...)
	b.scroll = append(copyEvents(s.Scroll), b.scroll...)
}

// TrimOldest removes up to n events from the front of the buffer, oldest
// first across families by timestamp, and returns them as a snapshot.
// Used to enforce the buffer cap during sustained sink outages.
func (b *Buffer) TrimOldest(n int) Snapshot {
	var out Snapshot
	for i := 0; i < n && b.Len() > 0; i++ {
		switch oldestFamily(b) {
		case models.FamilyKeystroke:
			out.Keystrokes = append(out.Keystrokes, b.keystrokes[0])
			b.keystrokes = b.keystrokes[1:]
		case models.FamilyScroll:
			out.Scroll = append(out.Scroll, b.scroll[0])
			b.scroll = b.scroll[1:]
		default:
			out.Pointer = append(out.Pointer, b.pointer[0])
			b.pointer = b.pointer[1:]
		}
	}
	return out
}

// Len returns the total event count held by the snapshot
func (s Snapshot) Len() int {
	return len(s.Keystrokes) + len(s.Pointer) + len(s.Scroll)
}

func oldestFamily(b *Buffer) models.Family {
	family := models.FamilyPointer
	best := int64(-1)
	if len(b.keystrokes) > 0 {
		family, best = models.FamilyKeystroke, b.keystrokes[0].Timestamp
	}
	if len(b.pointer) > 0 && (best < 0 || b.pointer[0].Timestamp < best) {
		family, best = models.FamilyPointer, b.pointer[0].Timestamp
	}
	if len(b.scroll) > 0 && (best < 0 || b.scroll[0].Timestamp < best) {
		family = models.FamilyScroll
	}
	return family
}

func copyEvents(in []models.CaptureEvent) []models.CaptureEvent {
	if len(in) == 0 {
		return nil
	}
	out := make([]models.CaptureEvent, len(in))
	copy(out, in)
	return out
}
