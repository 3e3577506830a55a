package throttle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock advances only when told to
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestFirstCallPasses(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	th := New(100 * time.Millisecond).WithClock(clock.now)

	assert.True(t, th.Allow())
}

func TestCallsInsideWindowDropped(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	th := New(100 * time.Millisecond).WithClock(clock.now)

	forwarded := 0
	for i := 0; i < 10; i++ {
		if th.Allow() {
			forwarded++
		}
		clock.advance(10 * time.Millisecond)
	}

	// 10 events fired 10ms apart inside a 100ms window: only the first passes
	assert.Equal(t, 1, forwarded)
}

func TestWindowReopensAfterInterval(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	th := New(100 * time.Millisecond).WithClock(clock.now)

	assert.True(t, th.Allow())
	clock.advance(99 * time.Millisecond)
	assert.False(t, th.Allow())
	clock.advance(1 * time.Millisecond)
	assert.True(t, th.Allow())
}

func TestDroppedCallsAreNotReplayed(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}

	var got []int
	fn := func(v int) { got = append(got, v) }
	th := New(100 * time.Millisecond).WithClock(clock.now)
	wrapped := func(v int) {
		if th.Allow() {
			fn(v)
		}
	}

	wrapped(1)
	clock.advance(50 * time.Millisecond)
	wrapped(2)
	clock.advance(60 * time.Millisecond)
	wrapped(3)

	// 2 was dropped, never queued or coalesced into a later delivery
	assert.Equal(t, []int{1, 3}, got)
}

func TestWrapForwardsArguments(t *testing.T) {
	var got string
	wrapped := Wrap(time.Hour, func(s string) { got = s })

	wrapped("first")
	wrapped("second")

	assert.Equal(t, "first", got)
}
