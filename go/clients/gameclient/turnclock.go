package gameclient

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// TurnClock is the client-side countdown for the current turn. It mirrors
// the server deadline for UI display; the server remains the authority on
// expiry, the clock only lets the client concede proactively.
type TurnClock struct {
	clock clockwork.Clock

	mu       sync.Mutex
	deadline time.Time
	timer    clockwork.Timer
	done     chan struct{}
}

func NewTurnClock(clock clockwork.Clock) *TurnClock {
	return &TurnClock{clock: clock}
}

// Reset points the clock at a new deadline. onExpire fires once if the
// deadline passes before the next Reset or Stop.
func (t *TurnClock) Reset(deadline time.Time, onExpire func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	t.deadline = deadline

	wait := deadline.Sub(t.clock.Now())
	if wait < 0 {
		wait = 0
	}
	timer := t.clock.NewTimer(wait)
	done := make(chan struct{})
	t.timer = timer
	t.done = done

	go func() {
		select {
		case <-timer.Chan():
			if onExpire != nil {
				onExpire()
			}
		case <-done:
		}
	}()
}

// Stop halts the countdown without firing.
func (t *TurnClock) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	t.deadline = time.Time{}
}

// Remaining returns the time left on the clock, floored at zero.
func (t *TurnClock) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.deadline.IsZero() {
		return 0
	}
	remaining := t.deadline.Sub(t.clock.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (t *TurnClock) stopLocked() {
	if t.timer != nil {
		t.timer.Stop()
		close(t.done)
		t.timer = nil
		t.done = nil
	}
}
