package gameclient

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expireSignal() (func(), chan struct{}) {
	fired := make(chan struct{}, 1)
	return func() { fired <- struct{}{} }, fired
}

func assertFires(t *testing.T, fired chan struct{}) {
	t.Helper()
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("expected the turn clock to fire")
	}
}

func assertSilent(t *testing.T, fired chan struct{}) {
	t.Helper()
	select {
	case <-fired:
		t.Fatal("turn clock fired unexpectedly")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTurnClockFiresAtDeadline(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tc := NewTurnClock(clock)
	onExpire, fired := expireSignal()

	tc.Reset(clock.Now().Add(30*time.Second), onExpire)
	assert.Equal(t, 30*time.Second, tc.Remaining())

	clock.Advance(29 * time.Second)
	assertSilent(t, fired)
	assert.Equal(t, time.Second, tc.Remaining())

	clock.Advance(time.Second)
	assertFires(t, fired)
	assert.Equal(t, time.Duration(0), tc.Remaining())
}

func TestTurnClockResetRearms(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tc := NewTurnClock(clock)
	first, firstFired := expireSignal()
	second, secondFired := expireSignal()

	tc.Reset(clock.Now().Add(10*time.Second), first)
	tc.Reset(clock.Now().Add(30*time.Second), second)

	clock.Advance(15 * time.Second)
	assertSilent(t, firstFired)
	assertSilent(t, secondFired)

	clock.Advance(15 * time.Second)
	assertFires(t, secondFired)
	assertSilent(t, firstFired)
}

func TestTurnClockStopSuppressesExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tc := NewTurnClock(clock)
	onExpire, fired := expireSignal()

	tc.Reset(clock.Now().Add(10*time.Second), onExpire)
	tc.Stop()
	assert.Equal(t, time.Duration(0), tc.Remaining())

	clock.Advance(time.Minute)
	assertSilent(t, fired)
}

func TestTurnClockPastDeadlineFiresImmediately(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tc := NewTurnClock(clock)
	onExpire, fired := expireSignal()

	tc.Reset(clock.Now().Add(-time.Second), onExpire)
	require.Equal(t, time.Duration(0), tc.Remaining())
	clock.Advance(0)
	assertFires(t, fired)
}

func TestTurnClockStopWithoutResetIsSafe(t *testing.T) {
	tc := NewTurnClock(clockwork.NewFakeClock())
	tc.Stop()
	assert.Equal(t, time.Duration(0), tc.Remaining())
}
