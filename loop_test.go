package uvloop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithoutWorkReturnsImmediately(t *testing.T) {
	l := newTestLoop(t)

	start := time.Now()
	rc := l.Run(RunDefault)
	require.Zero(t, rc)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.False(t, l.Alive())
}

func TestRunNoWaitDoesNotBlock(t *testing.T) {
	l := newTestLoop(t)

	timer := NewTimer(l)
	require.NoError(t, timer.Start(func() {}, time.Hour, 0))

	start := time.Now()
	rc := l.Run(RunNoWait)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, 1, rc, "work remains, Run must say so")

	timer.Stop()
}

func TestStopExitsWithWorkRemaining(t *testing.T) {
	l := newTestLoop(t)

	runs := 0
	idle := NewIdle(l)
	require.NoError(t, idle.Start(func() {
		runs++
		if runs == 3 {
			l.Stop()
		}
	}))

	rc := l.Run(RunDefault)
	assert.Equal(t, 3, runs)
	assert.Equal(t, 1, rc, "idle watcher still active at exit")

	// The stop flag clears on exit; a fresh Run keeps going.
	idle.Stop()
	assert.Zero(t, l.Run(RunDefault))
}

func TestCloseDuringCallbackDeliversNextIteration(t *testing.T) {
	l := newTestLoop(t)

	var order []string
	idle := NewIdle(l)
	require.NoError(t, idle.Start(func() {}))

	timer := NewTimer(l)
	require.NoError(t, timer.Start(func() {
		timer.Close(func() { order = append(order, "timer") })
		idle.Close(func() { order = append(order, "idle") })
		order = append(order, "closing requested")
	}, 0, 0))

	rc := l.Run(RunDefault)
	require.Zero(t, rc)
	require.Equal(t, []string{"closing requested", "timer", "idle"}, order,
		"close callbacks must come after the requesting callback, in FIFO order")

	assert.True(t, timer.IsClosing())
	assert.True(t, idle.IsClosing())
}

func TestCloseCallbackDeferredAcrossSingleIterations(t *testing.T) {
	l := newTestLoop(t)

	closed := false
	timer := NewTimer(l)
	require.NoError(t, timer.Start(func() {
		timer.Close(func() { closed = true })
	}, 0, 0))

	// The iteration that ran the timer callback must not also run the
	// close callback.
	rc := l.Run(RunOnce)
	assert.Equal(t, 1, rc, "close still pending")
	assert.False(t, closed)

	rc = l.Run(RunOnce)
	assert.Zero(t, rc)
	assert.True(t, closed)
}

func TestLoopCloseBusy(t *testing.T) {
	l, err := New()
	require.NoError(t, err)

	timer := NewTimer(l)
	require.NoError(t, timer.Start(func() {}, time.Hour, 0))

	require.ErrorIs(t, l.Close(), ErrBusy)

	timer.Close(nil)
	require.ErrorIs(t, l.Close(), ErrBusy, "close callback not yet delivered")

	l.Run(RunDefault)
	require.NoError(t, l.Close())
	require.ErrorIs(t, l.Close(), ErrLoopClosed)
}

func TestCloseClosedHandlePanics(t *testing.T) {
	l := newTestLoop(t)

	timer := NewTimer(l)
	timer.Close(nil)
	assert.Panics(t, func() { timer.Close(nil) })
	l.Run(RunDefault)
}

func TestHandleAccessors(t *testing.T) {
	l := newTestLoop(t)

	timer := NewTimer(l)
	assert.Same(t, l, timer.Loop())
	assert.Equal(t, HandleTimer, timer.Type())
	assert.Equal(t, "Timer", timer.Type().String())
	assert.False(t, timer.IsActive())
	assert.False(t, timer.IsClosing())

	require.NoError(t, timer.Start(func() {}, time.Hour, 0))
	assert.True(t, timer.IsActive())

	timer.Close(nil)
	assert.False(t, timer.IsActive())
	assert.True(t, timer.IsClosing())
	l.Run(RunDefault)
}

func TestStoppedHandleNoLongerCountsAsWork(t *testing.T) {
	l := newTestLoop(t)

	timer := NewTimer(l)
	require.NoError(t, timer.Start(func() {}, time.Hour, 0))
	require.True(t, l.Alive())
	timer.Stop()
	require.False(t, l.Alive())
}

func TestNowAdvancesAcrossIterations(t *testing.T) {
	l := newTestLoop(t)

	var samples []int64
	timer := NewTimer(l)
	require.NoError(t, timer.Start(func() {
		samples = append(samples, l.Now())
		if len(samples) == 3 {
			timer.Stop()
		}
	}, time.Millisecond, time.Millisecond))

	l.Run(RunDefault)
	require.Len(t, samples, 3)
	for i := 1; i < len(samples); i++ {
		assert.GreaterOrEqual(t, samples[i], samples[i-1], "cached time went backwards")
	}
}
