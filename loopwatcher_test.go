package uvloop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseOrderWithinIteration(t *testing.T) {
	l := newTestLoop(t)

	var order []string
	record := func(name string) WatcherCallback {
		return func() { order = append(order, name) }
	}

	check := NewCheck(l)
	require.NoError(t, check.Start(record("check")))
	prepare := NewPrepare(l)
	require.NoError(t, prepare.Start(record("prepare")))
	idle := NewIdle(l)
	require.NoError(t, idle.Start(record("idle")))

	timer := NewTimer(l)
	require.NoError(t, timer.Start(func() { order = append(order, "timer") }, 0, 0))

	l.Run(RunOnce)

	require.Equal(t, []string{"timer", "idle", "prepare", "check"}, order)

	idle.Stop()
	prepare.Stop()
	check.Stop()
}

func TestActiveIdleKeepsPollFromBlocking(t *testing.T) {
	l := newTestLoop(t)

	idle := NewIdle(l)
	require.NoError(t, idle.Start(func() {}))

	timer := NewTimer(l)
	require.NoError(t, timer.Start(func() {}, 10*time.Second, 0))

	start := time.Now()
	l.Run(RunOnce)
	assert.Less(t, time.Since(start), time.Second,
		"an active idle watcher must force a non-blocking poll")

	idle.Stop()
	timer.Stop()
}

func TestWatcherStartDuringCallbackJoinsNextPass(t *testing.T) {
	l := newTestLoop(t)

	var second *Idle
	secondRuns := 0
	firstRuns := 0

	first := NewIdle(l)
	require.NoError(t, first.Start(func() {
		firstRuns++
		if firstRuns == 1 {
			require.NoError(t, second.Start(func() { secondRuns++ }))
		}
		if firstRuns == 2 {
			l.Stop()
		}
	}))
	second = NewIdle(l)

	l.Run(RunDefault)

	assert.Equal(t, 2, firstRuns)
	assert.Equal(t, 1, secondRuns, "watcher started mid-phase runs from the next pass on")

	first.Stop()
	second.Stop()
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	l := newTestLoop(t)

	prepare := NewPrepare(l)
	prepare.Stop() // never started
	require.NoError(t, prepare.Start(func() {}))
	prepare.Stop()
	prepare.Stop()
	assert.False(t, prepare.IsActive())
	assert.False(t, l.Alive())
}

func TestWatcherStartNilCallback(t *testing.T) {
	l := newTestLoop(t)

	idle := NewIdle(l)
	require.ErrorIs(t, idle.Start(nil), ErrArgument)

	idle.Close(nil)
	require.ErrorIs(t, idle.Start(func() {}), ErrHandleClosing)
	l.Run(RunDefault)
}

func TestWatcherStopDuringPhaseSkipsCallback(t *testing.T) {
	l := newTestLoop(t)

	var aRuns, bRuns int
	var b *Check

	a := NewCheck(l)
	require.NoError(t, a.Start(func() {
		aRuns++
		b.Stop()
	}))
	b = NewCheck(l)
	require.NoError(t, b.Start(func() { bRuns++ }))

	l.Run(RunNoWait)

	assert.Equal(t, 1, aRuns)
	assert.Equal(t, 0, bRuns, "watcher stopped earlier in the same phase must not fire")

	a.Stop()
}
