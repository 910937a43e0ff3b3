// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package uvloop

import (
	"math"
	"time"
)

// TimerCallback is invoked on the loop goroutine when a timer expires.
type TimerCallback func()

// Timer fires a callback once a monotonic deadline passes, optionally
// re-arming itself on a repeat interval.
//
// Expired timers run in deadline order; equal deadlines run in the order
// the timers were started. A repeating timer whose callback overruns the
// interval does not replay the missed periods: its next expiry is never
// set earlier than the loop's current time, so the backlog collapses
// into at most one immediate extra firing before the interval resumes.
type Timer struct {
	handle
	heap    heapNode[*Timer]
	cb      TimerCallback
	timeout int64 // absolute expiry, loop clock ns
	repeat  int64 // ns, 0 = one-shot
	startID uint64
}

// NewTimer creates a stopped timer bound to the loop.
func NewTimer(l *Loop) *Timer {
	t := &Timer{}
	t.heap.item = t
	t.handle.init(l, HandleTimer, func() { t.Stop() })
	return t
}

func timerLess(a, b *Timer) bool {
	if a.timeout < b.timeout {
		return true
	}
	if b.timeout < a.timeout {
		return false
	}
	return a.startID < b.startID
}

// Start arms the timer to fire cb after timeout. A repeat > 0 re-arms it
// every repeat thereafter. Starting an armed timer re-arms it.
func (t *Timer) Start(cb TimerCallback, timeout, repeat time.Duration) error {
	if cb == nil {
		return ErrArgument
	}
	if t.IsClosing() {
		return ErrHandleClosing
	}
	if timeout < 0 {
		timeout = 0
	}
	if repeat < 0 {
		repeat = 0
	}
	if t.IsActive() {
		t.Stop()
	}

	l := t.loop
	clamped := l.now + int64(timeout)
	if clamped < l.now { // overflow
		clamped = math.MaxInt64
	}

	t.cb = cb
	t.timeout = clamped
	t.repeat = int64(repeat)
	t.arm()
	return nil
}

// arm inserts the timer into the heap with a fresh ordering sequence and
// marks the handle active.
func (t *Timer) arm() {
	l := t.loop
	l.timerCounter++
	t.startID = l.timerCounter
	l.timerHeap.insert(&t.heap, timerLess)
	t.start()
}

// Stop disarms the timer. Stopping a stopped timer is a no-op.
func (t *Timer) Stop() {
	if !t.IsActive() {
		return
	}
	t.loop.timerHeap.remove(&t.heap, timerLess)
	t.stop()
}

// Again restarts a repeating timer as if it had just fired: the next
// expiry is one repeat interval from now. Fails with ErrNoRepeat on a
// one-shot timer and ErrNotActive on a stopped one.
func (t *Timer) Again() error {
	if t.IsClosing() {
		return ErrHandleClosing
	}
	if !t.IsActive() {
		return ErrNotActive
	}
	if t.repeat == 0 {
		return ErrNoRepeat
	}
	t.Stop()
	t.timeout = t.loop.now + t.repeat
	t.arm()
	return nil
}

// Repeat returns the repeat interval.
func (t *Timer) Repeat() time.Duration { return time.Duration(t.repeat) }

// SetRepeat changes the repeat interval used the next time the timer
// re-arms. It does not affect the currently scheduled expiry.
func (t *Timer) SetRepeat(repeat time.Duration) {
	if repeat < 0 {
		repeat = 0
	}
	t.repeat = int64(repeat)
}

// DueIn returns how long until the timer fires, zero if it is overdue,
// and a negative duration if it is not armed.
func (t *Timer) DueIn() time.Duration {
	if !t.IsActive() {
		return -1
	}
	d := t.timeout - t.loop.now
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// runTimers fires every timer whose deadline is at or before the cached
// loop time. Repeating timers re-arm before their callback runs, so the
// callback can Stop or re-Start them freely.
func (l *Loop) runTimers() {
	for {
		n := l.timerHeap.min()
		if n == nil {
			return
		}
		t := n.item
		if t.timeout > l.now {
			return
		}

		t.Stop()
		if t.repeat != 0 {
			// Catch up by whole periods: a stalled callback collapses
			// missed firings instead of replaying them.
			next := t.timeout + t.repeat
			if next < l.now {
				next = l.now
			}
			t.timeout = next
			t.arm()
		}
		t.cb()
	}
}

// nextTimeout converts the earliest deadline to a poll timeout in
// milliseconds, rounded up. -1 means no timers: block indefinitely.
func (l *Loop) nextTimeout() int {
	n := l.timerHeap.min()
	if n == nil {
		return -1
	}
	diff := n.item.timeout - l.now
	if diff <= 0 {
		return 0
	}
	ms := (diff + int64(time.Millisecond) - 1) / int64(time.Millisecond)
	if ms > math.MaxInt32 {
		ms = math.MaxInt32
	}
	return int(ms)
}
