package uvloop

import (
	"sync/atomic"
)

// HandleType tags the concrete type of a handle.
type HandleType uint8

const (
	HandleTimer HandleType = iota + 1
	HandleIdle
	HandlePrepare
	HandleCheck
	HandlePoll
	HandleAsync
)

// String returns a human-readable representation of the handle type.
func (t HandleType) String() string {
	switch t {
	case HandleTimer:
		return "Timer"
	case HandleIdle:
		return "Idle"
	case HandlePrepare:
		return "Prepare"
	case HandleCheck:
		return "Check"
	case HandlePoll:
		return "Poll"
	case HandleAsync:
		return "Async"
	default:
		return "Unknown"
	}
}

const (
	flagActive uint32 = 1 << iota
	flagClosing
	flagClosed
)

// CloseCallback is invoked during the close phase of the iteration after
// the one in which Close was called. Once it returns, the handle is dead
// and may be dropped.
type CloseCallback func()

// handle is the state every long-lived loop object embeds: a type tag,
// lifecycle flags, and the link into the loop's closing queue.
//
// Flags are mutated on the loop goroutine only. They are stored
// atomically so that the one legal cross-thread reader, Async.Send, can
// observe the closing bit without a race.
type handle struct {
	loop    *Loop
	stopFn  func() // type-specific deactivation, set at init
	closeCb CloseCallback
	closing queueNode[*handle]
	flags   atomic.Uint32
	typ     HandleType
}

func (h *handle) init(loop *Loop, typ HandleType, stopFn func()) {
	h.loop = loop
	h.typ = typ
	h.stopFn = stopFn
	h.closing.item = h
}

// Loop returns the loop the handle is registered against.
func (h *handle) Loop() *Loop { return h.loop }

// Type returns the handle's type tag.
func (h *handle) Type() HandleType { return h.typ }

// IsActive reports whether the handle has been started and not stopped
// or closed since.
func (h *handle) IsActive() bool {
	f := h.flags.Load()
	return f&flagActive != 0 && f&(flagClosing|flagClosed) == 0
}

// IsClosing reports whether Close has been called on the handle.
func (h *handle) IsClosing() bool {
	return h.flags.Load()&(flagClosing|flagClosed) != 0
}

// start marks the handle active, counting it toward the loop's live
// handle set. Idempotent.
func (h *handle) start() {
	f := h.flags.Load()
	if f&flagActive != 0 {
		return
	}
	h.flags.Store(f | flagActive)
	h.loop.activeHandles++
}

// stop is the inverse of start. Idempotent.
func (h *handle) stop() {
	f := h.flags.Load()
	if f&flagActive == 0 {
		return
	}
	h.flags.Store(f &^ flagActive)
	h.loop.activeHandles--
}

// Close requests destruction of the handle. The handle deactivates
// immediately; cb (which may be nil) fires during the close phase of the
// next loop iteration, after which the handle may be freed. Closing a
// handle twice is a programming error.
func (h *handle) Close(cb CloseCallback) {
	if h.IsClosing() {
		panic("uvloop: Close called on a closing handle")
	}
	if h.stopFn != nil {
		h.stopFn()
	}
	h.flags.Store(h.flags.Load() | flagClosing)
	h.closeCb = cb
	h.loop.closingHandles.pushBack(&h.closing)
}

// runClosingHandles delivers, in FIFO order, the close callbacks of
// handles whose Close predates this iteration. Closes requested during
// this iteration (including from within a close callback) sit in the
// incoming queue until the next iteration's snapshot.
func (l *Loop) runClosingHandles() {
	for {
		n := l.closingReady.popFront()
		if n == nil {
			return
		}
		h := n.item
		if h.flags.Load()&flagClosed != 0 {
			panic("uvloop: handle closed twice")
		}
		h.flags.Store(h.flags.Load() | flagClosed)
		if h.closeCb != nil {
			h.closeCb()
		}
	}
}
