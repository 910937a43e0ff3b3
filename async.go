// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package uvloop

import (
	"sync/atomic"
)

// AsyncCallback runs on the loop goroutine after one or more Sends.
type AsyncCallback func()

// Async is the cross-thread wakeup primitive: the one part of the API
// that may be touched from any goroutine. Send wakes the loop and
// schedules the callback; sends that land before the callback has run
// coalesce into a single invocation.
type Async struct {
	handle
	node    queueNode[*Async]
	cb      AsyncCallback
	pending atomic.Uint32
}

// NewAsync creates an async handle. The handle is active from birth and
// keeps the loop alive until closed.
func NewAsync(l *Loop, cb AsyncCallback) (*Async, error) {
	if cb == nil {
		return nil, ErrArgument
	}
	if err := l.asyncStart(); err != nil {
		return nil, err
	}

	a := &Async{cb: cb}
	a.node.item = a
	a.handle.init(l, HandleAsync, func() {
		a.node.unlink()
		a.handle.stop()
	})
	l.asyncHandles.pushBack(&a.node)
	a.start()
	return a, nil
}

// Send schedules the callback on the loop goroutine. Safe to call from
// any goroutine. Returns ErrHandleClosing after Close.
func (a *Async) Send() error {
	if a.IsClosing() {
		return ErrHandleClosing
	}
	if a.pending.CompareAndSwap(0, 1) {
		wakeWrite(a.loop.asyncFd)
	}
	return nil
}

// asyncStart lazily opens the loop's eventfd and registers it with the
// multiplexer. Until something needs cross-thread wakeups the loop has
// no reason to carry the descriptor.
func (l *Loop) asyncStart() error {
	if l.closed {
		return ErrLoopClosed
	}
	if l.asyncFd >= 0 {
		return nil
	}
	fd, err := createWakeFd()
	if err != nil {
		return err
	}
	l.asyncFd = fd
	l.asyncWatcher.initWatcher(func(l *Loop, _ *ioWatcher, _ IOEvents) {
		l.asyncIO()
	}, fd)
	l.ioStart(&l.asyncWatcher, EventRead)
	return nil
}

// asyncIO drains the eventfd and dispatches every async handle with a
// pending send, then hands completed background work to its callbacks.
func (l *Loop) asyncIO() {
	wakeDrain(l.asyncFd)

	var snapshot queue[*Async]
	l.asyncHandles.moveTo(&snapshot)
	for {
		n := snapshot.popFront()
		if n == nil {
			break
		}
		a := n.item
		l.asyncHandles.pushBack(n)
		if a.pending.CompareAndSwap(1, 0) && !a.IsClosing() {
			a.cb()
		}
	}

	l.drainWorkCompletions()
}
