// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package uvloop

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// AfterWorkCallback receives the work function's result on the loop
// goroutine.
type AfterWorkCallback func(err error)

// workReq is a one-shot request: work on a background goroutine, then
// the after callback back on the loop goroutine. It counts against the
// loop's active requests from submission until after has been invoked,
// keeping the loop alive for the duration.
type workReq struct {
	work  func() error
	after AfterWorkCallback
	err   error
}

// workQueue bounds the background pool and carries completions back to
// the loop. Workers never touch loop state; they append under the mutex
// and kick the wake descriptor.
type workQueue struct {
	mu      sync.Mutex
	done    []*workReq
	sem     *semaphore.Weighted
	pending atomic.Uint32 // wakeup dedup, same scheme as Async.Send
}

func defaultWorkQueueSize() int64 {
	n := int64(4 * runtime.GOMAXPROCS(0))
	if n > 128 {
		n = 128
	}
	return n
}

func newWorkQueue(size int64) *workQueue {
	if size < 1 {
		size = defaultWorkQueueSize()
	}
	return &workQueue{sem: semaphore.NewWeighted(size)}
}

// QueueWork submits work to the background pool. work runs off-loop,
// bounded by the queue size; after always runs on the loop goroutine,
// with whatever error work returned (a panic in work surfaces as an
// error rather than killing the process). Must be called on the loop
// goroutine.
func (l *Loop) QueueWork(work func() error, after AfterWorkCallback) error {
	if work == nil || after == nil {
		return ErrArgument
	}
	if err := l.asyncStart(); err != nil {
		return err
	}

	req := &workReq{work: work, after: after}
	l.activeReqs++

	wq := l.wq
	fd := l.asyncFd
	go func() {
		if err := wq.sem.Acquire(context.Background(), 1); err != nil {
			req.err = err
		} else {
			req.err = l.runWork(req.work)
			wq.sem.Release(1)
		}

		wq.mu.Lock()
		wq.done = append(wq.done, req)
		wq.mu.Unlock()

		if wq.pending.CompareAndSwap(0, 1) {
			wakeWrite(fd)
		}
	}()
	return nil
}

func (l *Loop) runWork(work func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("uvloop: work panicked: %v", r)
			l.logError("queued work panicked", err)
		}
	}()
	return work()
}

// drainWorkCompletions delivers finished requests. Runs on the loop
// goroutine as part of async dispatch.
func (l *Loop) drainWorkCompletions() {
	wq := l.wq
	wq.mu.Lock()
	done := wq.done
	wq.done = nil
	wq.pending.Store(0)
	wq.mu.Unlock()

	for _, req := range done {
		l.activeReqs--
		req.after(req.err)
	}
}
