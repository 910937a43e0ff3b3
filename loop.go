package uvloop

import (
	"github.com/joeycumines/logiface"
)

// RunMode selects how much work one call to Run performs.
type RunMode int

const (
	// RunDefault iterates until no active handles, requests, or closing
	// handles remain, or Stop is called.
	RunDefault RunMode = iota
	// RunOnce performs a single iteration, blocking in poll.
	RunOnce
	// RunNoWait performs a single iteration with a non-blocking poll.
	RunNoWait
)

// Loop multiplexes readiness notifications, timers, deferred work, and
// cross-thread signals behind one single-threaded callback model.
//
// All methods except Async.Send must be called on the goroutine that
// calls Run; callbacks always execute there. The loop holds non-owning
// references to its handles: callers allocate them, callers free them
// after their close callback has fired.
type Loop struct {
	// Prevent copying
	_ [0]func()

	poller poller

	// Dense fd -> watcher table, grown to cover the largest observed fd,
	// plus the count of registered descriptors.
	watchers []*ioWatcher
	nfds     int

	// Watchers whose kernel registration awaits reconciliation.
	watcherQueue queue[*ioWatcher]

	// Watchers with artificially fed events (deferred callbacks).
	pendingQueue queue[*ioWatcher]

	timerHeap    minHeap[*Timer]
	timerCounter uint64

	idleHandles    queue[*loopWatcher]
	prepareHandles queue[*loopWatcher]
	checkHandles   queue[*loopWatcher]

	// Handles whose Close was requested. Incoming closes collect in
	// closingHandles; the top of each iteration moves them to
	// closingReady, whose callbacks the close phase then delivers. The
	// two-queue split is what defers a close requested mid-iteration to
	// the close phase of the next one.
	closingHandles queue[*handle]
	closingReady   queue[*handle]

	activeHandles int
	activeReqs    int

	// Cross-thread signaling (lazily initialized).
	asyncFd      int
	asyncWatcher ioWatcher
	asyncHandles queue[*Async]

	wq *workQueue

	now      int64 // cached monotonic clock, ns
	stopFlag bool
	closed   bool

	logger *logiface.Logger[logiface.Event]
}

// New creates an event loop. The backend descriptor is opened
// close-on-exec; failure to obtain one is the only error path.
func New(opts ...LoopOption) (*Loop, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}

	l := &Loop{
		asyncFd: -1,
		logger:  cfg.logger,
	}
	l.watcherQueue.init()
	l.pendingQueue.init()
	l.idleHandles.init()
	l.prepareHandles.init()
	l.checkHandles.init()
	l.closingHandles.init()
	l.closingReady.init()
	l.asyncHandles.init()
	l.wq = newWorkQueue(cfg.workQueueSize)

	if err := l.poller.init(); err != nil {
		return nil, err
	}

	l.updateTime()
	return l, nil
}

// Now returns the loop's cached monotonic time in nanoseconds. It is
// refreshed once per iteration and after every poll, never mid-phase, so
// every callback of one phase observes the same instant.
func (l *Loop) Now() int64 { return l.now }

// UpdateTime refreshes the cached monotonic time immediately. Useful
// after a long-running stretch of user code outside any callback.
func (l *Loop) UpdateTime() { l.updateTime() }

func (l *Loop) updateTime() {
	l.now = hrtime()
}

// Alive reports whether the loop still has work: active handles, active
// requests, or handles awaiting their close callback.
func (l *Loop) Alive() bool {
	return l.activeHandles > 0 || l.activeReqs > 0 ||
		!l.closingHandles.empty() || !l.closingReady.empty()
}

// Stop makes the current Run return after finishing its iteration.
// Called outside Run, it makes the next Run return without running an
// iteration. Idempotent; the flag clears when Run exits.
func (l *Loop) Stop() {
	l.stopFlag = true
}

// backendTimeout decides how long poll may sleep: zero whenever there is
// work that must run without delay, otherwise until the next timer.
func (l *Loop) backendTimeout() int {
	if l.stopFlag {
		return 0
	}
	if l.activeHandles == 0 && l.activeReqs == 0 {
		return 0
	}
	if !l.idleHandles.empty() {
		return 0
	}
	if !l.pendingQueue.empty() {
		return 0
	}
	if !l.closingHandles.empty() || !l.closingReady.empty() {
		return 0
	}
	return l.nextTimeout()
}

// Run drives the loop in the given mode and returns non-zero iff work
// remains when it exits. RunDefault blocks until the loop dies or Stop
// is called; RunOnce and RunNoWait perform one iteration.
func (l *Loop) Run(mode RunMode) int {
	alive := l.Alive()
	if !alive {
		l.updateTime()
	}

	for alive && !l.stopFlag {
		l.closingHandles.moveTo(&l.closingReady)
		l.updateTime()
		l.runTimers()
		ranPending := l.runPending()
		l.runIdle()
		l.runPrepare()

		timeout := 0
		if (mode == RunOnce && !ranPending) || mode == RunDefault {
			timeout = l.backendTimeout()
		}
		l.pollIO(timeout)

		l.runCheck()
		l.runClosingHandles()

		if mode == RunOnce {
			// Poll may have slept past a deadline; deliver the timer now
			// rather than making the caller spin on Run.
			l.updateTime()
			l.runTimers()
		}

		alive = l.Alive()
		if mode != RunDefault {
			break
		}
	}

	if l.stopFlag {
		l.stopFlag = false
	}

	if alive {
		return 1
	}
	return 0
}

// Close releases the loop's kernel resources. Every handle must have
// been closed (and its close callback delivered) first; otherwise
// ErrBusy is returned and nothing happens.
func (l *Loop) Close() error {
	if l.closed {
		return ErrLoopClosed
	}
	if l.Alive() {
		return ErrBusy
	}
	l.closed = true

	if l.asyncFd >= 0 {
		l.ioClose(&l.asyncWatcher)
		_ = closeWakeFd(l.asyncFd)
		l.asyncFd = -1
	}
	return l.poller.close()
}
