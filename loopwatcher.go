package uvloop

// Idle, Prepare, and Check are the phase watchers: callbacks pinned to a
// fixed point of every iteration rather than to an external event. They
// share one implementation; only the registry they sit on differs.
//
//   - Idle runs after pending callbacks, before prepare. While any idle
//     watcher is active the poll phase does not block.
//   - Prepare runs immediately before poll.
//   - Check runs immediately after poll.

// WatcherCallback is invoked once per loop iteration while the watcher
// is active.
type WatcherCallback func()

type loopWatcher struct {
	handle
	node queueNode[*loopWatcher]
	cb   WatcherCallback
	reg  *queue[*loopWatcher]
}

func (lw *loopWatcher) initLoopWatcher(l *Loop, typ HandleType, reg *queue[*loopWatcher]) {
	lw.node.item = lw
	lw.reg = reg
	lw.handle.init(l, typ, func() { lw.stopWatcher() })
}

func (lw *loopWatcher) startWatcher(cb WatcherCallback) error {
	if cb == nil {
		return ErrArgument
	}
	if lw.IsClosing() {
		return ErrHandleClosing
	}
	lw.cb = cb
	if lw.IsActive() {
		return nil
	}
	lw.reg.pushBack(&lw.node)
	lw.start()
	return nil
}

func (lw *loopWatcher) stopWatcher() {
	if !lw.IsActive() {
		return
	}
	lw.node.unlink()
	lw.stop()
}

// runRegistry drives one phase: each active watcher is moved back to the
// live registry before its callback runs, so a watcher started from a
// callback joins the next pass rather than the current one.
func runRegistry(reg *queue[*loopWatcher]) {
	var snapshot queue[*loopWatcher]
	reg.moveTo(&snapshot)
	for {
		n := snapshot.popFront()
		if n == nil {
			return
		}
		lw := n.item
		reg.pushBack(n)
		lw.cb()
	}
}

func (l *Loop) runIdle()    { runRegistry(&l.idleHandles) }
func (l *Loop) runPrepare() { runRegistry(&l.prepareHandles) }
func (l *Loop) runCheck()   { runRegistry(&l.checkHandles) }

// Idle is a watcher that runs every iteration and keeps poll from
// blocking while active.
type Idle struct{ loopWatcher }

// NewIdle creates a stopped idle watcher bound to the loop.
func NewIdle(l *Loop) *Idle {
	i := &Idle{}
	i.initLoopWatcher(l, HandleIdle, &l.idleHandles)
	return i
}

// Start activates the watcher with the given callback.
func (i *Idle) Start(cb WatcherCallback) error { return i.startWatcher(cb) }

// Stop deactivates the watcher. No-op if stopped.
func (i *Idle) Stop() { i.stopWatcher() }

// Prepare is a watcher that runs right before the loop blocks for I/O.
type Prepare struct{ loopWatcher }

// NewPrepare creates a stopped prepare watcher bound to the loop.
func NewPrepare(l *Loop) *Prepare {
	p := &Prepare{}
	p.initLoopWatcher(l, HandlePrepare, &l.prepareHandles)
	return p
}

// Start activates the watcher with the given callback.
func (p *Prepare) Start(cb WatcherCallback) error { return p.startWatcher(cb) }

// Stop deactivates the watcher. No-op if stopped.
func (p *Prepare) Stop() { p.stopWatcher() }

// Check is a watcher that runs right after the loop polled for I/O.
type Check struct{ loopWatcher }

// NewCheck creates a stopped check watcher bound to the loop.
func NewCheck(l *Loop) *Check {
	c := &Check{}
	c.initLoopWatcher(l, HandleCheck, &l.checkHandles)
	return c
}

// Start activates the watcher with the given callback.
func (c *Check) Start(cb WatcherCallback) error { return c.startWatcher(cb) }

// Stop deactivates the watcher. No-op if stopped.
func (c *Check) Stop() { c.stopWatcher() }
