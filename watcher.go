package uvloop

// IOEvents represents the type of I/O events to monitor or deliver.
type IOEvents uint32

const (
	// EventRead indicates the file descriptor is ready for reading.
	EventRead IOEvents = 1 << iota
	// EventWrite indicates the file descriptor is ready for writing.
	EventWrite
	// EventError indicates an error condition on the file descriptor.
	EventError
	// EventHangup indicates the peer closed its end of the connection.
	EventHangup
)

// ioCallback receives the readiness bits harvested for a watcher.
type ioCallback func(l *Loop, w *ioWatcher, events IOEvents)

// ioWatcher is the fd-observing block embedded in any handle that
// watches a descriptor. The kernel's view of the interest mask (events)
// trails the requested mask (pevents) until the watcher queue is
// reconciled at the top of the next poll.
//
// revents holds readiness the kernel reported but the watcher had no
// interest in at the time; with edge-triggered registration those bits
// would otherwise be lost, so they are replayed when interest widens.
type ioWatcher struct {
	cb      ioCallback
	fd      int
	events  IOEvents // interest mask the kernel has
	pevents IOEvents // interest mask most recently requested
	revents IOEvents // latent readiness, not yet delivered
	pflags  IOEvents // events to deliver from the pending phase
	et      bool     // edge-triggered registration
	watcher queueNode[*ioWatcher]
	pending queueNode[*ioWatcher]
}

func (w *ioWatcher) initWatcher(cb ioCallback, fd int) {
	w.cb = cb
	w.fd = fd
	w.watcher.item = w
	w.pending.item = w
}

// ioStart records interest in the given event bits and schedules the
// watcher for kernel reconciliation. Idempotent in (fd, mask). Must be
// called on the loop goroutine.
func (l *Loop) ioStart(w *ioWatcher, events IOEvents) {
	if events == 0 {
		panic("uvloop: ioStart with empty event mask")
	}
	if w.fd < 0 {
		panic("uvloop: ioStart on negative fd")
	}

	w.pevents |= events

	l.growWatchers(w.fd)
	switch prev := l.watchers[w.fd]; prev {
	case nil:
		l.watchers[w.fd] = w
		l.nfds++
	case w:
	default:
		// Two live watchers must never share a slot; the old one has to
		// fully stop before the fd (possibly dup2'd) can be re-watched.
		panic("uvloop: fd already claimed by another watcher")
	}

	if !w.watcher.queued() {
		l.watcherQueue.pushBack(&w.watcher)
	}
}

// ioStop withdraws interest in the given event bits. When the last bit
// clears, the watcher leaves the fd table and the kernel registration is
// dropped. A started-then-stopped watcher leaves table and kernel as
// they were before the start.
func (l *Loop) ioStop(w *ioWatcher, events IOEvents) {
	if w.fd < 0 {
		return
	}

	w.pevents &^= events
	if w.pevents != 0 {
		if !w.watcher.queued() {
			l.watcherQueue.pushBack(&w.watcher)
		}
		return
	}

	w.watcher.unlink()
	w.revents = 0
	if w.fd < len(l.watchers) && l.watchers[w.fd] == w {
		l.watchers[w.fd] = nil
		l.nfds--
	}
	if w.events != 0 {
		// Deregister eagerly; the fd may already be gone, in which case
		// the kernel dropped it for us.
		if err := l.poller.ctl(epollCtlDel, w.fd, 0); err != nil {
			l.logDebugFd("stale fd deregistration failed", w.fd)
		}
		w.events = 0
	}
}

// ioFeed queues an artificial event for delivery in the pending phase of
// the next iteration.
func (l *Loop) ioFeed(w *ioWatcher, events IOEvents) {
	w.pflags |= events
	if !w.pending.queued() {
		l.pendingQueue.pushBack(&w.pending)
	}
}

// ioClose tears a watcher fully down on behalf of its closing handle.
func (l *Loop) ioClose(w *ioWatcher) {
	l.ioStop(w, w.pevents)
	w.pending.unlink()
	w.pflags = 0
}

// growWatchers resizes the dense fd table to cover fd.
func (l *Loop) growWatchers(fd int) {
	if fd < len(l.watchers) {
		return
	}
	n := len(l.watchers)
	if n == 0 {
		n = 32
	}
	for n <= fd {
		n *= 2
	}
	watchers := make([]*ioWatcher, n)
	copy(watchers, l.watchers)
	l.watchers = watchers
}

// runPending delivers events queued via ioFeed. Watchers fed during the
// drain land on the live queue and wait for the next iteration.
func (l *Loop) runPending() bool {
	ran := false
	var snapshot queue[*ioWatcher]
	l.pendingQueue.moveTo(&snapshot)
	for {
		n := snapshot.popFront()
		if n == nil {
			return ran
		}
		w := n.item
		events := w.pflags
		w.pflags = 0
		w.cb(l, w, events)
		ran = true
	}
}

// reconcileWatchers flushes requested interest masks to the kernel. It
// runs at the top of every poll, before the loop blocks.
func (l *Loop) reconcileWatchers() {
	for {
		n := l.watcherQueue.popFront()
		if n == nil {
			return
		}
		w := n.item
		if w.pevents == 0 {
			panic("uvloop: queued watcher with empty interest mask")
		}

		if w.et && w.events != 0 {
			// Already registered edge-triggered for both directions;
			// widening or narrowing interest needs no syscall. Replay
			// latent readiness the new mask now covers.
			if latent := w.revents & w.pevents; latent != 0 {
				w.revents &^= latent
				l.ioFeed(w, latent)
			}
			w.events = w.pevents
			continue
		}

		op := epollCtlMod
		if w.events == 0 {
			op = epollCtlAdd
		}

		mask := w.pevents
		if w.et {
			// Edge-triggered watchers register both directions up front
			// so interest changes never re-enter the kernel.
			mask = EventRead | EventWrite
		}

		err := l.poller.ctl(op, w.fd, kernelBits(mask, w.et))
		if err != nil && op == epollCtlAdd && isEexist(err) {
			// The fd was registered before we saw it (dup2 onto a known
			// descriptor). Level-triggered interest can be modified in
			// place; the prior trigger mode of an edge-triggered watcher
			// is unknown, so re-register from scratch.
			if w.et {
				if err = l.poller.ctl(epollCtlDel, w.fd, 0); err == nil {
					err = l.poller.ctl(epollCtlAdd, w.fd, kernelBits(mask, w.et))
				}
			} else {
				err = l.poller.ctl(epollCtlMod, w.fd, kernelBits(mask, w.et))
			}
			l.logDebugFd("fd was already registered, reconciled", w.fd)
		}
		if err != nil {
			// A control failure here means the fd table and the kernel
			// have diverged; nothing sensible can continue.
			l.logCritical("epoll_ctl failed", err)
			panic("uvloop: epoll_ctl: " + err.Error())
		}

		w.events = w.pevents
	}
}
