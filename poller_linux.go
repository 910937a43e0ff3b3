//go:build linux

package uvloop

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"
)

// pollEventsMax bounds how many kernel events one wait may harvest.
const pollEventsMax = 1024

const (
	epollCtlAdd = unix.EPOLL_CTL_ADD
	epollCtlMod = unix.EPOLL_CTL_MOD
	epollCtlDel = unix.EPOLL_CTL_DEL
)

// poller wraps the kernel readiness interface: create, control, wait,
// close. It owns the backend descriptor and the event batch buffer;
// everything stateful about watchers lives on the loop.
type poller struct {
	epfd     int
	eventBuf [pollEventsMax]unix.EpollEvent
}

func (p *poller) init() error {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return wrapErrno("epoll_create1", err)
	}
	p.epfd = epfd
	return nil
}

func (p *poller) close() error {
	if p.epfd < 0 {
		return nil
	}
	err := unix.Close(p.epfd)
	p.epfd = -1
	return err
}

// ctl issues one EPOLL_CTL_* operation. The user-data slot carries the
// target fd so wait results can be routed without a lookup structure of
// their own.
func (p *poller) ctl(op int, fd int, events uint32) error {
	var ev *unix.EpollEvent
	if op != epollCtlDel {
		ev = &unix.EpollEvent{Events: events, Fd: int32(fd)}
	}
	if err := unix.EpollCtl(p.epfd, op, fd, ev); err != nil {
		return err
	}
	return nil
}

// kernelBits translates an interest mask to epoll flags.
func kernelBits(events IOEvents, et bool) uint32 {
	var bits uint32
	if events&EventRead != 0 {
		bits |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		bits |= unix.EPOLLOUT
	}
	if et {
		bits |= unix.EPOLLET
	}
	return bits
}

// kernelToEvents translates epoll flags back to an interest mask.
func kernelToEvents(bits uint32) IOEvents {
	var events IOEvents
	if bits&unix.EPOLLIN != 0 {
		events |= EventRead
	}
	if bits&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if bits&unix.EPOLLERR != 0 {
		events |= EventError
	}
	if bits&unix.EPOLLHUP != 0 {
		events |= EventHangup
	}
	return events
}

func isEexist(err error) bool {
	return errors.Is(err, unix.EEXIST)
}

// pollIO reconciles pending watcher registrations, sleeps on the kernel
// for up to timeout milliseconds (0 polls, -1 blocks indefinitely), and
// dispatches harvested readiness to watcher callbacks. With no
// descriptor registered it skips the kernel: a positive timeout becomes
// a plain sleep, and 0 or -1 returns at once.
func (l *Loop) pollIO(timeout int) {
	l.reconcileWatchers()

	if l.nfds == 0 {
		// Nothing registered means nothing can wake us early; a plain
		// sleep stands in for the kernel wait.
		if timeout > 0 {
			time.Sleep(time.Duration(timeout) * time.Millisecond)
			l.updateTime()
		}
		return
	}

	base := l.now
	for {
		n, err := unix.EpollWait(l.poller.epfd, l.poller.eventBuf[:], timeout)

		// The clock must move even for a zero timeout; the process may
		// have been preempted between iterations.
		l.updateTime()

		if err != nil {
			if !errors.Is(err, unix.EINTR) {
				l.logCritical("epoll_wait failed", err)
				panic("uvloop: epoll_wait: " + err.Error())
			}
			if timeout <= 0 {
				if timeout == 0 {
					return
				}
				continue // blocking wait, restart in full
			}
			elapsed := int((l.now - base) / int64(time.Millisecond))
			if elapsed >= timeout {
				return
			}
			timeout -= elapsed
			base = l.now
			continue
		}

		l.dispatchEvents(n)
		return
	}
}

// dispatchEvents routes one batch of kernel events to their watchers.
func (l *Loop) dispatchEvents(n int) {
	for i := 0; i < n; i++ {
		ev := &l.poller.eventBuf[i]
		fd := int(ev.Fd)

		var w *ioWatcher
		if fd >= 0 && fd < len(l.watchers) {
			w = l.watchers[fd]
		}
		if w == nil {
			// The watcher stopped after the events were harvested. Make
			// sure the kernel agrees the fd is gone; best effort, the fd
			// may have been closed already.
			if err := l.poller.ctl(epollCtlDel, fd, 0); err != nil {
				l.logDebugFd("dropping event for unwatched fd", fd)
			}
			continue
		}

		w.revents |= kernelToEvents(ev.Events)
		delivered := w.revents & (w.pevents | EventError | EventHangup)
		if delivered == 0 {
			continue // latent bits only; kept for a future interest change
		}
		w.revents &^= delivered
		w.cb(l, w, delivered)
	}
}
