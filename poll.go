package uvloop

// PollCallback receives the readiness bits harvested for the watched
// descriptor. EventError and EventHangup are always delivered, whether
// requested or not.
type PollCallback func(events IOEvents)

// PollOption configures a Poll handle at creation.
type PollOption interface {
	applyPoll(*pollOptions) error
}

type pollOptions struct {
	edgeTriggered bool
}

type pollOptionImpl struct {
	applyPollFunc func(*pollOptions) error
}

func (p *pollOptionImpl) applyPoll(opts *pollOptions) error {
	return p.applyPollFunc(opts)
}

// WithEdgeTriggered registers the descriptor edge-triggered: the kernel
// reports readiness only on transitions, so the callback must drain the
// descriptor completely each time.
func WithEdgeTriggered() PollOption {
	return &pollOptionImpl{func(opts *pollOptions) error {
		opts.edgeTriggered = true
		return nil
	}}
}

// Poll watches a caller-owned file descriptor for readiness. The loop
// never duplicates or closes the descriptor; Stop or Close the handle
// before closing the fd to avoid stale delivery onto a recycled number.
type Poll struct {
	handle
	io ioWatcher
	cb PollCallback
}

// NewPoll creates a stopped poll handle for fd. Level-triggered unless
// WithEdgeTriggered is given.
func NewPoll(l *Loop, fd int, opts ...PollOption) (*Poll, error) {
	if fd < 0 {
		return nil, ErrArgument
	}
	cfg := &pollOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyPoll(cfg); err != nil {
			return nil, err
		}
	}

	p := &Poll{}
	p.io.initWatcher(func(_ *Loop, _ *ioWatcher, events IOEvents) {
		p.dispatch(events)
	}, fd)
	p.io.et = cfg.edgeTriggered
	p.handle.init(l, HandlePoll, func() {
		l.ioClose(&p.io)
		p.handle.stop()
	})
	return p, nil
}

// Fd returns the watched descriptor.
func (p *Poll) Fd() int { return p.io.fd }

// Start begins watching for the given readable/writable interest.
// Calling Start on a started handle widens or replaces the interest
// mask. Must be called on the loop goroutine.
func (p *Poll) Start(events IOEvents, cb PollCallback) error {
	if cb == nil {
		return ErrArgument
	}
	if p.IsClosing() {
		return ErrHandleClosing
	}
	events &= EventRead | EventWrite
	if events == 0 {
		return ErrArgument
	}

	l := p.loop
	if stale := p.io.pevents &^ events; stale != 0 {
		l.ioStop(&p.io, stale)
	}
	p.cb = cb
	l.ioStart(&p.io, events)
	p.start()
	return nil
}

// Stop ceases watching. Events already harvested by an in-flight poll
// batch are discarded, not delivered. No-op if stopped.
func (p *Poll) Stop() {
	if !p.IsActive() {
		return
	}
	p.loop.ioStop(&p.io, EventRead|EventWrite)
	p.io.pending.unlink()
	p.io.pflags = 0
	p.stop()
}

func (p *Poll) dispatch(events IOEvents) {
	if !p.IsActive() {
		// Stopped between harvest and delivery; observing the handle as
		// stopped means no callback.
		return
	}
	p.cb(events)
}
