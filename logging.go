package uvloop

import (
	"log"
)

// The loop carries an optional structured logger, injected via
// WithLogger. When none is configured, the few places that must say
// something (abort paths, panics in queued work) fall back to the stdlib
// log package so the message is never lost. Debug events about stale fd
// cleanup are emitted only through a configured logger.

// logCritical reports a condition the loop cannot recover from. A
// panicking logger must not mask the original failure, hence the
// recover-and-fallback.
func (l *Loop) logCritical(msg string, err error) {
	if l.logger != nil {
		ok := func() (ok bool) {
			defer func() { recover() }()
			l.logger.Crit().Err(err).Log(msg)
			return true
		}()
		if ok {
			return
		}
	}
	log.Printf("CRITICAL: uvloop: %s: %v", msg, err)
}

// logError reports a recoverable but unexpected condition.
func (l *Loop) logError(msg string, err error) {
	if l.logger != nil {
		ok := func() (ok bool) {
			defer func() { recover() }()
			l.logger.Err().Err(err).Log(msg)
			return true
		}()
		if ok {
			return
		}
	}
	log.Printf("ERROR: uvloop: %s: %v", msg, err)
}

// logDebugFd emits a debug event about a file descriptor, if a logger is
// configured. Debug events have no stdlib fallback.
func (l *Loop) logDebugFd(msg string, fd int) {
	if l.logger == nil {
		return
	}
	func() {
		defer func() { recover() }()
		l.logger.Debug().Int("fd", fd).Log(msg)
	}()
}
