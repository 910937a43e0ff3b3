package uvloop

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrLoopClosed is returned when operations are attempted on a loop
	// whose Close has completed.
	ErrLoopClosed = errors.New("uvloop: loop has been closed")

	// ErrBusy is returned by Loop.Close while handles or requests are
	// still alive.
	ErrBusy = errors.New("uvloop: loop still has active or closing work")

	// ErrHandleClosing is returned when operations are attempted on a
	// handle after Close has been called on it.
	ErrHandleClosing = errors.New("uvloop: handle is closing or closed")

	// ErrNotActive is returned when an operation requires a started
	// handle.
	ErrNotActive = errors.New("uvloop: handle is not active")

	// ErrNoRepeat is returned by Timer.Again on a timer without a repeat
	// interval.
	ErrNoRepeat = errors.New("uvloop: timer has no repeat interval")

	// ErrArgument is returned for invalid caller-supplied values that are
	// plausibly recoverable (nil callbacks, negative fds).
	ErrArgument = errors.New("uvloop: invalid argument")
)

// wrapErrno annotates a syscall failure with the operation that caused
// it. The underlying unix.Errno stays matchable via errors.Is.
func wrapErrno(op string, err error) error {
	return fmt.Errorf("uvloop: %s: %w", op, err)
}
