//go:build linux

package uvloop

import (
	"golang.org/x/sys/unix"
)

// hrtime reads the monotonic clock in nanoseconds. It never goes
// backwards and has no relation to wall time.
func hrtime() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		// The monotonic clock exists on every kernel this package runs
		// on; a failure here is not survivable.
		panic("uvloop: clock_gettime: " + err.Error())
	}
	return ts.Nano()
}
