//go:build linux

package uvloop

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// createWakeFd creates the eventfd used to interrupt a blocking poll
// from another thread. Non-blocking so the drain loop can run dry,
// close-on-exec like every descriptor the loop owns.
func createWakeFd() (int, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return -1, wrapErrno("eventfd", err)
	}
	return fd, nil
}

func closeWakeFd(fd int) error {
	if fd < 0 {
		return nil
	}
	return unix.Close(fd)
}

// wakeWrite posts one wakeup. The kernel coalesces concurrent posts by
// summing into the counter, so losing the race to another writer is
// fine; EAGAIN means the counter is saturated, which still wakes the
// loop.
func wakeWrite(fd int) {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	for {
		_, err := unix.Write(fd, buf[:])
		if err != unix.EINTR {
			return
		}
	}
}

// wakeDrain empties the eventfd counter.
func wakeDrain(fd int) {
	var buf [8]byte
	for {
		if _, err := unix.Read(fd, buf[:]); err != nil {
			return
		}
	}
}
