// Package uvloop is a single-threaded asynchronous I/O runtime: one
// event loop multiplexing file-descriptor readiness, monotonic timers,
// deferred callbacks, cross-thread signals, and background work behind
// a uniform callback model.
//
// # Model
//
// Callers register handles (long-lived objects: [Timer], [Poll],
// [Idle], [Prepare], [Check], [Async]) and requests (one-shot
// operations: [Loop.QueueWork], [Loop.Getaddrinfo]) against a [Loop].
// [Loop.Run] then drives them by repeatedly sleeping in the kernel's
// readiness primitive and dispatching callbacks. Each iteration visits
// its phases in a fixed order: timers, pending callbacks, idle,
// prepare, poll, check, closing handles.
//
// # Ownership and threading
//
// The loop is strictly single-threaded: every method except
// [Async.Send] must be called on the goroutine that calls Run, and all
// callbacks execute there. Handles are caller-owned; the loop holds
// non-owning references. Destruction is a protocol, not a destructor:
// call Close on the handle, and free it only after the close callback
// has fired on the next iteration's close phase.
//
// # Platform
//
// Linux only: epoll for readiness, eventfd for cross-thread wakeup,
// CLOCK_MONOTONIC for time.
package uvloop
