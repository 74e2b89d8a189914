// Package signalflag provides the single process-wide termination
// flag the driver loop polls between iterations, set by a background
// goroutine forwarding the signals spec.md §5 "Cancellation" and
// Design Notes §9 name (SIGINT, SIGTERM, SIGQUIT, SIGHUP, SIGPIPE,
// SIGCHLD).
package signalflag

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// Flag is an atomic armed/disarmed latch, matching the
// CompareAndSwapInt32 idiom the teacher's telnet codec uses for its
// own closed flag.
type Flag struct {
	armed int32
	done  chan struct{}
}

// New returns a disarmed Flag.
func New() *Flag {
	return &Flag{done: make(chan struct{})}
}

// Set arms the flag. Safe to call more than once; only the first call
// closes Done's channel.
func (f *Flag) Set() {
	if atomic.CompareAndSwapInt32(&f.armed, 0, 1) {
		close(f.done)
	}
}

// Armed reports whether the flag has been set.
func (f *Flag) Armed() bool {
	return atomic.LoadInt32(&f.armed) != 0
}

// Done returns a channel closed the moment the flag is set, for
// callers that want to select on termination rather than poll it.
func (f *Flag) Done() <-chan struct{} {
	return f.done
}

// WatchSignals starts a background goroutine that arms f on receipt
// of any of the listed process signals and returns a stop function
// that stops forwarding and releases the underlying notification
// channel. SIGCHLD is included so a spawned child's exit promptly
// unblocks the driver loop even if its stdio pipes haven't yet
// reported EOF (spec.md §10's supplemented reaping behavior).
func WatchSignals(f *Flag) (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
		syscall.SIGHUP,
		syscall.SIGPIPE,
		syscall.SIGCHLD,
	)
	stopped := make(chan struct{})
	go func() {
		for {
			select {
			case <-ch:
				f.Set()
			case <-stopped:
				return
			}
		}
	}()
	return func() {
		signal.Stop(ch)
		close(stopped)
	}
}
