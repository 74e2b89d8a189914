// Package driver implements the cooperative event step that owns the
// single local byte stream (a raw TTY or a spawned child's stdio) and
// pumps it against the gateway's fan-out server (spec.md §2 component
// E, §4.E).
package driver

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ringcast/telnetgw/internal/signalflag"
)

// localReadTimeout is the 10 microsecond readiness wait from spec.md
// §4.E step 1. The driver does not wait on it: the Local
// implementations in internal/localio use non-blocking reads that
// return at once when no data is ready, so the local read test takes
// no timed wait at all.
const localReadTimeout = 10 * time.Microsecond

// Server is the subset of *gateway.Server the driver loop depends on.
// Expressed as an interface so driver can be tested against a fake
// without opening real sockets.
type Server interface {
	PutOutbound(data []byte) error
	InboundSize() int
	GetInbound(dst []byte) error
	Step() error
}

// Local is the local byte stream endpoint: either a raw TTY fd pair
// or a spawned child's stdio pipes. ReadNonBlocking must return
// (0, nil) rather than blocking when no data is currently available —
// see internal/localio for the two implementations.
type Local interface {
	// ReadNonBlocking reads into buf without blocking. It returns
	// (0, nil) when no data is ready, (n, nil) on n>0 bytes read, or a
	// non-nil err — including io.EOF — on any other outcome.
	ReadNonBlocking(buf []byte) (int, error)
	io.Writer
}

// bufCapacity bounds a single local read/write and must not exceed
// the server's ring capacity, since the driver never enqueues more
// than one capacity's worth of bytes per iteration (spec.md §4.D's
// precondition on Step's outbound drain).
const bufCapacity = 4096

// Driver owns the local endpoint and repeatedly pumps bytes between
// it and the server until told to stop.
type Driver struct {
	local  Local
	server Server
	flag   *signalflag.Flag
}

// New constructs a Driver. flag is checked once at the start of every
// iteration, that is, between server steps (spec.md §5 "Cancellation").
func New(local Local, server Server, flag *signalflag.Flag) *Driver {
	return &Driver{local: local, server: server, flag: flag}
}

// Run executes the driver loop until a termination signal is raised,
// the local source reaches EOF, or a fatal error occurs. It returns a
// non-nil error only for the fatal cases enumerated in spec.md §7 —
// signal-initiated and EOF-initiated termination both return nil.
func (d *Driver) Run() error {
	buf := make([]byte, bufCapacity)
	for !d.flag.Armed() {
		n, err := d.local.ReadNonBlocking(buf)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("driver: local read: %w", err)
		}
		if n > 0 {
			if err := d.server.PutOutbound(buf[:n]); err != nil {
				return fmt.Errorf("driver: ringbuf failure (OUT): %w", err)
			}
		}

		inSize := d.server.InboundSize()
		if inSize > bufCapacity {
			return fmt.Errorf("driver: internal error: buffer too small for %d pending inbound bytes", inSize)
		}
		if inSize > 0 {
			out := buf[:inSize]
			if err := d.server.GetInbound(out); err != nil {
				return fmt.Errorf("driver: ringbuf failure (IN): %w", err)
			}
			if err := writeFully(d.local, out); err != nil {
				return fmt.Errorf("driver: write error: %w", err)
			}
		}

		if err := d.server.Step(); err != nil {
			return fmt.Errorf("driver: emergency exit: %w", err)
		}
	}
	return nil
}

// writeFully writes all of p to w, retrying on os.ErrDeadlineExceeded/
// EAGAIN-class transient errors and failing hard on anything else —
// the corrected behavior spec.md §9 calls for in place of the
// original program's unguarded signed-subtraction write loop.
func writeFully(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if n > 0 {
			p = p[n:]
		}
		if err != nil {
			if isTransient(err) {
				continue
			}
			return err
		}
	}
	return nil
}

func isTransient(err error) bool {
	return os.IsTimeout(err)
}
