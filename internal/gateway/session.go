package gateway

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/ringcast/telnetgw/internal/ringbuf"
	"github.com/ringcast/telnetgw/internal/telnet"
)

// ringCapacity is the per-session and per-server ring buffer size
// (spec.md §3: "capacity (compile-time constant, e.g. 4096 bytes)"),
// matching original_source/telnetd.h's RINGBUF_CAPACITY.
const ringCapacity = 4096

// session is one accepted remote client: its raw socket, the telnet
// codec that frames it, and the two rings mediating between the
// codec and the server's fan-out/merge rings (spec.md §3/§4.C).
//
// A session is mutated only by the owning *Server's Step, never from
// another goroutine — there is exactly one of those per process.
type session struct {
	fd    int
	peer  string
	out   *ringbuf.Ring // local -> this remote, awaiting codec.Send
	in    *ringbuf.Ring // decoded from this remote, awaiting merge
	codec *telnet.Codec
}

// openSession allocates a session's rings and codec and runs its
// initial negotiation. On any failure it releases everything already
// acquired (spec.md §4.C) and returns an error; the caller must not
// use the returned session in that case.
func openSession(fd int, peer string, opts telnet.Options) (*session, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("gateway: set nonblock: %w", err)
	}
	s := &session{
		fd:   fd,
		peer: peer,
		out:  ringbuf.New(ringCapacity),
		in:   ringbuf.New(ringCapacity),
	}
	s.codec = telnet.New(telnet.Handler{
		OnData: func(data []byte) {
			if err := s.in.Put(data); err != nil {
				s.kill()
			}
		},
		OnSend: func(data []byte) {
			if err := s.rawSend(data); err != nil {
				s.kill()
			}
		},
		OnDo: func(opt byte) {
			if opt == telnet.OptCompress2 {
				s.codec.BeginCompression()
			}
		},
		OnError: func(error) {
			s.kill()
		},
	})
	s.codec.NegotiateInitial(opts)
	return s, nil
}

// alive reports whether the session's socket is still open.
func (s *session) alive() bool {
	return s.fd >= 0
}

// handle advances one session by one server step. When selected is
// true the socket was reported readable: perform one recv into a
// stack-sized buffer and feed the codec. When false, drain the
// session's outbound ring (by its actual bytes_used, not a fixed
// stack-buffer size — spec.md §9 calls out the source's looser bound
// here as a bug to not reproduce) through the codec's Send.
//
// handle never returns an error; callers detect failure by checking
// alive() afterward, exactly as the codec's own OnError/OnData/OnSend
// callbacks detect it by calling kill() internally.
func (s *session) handle(selected bool) {
	if !s.alive() {
		return
	}
	if selected {
		buf := make([]byte, ringCapacity)
		n, err := unix.Read(s.fd, buf)
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			s.kill()
			return
		}
		if n == 0 {
			s.kill()
			return
		}
		s.codec.Feed(buf[:n])
		return
	}
	used := s.out.BytesUsed()
	if used == 0 {
		return
	}
	buf := make([]byte, used)
	if err := s.out.Get(buf); err != nil {
		// Unreachable: used was just read from the same
		// single-threaded ring.
		s.kill()
		return
	}
	s.codec.Send(buf)
}

// rawSend is a direct wire write, retried across transient EAGAIN,
// used by the codec's OnSend event and by the MOTD preamble.
func (s *session) rawSend(data []byte) error {
	if !s.alive() {
		return fmt.Errorf("gateway: send on dead session")
	}
	for len(data) > 0 {
		n, err := unix.Write(s.fd, data)
		if err != nil {
			if err == unix.EAGAIN {
				continue
			}
			return err
		}
		data = data[n:]
	}
	return nil
}

// enqueueOutbound appends locally-produced bytes destined for this
// session. Overflow is reported to the caller, which kills the
// session (spec.md §4.D: "overflow kills the session").
func (s *session) enqueueOutbound(data []byte) error {
	return s.out.Put(data)
}

// drainInboundInto moves every byte this session has decoded since
// the last step into dst (the server's merge ring). If dst cannot
// take them all, the session is left unmodified and the error is
// returned so the caller can kill it — "local slow drain must not
// deadlock" (spec.md §4.D).
func (s *session) drainInboundInto(dst *ringbuf.Ring) error {
	n := s.in.BytesUsed()
	if n == 0 {
		return nil
	}
	return dst.CopyFrom(s.in, n)
}

// kill closes the socket; the codec and rings need no explicit
// release in Go (spec.md §4.C's free() step is the garbage collector
// here, once the session is unlinked from the server's session set).
// Idempotent.
func (s *session) kill() {
	if s.fd < 0 {
		return
	}
	unix.Close(s.fd)
	s.fd = -1
}
