// Package gateway implements the multi-stream fan-out state machine:
// a listening endpoint, a dynamic set of telnet sessions, and the two
// process-level ring buffers that broadcast local bytes out to every
// session and merge session bytes back into one local stream
// (spec.md §2, components C and D).
package gateway

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ringcast/telnetgw/internal/ringbuf"
	"github.com/ringcast/telnetgw/internal/telnet"
)

const (
	listenBacklog = 10
	// pollTimeout is the readiness wait duration from spec.md §4.D.
	// See DESIGN.md's Open Questions for why the poller rounds this
	// up to 1ms on Linux.
	pollTimeout = 200 * time.Microsecond
)

// Config controls a Server's listening port, MOTD banner, and default
// per-session telnet negotiation (spec.md §6).
type Config struct {
	Port   int
	Motd   string
	Telnet telnet.Options
}

// Server owns the listener, the live session set, and the two
// fan-out rings (spec.md §3 "Server"). It is driven entirely by
// repeated calls to Step from a single goroutine.
type Server struct {
	listenFD int
	poller   poller

	order    []int          // session fds in head-insertion order
	sessions map[int]*session

	out *ringbuf.Ring // local -> remote, authoritative fan-out source
	in  *ringbuf.Ring // remote -> local, merge destination

	cfg Config
}

// Init creates a non-blocking-capable IPv4 listener on
// INADDR_ANY:port with SO_REUSEADDR and the spec-mandated backlog of
// 10, and allocates the two fan-out rings. Any failure releases prior
// acquisitions before returning (spec.md §4.D, §5 "Memory discipline").
func Init(cfg Config) (*Server, error) {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("gateway: invalid port %d", cfg.Port)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("gateway: socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("gateway: setsockopt SO_REUSEADDR: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: cfg.Port}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("gateway: bind: %w", err)
	}
	if err := unix.Listen(fd, listenBacklog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("gateway: listen: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("gateway: set nonblock on listener: %w", err)
	}

	p, err := newPoller()
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("gateway: poller init: %w", err)
	}
	if err := p.Add(fd); err != nil {
		p.Close()
		unix.Close(fd)
		return nil, fmt.Errorf("gateway: poller add listener: %w", err)
	}

	return &Server{
		listenFD: fd,
		poller:   p,
		sessions: make(map[int]*session),
		out:      ringbuf.New(ringCapacity),
		in:       ringbuf.New(ringCapacity),
		cfg:      cfg,
	}, nil
}

// PutOutbound enqueues locally-produced bytes for broadcast to every
// live session on the next Step. Fails when the ring has no room —
// the driver loop treats that as fatal (spec.md §4.E).
func (s *Server) PutOutbound(data []byte) error {
	return s.out.Put(data)
}

// InboundSize reports how many merged bytes are waiting for the
// driver loop to deliver to the local sink.
func (s *Server) InboundSize() int {
	return s.in.BytesUsed()
}

// GetInbound drains exactly len(dst) merged bytes.
func (s *Server) GetInbound(dst []byte) error {
	return s.in.Get(dst)
}

// SessionCount reports the number of currently live sessions.
func (s *Server) SessionCount() int {
	return len(s.order)
}

// Step runs one non-blocking cycle: drains the outbound fan-out ring,
// waits briefly for readiness, accepts at most one new connection,
// then advances and reaps every existing session (spec.md §4.D).
//
// It returns an error only when the server's own outbound ring fails
// to drain or the readiness wait itself fails; the caller (the driver
// loop) treats either as an unrecoverable internal error.
func (s *Server) Step() error {
	outSize := s.out.BytesUsed()
	var outBuf []byte
	if outSize > 0 {
		outBuf = make([]byte, outSize)
		if err := s.out.Get(outBuf); err != nil {
			return fmt.Errorf("gateway: outbound ring drain failed: %w", err)
		}
	}

	ready, err := s.poller.Wait(pollTimeout)
	if err != nil {
		return fmt.Errorf("gateway: poll: %w", err)
	}
	readySet := make(map[int]struct{}, len(ready))
	for _, fd := range ready {
		readySet[fd] = struct{}{}
	}

	// Snapshot the session list before accept so a brand-new session
	// only gets its motd and codec init this step — it is excluded
	// from this step's outbound fan-out/handle/merge pass, since that
	// fan-out was already drained above (spec.md §5: "fan-out was
	// snapshotted before accept").
	existing := append([]int(nil), s.order...)

	if _, ok := readySet[s.listenFD]; ok {
		s.accept()
	}
	newHeads := s.order[:len(s.order)-len(existing)]

	survivors := make([]int, 0, len(existing))
	for _, fd := range existing {
		sess := s.sessions[fd]

		if outSize > 0 {
			if err := sess.enqueueOutbound(outBuf); err != nil {
				s.drop(fd)
				continue
			}
		}

		_, selected := readySet[fd]
		sess.handle(selected)
		if !sess.alive() {
			s.drop(fd)
			continue
		}

		if err := sess.drainInboundInto(s.in); err != nil {
			s.drop(fd)
			continue
		}

		survivors = append(survivors, fd)
	}
	s.order = append(append([]int(nil), newHeads...), survivors...)
	return nil
}

// accept services one pending connection, if any, resolving the
// peer's printable address, opening a session, sending the MOTD
// banner when configured, and inserting the new session at the head
// of the list (spec.md §4.D). Any failure along the way discards the
// partially-built session and leaves the server otherwise unaffected.
func (s *Server) accept() {
	fd, sa, err := unix.Accept(s.listenFD)
	if err != nil {
		return
	}
	peer := peerString(sa)

	sess, err := openSession(fd, peer, s.cfg.Telnet)
	if err != nil {
		unix.Close(fd)
		return
	}

	if s.cfg.Motd != "" {
		err := sess.rawSend([]byte(s.cfg.Motd))
		if err == nil {
			err = sess.rawSend([]byte("\n\r"))
		}
		if err != nil {
			sess.kill()
		}
	}
	if !sess.alive() {
		return
	}

	if err := s.poller.Add(fd); err != nil {
		sess.kill()
		return
	}
	s.sessions[fd] = sess
	s.order = append([]int{fd}, s.order...)
}

// drop unlinks and closes the session owning fd. The map lookup
// double-checks the fd is still tracked (drop can be called at most
// once per fd per Step, but is written defensively against future
// callers).
func (s *Server) drop(fd int) {
	sess, ok := s.sessions[fd]
	if !ok {
		return
	}
	sess.kill()
	s.poller.Remove(fd)
	delete(s.sessions, fd)
}

// Stop closes every session in list order, then the poller, then the
// listener (spec.md §4.D "stop"). The fan-out rings are not released
// explicitly; they are left to the garbage collector.
func (s *Server) Stop() {
	for _, fd := range s.order {
		if sess, ok := s.sessions[fd]; ok {
			sess.kill()
		}
	}
	s.order = nil
	s.sessions = make(map[int]*session)
	s.poller.Close()
	if s.listenFD >= 0 {
		unix.Close(s.listenFD)
		s.listenFD = -1
	}
}

// peerString renders a socket address the way the original program's
// inet_ntop call would: "a.b.c.d:port". Non-IPv4 addresses never
// occur here — the listener is IPv4-only by design (spec.md §1).
func peerString(sa unix.Sockaddr) string {
	a, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%d.%d.%d.%d:%d", a.Addr[0], a.Addr[1], a.Addr[2], a.Addr[3], a.Port)
}
