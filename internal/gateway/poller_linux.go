//go:build linux

package gateway

import (
	"time"

	"golang.org/x/sys/unix"
)

// epollPoller is the preferred readiness multiplexer (spec.md Design
// Notes §9: "explicit non-blocking sockets... preferred, more
// robust"), grounded on the raw-epoll shape of the pack's
// anamulislamshamim-go_raw_epoll_http_server reference file.
type epollPoller struct {
	epfd   int
	events []unix.EpollEvent
}

func newPoller() (poller, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	return &epollPoller{epfd: epfd, events: make([]unix.EpollEvent, 64)}, nil
}

func (p *epollPoller) Add(fd int) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (p *epollPoller) Remove(fd int) error {
	err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err == unix.ENOENT || err == unix.EBADF {
		// Already gone (e.g. the fd was closed before we got here) —
		// removal is idempotent from the caller's point of view.
		return nil
	}
	return err
}

// Wait blocks for at most timeout, truncated to whole milliseconds
// since epoll_wait has no finer resolution, and never for less than
// 1ms (spec.md's 200 microsecond figure becomes a 1ms floor — see
// DESIGN.md).
func (p *epollPoller) Wait(timeout time.Duration) ([]int, error) {
	ms := int(timeout / time.Millisecond)
	if ms <= 0 {
		ms = 1
	}
	n, err := unix.EpollWait(p.epfd, p.events, ms)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	ready := make([]int, n)
	for i := 0; i < n; i++ {
		ready[i] = int(p.events[i].Fd)
	}
	return ready, nil
}

func (p *epollPoller) Close() error {
	return unix.Close(p.epfd)
}
