//go:build !linux

package gateway

import (
	"time"

	"golang.org/x/sys/unix"
)

// fdSetBits is the bit width of one unix.FdSet.Bits word on the BSD
// family (darwin, freebsd, ...) this fallback targets.
const fdSetBits = 32

func fdSet(fd int, set *unix.FdSet) {
	set.Bits[fd/fdSetBits] |= 1 << uint(fd%fdSetBits)
}

func fdIsSet(fd int, set *unix.FdSet) bool {
	return set.Bits[fd/fdSetBits]&(1<<uint(fd%fdSetBits)) != 0
}

// selectPoller reproduces spec.md Design Notes §9's sanctioned
// alternative — "faithfully reproduce the poll-and-short-read
// pattern" — for platforms without epoll. It costs an O(n) fd_set
// rebuild per Wait instead of epoll's O(1) amortized cost.
type selectPoller struct {
	fds map[int]struct{}
}

func newPoller() (poller, error) {
	return &selectPoller{fds: make(map[int]struct{})}, nil
}

func (p *selectPoller) Add(fd int) error {
	p.fds[fd] = struct{}{}
	return nil
}

func (p *selectPoller) Remove(fd int) error {
	delete(p.fds, fd)
	return nil
}

func (p *selectPoller) Wait(timeout time.Duration) ([]int, error) {
	var set unix.FdSet
	maxFD := 0
	for fd := range p.fds {
		fdSet(fd, &set)
		if fd > maxFD {
			maxFD = fd
		}
	}
	tv := unix.NsecToTimeval(timeout.Nanoseconds())
	n, err := unix.Select(maxFD+1, &set, nil, nil, &tv)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	ready := make([]int, 0, n)
	for fd := range p.fds {
		if fdIsSet(fd, &set) {
			ready = append(ready, fd)
		}
	}
	return ready, nil
}

func (p *selectPoller) Close() error {
	return nil
}
