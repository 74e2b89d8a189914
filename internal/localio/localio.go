// Package localio implements the three concrete local byte-stream
// endpoints the driver loop can be pointed at: the process's own
// controlling terminal put into raw mode (TTY), the process's own
// stdin/stdout left in their current mode (Stdio), or a spawned child
// process's piped stdio (Child) (spec.md §2 component "local I/O", §6
// CLI argv: "waitport [cmd [-- args...]]").
package localio

import (
	"io"

	"golang.org/x/sys/unix"
)

// setNonblocking marks fd non-blocking so reads can be polled from
// the driver loop's tight cycle instead of stalling it, matching the
// gateway package's own fd handling.
func setNonblocking(fd int) error {
	return unix.SetNonblock(fd, true)
}

// readNonBlocking performs one non-blocking read, translating EAGAIN
// into the (0, nil) "nothing ready yet" contract driver.Local.ReadNonBlocking
// requires.
func readNonBlocking(fd int, buf []byte) (int, error) {
	n, err := unix.Read(fd, buf)
	if err != nil {
		if err == unix.EAGAIN {
			return 0, nil
		}
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// writeFD writes p fully to fd, retrying across EAGAIN.
func writeFD(fd int, p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		n, err := unix.Write(fd, p)
		total += n
		if err != nil {
			if err == unix.EAGAIN {
				continue
			}
			return total, err
		}
		p = p[n:]
	}
	return total, nil
}
