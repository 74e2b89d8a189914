package localio

import (
	"os"

	"golang.org/x/term"
)

// TTY drives the process's own stdin/stdout as the local endpoint,
// putting stdin into raw mode for the duration so individual
// keystrokes reach the gateway rather than being line-buffered by the
// kernel tty driver — grounded on cmd/debug-tui/main.go's
// term.MakeRaw/term.Restore pairing.
type TTY struct {
	inFD, outFD int
	oldState    *term.State
}

// OpenTTY puts stdin into raw mode and returns a Local endpoint over
// stdin/stdout. Restore must be called to return the terminal to
// cooked mode before the process exits.
func OpenTTY() (*TTY, error) {
	inFD := int(os.Stdin.Fd())
	outFD := int(os.Stdout.Fd())

	old, err := term.MakeRaw(inFD)
	if err != nil {
		return nil, err
	}
	if err := setNonblocking(inFD); err != nil {
		term.Restore(inFD, old)
		return nil, err
	}
	return &TTY{inFD: inFD, outFD: outFD, oldState: old}, nil
}

// ReadNonBlocking satisfies driver.Local.
func (t *TTY) ReadNonBlocking(buf []byte) (int, error) {
	return readNonBlocking(t.inFD, buf)
}

// Write satisfies io.Writer/driver.Local.
func (t *TTY) Write(p []byte) (int, error) {
	return writeFD(t.outFD, p)
}

// Restore returns the terminal to its original (cooked) mode. Safe to
// call once; idempotent beyond that is the responsibility of
// golang.org/x/term, matching the teacher's own defer-Restore usage.
func (t *TTY) Restore() error {
	return term.Restore(t.inFD, t.oldState)
}
