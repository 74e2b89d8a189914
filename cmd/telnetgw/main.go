// Command telnetgw runs the telnet broadcasting gateway: one local
// byte stream (the controlling terminal, or a spawned command's
// stdio) fanned out to every connected telnet client and merged back
// into that one local stream.
package main

import (
	"fmt"
	"os"
	"strconv"
	"syscall"

	"github.com/ringcast/telnetgw/internal/driver"
	"github.com/ringcast/telnetgw/internal/gateway"
	"github.com/ringcast/telnetgw/internal/localio"
	"github.com/ringcast/telnetgw/internal/logging"
	"github.com/ringcast/telnetgw/internal/signalflag"
	"github.com/ringcast/telnetgw/internal/telnet"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run implements the CLI entrypoint and returns the process exit
// code, kept separate from main so it's a plain function to reason
// about rather than something that calls os.Exit from the middle.
func run(argv []string) int {
	if len(argv) < 1 {
		fmt.Fprintln(os.Stderr, usage())
		return 1
	}

	port, err := strconv.Atoi(argv[0])
	if err != nil || port <= 0 || port > 65535 {
		fmt.Fprintln(os.Stderr, "Invalid wait port.")
		return 1
	}

	cmdName, cmdArgs, err := parseSpawnArgs(argv[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}

	logging.DebugEnabled = os.Getenv("DEBUG") != ""

	opts := telnet.Options{
		DisableLinemode: os.Getenv("TELNET_TELOPT_LINEMODE") != "",
		DisableEcho:     os.Getenv("TELNET_TELOPT_ECHO") != "",
	}

	srv, err := gateway.Init(gateway.Config{
		Port:   port,
		Motd:   os.Getenv("TELNET_MOTD"),
		Telnet: opts,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "Cannot start server.")
		return 1
	}
	defer srv.Stop()

	local, teardown, err := openLocal(cmdName, cmdArgs, opts.DisableLinemode)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Cannot start local endpoint.")
		return 1
	}
	defer teardown()

	flag := signalflag.New()
	stopSignals := signalflag.WatchSignals(flag)
	defer stopSignals()

	d := driver.New(local, srv, flag)
	runErr := d.Run()

	if child, ok := local.(*localio.Child); ok {
		signalChildGoodbye(child, runErr)
	}

	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr.Error())
		return 1
	}
	return 0
}

// openLocal resolves the local endpoint per spec.md §6: a spawned
// command's stdio when one is given, else the process's own
// controlling terminal in raw mode (skipped when linemode is
// disabled, matching the env-driven "local side manages its own line
// discipline" carve-out in spec.md §4.B).
func openLocal(cmdName string, cmdArgs []string, disableLinemode bool) (local localDriverEndpoint, teardown func(), err error) {
	if cmdName != "" {
		child, err := localio.StartChild(cmdName, cmdArgs)
		if err != nil {
			return nil, nil, err
		}
		return child, func() { child.Close() }, nil
	}

	if disableLinemode {
		stdio, err := localio.OpenStdio()
		if err != nil {
			return nil, nil, err
		}
		return stdio, func() {}, nil
	}

	tty, err := localio.OpenTTY()
	if err != nil {
		return nil, nil, err
	}
	return tty, func() { tty.Restore() }, nil
}

// localDriverEndpoint is driver.Local, named locally so openLocal's
// signature doesn't need to import driver just for the interface.
type localDriverEndpoint interface {
	ReadNonBlocking(buf []byte) (int, error)
	Write(p []byte) (int, error)
}

// signalChildGoodbye delivers the courtesy signal spec.md §5
// "Cancellation" requires of the driver on shutdown: SIGINT on clean
// exit, SIGKILL on error exit — matching original_source/main.c's
// kill(spawned, retval ? SIGKILL : SIGINT), no grace period either way.
func signalChildGoodbye(child *localio.Child, runErr error) {
	if done, _ := child.Exited(); done {
		return
	}
	if runErr == nil {
		child.Signal(syscall.SIGINT)
		return
	}
	child.Signal(syscall.SIGKILL)
}

// parseSpawnArgs implements the "[<cmd> [-- [<args>]]]" tail of the
// CLI grammar (spec.md §6): a bare command name, or a command name
// followed by a mandatory "--" before its own arguments.
func parseSpawnArgs(rest []string) (cmdName string, cmdArgs []string, err error) {
	if len(rest) == 0 {
		return "", nil, nil
	}
	cmdName = rest[0]
	tail := rest[1:]
	if len(tail) == 0 {
		return cmdName, nil, nil
	}
	if tail[0] != "--" {
		return "", nil, fmt.Errorf("expected -- before command arguments")
	}
	return cmdName, tail[1:], nil
}

func usage() string {
	return "usage: telnetgw <waitport> [<cmd> [-- [<args>]]]"
}
