package localio

import (
	"testing"
	"time"
)

func TestStartChildEchoesStdinToStdout(t *testing.T) {
	c, err := StartChild("cat", nil)
	if err != nil {
		t.Fatalf("StartChild: %v", err)
	}
	defer c.Close()

	if _, err := c.Write([]byte("ping\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	var got []byte
	buf := make([]byte, 64)
	for time.Now().Before(deadline) && len(got) < len("ping\n") {
		n, err := c.ReadNonBlocking(buf)
		if err != nil {
			t.Fatalf("ReadNonBlocking: %v", err)
		}
		got = append(got, buf[:n]...)
		if n == 0 {
			time.Sleep(time.Millisecond)
		}
	}
	if string(got) != "ping\n" {
		t.Fatalf("got %q, want %q", got, "ping\n")
	}
}

func TestStartChildExitedReportsCleanExit(t *testing.T) {
	c, err := StartChild("true", nil)
	if err != nil {
		t.Fatalf("StartChild: %v", err)
	}
	defer c.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if done, err := c.Exited(); done {
			if err != nil {
				t.Fatalf("Exited err = %v, want nil", err)
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("child did not report exit before deadline")
}
