package signalflag

import (
	"syscall"
	"testing"
	"time"
)

func TestSetIsIdempotentAndClosesDoneOnce(t *testing.T) {
	f := New()
	if f.Armed() {
		t.Fatal("new flag reports armed")
	}
	f.Set()
	f.Set() // must not panic on double-close
	if !f.Armed() {
		t.Fatal("flag not armed after Set")
	}
	select {
	case <-f.Done():
	default:
		t.Fatal("Done channel not closed after Set")
	}
}

func TestWatchSignalsArmsOnSIGTERM(t *testing.T) {
	f := New()
	stop := WatchSignals(f)
	defer stop()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("kill: %v", err)
	}

	select {
	case <-f.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("flag not armed within deadline after SIGTERM")
	}
}
