package driver

import (
	"errors"
	"io"
	"testing"

	"github.com/ringcast/telnetgw/internal/signalflag"
)

type fakeLocal struct {
	reads   [][]byte
	readErr error
	written []byte
}

func (f *fakeLocal) ReadNonBlocking(buf []byte) (int, error) {
	if len(f.reads) == 0 {
		if f.readErr != nil {
			return 0, f.readErr
		}
		return 0, nil
	}
	chunk := f.reads[0]
	f.reads = f.reads[1:]
	n := copy(buf, chunk)
	return n, nil
}

func (f *fakeLocal) Write(p []byte) (int, error) {
	f.written = append(f.written, p...)
	return len(p), nil
}

type fakeServer struct {
	outbound  [][]byte
	inbound   []byte
	stepErr   error
	stepCount int
	putErr    error
}

func (s *fakeServer) PutOutbound(data []byte) error {
	if s.putErr != nil {
		return s.putErr
	}
	cp := append([]byte(nil), data...)
	s.outbound = append(s.outbound, cp)
	return nil
}

func (s *fakeServer) InboundSize() int {
	return len(s.inbound)
}

func (s *fakeServer) GetInbound(dst []byte) error {
	n := copy(dst, s.inbound)
	s.inbound = s.inbound[n:]
	return nil
}

func (s *fakeServer) Step() error {
	s.stepCount++
	if s.stepErr != nil {
		return s.stepErr
	}
	return nil
}

func TestRunForwardsLocalReadsToOutbound(t *testing.T) {
	local := &fakeLocal{reads: [][]byte{[]byte("hi"), nil}, readErr: io.EOF}
	srv := &fakeServer{}
	f := signalflag.New()

	d := New(local, srv, f)
	if err := d.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(srv.outbound) != 1 || string(srv.outbound[0]) != "hi" {
		t.Fatalf("outbound = %v, want [hi]", srv.outbound)
	}
}

func TestRunWritesInboundToLocal(t *testing.T) {
	local := &fakeLocal{reads: [][]byte{nil}, readErr: io.EOF}
	srv := &fakeServer{inbound: []byte("merged")}
	f := signalflag.New()

	d := New(local, srv, f)
	if err := d.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if string(local.written) != "merged" {
		t.Fatalf("written = %q, want %q", local.written, "merged")
	}
}

func TestRunStopsWhenFlagArmed(t *testing.T) {
	local := &fakeLocal{}
	srv := &fakeServer{}
	f := signalflag.New()
	f.Set()

	d := New(local, srv, f)
	if err := d.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if srv.stepCount != 0 {
		t.Fatalf("stepCount = %d, want 0 (loop should not iterate once armed)", srv.stepCount)
	}
}

func TestRunReturnsErrorOnStepFailure(t *testing.T) {
	local := &fakeLocal{}
	srv := &fakeServer{stepErr: errors.New("boom")}
	f := signalflag.New()

	d := New(local, srv, f)
	if err := d.Run(); err == nil {
		t.Fatal("Run succeeded, want error from failing Step")
	}
}

func TestRunReturnsErrorOnPutOutboundFailure(t *testing.T) {
	local := &fakeLocal{reads: [][]byte{[]byte("x")}}
	srv := &fakeServer{putErr: errors.New("ring full")}
	f := signalflag.New()

	d := New(local, srv, f)
	if err := d.Run(); err == nil {
		t.Fatal("Run succeeded, want error from failing PutOutbound")
	}
}
