package telnet

import (
	"bytes"
	"testing"
)

func newRecordingCodec(t *testing.T) (*Codec, *[]byte, *[][]byte, *[]byte) {
	t.Helper()
	var data []byte
	var sends [][]byte
	var doEvents []byte
	c := New(Handler{
		OnData: func(d []byte) { data = append(data, d...) },
		OnSend: func(d []byte) { sends = append(sends, append([]byte(nil), d...)) },
		OnDo:   func(opt byte) { doEvents = append(doEvents, opt) },
		OnError: func(err error) {
			t.Fatalf("unexpected codec error: %v", err)
		},
	})
	return c, &data, &sends, &doEvents
}

func TestFeedPlainDataPassesThrough(t *testing.T) {
	c, data, _, _ := newRecordingCodec(t)
	c.Feed([]byte("abc\n"))
	if string(*data) != "abc\n" {
		t.Fatalf("got %q, want abc\\n", *data)
	}
}

func TestFeedEscapedIACByteUnescapes(t *testing.T) {
	c, data, _, _ := newRecordingCodec(t)
	c.Feed([]byte{'a', IAC, IAC, 'b'})
	if !bytes.Equal(*data, []byte{'a', 0xFF, 'b'}) {
		t.Fatalf("got %v, want [a 0xFF b]", *data)
	}
}

func TestFeedWillOptionConsumedNoDataEmitted(t *testing.T) {
	c, data, _, _ := newRecordingCodec(t)
	c.Feed([]byte{'x', IAC, WILL, OptEcho, 'y'})
	if !bytes.Equal(*data, []byte("xy")) {
		t.Fatalf("got %q, want xy", *data)
	}
}

func TestFeedDoCompress2FiresOnDo(t *testing.T) {
	c, _, _, doEvents := newRecordingCodec(t)
	c.Feed([]byte{IAC, DO, OptCompress2})
	if len(*doEvents) != 1 || (*doEvents)[0] != OptCompress2 {
		t.Fatalf("doEvents = %v, want [OptCompress2]", *doEvents)
	}
}

func TestFeedSubnegotiationRoundTripsAndResumesData(t *testing.T) {
	c, data, _, _ := newRecordingCodec(t)
	// IAC SB <opt> 0x01 0x00 IAC SE, then plain data resumes.
	msg := []byte{IAC, SB, OptLinemode, 0x01, 0x00, IAC, SE, 'z'}
	c.Feed(msg)
	if string(*data) != "z" {
		t.Fatalf("got %q, want z", *data)
	}
}

func TestNegotiateInitialDefaultSequence(t *testing.T) {
	c, _, sends, _ := newRecordingCodec(t)
	c.NegotiateInitial(Options{})
	want := [][]byte{
		{IAC, WILL, OptCompress2},
		{IAC, DO, OptLinemode},
		{IAC, SB, OptLinemode, 0x01, 0x00, IAC, SE},
		{IAC, WILL, OptEcho},
	}
	if len(*sends) != len(want) {
		t.Fatalf("got %d sends, want %d: %v", len(*sends), len(want), *sends)
	}
	for i := range want {
		if !bytes.Equal((*sends)[i], want[i]) {
			t.Fatalf("send[%d] = %v, want %v", i, (*sends)[i], want[i])
		}
	}
}

func TestNegotiateInitialHonorsDisableToggles(t *testing.T) {
	c, _, sends, _ := newRecordingCodec(t)
	c.NegotiateInitial(Options{DisableLinemode: true, DisableEcho: true})
	want := [][]byte{{IAC, WILL, OptCompress2}}
	if len(*sends) != len(want) {
		t.Fatalf("got %d sends, want %d: %v", len(*sends), len(want), *sends)
	}
	if !bytes.Equal((*sends)[0], want[0]) {
		t.Fatalf("send[0] = %v, want %v", (*sends)[0], want[0])
	}
}

func TestSendEscapesIAC(t *testing.T) {
	c, _, sends, _ := newRecordingCodec(t)
	c.Send([]byte{'a', 0xFF, 'b'})
	if len(*sends) != 1 {
		t.Fatalf("got %d sends, want 1", len(*sends))
	}
	if !bytes.Equal((*sends)[0], []byte{'a', IAC, IAC, 'b'}) {
		t.Fatalf("got %v, want [a IAC IAC b]", (*sends)[0])
	}
}

func TestBeginCompressionRoutesSendThroughZlib(t *testing.T) {
	c, _, sends, _ := newRecordingCodec(t)
	c.BeginCompression()
	c.Send([]byte("hello"))
	if len(*sends) != 1 {
		t.Fatalf("got %d sends, want 1", len(*sends))
	}
	if bytes.Equal((*sends)[0], []byte("hello")) {
		t.Fatalf("compressed output equals plaintext, compression didn't engage")
	}
}
