// Package telnet implements the telnet wire protocol: IAC option
// negotiation framing, subnegotiation, and MCCP2 (COMPRESS2) output
// compression. It adapts spec.md's "wrapped external telnet
// implementation" requirement to a hand-rolled Go state machine in the
// same shape as the teacher's own (internal/telnetserver/telnet.go in
// the retrieval pack), since no maintained telnet protocol library
// exists in the Go ecosystem.
package telnet

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zlib"
)

// Telnet command and option bytes (RFC 854 and relatives).
const (
	IAC  byte = 255
	DONT byte = 254
	DO   byte = 253
	WONT byte = 252
	WILL byte = 251
	SB   byte = 250
	SE   byte = 240

	OptEcho      byte = 1
	OptSGA       byte = 3
	OptLinemode  byte = 34
	OptCompress2 byte = 86
)

// Verb identifies a negotiation message (WILL/WONT/DO/DONT).
type Verb byte

const (
	Will Verb = Verb(WILL)
	Wont Verb = Verb(WONT)
	Do   Verb = Verb(DO)
	Dont Verb = Verb(DONT)
)

func (v Verb) byte() byte { return byte(v) }

// state is the IAC parser's position in the framing grammar.
type state int

const (
	stateData state = iota
	stateIAC
	stateWill
	stateWont
	stateDo
	stateDont
	stateSB
	stateSBData
	stateSBIAC
)

// Handler receives the events a Codec dispatches while feeding wire
// bytes through it. Each field is a closure capturing the owning
// session — the idiomatic Go equivalent of the callback+user-data
// pointer the wrapped C telnet library would use (spec.md Design
// Notes §9).
type Handler struct {
	// OnData delivers application bytes decoded from the wire.
	OnData func(data []byte)
	// OnSend delivers wire bytes ready to transmit (already framed
	// and, once negotiated, compressed).
	OnSend func(data []byte)
	// OnDo fires when the peer's negotiation implies we should act —
	// only DO(COMPRESS2) is meaningful here.
	OnDo func(opt byte)
	// OnError fires on a malformed or unsupported negotiation that
	// the codec treats as fatal to the session.
	OnError func(err error)
}

// Codec is one session's telnet framing state machine. It is never
// shared across goroutines.
type Codec struct {
	h Handler

	st       state
	sbOption byte
	sbData   []byte

	compressing bool
	zw          *zlib.Writer
	compressBuf bytes.Buffer
}

// New constructs a Codec bound to h. The caller is responsible for
// issuing the initial negotiation (spec.md §4.B "Initial negotiation
// on each new session") via Negotiate/Subnegotiate after construction.
func New(h Handler) *Codec {
	return &Codec{h: h, sbData: make([]byte, 0, 256)}
}

// Feed consumes wire bytes and synchronously dispatches OnData/OnDo/
// OnError events as framing completes.
func (c *Codec) Feed(data []byte) {
	for _, b := range data {
		switch c.st {
		case stateData:
			if b == IAC {
				c.st = stateIAC
			} else {
				c.h.OnData([]byte{b})
			}

		case stateIAC:
			switch b {
			case IAC:
				c.h.OnData([]byte{IAC})
				c.st = stateData
			case byte(WILL):
				c.st = stateWill
			case byte(WONT):
				c.st = stateWont
			case byte(DO):
				c.st = stateDo
			case byte(DONT):
				c.st = stateDont
			case SB:
				c.st = stateSB
			default:
				// NOP, AYT, BRK, IP, etc: consume, no event.
				c.st = stateData
			}

		case stateWill, stateWont, stateDo, stateDont:
			c.handleNegotiation(b)
			c.st = stateData

		case stateSB:
			c.sbOption = b
			c.sbData = c.sbData[:0]
			c.st = stateSBData

		case stateSBData:
			if b == IAC {
				c.st = stateSBIAC
			} else {
				c.sbData = append(c.sbData, b)
			}

		case stateSBIAC:
			switch b {
			case SE:
				c.st = stateData
			case IAC:
				c.sbData = append(c.sbData, IAC)
				c.st = stateSBData
			default:
				c.h.OnError(fmt.Errorf("telnet: malformed subnegotiation terminator %d", b))
				c.st = stateData
			}
		}
	}
}

// handleNegotiation dispatches a completed WILL/WONT/DO/DONT message.
// Only DO(COMPRESS2) matters to the gateway; everything else is
// accepted silently (the peer's disposition, not ours, governs
// whether an option is actually in effect on their side).
func (c *Codec) handleNegotiation(opt byte) {
	if c.st == stateDo && opt == OptCompress2 {
		c.h.OnDo(opt)
	}
}

// Negotiate issues a WILL/WONT/DO/DONT message.
func (c *Codec) Negotiate(v Verb, opt byte) {
	c.h.OnSend([]byte{IAC, v.byte(), opt})
}

// Subnegotiate issues an IAC SB <opt> <params> IAC SE message.
func (c *Codec) Subnegotiate(opt byte, params []byte) {
	out := make([]byte, 0, len(params)+5)
	out = append(out, IAC, SB, opt)
	out = append(out, params...)
	out = append(out, IAC, SE)
	c.h.OnSend(out)
}

// Send encodes application bytes into wire bytes: 0xFF is escaped as
// IAC IAC, and the result is routed through MCCP2 compression once
// BeginCompression has been called.
func (c *Codec) Send(data []byte) {
	if len(data) == 0 {
		return
	}
	escaped := data
	if bytes.IndexByte(data, IAC) >= 0 {
		escaped = make([]byte, 0, len(data))
		for _, b := range data {
			if b == IAC {
				escaped = append(escaped, IAC, IAC)
			} else {
				escaped = append(escaped, b)
			}
		}
	}
	if !c.compressing {
		c.h.OnSend(escaped)
		return
	}
	c.compressBuf.Reset()
	if _, err := c.zw.Write(escaped); err != nil {
		c.h.OnError(fmt.Errorf("telnet: mccp2 compress: %w", err))
		return
	}
	if err := c.zw.Flush(); err != nil {
		c.h.OnError(fmt.Errorf("telnet: mccp2 flush: %w", err))
		return
	}
	c.h.OnSend(c.compressBuf.Bytes())
}

// BeginCompression switches Send onto a zlib stream, per the
// DO(COMPRESS2) event from handleNegotiation. It must be called at
// most once per session: MCCP2 does not support renegotiation
// mid-stream.
func (c *Codec) BeginCompression() {
	if c.compressing {
		return
	}
	c.zw = zlib.NewWriter(&c.compressBuf)
	c.compressing = true
}
