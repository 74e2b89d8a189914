package telnet

// Options controls which optional negotiations Negotiate issues for a
// newly opened session, mirroring the TELNET_TELOPT_LINEMODE and
// TELNET_TELOPT_ECHO environment variable toggles from spec.md §6.
type Options struct {
	// DisableLinemode suppresses "DO LINEMODE" + the character-mode
	// subnegotiation (set when TELNET_TELOPT_LINEMODE is present).
	DisableLinemode bool
	// DisableEcho suppresses "WILL ECHO" (set when TELNET_TELOPT_ECHO
	// is present).
	DisableEcho bool
}

// linemodeCharacterAtATime is the MODE/MASK subnegotiation payload
// that puts LINEMODE into character-at-a-time mode (MODE=1, MASK=0),
// per original_source/telnetd.c's submode[] bytes.
var linemodeCharacterAtATime = []byte{0x01, 0x00}

// NegotiateInitial issues the gateway's standard opening negotiation
// for a freshly accepted session: offer WILL COMPRESS2 unconditionally,
// then DO LINEMODE (plus the character-mode subnegotiation) and WILL
// ECHO unless disabled by opts. Order matches spec.md §4.B exactly.
func (c *Codec) NegotiateInitial(opts Options) {
	c.Negotiate(Will, OptCompress2)
	if !opts.DisableLinemode {
		c.Negotiate(Do, OptLinemode)
		c.Subnegotiate(OptLinemode, linemodeCharacterAtATime)
	}
	if !opts.DisableEcho {
		c.Negotiate(Will, OptEcho)
	}
}
