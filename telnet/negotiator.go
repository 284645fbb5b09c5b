package telnet

import "encoding/binary"

// parserState is a tagged variant over the stream states in the Telnet
// parser's state table: plain data, an in-flight IAC escape, an
// in-flight negotiation command, and sub-negotiation framing (with and
// without an embedded IAC).
type parserState int

const (
	stateData parserState = iota
	stateIAC
	stateCommand
	stateSubneg
	stateSubnegIAC
)

// TerminalProfile carries the terminal identity a Negotiator reports
// during TERMINAL-TYPE and NAWS sub-negotiation. Set at construction,
// read-only thereafter.
type TerminalProfile struct {
	TermType string
	Width    uint16
	Height   uint16
}

// DefaultTerminalProfile matches the teacher's unconditioned VT100
// default, expanded with the window dimensions spec.md requires.
func DefaultTerminalProfile() TerminalProfile {
	return TerminalProfile{TermType: "VT100", Width: 132, Height: 100}
}

// doWillHandler answers any negotiation verb (DO, DONT, WILL or WONT)
// directed at option with the reply frame to send (nil for no reply),
// and updates the negotiator's option maps itself.
type doWillHandler func(n *Negotiator, cmd Command, o Option) []byte

// subnegHandler answers an assembled sub-negotiation payload with the
// reply frame to send (nil for no reply).
type subnegHandler func(n *Negotiator, o Option, payload []byte) []byte

// Negotiator is the Telnet stream state machine and option-negotiation
// policy. It has no knowledge of the underlying transport; Client feeds
// it raw bytes and writes the replies it returns.
type Negotiator struct {
	profile TerminalProfile

	ourOptions   map[Option]bool
	theirOptions map[Option]bool

	doWillHandlers map[Option]doWillHandler
	subnegHandlers map[Option]subnegHandler

	state            parserState
	cmd              Command
	subnegOption     Option
	haveSubnegOption bool
	subnegBuf        []byte
}

// NewNegotiator constructs a Negotiator with the given terminal profile.
func NewNegotiator(profile TerminalProfile) *Negotiator {
	n := &Negotiator{
		profile:      profile,
		ourOptions:   make(map[Option]bool),
		theirOptions: make(map[Option]bool),
		state:        stateData,
	}
	n.doWillHandlers = map[Option]doWillHandler{
		TerminalType: terminalTypeDoHandler,
		NAWS:         nawsDoHandler,
	}
	n.subnegHandlers = map[Option]subnegHandler{
		TerminalType: terminalTypeSubnegHandler,
	}
	return n
}

// OurOption reports whether we have agreed to perform o.
func (n *Negotiator) OurOption(o Option) bool { return n.ourOptions[o] }

// TheirOption reports whether the remote peer has announced it will
// perform o.
func (n *Negotiator) TheirOption(o Option) bool { return n.theirOptions[o] }

// InitialNegotiation returns the opening bytes a client sends on connect.
func (n *Negotiator) InitialNegotiation() []byte {
	var out []byte
	out = append(out, EncodeCommand(WILL, SuppressGA)...)
	out = append(out, EncodeCommand(DO, SuppressGA)...)
	out = append(out, EncodeCommand(WONT, Echo)...)
	out = append(out, EncodeCommand(WILL, TerminalType)...)
	out = append(out, EncodeCommand(WILL, NAWS)...)
	return out
}

// HandleCommand consumes a chunk of raw stream bytes, returning the
// user-payload bytes (IAC sequences stripped, escaped 0xFF collapsed)
// and any reply frames the negotiator wants written back, in order.
//
// Parser state persists across calls: an IAC split across two chunks
// is handled correctly.
func (n *Negotiator) HandleCommand(chunk []byte) (data []byte, replies [][]byte) {
	out := make([]byte, 0, len(chunk))
	for _, b := range chunk {
		switch n.state {
		case stateData:
			if Command(b) == IAC {
				n.state = stateIAC
			} else {
				out = append(out, b)
			}

		case stateIAC:
			switch {
			case Command(b) == IAC:
				out = append(out, 0xFF)
				n.state = stateData
			case Command(b) == SB:
				n.subnegBuf = n.subnegBuf[:0]
				n.subnegOption = 0
				n.haveSubnegOption = false
				n.state = stateSubneg
			case IsNegotiation(Command(b)):
				n.cmd = Command(b)
				n.state = stateCommand
			default:
				// Unknown command byte after IAC: dropped silently,
				// robustness over strictness per the negotiation policy.
				n.state = stateData
			}

		case stateCommand:
			reply := n.negotiate(n.cmd, Option(b))
			if len(reply) > 0 {
				replies = append(replies, reply)
			}
			n.state = stateData

		case stateSubneg:
			if Command(b) == IAC {
				n.state = stateSubnegIAC
			} else if !n.haveSubnegOption {
				n.subnegOption = Option(b)
				n.haveSubnegOption = true
			} else {
				n.subnegBuf = append(n.subnegBuf, b)
			}

		case stateSubnegIAC:
			if Command(b) == SE {
				reply := n.handleSubneg(n.subnegOption, n.subnegBuf)
				if len(reply) > 0 {
					replies = append(replies, reply)
				}
				n.state = stateData
			} else {
				n.subnegBuf = append(n.subnegBuf, byte(IAC), b)
				n.state = stateSubneg
			}
		}
	}
	return out, replies
}

// negotiate implements the negotiation policy for an IAC cmd option
// sequence. A registered per-option handler is delegated to
// unconditionally for all four verbs, not just DO/WILL: it is the
// handler's responsibility to decide what (if anything) DONT/WONT
// warrants.
func (n *Negotiator) negotiate(cmd Command, o Option) []byte {
	if h, ok := n.doWillHandlers[o]; ok {
		return h(n, cmd, o)
	}

	switch cmd {
	case DO, WILL:
		ok := accepted(o)
		n.setOption(cmd, o, ok)
		if ok {
			return AcceptResponse(cmd, o)
		}
		return RejectResponse(cmd, o)
	case DONT, WONT:
		n.setOption(cmd, o, false)
		return AcceptResponse(cmd, o)
	default:
		return nil
	}
}

func (n *Negotiator) setOption(cmd Command, o Option, value bool) {
	switch cmd {
	case DO, DONT:
		n.ourOptions[o] = value
	case WILL, WONT:
		n.theirOptions[o] = value
	}
}

func (n *Negotiator) handleSubneg(o Option, payload []byte) []byte {
	if h, ok := n.subnegHandlers[o]; ok {
		return h(n, o, payload)
	}
	return nil
}

// terminalTypeDoHandler agrees to perform TERMINAL_TYPE and replies
// WILL. DONT/WONT/WILL are not ours to act on: no reply, no state
// change.
func terminalTypeDoHandler(n *Negotiator, cmd Command, o Option) []byte {
	if cmd != DO {
		return nil
	}
	n.ourOptions[o] = true
	return EncodeCommand(WILL, o)
}

// terminalTypeSubnegHandler answers a TERMINAL-TYPE SEND sub-negotiation
// with IS <terminal-type>.
func terminalTypeSubnegHandler(n *Negotiator, o Option, payload []byte) []byte {
	if len(payload) == 0 || Operation(payload[0]) != SEND {
		return nil
	}
	sb := append([]byte{byte(IS)}, []byte(n.profile.TermType)...)
	return EncodeSubneg(o, sb)
}

// nawsDoHandler agrees to perform NAWS, replying WILL immediately
// followed by the window-size sub-negotiation frame. DONT/WONT/WILL are
// not ours to act on: no reply, no state change.
func nawsDoHandler(n *Negotiator, cmd Command, o Option) []byte {
	if cmd != DO {
		return nil
	}
	n.ourOptions[o] = true
	reply := EncodeCommand(WILL, o)
	reply = append(reply, EncodeSubneg(o, n.windowSizePayload())...)
	return reply
}

func (n *Negotiator) windowSizePayload() []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint16(buf[0:2], n.profile.Width)
	binary.BigEndian.PutUint16(buf[2:4], n.profile.Height)
	return buf
}
