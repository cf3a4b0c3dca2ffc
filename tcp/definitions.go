// Package tcp implements the wire format of a TCP segment: the fixed
// 20-byte header (24 with the single MSS option this core emits on SYN),
// flags, and the sequence-number arithmetic needed to compare positions in
// the 32-bit sequence space. It does not implement the state machine itself
// — see package tcpstack for the connection engine.
package tcp

import (
	"math/bits"
	"strconv"
)

const sizeHeader = 20

// Value is a TCP sequence or acknowledgment number: an unsigned 32-bit
// quantity that wraps around. Arithmetic on Value must use Add/Less, never
// plain Go comparison operators, since position in the sequence space is
// only meaningful modulo 2^32.
type Value uint32

// Add returns v+delta, wrapping around 2^32 as sequence numbers do.
func Add(v Value, delta Size) Value { return v + Value(delta) }

// Less reports whether a comes strictly before b in the sequence space,
// using signed wraparound subtraction (RFC 793 §3.3) rather than a naive
// unsigned "<" comparison, which breaks the instant either value wraps past
// zero. This is a deliberate correction of the reference firmware this core
// was ported from, which used unsigned "<" directly — see project notes.
func Less(a, b Value) bool { return int32(a-b) < 0 }

// LessEq reports whether a comes at or before b in the sequence space.
func LessEq(a, b Value) bool { return a == b || Less(a, b) }

// InWindow reports whether seq lies in [winStart, winStart+winSize), the
// half-open interval used both for receive-window admission checks and for
// duplicate/gap detection.
func InWindow(seq, winStart Value, winSize Size) bool {
	return LessEq(winStart, seq) && Less(seq, Add(winStart, winSize))
}

// Size is a count of octets in the sequence space (payload length, or a
// window size).
type Size uint32

// Flags is the TCP flags bitset (low byte of the data-offset/reserved/flags word).
type Flags uint16

const (
	FlagFIN Flags = 1 << iota
	FlagSYN
	FlagRST
	FlagPSH
	FlagACK
	FlagURG
)

const flagMask = 0x3f

// Mask returns flags with any non-flag bits cleared.
func (f Flags) Mask() Flags { return f & flagMask }

// Has reports whether every bit in mask is set in f.
func (f Flags) Has(mask Flags) bool { return f&mask == mask }

// HasAny reports whether any bit in mask is set in f.
func (f Flags) HasAny(mask Flags) bool { return f&mask != 0 }

func (f Flags) String() string {
	if f == 0 {
		return "[]"
	}
	const names = "FINSYNRSTPSHACKURG"
	buf := make([]byte, 0, 2+4*bits.OnesCount16(uint16(f)))
	buf = append(buf, '[')
	first := true
	for i := 0; i < 6; i++ {
		if f&(1<<i) == 0 {
			continue
		}
		if !first {
			buf = append(buf, ',')
		}
		first = false
		buf = append(buf, names[i*3:i*3+3]...)
	}
	buf = append(buf, ']')
	return string(buf)
}

// State enumerates the states a TCP connection progresses through, the
// subset of RFC 793's state machine this core implements (spec §3).
type State uint8

const (
	StateClosed State = iota
	StateListen
	StateSynSent
	StateSynRcvd
	StateEstablished
	StateFinWait1
	StateFinWait2
	StateClosing
	StateTimeWait
	StateCloseWait
	StateLastAck
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateListen:
		return "LISTEN"
	case StateSynSent:
		return "SYN_SENT"
	case StateSynRcvd:
		return "SYN_RECD"
	case StateEstablished:
		return "ESTABLISHED"
	case StateFinWait1:
		return "FIN_WAIT_1"
	case StateFinWait2:
		return "FIN_WAIT_2"
	case StateClosing:
		return "CLOSING"
	case StateTimeWait:
		return "TIME_WAIT"
	case StateCloseWait:
		return "CLOSE_WAIT"
	case StateLastAck:
		return "LAST_ACK"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// IsClosed reports whether the state represents no live connection.
func (s State) IsClosed() bool { return s == StateClosed }
