package tcpstack

import "github.com/soypat/easyweb/tcp"

// handleTCPSegment implements the per-state transition table of
// spec.md §4.G "State transitions". seq/ack/flags and payload are the
// already-parsed segment fields; src identifies the sender for the
// states where the peer isn't pinned yet (CLOSED, LISTENING).
func (e *Engine) handleTCPSegment(seq, ack tcp.Value, flags tcp.Flags, payload []byte, srcMAC [6]byte, srcIP [4]byte, srcPort uint16) {
	dataLen := tcp.Size(len(payload))

	switch e.state {
	case tcp.StateClosed:
		e.handleClosed(seq, ack, flags, dataLen, srcMAC, srcIP, srcPort)
	case tcp.StateListen:
		e.handleListen(seq, ack, flags, srcMAC, srcIP, srcPort)
	case tcp.StateSynSent:
		e.handleSynSent(seq, ack, flags, srcIP, srcPort)
	default:
		e.handleOtherStates(seq, ack, flags, payload, dataLen, srcIP, srcPort)
	}
}

// handleClosed answers any non-RST segment with a RST, per spec.md
// §4.G "CLOSED". The peer address is recorded but never used again:
// the connection stays CLOSED.
func (e *Engine) handleClosed(seq, ack tcp.Value, flags tcp.Flags, dataLen tcp.Size, srcMAC [6]byte, srcIP [4]byte, srcPort uint16) {
	if flags.Has(tcp.FlagRST) {
		return
	}
	e.remoteMAC, e.remoteIP, e.remotePort = srcMAC, srcIP, srcPort
	if flags.Has(tcp.FlagACK) {
		e.sendControl(tcp.FlagRST, ack, 0)
		return
	}
	ackVal := tcp.Add(seq, dataLen)
	if flags.HasAny(tcp.FlagSYN | tcp.FlagFIN) {
		ackVal = tcp.Add(ackVal, 1)
	}
	e.sendControl(tcp.FlagRST|tcp.FlagACK, 0, ackVal)
}

// handleListen answers a SYN with SYN|ACK and moves to SYN_RECD, per
// spec.md §4.G "LISTENING".
func (e *Engine) handleListen(seq, ack tcp.Value, flags tcp.Flags, srcMAC [6]byte, srcIP [4]byte, srcPort uint16) {
	if flags.Has(tcp.FlagRST) {
		return
	}
	if flags.Has(tcp.FlagACK) && !flags.Has(tcp.FlagSYN) {
		e.sendControl(tcp.FlagRST, ack, 0)
		return
	}
	if !flags.Has(tcp.FlagSYN) {
		return
	}
	e.remoteMAC, e.remoteIP, e.remotePort = srcMAC, srcIP, srcPort
	e.rcvNxt = tcp.Add(seq, 1)
	isn := e.pickISN()
	e.sndNxt = isn
	e.sndUna = tcp.Add(isn, 1)
	e.sendControl(tcp.FlagSYN|tcp.FlagACK, isn, e.rcvNxt)
	e.lastFrameSent = lastFrameSYNACK
	e.startRetryTimer()
	e.state = tcp.StateSynRcvd
	e.setMetricsState()
}

// handleSynSent implements spec.md §4.G "SYN_SENT", including the
// simultaneous-open branch (SYN without ACK).
func (e *Engine) handleSynSent(seq, ack tcp.Value, flags tcp.Flags, srcIP [4]byte, srcPort uint16) {
	if srcIP != e.remoteIP || srcPort != e.remotePort {
		return
	}
	if flags.Has(tcp.FlagACK) && ack != e.sndUna {
		if !flags.Has(tcp.FlagRST) {
			e.sendControl(tcp.FlagRST, ack, 0)
		}
		return
	}
	if flags.Has(tcp.FlagRST) {
		if flags.Has(tcp.FlagACK) {
			e.forceClosed(StatusErrConnReset)
		}
		return
	}
	if !flags.Has(tcp.FlagSYN) {
		return
	}
	e.rcvNxt = tcp.Add(seq, 1)
	if flags.Has(tcp.FlagACK) {
		e.stopTimer()
		e.sndNxt = e.sndUna
		e.sendControl(tcp.FlagACK, e.sndNxt, e.rcvNxt)
		e.state = tcp.StateEstablished
		e.status |= StatusConnected | StatusTxBufReleased
		e.setMetricsState()
		return
	}
	// Simultaneous open: both sides sent a bare SYN.
	e.sendControl(tcp.FlagSYN|tcp.FlagACK, e.sndNxt, e.rcvNxt)
	e.lastFrameSent = lastFrameSYNACK
	e.startRetryTimer()
	e.state = tcp.StateSynRcvd
	e.setMetricsState()
}

// handleOtherStates implements spec.md §4.G "Other states": the shared
// window check, RST/SYN rejection, duplicate-ACK, ack-acceptance
// transition table, in-window payload acceptance and FIN handling that
// apply to every state other than CLOSED, LISTENING and SYN_SENT.
func (e *Engine) handleOtherStates(seq, ack tcp.Value, flags tcp.Flags, payload []byte, dataLen tcp.Size, srcIP [4]byte, srcPort uint16) {
	if srcIP != e.remoteIP || srcPort != e.remotePort {
		return
	}
	if !tcp.InWindow(seq, e.rcvNxt, tcp.Size(e.cfg.MaxTCPRxData)) {
		return
	}
	if flags.Has(tcp.FlagRST) {
		e.forceClosed(StatusErrConnReset)
		return
	}
	if flags.Has(tcp.FlagSYN) {
		// forceClosed drops pending TX frames, so the RST is queued after it.
		e.forceClosed(StatusErrRemote)
		e.sendControl(tcp.FlagRST, e.sndUna, 0)
		return
	}
	if seq != e.rcvNxt {
		e.sendControl(tcp.FlagACK, e.sndUna, e.rcvNxt)
		return
	}
	if !flags.Has(tcp.FlagACK) {
		return
	}

	if ack == e.sndUna {
		e.stopTimer()
		e.sndNxt = e.sndUna
		switch e.state {
		case tcp.StateSynRcvd:
			e.state = tcp.StateEstablished
			e.status |= StatusConnected
		case tcp.StateEstablished:
			e.status |= StatusTxBufReleased
		case tcp.StateFinWait1:
			e.state = tcp.StateFinWait2
			e.startFinTimer()
		case tcp.StateClosing:
			e.state = tcp.StateTimeWait
			e.startFinTimer()
		case tcp.StateLastAck:
			e.forceClosedPreserveDataAvailable()
			return
		case tcp.StateTimeWait:
			e.sendControl(tcp.FlagACK, e.sndUna, e.rcvNxt)
			e.startFinTimer()
		}
		e.setMetricsState()
	}

	if dataLen > 0 && (e.state == tcp.StateEstablished || e.state == tcp.StateFinWait1 || e.state == tcp.StateFinWait2) {
		if !e.status.Has(StatusDataAvailable) {
			n := copy(e.rxTCP, payload)
			e.rxDataCount = uint16(n)
			e.rcvNxt = tcp.Add(e.rcvNxt, tcp.Size(n))
			e.status |= StatusDataAvailable
			e.sendControl(tcp.FlagACK, e.sndUna, e.rcvNxt)
		}
	}

	if flags.Has(tcp.FlagFIN) {
		e.rcvNxt = tcp.Add(e.rcvNxt, 1)
		e.sendControl(tcp.FlagACK, e.sndUna, e.rcvNxt)
		switch e.state {
		case tcp.StateSynRcvd, tcp.StateEstablished:
			e.state = tcp.StateCloseWait
		case tcp.StateFinWait1:
			e.state = tcp.StateClosing
			e.status &^= StatusConnected
		case tcp.StateFinWait2:
			e.state = tcp.StateTimeWait
			e.status &^= StatusConnected
			e.startFinTimer()
		case tcp.StateTimeWait:
			e.startFinTimer()
		}
		e.setMetricsState()
	}
}

// sendControl is a thin alias over prepareTCPFrame for segment-handler
// call sites. Not every control reply here is subject to retry: plain
// and duplicate ACKs and RSTs are fire-and-forget, since prepareTCPFrame
// records only SYN- and FIN-bearing frames for retransmission.
func (e *Engine) sendControl(flags tcp.Flags, seq, ack tcp.Value) {
	e.prepareTCPFrame(seq, ack, flags)
}
