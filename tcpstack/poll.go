package tcpstack

import (
	"github.com/soypat/easyweb/nic"
	"github.com/soypat/easyweb/tcp"
)

// Poll drives one iteration of the engine: RX dispatch, timer
// evaluation, state-driven emission, then TX flush, in that order
// (spec.md §5 "Ordering"). At most one RX frame is consumed and at
// most one tx1 and one tx2 frame are emitted per call.
func (e *Engine) Poll() {
	e.advanceISNHigh()
	stat := e.nic.RxEvent()
	if stat&nic.RXOK != 0 {
		e.handleRxFrame(stat)
	}
	e.advanceTimer()
	e.emitStateTransmissions()
	e.flushTx()
}

// emitStateTransmissions implements spec.md §4.G "Transmit path in
// poll()": opportunistic emission driven purely by current state and
// flags, independent of any just-received segment.
func (e *Engine) emitStateTransmissions() {
	switch {
	case (e.state == tcp.StateClosed || e.state == tcp.StateListen) &&
		e.flags.has(flagActiveOpen) && e.flags.has(flagIPAddrResolved) && !e.tx2Pending:
		isn := e.pickISN()
		e.sndNxt = isn
		e.sndUna = tcp.Add(isn, 1)
		e.sendControl(tcp.FlagSYN, isn, 0)
		e.lastFrameSent = lastFrameSYN
		e.startRetryTimer()
		e.state = tcp.StateSynSent
		e.setMetricsState()

	case (e.state == tcp.StateSynRcvd || e.state == tcp.StateEstablished) &&
		e.flags.has(flagCloseRequested) && !e.tx1Pending && !e.tx2Pending && e.sndUna == e.sndNxt:
		e.sndUna = tcp.Add(e.sndUna, 1)
		e.sendControl(tcp.FlagFIN|tcp.FlagACK, e.sndNxt, e.rcvNxt)
		e.lastFrameSent = lastFrameFIN
		e.startRetryTimer()
		e.state = tcp.StateFinWait1
		e.setMetricsState()

	case e.state == tcp.StateCloseWait && !e.tx1Pending && !e.tx2Pending && e.sndUna == e.sndNxt:
		e.sndUna = tcp.Add(e.sndUna, 1)
		e.sendControl(tcp.FlagFIN|tcp.FlagACK, e.sndNxt, e.rcvNxt)
		e.lastFrameSent = lastFrameFIN
		e.startRetryTimer()
		e.state = tcp.StateLastAck
		e.setMetricsState()
	}
}

// flushTx hands pending frames to the Nic, control path (tx2) before
// data path (tx1). A refusal at either step forces CLOSED with
// ERR_ETHERNET (spec.md §4.G "Transmit path in poll()").
func (e *Engine) flushTx() {
	if e.tx2Pending {
		e.nic.CopyToFrame(e.tx2[:e.tx2Size])
		if !e.nic.RequestSend(e.tx2Size) {
			e.forceClosed(StatusErrEthernet)
			return
		}
		e.tx2Pending = false
	}
	if e.tx1Pending {
		e.nic.CopyToFrame(e.tx1[:e.tx1Size])
		if !e.nic.RequestSend(e.tx1Size) {
			e.forceClosed(StatusErrEthernet)
			return
		}
		e.tx1Pending = false
	}
}
