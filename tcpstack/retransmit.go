package tcpstack

import "log/slog"

// startRetryTimer arms the single-retry timer for the frame identified
// by lastFrameSent (spec.md §4.G "Retransmission").
func (e *Engine) startRetryTimer() {
	e.retryCounter = e.cfg.MaxRetries
	e.timerTicks = 0
	e.timerEpoch = e.clock.Now()
	e.flags |= flagTimerRunning | flagTimerIsRetry
}

// startFinTimer arms the FIN_WAIT_2/TIME_WAIT safety-net timer
// (spec.md §4.G "FIN / TIME_WAIT timer").
func (e *Engine) startFinTimer() {
	e.timerTicks = 0
	e.timerEpoch = e.clock.Now()
	e.flags |= flagTimerRunning
	e.flags &^= flagTimerIsRetry
}

func (e *Engine) stopTimer() {
	e.flags &^= flagTimerRunning | flagTimerIsRetry
}

// advanceTimer evaluates the armed timer against the Clock, resending
// or forcing CLOSED as needed. Called once per Poll (spec.md §5
// "Ordering": timer evaluation happens right after NIC RX drain).
func (e *Engine) advanceTimer() {
	if !e.flags.has(flagTimerRunning) || e.clock == nil {
		return
	}
	ticks := e.clock.TicksSince(e.timerEpoch)
	e.timerTicks = ticks

	if e.flags.has(flagTimerIsRetry) {
		if ticks <= e.cfg.RetryTimeout {
			return
		}
		if e.retryCounter == 0 {
			e.handleTimeout()
			return
		}
		e.retryCounter--
		e.resendLastFrame()
		e.timerEpoch = e.clock.Now()
		e.timerTicks = 0
		e.cfg.Metrics.CountRetransmit()
		return
	}

	// FIN / TIME_WAIT timer: a pragmatic safety net beyond RFC 793
	// (spec.md §4.G, §9).
	if ticks > e.cfg.FinTimeout {
		e.log.debug("fin_timeout", slog.String("state", e.state.String()))
		e.forceClosedPreserveDataAvailable()
	}
}

// resendLastFrame re-emits the frame identified by lastFrameSent
// (spec.md §4.G "Retransmission").
func (e *Engine) resendLastFrame() {
	switch e.lastFrameSent {
	case lastFrameARPRequest:
		e.prepareARPRequest()
	case lastFrameSYN, lastFrameSYNACK, lastFrameFIN:
		e.prepareTCPFrame(e.lastCtrlSeq, e.lastCtrlAck, e.lastCtrlFlags)
	case lastFrameData:
		// tx1 still holds the unacked payload untouched; just re-flag it.
		e.tx1Pending = true
	}
}

// handleTimeout forces CLOSED after MAX_RETRYS exhausted retries with
// no reply (spec.md §4.G, §8 invariant 7).
func (e *Engine) handleTimeout() {
	if e.lastFrameSent == lastFrameARPRequest && !e.flags.has(flagIPAddrResolved) {
		e.cfg.Metrics.CountTimeout("arp")
		e.forceClosed(StatusErrARPTimeout)
		return
	}
	e.cfg.Metrics.CountTimeout("tcp")
	e.forceClosed(StatusErrTCPTimeout)
}
