package tcpstack

import (
	"log/slog"

	"github.com/soypat/easyweb/tcp"
)

// forceClosed drives the connection to CLOSED, clears internal flags
// and replaces the socket status outright with err (spec.md §7
// "Propagation"): ACTIVE/CONNECTED/DATA_AVAILABLE/TX_BUF_RELEASED do
// not survive an error-forced close, matching the reference firmware's
// plain `SocketStatus = SOCK_ERR_*` overwrite.
func (e *Engine) forceClosed(err SocketStatus) {
	e.state = tcp.StateClosed
	e.flags = 0
	e.tx1Pending, e.tx2Pending = false, false
	e.status = err
	e.log.warn("force_closed", slog.String("err", statusErrString(err)))
	e.setMetricsState()
}

// forceClosedPreserveDataAvailable implements the CLOSE_WAIT→LAST_ACK→
// CLOSED and FIN-timeout paths, which clear every flag except
// DATA_AVAILABLE (spec.md §9 "Open questions": preserve the intent of
// the original `SocketStatus &= SOCK_DATA_AVAILABLE`, not its literal
// masking bug).
func (e *Engine) forceClosedPreserveDataAvailable() {
	e.state = tcp.StateClosed
	e.flags = 0
	e.tx1Pending, e.tx2Pending = false, false
	e.status &= StatusDataAvailable
	e.setMetricsState()
}

func (e *Engine) setMetricsState() {
	e.cfg.Metrics.SetState(uint8(e.state))
}

func statusErrString(s SocketStatus) string {
	switch s {
	case StatusErrEthernet:
		return "ERR_ETHERNET"
	case StatusErrConnReset:
		return "ERR_CONN_RESET"
	case StatusErrRemote:
		return "ERR_REMOTE"
	case StatusErrARPTimeout:
		return "ERR_ARP_TIMEOUT"
	case StatusErrTCPTimeout:
		return "ERR_TCP_TIMEOUT"
	case 0:
		return "none"
	default:
		return "multiple"
	}
}
