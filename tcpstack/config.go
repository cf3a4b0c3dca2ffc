package tcpstack

import (
	"log/slog"

	"github.com/soypat/easyweb/metrics"
)

// Config holds the compile-time parameters of one easyWEB connection:
// local identity, buffer sizes and timer budgets (spec.md §3). The
// embedded core treats this as fixed at construction; the Logger and
// Metrics fields are the only ambient additions and are both nil-safe.
type Config struct {
	LocalMAC   [6]byte
	LocalIP    [4]byte
	SubnetMask [4]byte
	Gateway    [4]byte
	LocalPort  uint16

	MaxTCPRxData uint16 // MAX_TCP_RX_DATA_SIZE
	MaxTCPTxData uint16 // MAX_TCP_TX_DATA_SIZE
	MaxEthTxData uint16 // MAX_ETH_TX_DATA_SIZE

	RetryTimeout uint32 // ticks
	FinTimeout   uint32 // ticks
	MaxRetries   uint8
	DefaultTTL   uint8

	// Logger receives lifecycle events: init, passive/active open, ARP
	// resolution, forced closes and FIN-timer expiry. Dropped frames and
	// ordinary state transitions are not logged. A nil Logger disables
	// logging entirely.
	Logger *slog.Logger
	// Metrics receives counters/gauges for received and dropped frames,
	// transmitted ARP, ICMP and TCP control frames (data frames are not
	// counted), ARP resolutions, retransmissions, timeouts and the current
	// state. A nil Metrics disables instrumentation entirely.
	Metrics *metrics.Set
}

// SocketStatus is the user-visible status bitset (spec.md §3).
type SocketStatus uint16

const (
	StatusActive SocketStatus = 1 << iota
	StatusConnected
	StatusDataAvailable
	StatusTxBufReleased
	StatusErrEthernet
	StatusErrConnReset
	StatusErrRemote
	StatusErrARPTimeout
	StatusErrTCPTimeout
)

func (s SocketStatus) Has(bit SocketStatus) bool { return s&bit != 0 }

func (s SocketStatus) String() string {
	if s == 0 {
		return "[]"
	}
	names := []struct {
		bit  SocketStatus
		name string
	}{
		{StatusActive, "ACTIVE"},
		{StatusConnected, "CONNECTED"},
		{StatusDataAvailable, "DATA_AVAILABLE"},
		{StatusTxBufReleased, "TX_BUF_RELEASED"},
		{StatusErrEthernet, "ERR_ETHERNET"},
		{StatusErrConnReset, "ERR_CONN_RESET"},
		{StatusErrRemote, "ERR_REMOTE"},
		{StatusErrARPTimeout, "ERR_ARP_TIMEOUT"},
		{StatusErrTCPTimeout, "ERR_TCP_TIMEOUT"},
	}
	out := "["
	first := true
	for _, n := range names {
		if !s.Has(n.bit) {
			continue
		}
		if !first {
			out += ","
		}
		first = false
		out += n.name
	}
	return out + "]"
}

// connFlags is the internal bitset tracked alongside TCP state
// (spec.md §3 "flags").
type connFlags uint8

const (
	flagActiveOpen connFlags = 1 << iota
	flagIPAddrResolved
	flagTimerRunning
	flagTimerIsRetry
	flagCloseRequested
)

func (f connFlags) has(bit connFlags) bool { return f&bit != 0 }

// lastFrame identifies which builder to re-invoke on retransmission
// (spec.md §3 "last_frame_sent").
type lastFrame uint8

const (
	lastFrameNone lastFrame = iota
	lastFrameARPRequest
	lastFrameSYN
	lastFrameSYNACK
	lastFrameFIN
	lastFrameData
)
