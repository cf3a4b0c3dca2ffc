package tcpstack

import (
	"log/slog"
	"net/netip"
	"time"

	"github.com/rs/xid"
	"github.com/soypat/easyweb/clock"
	"github.com/soypat/easyweb/nic"
	"github.com/soypat/easyweb/tcp"
)

const (
	ethHdr  = 14
	ipHdr   = 20
	tcpHdr  = 20
	icmpHdr = 8
)

// Engine is the single-connection TCP/IP core: one value owns the
// entire connection state (spec.md §3/§9 "global singleton state"),
// an Nic handle and a Clock handle, so tests can run many independent
// Engines concurrently against independent SimNICs.
type Engine struct {
	cfg   Config
	nic   nic.Nic
	clock *clock.Source
	log   logger

	state      tcp.State
	sndNxt     tcp.Value
	sndUna     tcp.Value
	rcvNxt     tcp.Value
	remoteMAC  [6]byte
	remoteIP   [4]byte
	remotePort uint16

	lastFrameSent lastFrame
	// lastCtrl* records the exact seq/ack/flags of the last SYN- or
	// FIN-bearing control frame built by prepareTCPFrame, so a retry can
	// rebuild it byte for byte instead of guessing back from engine state.
	lastCtrlSeq   tcp.Value
	lastCtrlAck   tcp.Value
	lastCtrlFlags tcp.Flags
	flags         connFlags
	status        SocketStatus

	retryCounter uint8
	timerTicks   uint32
	timerEpoch   time.Time
	isnEpoch     time.Time // fixed reference point isnHigh counts ticks from
	isnHigh      uint16

	tx1        []byte // scratch buffer for TCP data frames
	tx1Pending bool
	tx1Size    uint16
	txDataLen  uint16 // payload length staged in tx1 by the application

	tx2        []byte // ARP/ICMP/TCP-control scratch buffer
	tx2Pending bool
	tx2Size    uint16

	rxTCP       []byte
	rxDataCount uint16

	rxScratch []byte // reusable decode buffer for one inbound frame

	connID xid.ID
}

// New returns an Engine driven by n and c, configured per cfg. The
// Engine starts CLOSED; call LowLevelInit before use (spec.md §4.H),
// matching the reference firmware's explicit init call rather than an
// implicit ready-on-construction contract.
func New(cfg Config, n nic.Nic, c *clock.Source) *Engine {
	e := &Engine{
		cfg:   cfg,
		nic:   n,
		clock: c,
		log:   logger{log: cfg.Logger},
	}
	e.tx1 = make([]byte, 0, ethHdr+ipHdr+tcpHdr+int(cfg.MaxTCPTxData))
	e.tx2 = make([]byte, 0, ethHdr+int(cfg.MaxEthTxData))
	e.rxTCP = make([]byte, cfg.MaxTCPRxData)
	scratch := ethHdr + ipHdr + tcpHdr + int(cfg.MaxTCPRxData)
	if alt := ethHdr + int(cfg.MaxEthTxData); alt > scratch {
		scratch = alt
	}
	e.rxScratch = make([]byte, scratch)
	return e
}

// pickISN derives an Initial Sequence Number from the free-running
// isn_high tick counter and the Clock's low-order bits, standing in
// for the hardware timer TAR the reference firmware reads directly
// (spec.md §4.G "LISTENING", §9 "Open questions").
func (e *Engine) pickISN() tcp.Value {
	return tcp.Value(uint32(e.isnHigh)<<16 | uint32(e.clock.ISNLow()))
}

// advanceISNHigh keeps isn_high ticking every poll regardless of
// whatever connection timer is armed (spec.md §3: "isn_high: 16-bit,
// incremented every tick"), counting ticks from the fixed isnEpoch set
// once at LowLevelInit rather than from a timer epoch that keeps
// getting reset.
func (e *Engine) advanceISNHigh() {
	if e.clock == nil {
		return
	}
	e.isnHigh = uint16(e.clock.TicksSince(e.isnEpoch))
}

// State returns the current TCP state.
func (e *Engine) State() tcp.State { return e.state }

// Status returns the user-visible socket status bitset.
func (e *Engine) Status() SocketStatus { return e.status }

// RxData returns the payload currently held pending release, valid
// only while Status().Has(StatusDataAvailable).
func (e *Engine) RxData() []byte { return e.rxTCP[:e.rxDataCount] }

// SetRemote configures the peer address an active open will target.
// Must be called before ActiveOpen (spec.md §4.H).
func (e *Engine) SetRemote(ip [4]byte, port uint16) {
	e.remoteIP = ip
	e.remotePort = port
}

// LowLevelInit resets all connection state to CLOSED and clears the
// socket status, then leaves the Nic/Clock ready for use (spec.md
// §4.H). It must not be called while the application still holds a
// reference to the RX buffer (spec.md §5 "Cancellation").
func (e *Engine) LowLevelInit() {
	e.state = tcp.StateClosed
	e.sndNxt, e.sndUna, e.rcvNxt = 0, 0, 0
	e.remoteMAC, e.remoteIP, e.remotePort = [6]byte{}, [4]byte{}, 0
	e.lastFrameSent = lastFrameNone
	e.flags = 0
	e.status = 0
	e.retryCounter = 0
	e.timerTicks = 0
	e.isnHigh = 0
	e.tx1Pending, e.tx2Pending = false, false
	e.tx1Size, e.tx2Size = 0, 0
	e.rxDataCount = 0
	if e.clock != nil {
		e.timerEpoch = e.clock.Now()
		e.isnEpoch = e.clock.Now()
	}
	e.setMetricsState()
	e.log.info("low_level_init")
}

// PassiveOpen transitions CLOSED→LISTENING. A no-op in any other state
// (spec.md §4.H).
func (e *Engine) PassiveOpen() {
	if e.state != tcp.StateClosed {
		return
	}
	e.state = tcp.StateListen
	e.status |= StatusActive
	e.connID = xid.New()
	e.log.info("passive_open", attrConn(e.connID))
	e.setMetricsState()
}

// ActiveOpen begins resolving the configured remote address and
// emitting a SYN once resolved. remote_ip/remote_port must already be
// set via SetRemote. Valid from CLOSED or LISTENING only (spec.md §4.H).
func (e *Engine) ActiveOpen() {
	if e.state != tcp.StateClosed && e.state != tcp.StateListen {
		return
	}
	e.status |= StatusActive
	e.flags |= flagActiveOpen
	e.flags &^= flagIPAddrResolved
	e.connID = xid.New()
	e.log.info("active_open", attrConn(e.connID), attrIP("remote", e.remoteIP))
	e.prepareARPRequest()
	e.startRetryTimer()
}

// Close begins a graceful teardown. In LISTEN/SYN_SENT the connection
// drops immediately and silently; in SYN_RECD/ESTABLISHED it requests
// a FIN be emitted once all outstanding data is acknowledged (spec.md
// §4.H).
func (e *Engine) Close() {
	switch e.state {
	case tcp.StateListen, tcp.StateSynSent:
		e.forceClosed(0)
	case tcp.StateSynRcvd, tcp.StateEstablished:
		e.flags |= flagCloseRequested
	}
}

// ReleaseRxBuffer clears DATA_AVAILABLE, allowing the next in-window
// payload to be accepted (spec.md §4.H, Invariant 2).
func (e *Engine) ReleaseRxBuffer() {
	e.status &^= StatusDataAvailable
	e.rxDataCount = 0
}

// TransmitTxBuffer copies payload into a data frame in tx1 and queues
// it for transmission. Valid only in ESTABLISHED/CLOSE_WAIT with
// TX_BUF_RELEASED set (spec.md §4.H); a call in any other condition
// is ignored.
func (e *Engine) TransmitTxBuffer(payload []byte) {
	if (e.state != tcp.StateEstablished && e.state != tcp.StateCloseWait) ||
		!e.status.Has(StatusTxBufReleased) {
		return
	}
	e.status &^= StatusTxBufReleased
	e.txDataLen = uint16(len(payload))
	seq := e.sndNxt // snd_nxt == snd_una here: all prior data acked (TX_BUF_RELEASED precondition)
	e.sndUna = tcp.Add(e.sndUna, tcp.Size(e.txDataLen))
	e.prepareTCPDataFrame(seq, payload)
	e.lastFrameSent = lastFrameData
	e.startRetryTimer()
}

func attrConn(id xid.ID) slog.Attr { return slog.String("conn", id.String()) }

func attrIP(key string, ip [4]byte) slog.Attr {
	return slog.String(key, netip.AddrFrom4(ip).String())
}
