package tcpstack

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/soypat/easyweb/arp"
	"github.com/soypat/easyweb/clock"
	"github.com/soypat/easyweb/ethernet"
	"github.com/soypat/easyweb/nic"
	"github.com/soypat/easyweb/tcp"
)

var peerMAC = [6]byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}
var peerIP = [4]byte{192, 168, 1, 100}

func newTestEngine(t *testing.T) (*Engine, *nic.SimNIC, clockwork.FakeClock) {
	t.Helper()
	fc := clockwork.NewFakeClock()
	sim := nic.NewSimNIC()
	e := New(testConfig(), sim, clock.New(fc))
	e.LowLevelInit()
	return e, sim, fc
}

// TestPassiveAcceptAndEcho drives a full passive open through a
// one-byte echo and release of the RX buffer.
func TestPassiveAcceptAndEcho(t *testing.T) {
	e, sim, _ := newTestEngine(t)
	cfg := testConfig()
	e.PassiveOpen()
	if e.State() != tcp.StateListen {
		t.Fatalf("State() = %v, want LISTEN", e.State())
	}

	peerISN := tcp.Value(1000)
	sim.PushRX(buildPeerSegment(peerMAC, peerIP, 54321, cfg, peerISN, 0, tcp.FlagSYN, nil), nic.RXOK|nic.RXIndividualAddr)
	e.Poll()
	if e.State() != tcp.StateSynRcvd {
		t.Fatalf("State() after SYN = %v, want SYN_RCVD", e.State())
	}
	synack := sim.PopTX()
	if synack == nil {
		t.Fatal("expected a SYN|ACK to have been transmitted")
	}
	seq, ack, flags, _ := parseOutboundTCP(t, synack)
	if !flags.Has(tcp.FlagSYN) || !flags.Has(tcp.FlagACK) {
		t.Fatalf("flags = %v, want SYN|ACK", flags)
	}
	if ack != tcp.Add(peerISN, 1) {
		t.Fatalf("ack = %d, want %d", ack, tcp.Add(peerISN, 1))
	}

	sim.PushRX(buildPeerSegment(peerMAC, peerIP, 54321, cfg, tcp.Add(peerISN, 1), tcp.Add(seq, 1), tcp.FlagACK, nil), nic.RXOK|nic.RXIndividualAddr)
	e.Poll()
	if e.State() != tcp.StateEstablished {
		t.Fatalf("State() after final ACK = %v, want ESTABLISHED", e.State())
	}
	if !e.Status().Has(StatusConnected) {
		t.Fatal("StatusConnected not set after handshake completed")
	}

	payload := []byte("x")
	sim.PushRX(buildPeerSegment(peerMAC, peerIP, 54321, cfg, tcp.Add(peerISN, 1), tcp.Add(seq, 1), tcp.FlagPSH|tcp.FlagACK, payload), nic.RXOK|nic.RXIndividualAddr)
	e.Poll()
	if !e.Status().Has(StatusDataAvailable) {
		t.Fatal("StatusDataAvailable not set after in-window payload")
	}
	if string(e.RxData()) != "x" {
		t.Fatalf("RxData() = %q, want %q", e.RxData(), "x")
	}
	dataAck := sim.PopTX()
	if dataAck == nil {
		t.Fatal("expected an ACK for the received payload")
	}
	_, ackVal, ackFlags, _ := parseOutboundTCP(t, dataAck)
	if !ackFlags.Has(tcp.FlagACK) {
		t.Fatalf("flags = %v, want ACK", ackFlags)
	}
	if ackVal != tcp.Add(peerISN, 2) {
		t.Fatalf("ack = %d, want %d", ackVal, tcp.Add(peerISN, 2))
	}

	e.ReleaseRxBuffer()
	if e.Status().Has(StatusDataAvailable) {
		t.Fatal("StatusDataAvailable still set after ReleaseRxBuffer")
	}
}

// TestActiveOpenViaARP exercises ARP resolution followed by the
// active-open three-way handshake.
func TestActiveOpenViaARP(t *testing.T) {
	e, sim, _ := newTestEngine(t)
	cfg := testConfig()
	e.SetRemote(peerIP, 8080)
	e.ActiveOpen()
	e.Poll() // flushes the ARP request prepared by ActiveOpen

	arpReq := sim.PopTX()
	if arpReq == nil {
		t.Fatal("expected an ARP request to be sent")
	}

	sim.PushRX(buildPeerARPReply(peerMAC, peerIP, cfg), nic.RXOK|nic.RXIndividualAddr)
	e.Poll()

	if e.State() != tcp.StateSynSent {
		t.Fatalf("State() after ARP resolved = %v, want SYN_SENT", e.State())
	}
	syn := sim.PopTX()
	if syn == nil {
		t.Fatal("expected a SYN once the peer MAC resolved")
	}
	seq, _, flags, _ := parseOutboundTCP(t, syn)
	if flags.Has(tcp.FlagACK) || !flags.Has(tcp.FlagSYN) {
		t.Fatalf("flags = %v, want bare SYN", flags)
	}

	peerISN := tcp.Value(5000)
	sim.PushRX(buildPeerSegment(peerMAC, peerIP, 8080, cfg, peerISN, tcp.Add(seq, 1), tcp.FlagSYN|tcp.FlagACK, nil), nic.RXOK|nic.RXIndividualAddr)
	e.Poll()
	if e.State() != tcp.StateEstablished {
		t.Fatalf("State() after SYN|ACK = %v, want ESTABLISHED", e.State())
	}
	finalAck := sim.PopTX()
	if finalAck == nil {
		t.Fatal("expected a final ACK completing the handshake")
	}
	_, ack, flags2, _ := parseOutboundTCP(t, finalAck)
	if flags2.Has(tcp.FlagSYN) || !flags2.Has(tcp.FlagACK) {
		t.Fatalf("flags = %v, want pure ACK", flags2)
	}
	if ack != tcp.Add(peerISN, 1) {
		t.Fatalf("ack = %d, want %d", ack, tcp.Add(peerISN, 1))
	}
}

// TestSimultaneousOpen exercises SYN_SENT receiving a bare SYN (no
// ACK) from the peer, per spec.md's simultaneous-open branch.
func TestSimultaneousOpen(t *testing.T) {
	e, sim, _ := newTestEngine(t)
	cfg := testConfig()
	e.SetRemote(peerIP, 8080)
	e.ActiveOpen()
	e.Poll() // flushes the ARP request prepared by ActiveOpen
	sim.PopTX()
	sim.PushRX(buildPeerARPReply(peerMAC, peerIP, cfg), nic.RXOK|nic.RXIndividualAddr)
	e.Poll()
	sim.PopTX() // our own SYN

	peerISN := tcp.Value(7000)
	sim.PushRX(buildPeerSegment(peerMAC, peerIP, 8080, cfg, peerISN, 0, tcp.FlagSYN, nil), nic.RXOK|nic.RXIndividualAddr)
	e.Poll()
	if e.State() != tcp.StateSynRcvd {
		t.Fatalf("State() after simultaneous SYN = %v, want SYN_RCVD", e.State())
	}
	reply := sim.PopTX()
	if reply == nil {
		t.Fatal("expected a SYN|ACK reply to the simultaneous SYN")
	}
	_, ack, flags, _ := parseOutboundTCP(t, reply)
	if !flags.Has(tcp.FlagSYN) || !flags.Has(tcp.FlagACK) {
		t.Fatalf("flags = %v, want SYN|ACK", flags)
	}
	if ack != tcp.Add(peerISN, 1) {
		t.Fatalf("ack = %d, want %d", ack, tcp.Add(peerISN, 1))
	}
}

// TestGracefulClose drives ESTABLISHED through a locally-initiated
// Close() to TIME_WAIT via FIN_WAIT_1/FIN_WAIT_2.
func TestGracefulClose(t *testing.T) {
	e, sim, _ := newTestEngine(t)
	cfg := testConfig()
	establishPassive(t, e, sim, cfg)

	e.Close()
	e.Poll()
	if e.State() != tcp.StateFinWait1 {
		t.Fatalf("State() after Close = %v, want FIN_WAIT_1", e.State())
	}
	fin := sim.PopTX()
	if fin == nil {
		t.Fatal("expected a FIN|ACK to be sent")
	}
	finSeq, finAck, flags, _ := parseOutboundTCP(t, fin)
	if !flags.Has(tcp.FlagFIN) || !flags.Has(tcp.FlagACK) {
		t.Fatalf("flags = %v, want FIN|ACK", flags)
	}

	sim.PushRX(buildPeerSegment(peerMAC, peerIP, 54321, cfg, finAck, tcp.Add(finSeq, 1), tcp.FlagACK, nil), nic.RXOK|nic.RXIndividualAddr)
	e.Poll()
	if e.State() != tcp.StateFinWait2 {
		t.Fatalf("State() after FIN ACKed = %v, want FIN_WAIT_2", e.State())
	}

	sim.PushRX(buildPeerSegment(peerMAC, peerIP, 54321, cfg, finAck, tcp.Add(finSeq, 1), tcp.FlagFIN|tcp.FlagACK, nil), nic.RXOK|nic.RXIndividualAddr)
	e.Poll()
	if e.State() != tcp.StateTimeWait {
		t.Fatalf("State() after peer FIN = %v, want TIME_WAIT", e.State())
	}
	if e.Status().Has(StatusConnected) {
		t.Fatal("StatusConnected still set in TIME_WAIT")
	}
}

// TestRSTForcesClosed confirms an in-window RST during ESTABLISHED
// forces the connection CLOSED with ERR_CONN_RESET set.
func TestRSTForcesClosed(t *testing.T) {
	e, sim, _ := newTestEngine(t)
	cfg := testConfig()
	establishPassive(t, e, sim, cfg)

	sim.PushRX(buildPeerSegment(peerMAC, peerIP, 54321, cfg, e.rcvNxt, e.sndUna, tcp.FlagRST, nil), nic.RXOK|nic.RXIndividualAddr)
	e.Poll()
	if e.State() != tcp.StateClosed {
		t.Fatalf("State() after RST = %v, want CLOSED", e.State())
	}
	if !e.Status().Has(StatusErrConnReset) {
		t.Fatal("StatusErrConnReset not set after RST")
	}
	if e.Status() != StatusErrConnReset {
		t.Fatalf("Status() = %v, want only StatusErrConnReset (ACTIVE/CONNECTED must not survive a forced close)", e.Status())
	}
}

// TestRetryTimeoutForcesClosed exercises the single-retry timer
// exhausting MaxRetries with no reply, forcing CLOSED with
// ERR_ARP_TIMEOUT.
func TestRetryTimeoutForcesClosed(t *testing.T) {
	e, sim, fc := newTestEngine(t)
	cfg := testConfig()
	e.SetRemote(peerIP, 8080)
	e.ActiveOpen()
	e.Poll() // flushes the initial ARP request
	if sim.PopTX() == nil {
		t.Fatal("expected the initial ARP request")
	}

	for i := uint8(0); i <= cfg.MaxRetries; i++ {
		fc.Advance(clock.TickInterval * time.Duration(cfg.RetryTimeout+1))
		e.Poll()
	}
	if e.State() != tcp.StateClosed {
		t.Fatalf("State() after retries exhausted = %v, want CLOSED", e.State())
	}
	if !e.Status().Has(StatusErrARPTimeout) {
		t.Fatalf("Status() = %v, want ERR_ARP_TIMEOUT set", e.Status())
	}
}

// TestARPRequestAnsweredWhileListening confirms the engine answers an
// ARP request targeting its own address while in LISTEN.
func TestARPRequestAnsweredWhileListening(t *testing.T) {
	e, sim, _ := newTestEngine(t)
	cfg := testConfig()
	e.PassiveOpen()

	sim.PushRX(buildPeerARPRequest(peerMAC, peerIP, cfg.LocalIP), nic.RXOK|nic.RXBroadcast)
	e.Poll()

	reply := sim.PopTX()
	if reply == nil {
		t.Fatal("expected an ARP reply")
	}
	efrm, err := ethernet.NewFrame(reply)
	if err != nil {
		t.Fatal(err)
	}
	afrm, err := arp.NewFrame(efrm.Payload())
	if err != nil {
		t.Fatal(err)
	}
	if afrm.Operation() != arp.OpReply {
		t.Fatalf("Operation() = %v, want Reply", afrm.Operation())
	}
	sh, sp := afrm.Sender()
	if *sh != cfg.LocalMAC || *sp != cfg.LocalIP {
		t.Fatalf("sender = (%x, %v), want (%x, %v)", *sh, *sp, cfg.LocalMAC, cfg.LocalIP)
	}
}

// TestClosedRespondsRST confirms an unsolicited segment while CLOSED
// is answered with a RST, per spec.md's CLOSED transition.
func TestClosedRespondsRST(t *testing.T) {
	e, sim, _ := newTestEngine(t)
	cfg := testConfig()
	sim.PushRX(buildPeerSegment(peerMAC, peerIP, 54321, cfg, 500, 0, tcp.FlagSYN, nil), nic.RXOK|nic.RXIndividualAddr)
	e.Poll()
	reply := sim.PopTX()
	if reply == nil {
		t.Fatal("expected a RST|ACK reply while CLOSED")
	}
	_, _, flags, _ := parseOutboundTCP(t, reply)
	if !flags.Has(tcp.FlagRST) {
		t.Fatalf("flags = %v, want RST set", flags)
	}
	if e.State() != tcp.StateClosed {
		t.Fatalf("State() = %v, want still CLOSED", e.State())
	}
}

// establishPassive drives a passive open to ESTABLISHED, used as setup
// by tests exercising post-handshake behavior.
func establishPassive(t *testing.T, e *Engine, sim *nic.SimNIC, cfg Config) {
	t.Helper()
	e.PassiveOpen()
	peerISN := tcp.Value(1000)
	sim.PushRX(buildPeerSegment(peerMAC, peerIP, 54321, cfg, peerISN, 0, tcp.FlagSYN, nil), nic.RXOK|nic.RXIndividualAddr)
	e.Poll()
	synack := sim.PopTX()
	seq, _, _, _ := parseOutboundTCP(t, synack)
	sim.PushRX(buildPeerSegment(peerMAC, peerIP, 54321, cfg, tcp.Add(peerISN, 1), tcp.Add(seq, 1), tcp.FlagACK, nil), nic.RXOK|nic.RXIndividualAddr)
	e.Poll()
	if e.State() != tcp.StateEstablished {
		t.Fatalf("establishPassive: State() = %v, want ESTABLISHED", e.State())
	}
}
