package tcpstack

import (
	"testing"

	"github.com/soypat/easyweb"
	"github.com/soypat/easyweb/arp"
	"github.com/soypat/easyweb/ethernet"
	"github.com/soypat/easyweb/ipv4"
	"github.com/soypat/easyweb/tcp"
)

// The builders below construct frames from the simulated peer's
// perspective, using this module's own wire-format packages, to drive
// SimNIC scenarios identically to the CLI demo.

func testConfig() Config {
	return Config{
		LocalMAC:     [6]byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		LocalIP:      [4]byte{192, 168, 1, 2},
		SubnetMask:   [4]byte{255, 255, 255, 0},
		Gateway:      [4]byte{192, 168, 1, 1},
		LocalPort:    80,
		MaxTCPRxData: 536,
		MaxTCPTxData: 536,
		MaxEthTxData: 600,
		RetryTimeout: 3,
		FinTimeout:   10,
		MaxRetries:   2,
		DefaultTTL:   64,
	}
}

func buildPeerARPReply(peerMAC [6]byte, peerIP [4]byte, cfg Config) []byte {
	buf := make([]byte, 14+28)
	efrm, _ := ethernet.NewFrame(buf)
	*efrm.DestinationHardwareAddr() = cfg.LocalMAC
	*efrm.SourceHardwareAddr() = peerMAC
	efrm.SetEtherType(ethernet.TypeARP)

	afrm, _ := arp.NewFrame(efrm.Payload())
	afrm.SetHeader(arp.OpReply)
	sh, sp := afrm.Sender()
	*sh, *sp = peerMAC, peerIP
	th, tp := afrm.Target()
	*th, *tp = cfg.LocalMAC, cfg.LocalIP
	return buf
}

func buildPeerARPRequest(peerMAC [6]byte, peerIP [4]byte, targetIP [4]byte) []byte {
	buf := make([]byte, 14+28)
	efrm, _ := ethernet.NewFrame(buf)
	*efrm.DestinationHardwareAddr() = ethernet.BroadcastAddr()
	*efrm.SourceHardwareAddr() = peerMAC
	efrm.SetEtherType(ethernet.TypeARP)

	afrm, _ := arp.NewFrame(efrm.Payload())
	afrm.SetHeader(arp.OpRequest)
	sh, sp := afrm.Sender()
	*sh, *sp = peerMAC, peerIP
	_, tp := afrm.Target()
	*tp = targetIP
	return buf
}

func buildPeerSegment(peerMAC [6]byte, peerIP [4]byte, peerPort uint16, cfg Config, seq, ack tcp.Value, flags tcp.Flags, payload []byte) []byte {
	buf := make([]byte, 14+20+20+len(payload))
	efrm, _ := ethernet.NewFrame(buf)
	*efrm.DestinationHardwareAddr() = cfg.LocalMAC
	*efrm.SourceHardwareAddr() = peerMAC
	efrm.SetEtherType(ethernet.TypeIPv4)

	ifrm, _ := ipv4.NewFrame(efrm.Payload())
	ifrm.SetVersionAndIHL(4, 5)
	ifrm.SetTotalLength(uint16(20 + 20 + len(payload)))
	ifrm.SetFlags(ipv4.Flags(0x4000))
	ifrm.SetTTL(64)
	ifrm.SetProtocol(easyweb.IPProtoTCP)
	*ifrm.SourceAddr() = peerIP
	*ifrm.DestinationAddr() = cfg.LocalIP
	ifrm.SetCRC(ifrm.CalculateHeaderCRC())

	tfrm, _ := tcp.NewFrame(ifrm.Payload())
	tfrm.SetSourcePort(peerPort)
	tfrm.SetDestinationPort(cfg.LocalPort)
	tfrm.SetSeq(seq)
	tfrm.SetAck(ack)
	tfrm.SetOffsetAndFlags(5, flags)
	tfrm.SetWindowSize(cfg.MaxTCPTxData)
	copy(tfrm.Payload(), payload)
	tfrm.SetCRC(0)
	tfrm.SetCRC(tfrm.CalculateCRC(peerIP, cfg.LocalIP))
	return buf
}

// parseOutboundTCP decodes a frame popped off a SimNIC's TX queue,
// returning its TCP layer fields for assertions.
func parseOutboundTCP(t *testing.T, frame []byte) (seq, ack tcp.Value, flags tcp.Flags, payload []byte) {
	efrm, err := ethernet.NewFrame(frame)
	if err != nil {
		t.Fatal(err)
	}
	ifrm, err := ipv4.NewFrame(efrm.Payload())
	if err != nil {
		t.Fatal(err)
	}
	tfrm, err := tcp.NewFrame(ifrm.Payload())
	if err != nil {
		t.Fatal(err)
	}
	_, fl := tfrm.OffsetAndFlags()
	return tfrm.Seq(), tfrm.Ack(), fl, tfrm.Payload()
}
