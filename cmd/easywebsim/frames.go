package main

import (
	"github.com/soypat/easyweb"
	"github.com/soypat/easyweb/arp"
	"github.com/soypat/easyweb/ethernet"
	"github.com/soypat/easyweb/ipv4"
	"github.com/soypat/easyweb/tcp"
	"github.com/soypat/easyweb/tcpstack"
)

// The builders below construct frames from the peer's perspective,
// using this module's own wire-format packages rather than a second
// hand-rolled byte layout, to drive SimNIC scenarios in the demo CLI.

func buildARPRequest(peerMAC [6]byte, peerIP [4]byte, targetIP [4]byte) []byte {
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

func buildSYN(peerMAC [6]byte, peerIP [4]byte, peerPort uint16, cfg tcpstack.Config, isn tcp.Value) []byte {
	return buildSegment(peerMAC, peerIP, peerPort, cfg, isn, 0, tcp.FlagSYN, nil)
}

func buildACK(peerMAC [6]byte, peerIP [4]byte, peerPort uint16, cfg tcpstack.Config, seq, ack tcp.Value) []byte {
	return buildSegment(peerMAC, peerIP, peerPort, cfg, seq, ack, tcp.FlagACK, nil)
}

func buildData(peerMAC [6]byte, peerIP [4]byte, peerPort uint16, cfg tcpstack.Config, seq, ack tcp.Value, payload []byte) []byte {
	return buildSegment(peerMAC, peerIP, peerPort, cfg, seq, ack, tcp.FlagPSH|tcp.FlagACK, payload)
}

func buildSegment(peerMAC [6]byte, peerIP [4]byte, peerPort uint16, cfg tcpstack.Config, seq, ack tcp.Value, flags tcp.Flags, payload []byte) []byte {
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

// tcp4AckFrom extracts the value the next outbound segment should ACK,
// i.e. the sequence number of frame plus one (a bare SYN|ACK consumes
// exactly one sequence number). Returns 0 if frame isn't a parseable
// TCP/IPv4/Ethernet segment.
func tcp4AckFrom(frame []byte) tcp.Value {
	efrm, err := ethernet.NewFrame(frame)
	if err != nil {
		return 0
	}
	ifrm, err := ipv4.NewFrame(efrm.Payload())
	if err != nil {
		return 0
	}
	var v easyweb.Validator
	ifrm.ValidateSize(&v)
	if v.HasError() {
		return 0
	}
	tfrm, err := tcp.NewFrame(ifrm.Payload())
	if err != nil {
		return 0
	}
	return tcp.Add(tfrm.Seq(), 1)
}
