package tcpstack

import (
	"github.com/soypat/easyweb"
	"github.com/soypat/easyweb/arp"
	"github.com/soypat/easyweb/ethernet"
	"github.com/soypat/easyweb/icmp"
	"github.com/soypat/easyweb/ipv4"
	"github.com/soypat/easyweb/tcp"
)

// tx2Frame slices e.tx2's backing array to exactly size bytes, ready
// to be filled in by a builder. tx2 capacity was reserved at
// construction time for ethHdr+MaxEthTxData (spec.md §3).
func (e *Engine) tx2Frame(size int) []byte {
	e.tx2 = e.tx2[:size]
	return e.tx2
}

// tx1Frame slices e.tx1's backing array to exactly size bytes.
func (e *Engine) tx1Frame(size int) []byte {
	e.tx1 = e.tx1[:size]
	return e.tx1
}

// gatewayTarget decides whether an active open must resolve the
// default gateway or the remote host directly, per spec.md §4.D "ARP".
func (e *Engine) gatewayTarget() [4]byte {
	var localMasked, remoteMasked uint32
	for i := 0; i < 4; i++ {
		localMasked |= uint32(e.cfg.LocalIP[i]&e.cfg.SubnetMask[i]) << (8 * (3 - i))
		remoteMasked |= uint32(e.remoteIP[i]&e.cfg.SubnetMask[i]) << (8 * (3 - i))
	}
	if localMasked != remoteMasked {
		return e.cfg.Gateway
	}
	return e.remoteIP
}

// prepareARPRequest builds an ARP request for the gateway or the
// remote host (spec.md §4.D) into tx2.
func (e *Engine) prepareARPRequest() {
	buf := e.tx2Frame(ethHdr + 28)
	efrm, _ := ethernet.NewFrame(buf)
	efrm.ClearHeader()
	*efrm.DestinationHardwareAddr() = ethernet.BroadcastAddr()
	*efrm.SourceHardwareAddr() = e.cfg.LocalMAC
	efrm.SetEtherType(ethernet.TypeARP)

	afrm, _ := arp.NewFrame(efrm.Payload())
	afrm.ClearHeader()
	afrm.SetHeader(arp.OpRequest)
	sh, sp := afrm.Sender()
	*sh = e.cfg.LocalMAC
	*sp = e.cfg.LocalIP
	_, tp := afrm.Target()
	*tp = e.gatewayTarget()

	e.tx2Pending = true
	e.tx2Size = uint16(len(buf))
	e.lastFrameSent = lastFrameARPRequest
	e.cfg.Metrics.CountTX("arp")
}

// prepareARPAnswer mirrors a received request's sender into target
// fields and answers with our own address (spec.md §4.D "ARP answer").
func (e *Engine) prepareARPAnswer(reqSenderMAC [6]byte, reqSenderIP [4]byte) {
	buf := e.tx2Frame(ethHdr + 28)
	efrm, _ := ethernet.NewFrame(buf)
	efrm.ClearHeader()
	*efrm.DestinationHardwareAddr() = reqSenderMAC
	*efrm.SourceHardwareAddr() = e.cfg.LocalMAC
	efrm.SetEtherType(ethernet.TypeARP)

	afrm, _ := arp.NewFrame(efrm.Payload())
	afrm.ClearHeader()
	afrm.SetHeader(arp.OpReply)
	sh, sp := afrm.Sender()
	*sh = e.cfg.LocalMAC
	*sp = e.cfg.LocalIP
	th, tp := afrm.Target()
	*th = reqSenderMAC
	*tp = reqSenderIP

	e.tx2Pending = true
	e.tx2Size = uint16(len(buf))
	e.cfg.Metrics.CountTX("arp")
}

// prepareICMPEchoReply copies up to MaxEthTxData-IP_HDR-ICMP_HDR bytes
// of echo payload from src and recomputes IP/ICMP checksums (spec.md
// §4.D "ICMP echo reply"). The reply targets dstMAC/dstIP directly
// rather than the pinned TCP peer: a ping can arrive from any host,
// independent of (or before) the single TCP connection's remote.
func (e *Engine) prepareICMPEchoReply(dstMAC [6]byte, dstIP [4]byte, identifier, seq uint16, src []byte) {
	maxPayload := int(e.cfg.MaxEthTxData) - ipHdr - icmpHdr
	if len(src) > maxPayload {
		src = src[:maxPayload]
	}
	size := ethHdr + ipHdr + icmpHdr + len(src)
	buf := e.tx2Frame(size)

	efrm, _ := ethernet.NewFrame(buf)
	efrm.ClearHeader()
	*efrm.DestinationHardwareAddr() = dstMAC
	*efrm.SourceHardwareAddr() = e.cfg.LocalMAC
	efrm.SetEtherType(ethernet.TypeIPv4)

	ifrm, _ := ipv4.NewFrame(efrm.Payload())
	ifrm.ClearHeader()
	ifrm.SetVersionAndIHL(4, 5)
	ifrm.SetTotalLength(uint16(ipHdr + icmpHdr + len(src)))
	ifrm.SetFlags(ipv4.Flags(0x4000)) // DF set, no fragmentation
	ifrm.SetTTL(e.cfg.DefaultTTL)
	ifrm.SetProtocol(easyweb.IPProtoICMP)
	*ifrm.SourceAddr() = e.cfg.LocalIP
	*ifrm.DestinationAddr() = dstIP
	ifrm.SetCRC(ifrm.CalculateHeaderCRC())

	ic, _ := icmp.NewFrame(ifrm.Payload())
	ic.SetType(icmp.TypeEchoReply)
	ic.SetCode(0)
	ic.SetIdentifier(identifier)
	ic.SetSequenceNumber(seq)
	copy(ic.Data(), src)
	ic.SetCRC(0)
	ic.SetCRC(ic.CalculateCRC())

	e.tx2Pending = true
	e.tx2Size = uint16(size)
	e.cfg.Metrics.CountTX("icmp")
}

// prepareTCPFrame builds a TCP control frame (no payload) into tx2:
// SYN, SYN|ACK, FIN|ACK, RST[,ACK], or a pure ACK (spec.md §4.D "TCP
// control frame"). When flags has SYN set, a 4-byte MSS option is
// appended and the data-offset nibble becomes 6 instead of 5. Only
// SYN- or FIN-bearing frames, the ones a retry resends, are recorded in
// lastCtrl*; plain ACKs and RSTs leave that record untouched.
func (e *Engine) prepareTCPFrame(seq, ack tcp.Value, flags tcp.Flags) {
	hasMSS := flags.Has(tcp.FlagSYN)
	hdrWords := uint8(5)
	optLen := 0
	if hasMSS {
		hdrWords = 6
		optLen = 4
	}
	size := ethHdr + ipHdr + tcpHdr + optLen
	buf := e.tx2Frame(size)
	e.fillTCPHeader(buf, seq, ack, flags, hdrWords, optLen, nil)
	e.tx2Pending = true
	e.tx2Size = uint16(size)
	if flags.HasAny(tcp.FlagSYN | tcp.FlagFIN) {
		e.lastCtrlSeq, e.lastCtrlAck, e.lastCtrlFlags = seq, ack, flags
	}
	e.cfg.Metrics.CountTX("tcp")
}

// prepareTCPDataFrame builds a TCP data frame (ACK set, no options)
// into tx1 carrying payload, starting at sequence number seq (spec.md
// §4.D "TCP data frame").
func (e *Engine) prepareTCPDataFrame(seq tcp.Value, payload []byte) {
	size := ethHdr + ipHdr + tcpHdr + len(payload)
	buf := e.tx1Frame(size)
	e.fillTCPHeader(buf, seq, e.rcvNxt, tcp.FlagACK, 5, 0, payload)
	e.tx1Pending = true
	e.tx1Size = uint16(size)
}

// fillTCPHeader writes the Ethernet/IP/TCP headers common to every
// outbound TCP segment, then the options (if any) and payload.
func (e *Engine) fillTCPHeader(buf []byte, seq, ack tcp.Value, flags tcp.Flags, hdrWords uint8, optLen int, payload []byte) {
	efrm, _ := ethernet.NewFrame(buf)
	efrm.ClearHeader()
	*efrm.DestinationHardwareAddr() = e.remoteMAC
	*efrm.SourceHardwareAddr() = e.cfg.LocalMAC
	efrm.SetEtherType(ethernet.TypeIPv4)

	ifrm, _ := ipv4.NewFrame(efrm.Payload())
	ifrm.ClearHeader()
	ifrm.SetVersionAndIHL(4, 5)
	ifrm.SetTotalLength(uint16(ipHdr + int(hdrWords)*4 + len(payload)))
	ifrm.SetFlags(ipv4.Flags(0x4000))
	ifrm.SetTTL(e.cfg.DefaultTTL)
	ifrm.SetProtocol(easyweb.IPProtoTCP)
	*ifrm.SourceAddr() = e.cfg.LocalIP
	*ifrm.DestinationAddr() = e.remoteIP
	ifrm.SetCRC(ifrm.CalculateHeaderCRC())

	tfrm, _ := tcp.NewFrame(ifrm.Payload())
	tfrm.ClearHeader()
	tfrm.SetSourcePort(e.cfg.LocalPort)
	tfrm.SetDestinationPort(e.remotePort)
	tfrm.SetSeq(seq)
	tfrm.SetAck(ack)
	tfrm.SetOffsetAndFlags(hdrWords, flags)
	tfrm.SetWindowSize(e.cfg.MaxTCPRxData)
	tfrm.SetUrgentPtr(0)
	if optLen > 0 {
		tcp.PutMSSOption(tfrm.Options(), e.cfg.MaxTCPRxData)
	}
	if len(payload) > 0 {
		copy(tfrm.Payload(), payload)
	}
	tfrm.SetCRC(0)
	tfrm.SetCRC(tfrm.CalculateCRC(e.cfg.LocalIP, e.remoteIP))
}
