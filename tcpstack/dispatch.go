package tcpstack

import (
	"github.com/soypat/easyweb"
	"github.com/soypat/easyweb/arp"
	"github.com/soypat/easyweb/ethernet"
	"github.com/soypat/easyweb/icmp"
	"github.com/soypat/easyweb/ipv4"
	"github.com/soypat/easyweb/nic"
	"github.com/soypat/easyweb/tcp"
)

// handleRxFrame drains exactly one RX frame per spec.md §4.E: the NIC
// reports one RX event at a time via its skip-on-read semantics, so
// the length and body reads below always consume the frame rx_event
// just announced.
func (e *Engine) handleRxFrame(stat uint16) {
	e.nic.DummyReadFrame(2) // RX status word, already returned by RxEvent
	length := int(e.nic.ReadFrameWordLE())
	if length < ethHdr || length > len(e.rxScratch) {
		e.cfg.Metrics.CountDropped("frame_length")
		return
	}
	buf := e.rxScratch[:length]
	e.nic.CopyFromFrame(buf)

	efrm, err := ethernet.NewFrame(buf)
	if err != nil {
		e.cfg.Metrics.CountDropped("ethernet_short")
		return
	}

	switch efrm.EtherType() {
	case ethernet.TypeARP:
		e.handleARP(efrm, stat)
	case ethernet.TypeIPv4:
		// Broadcast frames are processed only for ARP requests
		// targeting local_ip (spec.md §4.E); IP/ICMP/TCP dispatch
		// requires an individually-addressed frame.
		if stat&nic.RXIndividualAddr != 0 {
			e.handleIP(efrm)
		} else {
			e.cfg.Metrics.CountDropped("ip_broadcast")
		}
	default:
		e.cfg.Metrics.CountDropped("ethertype")
	}
}

// handleARP processes ARP requests (answered if targeting local_ip,
// broadcast or not) and ARP replies (consumed only by the resolver,
// spec.md §4.F).
func (e *Engine) handleARP(efrm ethernet.Frame, stat uint16) {
	afrm, err := arp.NewFrame(efrm.Payload())
	if err != nil {
		e.cfg.Metrics.CountDropped("arp_short")
		return
	}
	e.cfg.Metrics.CountRX("arp")

	switch afrm.Operation() {
	case arp.OpRequest:
		_, tp := afrm.Target()
		if *tp != e.cfg.LocalIP {
			return
		}
		sh, sp := afrm.Sender()
		e.prepareARPAnswer(*sh, *sp)

	case arp.OpReply:
		if stat&nic.RXIndividualAddr == 0 {
			return
		}
		if !e.flags.has(flagActiveOpen) || e.flags.has(flagIPAddrResolved) {
			return
		}
		sh, sp := afrm.Sender()
		if *sp != e.gatewayTarget() {
			return
		}
		e.remoteMAC = *sh
		e.flags |= flagIPAddrResolved
		e.stopTimer()
		e.cfg.Metrics.CountARPResolution()
		e.log.info("arp_resolved", attrIP("target", *sp))
	}
}

// handleIP validates and routes an IPv4 datagram (spec.md §4.E "IP path").
func (e *Engine) handleIP(efrm ethernet.Frame) {
	ifrm, err := ipv4.NewFrame(efrm.Payload())
	if err != nil {
		e.cfg.Metrics.CountDropped("ip_short")
		return
	}
	version, ihl := ifrm.VersionAndIHL()
	if version != 4 || ihl != 5 {
		e.cfg.Metrics.CountDropped("ip_version")
		return
	}
	var v easyweb.Validator
	ifrm.ValidateSize(&v)
	if v.HasError() {
		e.cfg.Metrics.CountDropped("ip_length")
		return
	}
	if ifrm.Flags().MoreFragments() || ifrm.Flags().FragmentOffset() != 0 {
		e.cfg.Metrics.CountDropped("ip_fragmented")
		return
	}
	if *ifrm.DestinationAddr() != e.cfg.LocalIP {
		e.cfg.Metrics.CountDropped("ip_destination")
		return
	}

	srcMAC := *efrm.SourceHardwareAddr()
	srcIP := *ifrm.SourceAddr()

	switch ifrm.Protocol() {
	case easyweb.IPProtoICMP:
		e.handleICMP(ifrm, srcMAC, srcIP)
	case easyweb.IPProtoTCP:
		e.handleTCP(ifrm, srcMAC, srcIP)
	default:
		e.cfg.Metrics.CountDropped("ip_protocol")
	}
}

// handleICMP answers echo requests directly to the sender, independent
// of any pinned TCP peer (spec.md §4.D "ICMP echo reply"). Other ICMP
// types are silently ignored; this core never originates ICMP itself.
func (e *Engine) handleICMP(ifrm ipv4.Frame, srcMAC [6]byte, srcIP [4]byte) {
	ic, err := icmp.NewFrame(ifrm.Payload())
	if err != nil {
		e.cfg.Metrics.CountDropped("icmp_short")
		return
	}
	e.cfg.Metrics.CountRX("icmp")
	if ic.Type() != icmp.TypeEcho {
		return
	}
	e.prepareICMPEchoReply(srcMAC, srcIP, ic.Identifier(), ic.SequenceNumber(), ic.Data())
}

// handleTCP parses the segment header (spec.md §4.G "Segment parsing")
// and hands off to the state machine.
func (e *Engine) handleTCP(ifrm ipv4.Frame, srcMAC [6]byte, srcIP [4]byte) {
	tfrm, err := tcp.NewFrame(ifrm.Payload())
	if err != nil {
		e.cfg.Metrics.CountDropped("tcp_short")
		return
	}
	if tfrm.DestinationPort() != e.cfg.LocalPort {
		e.cfg.Metrics.CountDropped("tcp_port")
		return
	}
	if hl := tfrm.HeaderLength(); hl < tcpHdr || hl > len(tfrm.RawData()) {
		e.cfg.Metrics.CountDropped("tcp_header_length")
		return
	}
	payload := tfrm.Payload()
	if len(payload) > int(e.cfg.MaxTCPRxData) {
		e.cfg.Metrics.CountDropped("tcp_data_too_large")
		return
	}
	e.cfg.Metrics.CountRX("tcp")

	_, flags := tfrm.OffsetAndFlags()
	e.handleTCPSegment(tfrm.Seq(), tfrm.Ack(), flags, payload, srcMAC, srcIP, tfrm.SourcePort())
}
