package main

import (
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/soypat/easyweb/arp"
	"github.com/soypat/easyweb/clock"
	econfig "github.com/soypat/easyweb/config"
	"github.com/soypat/easyweb/ethernet"
	"github.com/soypat/easyweb/nic"
	"github.com/soypat/easyweb/tcp"
	"github.com/soypat/easyweb/tcpstack"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Active-open against a peer address, exercising the ARP resolver and retry timer",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := econfig.Load(flagConfigPath)
		if err != nil {
			return err
		}
		cfg.Logger = log
		cfg.Metrics = mx

		sim := nic.NewSimNIC()
		src := clock.New(clockwork.NewRealClock())
		e := tcpstack.New(cfg, sim, src)
		e.LowLevelInit()

		peerMAC := [6]byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
		peerIP := [4]byte{192, 168, 1, 200}
		const peerPort = 8080
		e.SetRemote(peerIP, peerPort)
		e.ActiveOpen()

		rows := pterm.TableData{{"step", "state", "status"}}
		record := func(step string) {
			rows = append(rows, []string{step, e.State().String(), e.Status().String()})
		}
		record("active_open")

		e.Poll() // flushes the ARP request queued by ActiveOpen
		record("poll:arp_flush")
		sim.PopTX() // discard the ARP request

		sim.PushRX(buildARPReply(peerMAC, peerIP, cfg.LocalMAC, cfg.LocalIP), nic.RXOK|nic.RXIndividualAddr)
		e.Poll()
		record("arp_reply")

		e.Poll() // the SYN already went out in the Poll that consumed the ARP reply; nothing new to send
		record("poll:syn")

		syn := sim.PopTX()
		log.Info("syn emitted", slog.Int("bytes", len(syn)))

		peerISN := tcp.Value(5000)
		ourSeq := tcp4AckFrom(syn) // ISN the engine chose, plus one
		sim.PushRX(buildSegment(peerMAC, peerIP, peerPort, cfg, peerISN, ourSeq, tcp.FlagSYN|tcp.FlagACK, nil), nic.RXOK|nic.RXIndividualAddr)
		e.Poll()
		record("syn_ack")

		return pterm.DefaultTable.WithHasHeader(true).WithData(rows).Render()
	},
}

// buildARPReply answers an (unsent, implicit) ARP request for targetIP
// as if peerMAC/peerIP had received it: sender is the peer, target is
// the requester (spec.md §4.D "ARP answer" mirrored from the wire side).
func buildARPReply(peerMAC [6]byte, peerIP [4]byte, targetMAC [6]byte, targetIP [4]byte) []byte {
	buf := make([]byte, 14+28)
	efrm, _ := ethernet.NewFrame(buf)
	*efrm.DestinationHardwareAddr() = targetMAC
	*efrm.SourceHardwareAddr() = peerMAC
	efrm.SetEtherType(ethernet.TypeARP)

	afrm, _ := arp.NewFrame(efrm.Payload())
	afrm.SetHeader(arp.OpReply)
	sh, sp := afrm.Sender()
	*sh, *sp = peerMAC, peerIP
	th, tp := afrm.Target()
	*th, *tp = targetMAC, targetIP
	return buf
}
