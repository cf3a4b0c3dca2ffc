package main

import (
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/soypat/easyweb/clock"
	econfig "github.com/soypat/easyweb/config"
	"github.com/soypat/easyweb/nic"
	"github.com/soypat/easyweb/tcp"
	"github.com/soypat/easyweb/tcpstack"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Passive-open and replay a scripted peer handshake against SimNIC",
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
		e.PassiveOpen()

		peerMAC := [6]byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
		peerIP := [4]byte{192, 168, 1, 3}
		const peerPort = 54321
		isn := tcp.Value(1000)

		rows := pterm.TableData{{"step", "state", "status"}}
		row := func(step string) {
			rows = append(rows, []string{step, e.State().String(), e.Status().String()})
		}

		sim.PushRX(buildARPRequest(peerMAC, peerIP, cfg.LocalIP), nic.RXOK|nic.RXBroadcast)
		e.Poll()
		row("arp_request")
		sim.PopTX() // discard the ARP answer

		sim.PushRX(buildSYN(peerMAC, peerIP, peerPort, cfg, isn), nic.RXOK|nic.RXIndividualAddr)
		e.Poll()
		row("syn")

		synack := sim.PopTX()
		ack := tcp4AckFrom(synack)
		peerSeq := tcp.Add(isn, 1)
		sim.PushRX(buildACK(peerMAC, peerIP, peerPort, cfg, peerSeq, ack), nic.RXOK|nic.RXIndividualAddr)
		e.Poll()
		row("ack")

		sim.PushRX(buildData(peerMAC, peerIP, peerPort, cfg, peerSeq, ack, []byte("A")), nic.RXOK|nic.RXIndividualAddr)
		e.Poll()
		row("data")

		log.Info("scenario complete", slog.String("state", e.State().String()))
		return pterm.DefaultTable.WithHasHeader(true).WithData(rows).Render()
	},
}
