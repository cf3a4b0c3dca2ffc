// Package metrics instruments the easyWEB engine with Prometheus
// counters and gauges. An Engine with a nil *Set simply skips
// instrumentation — metrics are an optional ambient concern, never a
// correctness dependency.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Set holds every metric the engine emits. Construct one with New,
// bound to whatever Registerer the caller wants (a dedicated
// prometheus.NewRegistry() in tests and in the CLI).
type Set struct {
	FramesRX       *prometheus.CounterVec
	FramesTX       *prometheus.CounterVec
	FramesDropped  *prometheus.CounterVec
	ARPResolutions prometheus.Counter
	Retransmits    prometheus.Counter
	Timeouts       *prometheus.CounterVec
	State          prometheus.Gauge
}

// New registers and returns a Set bound to reg.
func New(reg prometheus.Registerer) *Set {
	factory := promauto.With(reg)
	return &Set{
		FramesRX: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "easyweb_frames_received_total",
			Help: "Frames accepted off the NIC, by protocol.",
		}, []string{"protocol"}),
		FramesTX: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "easyweb_frames_transmitted_total",
			Help: "Frames handed to the NIC for transmission, by protocol.",
		}, []string{"protocol"}),
		FramesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "easyweb_frames_dropped_total",
			Help: "Frames discarded during parsing or dispatch, by reason.",
		}, []string{"reason"}),
		ARPResolutions: factory.NewCounter(prometheus.CounterOpts{
			Name: "easyweb_arp_resolutions_total",
			Help: "ARP replies that resolved the configured remote address.",
		}),
		Retransmits: factory.NewCounter(prometheus.CounterOpts{
			Name: "easyweb_retransmits_total",
			Help: "Retry-timer driven retransmissions of the in-flight frame.",
		}),
		Timeouts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "easyweb_timeouts_total",
			Help: "Connections forced CLOSED by retry-budget exhaustion, by kind.",
		}, []string{"kind"}),
		State: factory.NewGauge(prometheus.GaugeOpts{
			Name: "easyweb_tcp_state",
			Help: "Current TCP state of the single connection, as its State ordinal.",
		}),
	}
}

// Every method below is nil-safe: a nil *Set is a valid no-op instrument,
// so Engine call sites never need an "if metrics != nil" guard.

// CountRX records an accepted frame of the given protocol.
func (s *Set) CountRX(protocol string) {
	if s != nil {
		s.FramesRX.WithLabelValues(protocol).Inc()
	}
}

// CountTX records a transmitted frame of the given protocol.
func (s *Set) CountTX(protocol string) {
	if s != nil {
		s.FramesTX.WithLabelValues(protocol).Inc()
	}
}

// CountDropped records a frame discarded for the given reason.
func (s *Set) CountDropped(reason string) {
	if s != nil {
		s.FramesDropped.WithLabelValues(reason).Inc()
	}
}

// CountARPResolution records a successful ARP resolution.
func (s *Set) CountARPResolution() {
	if s != nil {
		s.ARPResolutions.Inc()
	}
}

// CountRetransmit records a retry-timer driven retransmission.
func (s *Set) CountRetransmit() {
	if s != nil {
		s.Retransmits.Inc()
	}
}

// CountTimeout records a connection forced CLOSED by the given timeout kind
// ("arp" or "tcp").
func (s *Set) CountTimeout(kind string) {
	if s != nil {
		s.Timeouts.WithLabelValues(kind).Inc()
	}
}

// SetState records the current TCP state ordinal.
func (s *Set) SetState(state uint8) {
	if s != nil {
		s.State.Set(float64(state))
	}
}
