package metrics

import "github.com/prometheus/client_golang/prometheus"

// RelayMetrics instruments a relay.
type RelayMetrics struct {
	RoundsCompleted  prometheus.Counter
	RoundsAborted    prometheus.Counter
	ConnectedPeers   prometheus.Gauge
	RejectedMessages *prometheus.CounterVec
}

// NewRelayMetrics creates the relay collectors and registers them with reg.
func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	m := &RelayMetrics{
		RoundsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "relay",
			Name:      "rounds_completed_total",
			Help:      "Rounds that ended with an aggregation result.",
		}),
		RoundsAborted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "relay",
			Name:      "rounds_aborted_total",
			Help:      "Rounds abandoned because a member disconnected.",
		}),
		ConnectedPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "relay",
			Name:      "connected_participants",
			Help:      "Open participant connections.",
		}),
		RejectedMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "relay",
			Name:      "rejected_messages_total",
			Help:      "Participant messages the relay refused, by message type.",
		}, []string{"type"}),
	}
	reg.MustRegister(m.RoundsCompleted, m.RoundsAborted, m.ConnectedPeers, m.RejectedMessages)
	return m
}

func (m *RelayMetrics) RoundCompleted() {
	if m == nil {
		return
	}
	m.RoundsCompleted.Inc()
}

func (m *RelayMetrics) RoundAborted() {
	if m == nil {
		return
	}
	m.RoundsAborted.Inc()
}

func (m *RelayMetrics) SetConnected(n int) {
	if m == nil {
		return
	}
	m.ConnectedPeers.Set(float64(n))
}

// MessageRejected counts a refused message. msgType is "undecodable" when
// the frame could not be parsed.
func (m *RelayMetrics) MessageRejected(msgType string) {
	if m == nil {
		return
	}
	m.RejectedMessages.WithLabelValues(msgType).Inc()
}
