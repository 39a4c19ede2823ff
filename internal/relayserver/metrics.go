package relayserver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics hang off a per-server registry rather than the global default one,
// so that tests can spin up several servers in one process.
type metrics struct {
	cmdsReceived *prometheus.CounterVec
	cmdsSent     *prometheus.CounterVec
	violations   prometheus.Counter
	clients      prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		cmdsReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emberwire_cmds_received_total",
				Help: "Commands received, by command name",
			},
			[]string{"cmd"},
		),
		cmdsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emberwire_cmds_sent_total",
				Help: "Commands sent, by command name",
			},
			[]string{"cmd"},
		),
		violations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "emberwire_protocol_violations_total",
				Help: "Frames dropped for failing structural validation",
			},
		),
		clients: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "emberwire_clients",
				Help: "Currently joined clients",
			},
		),
	}
}
