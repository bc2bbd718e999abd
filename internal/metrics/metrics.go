// Package metrics exposes Prometheus counters for the trading loop.
// Served at /metrics when the listener is enabled in config.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_runs_total",
			Help: "Sniper invocations by terminal outcome",
		},
		[]string{"outcome"}, // filled|exhausted|daily_loss|max_positions|stopped|error
	)

	Scans = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_scans_total",
			Help: "Market scans by data source",
		},
		[]string{"source"}, // cache|network
	)

	Orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_orders_total",
			Help: "Orders submitted by result",
		},
		[]string{"result"}, // filled|unfilled|failed
	)

	GateRejects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_gate_rejects_total",
			Help: "Candidates rejected per gate",
		},
		[]string{"gate"},
	)

	QualifiedCandidates = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_qualified_candidates",
			Help: "Qualified candidates in the latest scan",
		},
	)

	BalanceCents = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_balance_cents",
			Help: "Latest exchange balance in cents",
		},
	)
)

func init() {
	prometheus.MustRegister(
		Runs, Scans, Orders, GateRejects, QualifiedCandidates, BalanceCents,
	)
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
