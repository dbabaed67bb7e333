package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for the login, trade and contact sync paths.
type Metrics struct {
	Logins              *prometheus.CounterVec
	Trades              *prometheus.CounterVec
	LedgerFills         *prometheus.CounterVec
	ContactSyncs        *prometheus.CounterVec
	ContactSyncAttempts prometheus.Histogram
}

// New registers the collectors on reg and returns them. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not collide.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tradegate_logins_total",
			Help: "Login attempts by outcome",
		}, []string{"result"}),
		Trades: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tradegate_trades_total",
			Help: "Trade requests by side and outcome",
		}, []string{"side", "result"}),
		LedgerFills: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tradegate_ledger_fills_total",
			Help: "Ledger fill applications by outcome",
		}, []string{"result"}),
		ContactSyncs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tradegate_contact_syncs_total",
			Help: "Contact share events by outcome",
		}, []string{"result"}),
		ContactSyncAttempts: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradegate_contact_sync_attempts",
			Help:    "Attempts needed per contact sync",
			Buckets: []float64{1, 2, 3, 4, 5, 8},
		}),
	}
}

// Nop returns collectors registered nowhere, for wiring that does not export metrics.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}
