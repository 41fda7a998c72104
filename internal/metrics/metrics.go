// Package metrics exposes wallet and game counters to Prometheus.
package metrics

import (
	"net/http"

	"scrazino/internal/ledger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const (
	labelType    = "type"
	labelGame    = "game"
	labelOutcome = "outcome"
)

// Recorder implements ledger.Observer and records settled game rounds.
type Recorder struct {
	gatherer prometheus.Gatherer

	transactions *prometheus.CounterVec
	volume       *prometheus.CounterVec
	balance      prometheus.Gauge
	rounds       *prometheus.CounterVec
}

// NewRecorder registers the collectors with reg. A nil reg uses a fresh
// private registry.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Recorder{
		gatherer: reg,
		transactions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scrazino_transactions_total",
			Help: "Committed ledger transactions by type.",
		}, []string{labelType}),
		volume: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scrazino_transaction_amount_total",
			Help: "Sum of committed transaction amounts by type.",
		}, []string{labelType}),
		balance: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scrazino_wallet_balance",
			Help: "Current wallet balance.",
		}),
		rounds: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scrazino_game_rounds_total",
			Help: "Finished game rounds by game and outcome.",
		}, []string{labelGame, labelOutcome}),
	}
}

func (r *Recorder) Observe(tx ledger.Transaction, balance decimal.Decimal) {
	r.transactions.WithLabelValues(string(tx.Type)).Inc()
	r.volume.WithLabelValues(string(tx.Type)).Add(tx.Amount.InexactFloat64())
	r.balance.Set(balance.InexactFloat64())
}

// SetBalance primes the balance gauge before the first transaction.
func (r *Recorder) SetBalance(balance decimal.Decimal) {
	r.balance.Set(balance.InexactFloat64())
}

func (r *Recorder) RoundFinished(game, outcome string) {
	r.rounds.WithLabelValues(game, outcome).Inc()
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
