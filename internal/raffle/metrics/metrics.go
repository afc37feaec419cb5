package metrics

import (
	"math/big"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the raffle module.
// Tracks entries, draws and payouts, the live pool and operation latency.
type Metrics struct {
	Entries           prometheus.Counter
	EntriesRejected   *prometheus.CounterVec
	DrawsRequested    prometheus.Counter
	UpkeepNotNeeded   prometheus.Counter
	WinnersPicked     prometheus.Counter
	TransferFailures  prometheus.Counter
	Players           prometheus.Gauge
	PoolWei           prometheus.Gauge
	OperationDuration *prometheus.HistogramVec
}

// New registers the raffle metrics with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the raffle metrics with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Entries: f.NewCounter(prometheus.CounterOpts{
			Name: "raffle_entries_total",
			Help: "Total number of accepted raffle entries",
		}),
		EntriesRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "raffle_entries_rejected_total",
			Help: "Total number of rejected raffle entries by reason",
		}, []string{"reason"}),
		DrawsRequested: f.NewCounter(prometheus.CounterOpts{
			Name: "raffle_draws_requested_total",
			Help: "Total number of randomness requests issued",
		}),
		UpkeepNotNeeded: f.NewCounter(prometheus.CounterOpts{
			Name: "raffle_upkeep_not_needed_total",
			Help: "Total number of draw triggers refused because upkeep was not needed",
		}),
		WinnersPicked: f.NewCounter(prometheus.CounterOpts{
			Name: "raffle_winners_picked_total",
			Help: "Total number of completed draws",
		}),
		TransferFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "raffle_transfer_failures_total",
			Help: "Total number of callbacks rolled back because the payout failed",
		}),
		Players: f.NewGauge(prometheus.GaugeOpts{
			Name: "raffle_players",
			Help: "Number of players in the current round",
		}),
		PoolWei: f.NewGauge(prometheus.GaugeOpts{
			Name: "raffle_pool_wei",
			Help: "Pooled funds of the current round in wei (float approximation)",
		}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "raffle_operation_duration_seconds",
			Help:    "Duration of raffle operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementEntries() {
	m.Entries.Inc()
}

func (m *Metrics) IncrementEntryRejected(reason string) {
	m.EntriesRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementDrawsRequested() {
	m.DrawsRequested.Inc()
}

func (m *Metrics) IncrementUpkeepNotNeeded() {
	m.UpkeepNotNeeded.Inc()
}

func (m *Metrics) IncrementWinnersPicked() {
	m.WinnersPicked.Inc()
}

func (m *Metrics) IncrementTransferFailures() {
	m.TransferFailures.Inc()
}

// SetRound publishes the current round's player count and pool.
func (m *Metrics) SetRound(players int, pool *big.Int) {
	m.Players.Set(float64(players))
	if pool != nil {
		f, _ := new(big.Float).SetInt(pool).Float64()
		m.PoolWei.Set(f)
	}
}

// ObserveOperation records how long operation took.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
