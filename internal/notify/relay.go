package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"vrfraffle/internal/raffle/store"
)

const (
	DefaultBatchSize = 100
	DefaultInterval  = time.Second
)

// Metrics counts relay throughput.
type Metrics struct {
	Published prometheus.Counter
	Failures  prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Published: factory.NewCounter(prometheus.CounterOpts{
			Name: "raffle_notifications_published_total",
			Help: "Notifications delivered to the publisher",
		}),
		Failures: factory.NewCounter(prometheus.CounterOpts{
			Name: "raffle_notification_publish_failures_total",
			Help: "Relay batches the publisher refused",
		}),
	}
}

// Relay moves notifications from the store outbox to a Publisher.
// Delivery is at-least-once: a batch is marked published only after the
// publisher accepts it.
type Relay struct {
	outbox    store.Outbox
	publisher Publisher
	logger    *slog.Logger
	metrics   *Metrics
	batchSize int
	interval  time.Duration
}

type RelayOption func(*Relay)

func WithLogger(logger *slog.Logger) RelayOption {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithMetrics(m *Metrics) RelayOption {
	return func(r *Relay) {
		r.metrics = m
	}
}

func WithBatchSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func NewRelay(outbox store.Outbox, publisher Publisher, opts ...RelayOption) *Relay {
	r := &Relay{
		outbox:    outbox,
		publisher: publisher,
		logger:    slog.Default(),
		batchSize: DefaultBatchSize,
		interval:  DefaultInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run flushes the outbox every interval until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
				r.logger.WarnContext(ctx, "notification relay flush failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Flush publishes unpublished notifications in batches until the outbox is
// drained and returns how many were delivered.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	delivered := 0
	for {
		batch, err := r.outbox.Unpublished(ctx, r.batchSize)
		if err != nil {
			return delivered, err
		}
		if len(batch) == 0 {
			return delivered, nil
		}
		if err := r.publisher.Publish(ctx, batch); err != nil {
			if r.metrics != nil {
				r.metrics.Failures.Inc()
			}
			return delivered, err
		}
		ids := make([]uuid.UUID, len(batch))
		for i, n := range batch {
			ids[i] = n.ID
		}
		if err := r.outbox.MarkPublished(ctx, ids, time.Now()); err != nil {
			return delivered, err
		}
		delivered += len(batch)
		if r.metrics != nil {
			r.metrics.Published.Add(float64(len(batch)))
		}
		if len(batch) < r.batchSize {
			return delivered, nil
		}
	}
}
