// Package notify delivers raffle notifications recorded in the store outbox
// to downstream consumers.
package notify

import (
	"context"
	"log/slog"

	"vrfraffle/internal/raffle/models"
)

// Publisher delivers a batch of notifications. A nil error means every
// notification in the batch was accepted.
type Publisher interface {
	Publish(ctx context.Context, batch []models.Notification) error
	Close() error
}

// LogPublisher writes notifications to a structured logger. It is used when
// no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, batch []models.Notification) error {
	for _, n := range batch {
		payload := NewPayload(n)
		p.logger.InfoContext(ctx, payload.Kind,
			"event", payload.Kind,
			"log_type", "notification",
			"notification_id", payload.ID,
			"round", payload.Round,
			"account", payload.Account,
			"request_id", payload.RequestID,
			"amount", payload.Amount,
		)
	}
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
