package models

import (
	"time"

	"vrfraffle/pkg/domain"
)

// PendingRequest is an oracle request awaiting its callback.
type PendingRequest struct {
	RequestID   domain.RequestID
	Round       uint64
	PlayerCount int
	RequestedAt time.Time
}
