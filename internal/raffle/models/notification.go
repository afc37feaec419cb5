package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"vrfraffle/pkg/domain"
)

// NotificationKind names an observable raffle event.
type NotificationKind string

const (
	KindRaffleEnter           NotificationKind = "RaffleEnter"
	KindRequestedRaffleWinner NotificationKind = "RequestedRaffleWinner"
	KindWinnerPicked          NotificationKind = "WinnerPicked"
)

// Notification is an event recorded in the outbox in the same transaction as
// the state change it describes. PublishedAt is nil until the relay has
// delivered it.
type Notification struct {
	ID          uuid.UUID
	Kind        NotificationKind
	Round       uint64
	Account     common.Address
	RequestID   domain.RequestID
	Amount      *big.Int
	OccurredAt  time.Time
	PublishedAt *time.Time
}

func NewRaffleEnter(player common.Address, payment *big.Int, round uint64, now time.Time) Notification {
	return Notification{
		ID:         uuid.New(),
		Kind:       KindRaffleEnter,
		Round:      round,
		Account:    player,
		Amount:     cloneInt(payment),
		OccurredAt: now,
	}
}

func NewRequestedRaffleWinner(requestID domain.RequestID, round uint64, now time.Time) Notification {
	return Notification{
		ID:         uuid.New(),
		Kind:       KindRequestedRaffleWinner,
		Round:      round,
		RequestID:  requestID,
		Amount:     new(big.Int),
		OccurredAt: now,
	}
}

func NewWinnerPicked(winner common.Address, payout *big.Int, round uint64, now time.Time) Notification {
	return Notification{
		ID:         uuid.New(),
		Kind:       KindWinnerPicked,
		Round:      round,
		Account:    winner,
		Amount:     cloneInt(payout),
		OccurredAt: now,
	}
}
