// Package store defines the transactional boundary around the raffle.
// Implementations live in the memory, postgres and sqlite subpackages.
package store

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"vrfraffle/internal/ledger"
	"vrfraffle/internal/raffle/models"
	"vrfraffle/pkg/domain"
)

// DefaultTxTimeout bounds a transaction when the caller's context has no deadline.
const DefaultTxTimeout = 5 * time.Second

// Tx is the view of the store inside a transaction. Everything written
// through it becomes visible together, or not at all.
type Tx interface {
	// Raffle returns the locked raffle. Mutations only persist through SaveRaffle.
	Raffle(ctx context.Context) (*models.Raffle, error)
	SaveRaffle(ctx context.Context, r *models.Raffle) error
	PutPending(ctx context.Context, p models.PendingRequest) error
	// TakePending removes and returns the pending request, or sentinel.ErrNotFound.
	TakePending(ctx context.Context, id domain.RequestID) (models.PendingRequest, error)
	AppendNotification(ctx context.Context, n models.Notification) error
	// Credit pays amount to the account; sentinel.ErrRejected when the
	// account does not accept payments.
	Credit(ctx context.Context, to common.Address, amount *big.Int) error
}

// Store is the raffle's persistence boundary.
type Store interface {
	// RunInTx serializes fn against every other transaction and commits its
	// writes only if fn returns nil.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
	// Initialize stores r unless a raffle already exists, and returns the
	// raffle that is in effect.
	Initialize(ctx context.Context, r *models.Raffle) (*models.Raffle, error)
	// Load returns a snapshot of the raffle, or sentinel.ErrNotFound.
	Load(ctx context.Context) (*models.Raffle, error)
	PendingRequests(ctx context.Context) ([]models.PendingRequest, error)
	// Notifications returns the newest limit notifications, oldest first.
	Notifications(ctx context.Context, limit int) ([]models.Notification, error)
	Account(ctx context.Context, addr common.Address) (ledger.Account, error)
	SetPayable(ctx context.Context, addr common.Address, payable bool) error
}

// Outbox is the relay's view of the notification table.
type Outbox interface {
	Unpublished(ctx context.Context, limit int) ([]models.Notification, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}
