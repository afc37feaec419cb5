package service

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"vrfraffle/internal/ledger"
	"vrfraffle/internal/raffle/models"
	dErrors "vrfraffle/pkg/domain-errors"
)

const defaultNotificationLimit = 100

// Snapshot returns a copy of the whole raffle.
func (s *Service) Snapshot(ctx context.Context) (*models.Raffle, error) {
	r, err := s.store.Load(ctx)
	if err != nil {
		return nil, wrapLoadErr(err)
	}
	return r, nil
}

func (s *Service) EntranceFee(ctx context.Context) (*big.Int, error) {
	r, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return r.EntranceFee, nil
}

func (s *Service) Interval(ctx context.Context) (time.Duration, error) {
	r, err := s.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	return r.Interval, nil
}

// Player returns the participant at index; not_found when out of range.
func (s *Service) Player(ctx context.Context, index int) (common.Address, error) {
	r, err := s.Snapshot(ctx)
	if err != nil {
		return common.Address{}, err
	}
	return r.Player(index)
}

func (s *Service) Players(ctx context.Context) ([]common.Address, error) {
	r, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return r.Players, nil
}

func (s *Service) RecentWinner(ctx context.Context) (common.Address, error) {
	r, err := s.Snapshot(ctx)
	if err != nil {
		return common.Address{}, err
	}
	return r.RecentWinner, nil
}

func (s *Service) State(ctx context.Context) (models.RaffleState, error) {
	r, err := s.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	return r.State, nil
}

func (s *Service) NumberOfPlayers(ctx context.Context) (int, error) {
	r, err := s.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	return r.NumberOfPlayers(), nil
}

func (s *Service) LastTimestamp(ctx context.Context) (time.Time, error) {
	r, err := s.Snapshot(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return r.LastTimestamp, nil
}

// NumWords is constant: one random word per draw.
func (s *Service) NumWords() uint32 {
	return models.NumWords
}

// RequestConfirmations is constant: three block confirmations.
func (s *Service) RequestConfirmations() uint16 {
	return models.RequestConfirmations
}

// Pending lists outstanding randomness requests. A raffle stuck in
// CALCULATING shows its request here until the coordinator calls back.
func (s *Service) Pending(ctx context.Context) ([]models.PendingRequest, error) {
	p, err := s.store.PendingRequests(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list pending requests")
	}
	return p, nil
}

// Notifications returns recent raffle events, oldest first.
func (s *Service) Notifications(ctx context.Context, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > defaultNotificationLimit {
		limit = defaultNotificationLimit
	}
	n, err := s.store.Notifications(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list notifications")
	}
	return n, nil
}

// Account returns the payout ledger entry for addr.
func (s *Service) Account(ctx context.Context, addr common.Address) (ledger.Account, error) {
	a, err := s.store.Account(ctx, addr)
	if err != nil {
		return ledger.Account{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	return a, nil
}

// SetPayable controls whether addr accepts payouts.
func (s *Service) SetPayable(ctx context.Context, addr common.Address, payable bool) error {
	if addr == (common.Address{}) {
		return dErrors.New(dErrors.CodeInvalidInput, "address is required")
	}
	if err := s.store.SetPayable(ctx, addr, payable); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update account")
	}
	s.logAudit(ctx, "account_payable_changed", "account", addr.Hex(), "payable", payable)
	return nil
}
