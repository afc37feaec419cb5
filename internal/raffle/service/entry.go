package service

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"

	"vrfraffle/internal/raffle/models"
	"vrfraffle/internal/raffle/store"
	dErrors "vrfraffle/pkg/domain-errors"
	"vrfraffle/pkg/requestcontext"
)

// Enter adds player to the current round with payment. The fee is checked
// before the raffle state, so an underpaying entry during a draw reports
// insufficient_payment.
func (s *Service) Enter(ctx context.Context, player common.Address, payment *big.Int) (_ *models.Raffle, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "raffle.Enter")
	span.SetAttributes(attribute.String("raffle.player", player.Hex()))
	defer func() {
		endSpan(span, err)
		s.observe("enter", start)
	}()

	if player == (common.Address{}) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "player address is required")
	}

	now := requestcontext.Now(ctx)
	var entered *models.Raffle
	err = s.store.RunInTx(ctx, func(tx store.Tx) error {
		r, err := tx.Raffle(ctx)
		if err != nil {
			return wrapLoadErr(err)
		}
		if err := r.Enter(player, payment); err != nil {
			return err
		}
		if err := tx.SaveRaffle(ctx, r); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save raffle")
		}
		if err := tx.AppendNotification(ctx, models.NewRaffleEnter(player, payment, r.Round, now)); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record entry")
		}
		entered = r
		return nil
	})
	if err != nil {
		s.incrementEntryRejected(err)
		return nil, err
	}

	s.logAudit(ctx, string(models.KindRaffleEnter),
		"player", player.Hex(),
		"payment", payment.String(),
		"players", len(entered.Players),
	)
	if s.metrics != nil {
		s.metrics.IncrementEntries()
	}
	s.setRound(entered)
	return entered, nil
}

func (s *Service) incrementEntryRejected(err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case dErrors.HasCode(err, dErrors.CodeInsufficientPayment):
		s.metrics.IncrementEntryRejected(string(dErrors.CodeInsufficientPayment))
	case dErrors.HasCode(err, dErrors.CodeRaffleNotOpen):
		s.metrics.IncrementEntryRejected(string(dErrors.CodeRaffleNotOpen))
	default:
		s.metrics.IncrementEntryRejected("other")
	}
}
