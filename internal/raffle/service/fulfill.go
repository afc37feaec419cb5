package service

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"

	"vrfraffle/internal/raffle/models"
	"vrfraffle/internal/raffle/store"
	"vrfraffle/pkg/domain"
	dErrors "vrfraffle/pkg/domain-errors"
	"vrfraffle/pkg/platform/sentinel"
	"vrfraffle/pkg/requestcontext"
)

// FulfillResult describes a completed draw.
type FulfillResult struct {
	Winner      common.Address
	WinnerIndex int
	Payout      *big.Int
	Round       uint64
}

// RawFulfillRandomWords is the coordinator callback.
func (s *Service) RawFulfillRandomWords(ctx context.Context, caller common.Address, requestID domain.RequestID, words []*big.Int) error {
	_, err := s.Fulfill(ctx, caller, requestID, words)
	return err
}

// Fulfill settles the draw for requestID: it picks words[0] mod players,
// reopens the raffle and pays the whole pool to the winner. Checks run in
// order caller, pending request, words. If the payout fails the transaction
// is discarded and the raffle stays CALCULATING with the request pending.
func (s *Service) Fulfill(ctx context.Context, caller common.Address, requestID domain.RequestID, words []*big.Int) (_ *FulfillResult, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "raffle.FulfillRandomWords")
	span.SetAttributes(
		attribute.String("raffle.request_id", requestID.String()),
		attribute.String("raffle.caller", caller.Hex()),
	)
	defer func() {
		endSpan(span, err)
		s.observe("fulfill", start)
	}()

	now := requestcontext.Now(ctx)
	var result *FulfillResult
	err = s.store.RunInTx(ctx, func(tx store.Tx) error {
		r, err := tx.Raffle(ctx)
		if err != nil {
			return wrapLoadErr(err)
		}
		if err := r.CanFulfill(caller); err != nil {
			return err
		}
		if _, err := tx.TakePending(ctx, requestID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "unknown or already fulfilled request")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load pending request")
		}
		idx, winner, err := r.PickWinner(words)
		if err != nil {
			return err
		}
		if err := r.CanSettle(); err != nil {
			return err
		}

		round := r.Round
		payout := r.ApplyWinnerPaid(winner, now)
		if err := tx.Credit(ctx, winner, payout); err != nil {
			if errors.Is(err, sentinel.ErrRejected) {
				return dErrors.Wrap(err, dErrors.CodeTransferFailed, "transfer to winner failed")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to credit winner")
		}
		if err := tx.SaveRaffle(ctx, r); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save raffle")
		}
		if err := tx.AppendNotification(ctx, models.NewWinnerPicked(winner, payout, round, now)); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record winner")
		}
		result = &FulfillResult{Winner: winner, WinnerIndex: idx, Payout: payout, Round: round}
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeTransferFailed) {
			s.logWarn(ctx, "winner payout failed; draw rolled back",
				"vrf_request_id", requestID.String(),
				"error", err,
			)
			if s.metrics != nil {
				s.metrics.IncrementTransferFailures()
			}
		}
		return nil, err
	}

	s.logAudit(ctx, string(models.KindWinnerPicked),
		"winner", result.Winner.Hex(),
		"payout", result.Payout.String(),
		"round", result.Round,
		"vrf_request_id", requestID.String(),
	)
	if s.metrics != nil {
		s.metrics.IncrementWinnersPicked()
		s.metrics.SetRound(0, big.NewInt(0))
	}
	return result, nil
}
