package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"vrfraffle/internal/oracle"
	"vrfraffle/internal/raffle/models"
	"vrfraffle/internal/raffle/store"
	"vrfraffle/pkg/domain"
	dErrors "vrfraffle/pkg/domain-errors"
	"vrfraffle/pkg/platform/sentinel"
	"vrfraffle/pkg/requestcontext"
)

// CheckUpkeep reports whether a draw should be triggered now. It never
// mutates the raffle.
func (s *Service) CheckUpkeep(ctx context.Context) (models.UpkeepResult, error) {
	r, err := s.store.Load(ctx)
	if err != nil {
		return models.UpkeepResult{}, wrapLoadErr(err)
	}
	return r.CheckUpkeep(requestcontext.Now(ctx)), nil
}

// PerformUpkeep re-checks the draw predicate under the transaction, locks the
// raffle and asks the coordinator for one random word. If the coordinator
// refuses, nothing is committed and the raffle stays OPEN.
func (s *Service) PerformUpkeep(ctx context.Context) (_ domain.RequestID, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "raffle.PerformUpkeep")
	defer func() {
		endSpan(span, err)
		s.observe("perform_upkeep", start)
	}()

	now := requestcontext.Now(ctx)
	var (
		requestID domain.RequestID
		round     uint64
		players   int
	)
	err = s.store.RunInTx(ctx, func(tx store.Tx) error {
		r, err := tx.Raffle(ctx)
		if err != nil {
			return wrapLoadErr(err)
		}
		if err := r.CanRequestDraw(now); err != nil {
			return err
		}
		r.ApplyDrawRequested()

		id, err := s.coordinator.RequestRandomWords(ctx, oracle.Request{
			KeyHash:                     r.Oracle.GasLane,
			SubscriptionID:              r.Oracle.SubscriptionID,
			MinimumRequestConfirmations: r.Oracle.RequestConfirmations,
			CallbackGasLimit:            r.Oracle.CallbackGasLimit,
			NumWords:                    r.Oracle.NumWords,
			Consumer:                    s.self,
		})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "randomness request failed")
		}

		if err := tx.SaveRaffle(ctx, r); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save raffle")
		}
		pending := models.PendingRequest{
			RequestID:   id,
			Round:       r.Round,
			PlayerCount: len(r.Players),
			RequestedAt: now,
		}
		if err := tx.PutPending(ctx, pending); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.Wrap(err, dErrors.CodeConflict, "coordinator reused a request id")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record pending request")
		}
		if err := tx.AppendNotification(ctx, models.NewRequestedRaffleWinner(id, r.Round, now)); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record draw request")
		}
		requestID, round, players = id, r.Round, len(r.Players)
		return nil
	})
	if err != nil {
		if s.metrics != nil && dErrors.HasCode(err, dErrors.CodeUpkeepNotNeeded) {
			s.metrics.IncrementUpkeepNotNeeded()
		}
		return "", err
	}

	span.SetAttributes(attribute.String("raffle.request_id", requestID.String()))
	s.logAudit(ctx, string(models.KindRequestedRaffleWinner),
		"vrf_request_id", requestID.String(),
		"round", round,
		"players", players,
	)
	if s.metrics != nil {
		s.metrics.IncrementDrawsRequested()
	}
	return requestID, nil
}
