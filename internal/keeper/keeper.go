// Package keeper is the off-chain automation loop: it polls the raffle's
// upkeep check and triggers the draw when one is due.
package keeper

import (
	"context"
	"log/slog"
	"time"

	"vrfraffle/internal/raffle/models"
	"vrfraffle/pkg/domain"
	dErrors "vrfraffle/pkg/domain-errors"
)

const DefaultInterval = 5 * time.Second

// Upkeeper is the slice of the raffle service the keeper drives.
type Upkeeper interface {
	CheckUpkeep(ctx context.Context) (models.UpkeepResult, error)
	PerformUpkeep(ctx context.Context) (domain.RequestID, error)
}

type Keeper struct {
	raffle   Upkeeper
	lease    Lease
	interval time.Duration
	logger   *slog.Logger
}

type Option func(*Keeper)

func WithLogger(logger *slog.Logger) Option {
	return func(k *Keeper) {
		k.logger = logger
	}
}

func WithLease(l Lease) Option {
	return func(k *Keeper) {
		k.lease = l
	}
}

func WithInterval(d time.Duration) Option {
	return func(k *Keeper) {
		if d > 0 {
			k.interval = d
		}
	}
}

func New(raffle Upkeeper, opts ...Option) *Keeper {
	k := &Keeper{
		raffle:   raffle,
		lease:    NewLocalLease(),
		interval: DefaultInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Run ticks every interval until ctx is cancelled. Tick errors are logged and
// do not stop the loop.
func (k *Keeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := k.Tick(ctx); err != nil && ctx.Err() == nil {
				k.logger.WarnContext(ctx, "keeper tick failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Tick performs one check and, when upkeep is needed and the lease is held,
// one draw request. It returns the request id of the draw it triggered.
func (k *Keeper) Tick(ctx context.Context) (domain.RequestID, error) {
	held, err := k.lease.Acquire(ctx, k.interval)
	if err != nil {
		return "", err
	}
	if !held {
		k.logger.DebugContext(ctx, "keeper lease held elsewhere")
		return "", nil
	}
	defer func() {
		if err := k.lease.Release(context.WithoutCancel(ctx)); err != nil {
			k.logger.WarnContext(ctx, "keeper lease release failed", "error", err)
		}
	}()

	check, err := k.raffle.CheckUpkeep(ctx)
	if err != nil {
		return "", err
	}
	if !check.UpkeepNeeded {
		return "", nil
	}

	requestID, err := k.raffle.PerformUpkeep(ctx)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeUpkeepNotNeeded) {
			// Another caller drew between our check and perform.
			k.logger.DebugContext(ctx, "upkeep no longer needed", "error", err)
			return "", nil
		}
		return "", err
	}
	k.logger.InfoContext(ctx, "keeper requested draw",
		"request_id", requestID.String(),
		"players", check.PlayerCount,
	)
	return requestID, nil
}
