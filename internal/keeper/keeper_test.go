package keeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vrfraffle/internal/raffle/models"
	"vrfraffle/pkg/domain"
	dErrors "vrfraffle/pkg/domain-errors"
)

type fakeRaffle struct {
	mu         sync.Mutex
	needed     bool
	checkErr   error
	performErr error
	performed  int
}

func (f *fakeRaffle) CheckUpkeep(context.Context) (models.UpkeepResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return models.UpkeepResult{UpkeepNeeded: f.needed, PlayerCount: 2}, f.checkErr
}

func (f *fakeRaffle) PerformUpkeep(context.Context) (domain.RequestID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.performErr != nil {
		return "", f.performErr
	}
	f.performed++
	f.needed = false
	return "1", nil
}

func (f *fakeRaffle) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.performed
}

type KeeperSuite struct {
	suite.Suite
	ctx    context.Context
	raffle *fakeRaffle
	logger *slog.Logger
}

func TestKeeperSuite(t *testing.T) {
	suite.Run(t, new(KeeperSuite))
}

func (s *KeeperSuite) SetupTest() {
	s.ctx = context.Background()
	s.raffle = &fakeRaffle{}
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *KeeperSuite) TestTick() {
	s.Run("does nothing when upkeep is not needed", func() {
		k := New(s.raffle, WithLogger(s.logger))
		id, err := k.Tick(s.ctx)
		s.Require().NoError(err)
		s.True(id.IsNil())
		s.Zero(s.raffle.count())
	})

	s.Run("performs upkeep when needed", func() {
		s.raffle.needed = true
		k := New(s.raffle, WithLogger(s.logger))
		id, err := k.Tick(s.ctx)
		s.Require().NoError(err)
		s.Equal(domain.RequestID("1"), id)
		s.Equal(1, s.raffle.count())
	})

	s.Run("ignores a lost race", func() {
		s.raffle.needed = true
		s.raffle.performErr = dErrors.New(dErrors.CodeUpkeepNotNeeded, "upkeep not needed")
		defer func() { s.raffle.performErr = nil }()

		k := New(s.raffle, WithLogger(s.logger))
		_, err := k.Tick(s.ctx)
		s.NoError(err)
	})

	s.Run("surfaces other perform errors", func() {
		s.raffle.needed = true
		s.raffle.performErr = dErrors.New(dErrors.CodeUnavailable, "coordinator unavailable")
		defer func() { s.raffle.performErr = nil }()

		k := New(s.raffle, WithLogger(s.logger))
		_, err := k.Tick(s.ctx)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})

	s.Run("surfaces check errors", func() {
		s.raffle.checkErr = errors.New("store down")
		defer func() { s.raffle.checkErr = nil }()

		k := New(s.raffle, WithLogger(s.logger))
		_, err := k.Tick(s.ctx)
		s.Error(err)
	})
}

func (s *KeeperSuite) TestLeaseHeldElsewhere() {
	s.raffle.needed = true
	lease := NewLocalLease()
	held, err := lease.Acquire(s.ctx, time.Minute)
	s.Require().NoError(err)
	s.Require().True(held)

	k := New(s.raffle, WithLease(lease), WithLogger(s.logger))
	_, err = k.Tick(s.ctx)
	s.Require().NoError(err)
	s.Zero(s.raffle.count())
}

func (s *KeeperSuite) TestLocalLease() {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	lease := NewLocalLease()
	lease.now = func() time.Time { return now }

	held, _ := lease.Acquire(s.ctx, time.Second)
	s.True(held)
	held, _ = lease.Acquire(s.ctx, time.Second)
	s.False(held)

	now = now.Add(2 * time.Second)
	held, _ = lease.Acquire(s.ctx, time.Second)
	s.True(held)

	s.Require().NoError(lease.Release(s.ctx))
	held, _ = lease.Acquire(s.ctx, time.Second)
	s.True(held)
}

func (s *KeeperSuite) TestRun() {
	s.raffle.needed = true
	k := New(s.raffle, WithInterval(5*time.Millisecond), WithLogger(s.logger))
	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan error, 1)
	go func() { done <- k.Run(ctx) }()

	s.Eventually(func() bool { return s.raffle.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	s.ErrorIs(<-done, context.Canceled)
	s.Equal(1, s.raffle.count())
}
