package sqlite

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"vrfraffle/internal/raffle/models"
	"vrfraffle/internal/raffle/store"
	dErrors "vrfraffle/pkg/domain-errors"
	"vrfraffle/pkg/platform/sentinel"
)

var (
	coordinator = common.HexToAddress("0x8103B0A8A00be2DDC778e6e7eaa21791Cd364625")
	player      = common.HexToAddress("0xAb8483F64d9C6d1EcF9b849Ae677dD3315835cb2")
	gasLane     = common.HexToHash("0x474e34a077df58807dbe9c96d3c009b23b3c6d0cce433e59bbf5b34f823bc56c")
)

type SQLiteStoreSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
	now   time.Time
}

func TestSQLiteStoreSuite(t *testing.T) {
	suite.Run(t, new(SQLiteStoreSuite))
}

func (s *SQLiteStoreSuite) SetupTest() {
	st, err := Open(filepath.Join(s.T().TempDir(), "raffle.db"))
	s.Require().NoError(err)
	s.store = st
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	r, err := models.NewRaffle(big.NewInt(10), 30*time.Second, models.OracleBinding{
		Coordinator:          coordinator,
		GasLane:              gasLane,
		SubscriptionID:       ^uint64(0),
		CallbackGasLimit:     500000,
		NumWords:             models.NumWords,
		RequestConfirmations: models.RequestConfirmations,
	}, s.now)
	s.Require().NoError(err)
	_, err = s.store.Initialize(s.ctx, r)
	s.Require().NoError(err)
}

func (s *SQLiteStoreSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func (s *SQLiteStoreSuite) enter(tx store.Tx) error {
	r, err := tx.Raffle(s.ctx)
	if err != nil {
		return err
	}
	if err := r.Enter(player, big.NewInt(10)); err != nil {
		return err
	}
	return tx.SaveRaffle(s.ctx, r)
}

func (s *SQLiteStoreSuite) TestRoundTrip() {
	s.Run("oracle binding survives storage", func() {
		r, err := s.store.Load(s.ctx)
		s.Require().NoError(err)
		s.Equal(coordinator, r.Oracle.Coordinator)
		s.Equal(gasLane, r.Oracle.GasLane)
		s.Equal(^uint64(0), r.Oracle.SubscriptionID)
		s.Equal(uint32(500000), r.Oracle.CallbackGasLimit)
		s.Equal(30*time.Second, r.Interval)
		s.Equal(models.StateOpen, r.State)
		s.True(r.LastTimestamp.Equal(s.now))
	})

	s.Run("second initialize keeps the first raffle", func() {
		other, err := models.NewRaffle(big.NewInt(99), time.Hour, models.OracleBinding{
			Coordinator:      coordinator,
			CallbackGasLimit: 1,
		}, s.now)
		s.Require().NoError(err)
		got, err := s.store.Initialize(s.ctx, other)
		s.Require().NoError(err)
		s.Equal(int64(10), got.EntranceFee.Int64())
	})
}

func (s *SQLiteStoreSuite) TestCommit() {
	s.Require().NoError(s.store.RunInTx(s.ctx, func(tx store.Tx) error {
		if err := s.enter(tx); err != nil {
			return err
		}
		if err := tx.PutPending(s.ctx, models.PendingRequest{RequestID: "12", PlayerCount: 1, RequestedAt: s.now}); err != nil {
			return err
		}
		if err := tx.Credit(s.ctx, player, big.NewInt(7)); err != nil {
			return err
		}
		return tx.AppendNotification(s.ctx, models.NewRaffleEnter(player, big.NewInt(10), 0, s.now))
	}))

	r, err := s.store.Load(s.ctx)
	s.Require().NoError(err)
	s.Equal([]common.Address{player}, r.Players)
	s.Equal(int64(10), r.Balance.Int64())

	pending, err := s.store.PendingRequests(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal("12", pending[0].RequestID.String())

	acct, err := s.store.Account(s.ctx, player)
	s.Require().NoError(err)
	s.Equal(int64(7), acct.Balance.Int64())
	s.True(acct.Payable)

	events, err := s.store.Notifications(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(models.KindRaffleEnter, events[0].Kind)
	s.Equal(player, events[0].Account)
}

func (s *SQLiteStoreSuite) TestRollback() {
	boom := errors.New("boom")
	err := s.store.RunInTx(s.ctx, func(tx store.Tx) error {
		s.Require().NoError(s.enter(tx))
		s.Require().NoError(tx.PutPending(s.ctx, models.PendingRequest{RequestID: "3"}))
		s.Require().NoError(tx.Credit(s.ctx, player, big.NewInt(5)))
		return boom
	})
	s.Require().ErrorIs(err, boom)

	r, err := s.store.Load(s.ctx)
	s.Require().NoError(err)
	s.Empty(r.Players)
	s.Zero(r.Balance.Sign())

	pending, err := s.store.PendingRequests(s.ctx)
	s.Require().NoError(err)
	s.Empty(pending)

	acct, err := s.store.Account(s.ctx, player)
	s.Require().NoError(err)
	s.Zero(acct.Balance.Sign())
}

func (s *SQLiteStoreSuite) TestPendingTable() {
	s.Run("duplicate id is rejected", func() {
		err := s.store.RunInTx(s.ctx, func(tx store.Tx) error {
			s.Require().NoError(tx.PutPending(s.ctx, models.PendingRequest{RequestID: "4"}))
			return tx.PutPending(s.ctx, models.PendingRequest{RequestID: "4"})
		})
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("take is single use", func() {
		s.Require().NoError(s.store.RunInTx(s.ctx, func(tx store.Tx) error {
			return tx.PutPending(s.ctx, models.PendingRequest{RequestID: "5", Round: 2})
		}))
		s.Require().NoError(s.store.RunInTx(s.ctx, func(tx store.Tx) error {
			p, err := tx.TakePending(s.ctx, "5")
			s.Equal(uint64(2), p.Round)
			return err
		}))
		err := s.store.RunInTx(s.ctx, func(tx store.Tx) error {
			_, err := tx.TakePending(s.ctx, "5")
			return err
		})
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *SQLiteStoreSuite) TestPayable() {
	s.Require().NoError(s.store.SetPayable(s.ctx, player, false))
	err := s.store.RunInTx(s.ctx, func(tx store.Tx) error {
		return tx.Credit(s.ctx, player, big.NewInt(1))
	})
	s.ErrorIs(err, sentinel.ErrRejected)

	acct, err := s.store.Account(s.ctx, player)
	s.Require().NoError(err)
	s.False(acct.Payable)

	s.Require().NoError(s.store.SetPayable(s.ctx, player, true))
	s.Require().NoError(s.store.RunInTx(s.ctx, func(tx store.Tx) error {
		return tx.Credit(s.ctx, player, big.NewInt(1))
	}))
	acct, err = s.store.Account(s.ctx, player)
	s.Require().NoError(err)
	s.True(acct.Payable)
	s.Equal(int64(1), acct.Balance.Int64())
}

func (s *SQLiteStoreSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	err := s.store.RunInTx(ctx, func(store.Tx) error { return nil })
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
}

func (s *SQLiteStoreSuite) TestDefaultTimeoutBoundsTransaction() {
	s.store.timeout = 50 * time.Millisecond

	s.Run("statements after the deadline fail even with a background context", func() {
		err := s.store.RunInTx(s.ctx, func(tx store.Tx) error {
			time.Sleep(150 * time.Millisecond)
			return s.enter(tx)
		})
		s.Error(err)
	})

	s.Run("an overrunning transaction is not committed", func() {
		err := s.store.RunInTx(s.ctx, func(tx store.Tx) error {
			if err := s.enter(tx); err != nil {
				return err
			}
			time.Sleep(150 * time.Millisecond)
			return nil
		})
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	})

	r, err := s.store.Load(s.ctx)
	s.Require().NoError(err)
	s.Empty(r.Players)
}

func (s *SQLiteStoreSuite) TestConcurrentWriters() {
	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.store.RunInTx(s.ctx, s.enter)
		}()
	}
	wg.Wait()

	r, err := s.store.Load(s.ctx)
	s.Require().NoError(err)
	s.Len(r.Players, writers)
	s.Equal(int64(10*writers), r.Balance.Int64())
}

func (s *SQLiteStoreSuite) TestOutbox() {
	first := models.NewRaffleEnter(player, big.NewInt(10), 0, s.now)
	second := models.NewWinnerPicked(player, big.NewInt(10), 0, s.now)
	s.Require().NoError(s.store.RunInTx(s.ctx, func(tx store.Tx) error {
		s.Require().NoError(tx.AppendNotification(s.ctx, first))
		return tx.AppendNotification(s.ctx, second)
	}))

	batch, err := s.store.Unpublished(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(batch, 2)
	s.Equal(first.ID, batch[0].ID)

	s.Require().NoError(s.store.MarkPublished(s.ctx, []uuid.UUID{first.ID}, s.now))

	batch, err = s.store.Unpublished(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(batch, 1)
	s.Equal(second.ID, batch[0].ID)
	s.Equal(int64(10), batch[0].Amount.Int64())

	all, err := s.store.Notifications(s.ctx, 0)
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.NotNil(all[0].PublishedAt)
	s.Nil(all[1].PublishedAt)
}
