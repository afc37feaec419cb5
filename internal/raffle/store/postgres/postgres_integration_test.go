//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"vrfraffle/internal/raffle/models"
	"vrfraffle/internal/raffle/store"
	"vrfraffle/internal/raffle/store/postgres"
	"vrfraffle/pkg/platform/sentinel"
	"vrfraffle/pkg/testutil/containers"
)

var (
	coordinator = common.HexToAddress("0x8103B0A8A00be2DDC778e6e7eaa21791Cd364625")
	player      = common.HexToAddress("0x5B38Da6a701c568545dCfcB03FcB875f56beddC4")
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
	ctx      context.Context
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.Require().NoError(postgres.Migrate(s.ctx, s.postgres.DB))
	s.store = postgres.New(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, postgres.Tables...))
	s.now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	r, err := models.NewRaffle(big.NewInt(1e16), time.Minute, models.OracleBinding{
		Coordinator:      coordinator,
		GasLane:          common.HexToHash("0x474e34a077df58807dbe9c96d3c009b23b3c6d0cce433e59bbf5b34f823bc56c"),
		SubscriptionID:   18446744073709551615,
		CallbackGasLimit: 500000,
	}, s.now)
	s.Require().NoError(err)
	_, err = s.store.Initialize(s.ctx, r)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) enter(tx store.Tx) error {
	r, err := tx.Raffle(s.ctx)
	if err != nil {
		return err
	}
	if err := r.Enter(player, big.NewInt(1e16)); err != nil {
		return err
	}
	return tx.SaveRaffle(s.ctx, r)
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	r, err := s.store.Load(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.StateOpen, r.State)
	s.Equal(uint64(18446744073709551615), r.Oracle.SubscriptionID)
	s.Equal(models.NumWords, r.Oracle.NumWords)
	s.True(s.now.Equal(r.LastTimestamp))
	s.Empty(r.Players)
}

func (s *PostgresStoreSuite) TestCommitAndRollback() {
	s.Run("commit persists everything", func() {
		err := s.store.RunInTx(s.ctx, func(tx store.Tx) error {
			if err := s.enter(tx); err != nil {
				return err
			}
			if err := tx.PutPending(s.ctx, models.PendingRequest{RequestID: "115792089237316195423570985008687907853269984665640564039457584007913129639935", RequestedAt: s.now}); err != nil {
				return err
			}
			if err := tx.Credit(s.ctx, player, big.NewInt(3)); err != nil {
				return err
			}
			return tx.AppendNotification(s.ctx, models.NewRaffleEnter(player, big.NewInt(1e16), 0, s.now))
		})
		s.Require().NoError(err)

		r, err := s.store.Load(s.ctx)
		s.Require().NoError(err)
		s.Equal([]common.Address{player}, r.Players)
		s.Equal(0, r.Balance.Cmp(big.NewInt(1e16)))

		pending, err := s.store.PendingRequests(s.ctx)
		s.Require().NoError(err)
		s.Len(pending, 1)

		acct, err := s.store.Account(s.ctx, player)
		s.Require().NoError(err)
		s.Equal(int64(3), acct.Balance.Int64())
	})

	s.Run("error rolls back every table", func() {
		boom := errors.New("boom")
		err := s.store.RunInTx(s.ctx, func(tx store.Tx) error {
			s.Require().NoError(s.enter(tx))
			s.Require().NoError(tx.Credit(s.ctx, player, big.NewInt(3)))
			s.Require().NoError(tx.AppendNotification(s.ctx, models.NewRaffleEnter(player, big.NewInt(1), 0, s.now)))
			return boom
		})
		s.Require().ErrorIs(err, boom)

		r, err := s.store.Load(s.ctx)
		s.Require().NoError(err)
		s.Len(r.Players, 1)
		acct, err := s.store.Account(s.ctx, player)
		s.Require().NoError(err)
		s.Equal(int64(3), acct.Balance.Int64())
		events, err := s.store.Notifications(s.ctx, 0)
		s.Require().NoError(err)
		s.Len(events, 1)
	})
}

func (s *PostgresStoreSuite) TestPendingTable() {
	s.Require().NoError(s.store.RunInTx(s.ctx, func(tx store.Tx) error {
		return tx.PutPending(s.ctx, models.PendingRequest{RequestID: "5", Round: 2, PlayerCount: 3, RequestedAt: s.now})
	}))

	err := s.store.RunInTx(s.ctx, func(tx store.Tx) error {
		return tx.PutPending(s.ctx, models.PendingRequest{RequestID: "5", RequestedAt: s.now})
	})
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)

	s.Require().NoError(s.store.RunInTx(s.ctx, func(tx store.Tx) error {
		p, err := tx.TakePending(s.ctx, "5")
		if err != nil {
			return err
		}
		s.Equal(uint64(2), p.Round)
		s.Equal(3, p.PlayerCount)
		return nil
	}))

	err = s.store.RunInTx(s.ctx, func(tx store.Tx) error {
		_, err := tx.TakePending(s.ctx, "5")
		return err
	})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestRejectedCredit() {
	s.Require().NoError(s.store.SetPayable(s.ctx, player, false))
	err := s.store.RunInTx(s.ctx, func(tx store.Tx) error {
		return tx.Credit(s.ctx, player, big.NewInt(1))
	})
	s.ErrorIs(err, sentinel.ErrRejected)
}

// TestConcurrentEntriesAreSerialized verifies the FOR UPDATE row lock keeps
// every concurrent entry.
func (s *PostgresStoreSuite) TestConcurrentEntriesAreSerialized() {
	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.NoError(s.store.RunInTx(s.ctx, s.enter))
		}()
	}
	wg.Wait()

	r, err := s.store.Load(s.ctx)
	s.Require().NoError(err)
	s.Len(r.Players, writers)
	s.Equal(0, r.Balance.Cmp(new(big.Int).Mul(big.NewInt(1e16), big.NewInt(writers))))
}

func (s *PostgresStoreSuite) TestOutbox() {
	first := models.NewRaffleEnter(player, big.NewInt(1), 0, s.now)
	second := models.NewRequestedRaffleWinner("9", 0, s.now.Add(time.Second))
	s.Require().NoError(s.store.RunInTx(s.ctx, func(tx store.Tx) error {
		s.Require().NoError(tx.AppendNotification(s.ctx, first))
		return tx.AppendNotification(s.ctx, second)
	}))

	batch, err := s.store.Unpublished(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(batch, 2)
	s.Equal(first.ID, batch[0].ID)
	s.Equal(player, batch[0].Account)

	s.Require().NoError(s.store.MarkPublished(s.ctx, []uuid.UUID{first.ID}, s.now))
	batch, err = s.store.Unpublished(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(batch, 1)
	s.Equal(second.ID, batch[0].ID)
	s.Equal("9", batch[0].RequestID.String())

	latest, err := s.store.Notifications(s.ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(latest, 1)
	s.Equal(second.ID, latest[0].ID)
}
