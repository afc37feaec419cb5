package models_test

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/suite"

	"vrfraffle/internal/raffle/models"
	dErrors "vrfraffle/pkg/domain-errors"
)

var (
	coordinator = common.HexToAddress("0x8103B0A8A00be2DDC778e6e7eaa21791Cd364625")
	alice       = common.HexToAddress("0x5B38Da6a701c568545dCfcB03FcB875f56beddC4")
	bob         = common.HexToAddress("0xAb8483F64d9C6d1EcF9b849Ae677dD3315835cb2")
	carol       = common.HexToAddress("0x4B20993Bc481177ec7E8f571ceCaE8A9e22C02db")
)

type RaffleSuite struct {
	suite.Suite
	fee     *big.Int
	binding models.OracleBinding
	start   time.Time
}

func TestRaffleSuite(t *testing.T) {
	suite.Run(t, new(RaffleSuite))
}

func (s *RaffleSuite) SetupTest() {
	s.fee = big.NewInt(1e16)
	s.binding = models.OracleBinding{
		Coordinator:      coordinator,
		GasLane:          common.HexToHash("0x474e34a077df58807dbe9c96d3c009b23b3c6d0cce433e59bbf5b34f823bc56c"),
		SubscriptionID:   1,
		CallbackGasLimit: 500000,
	}
	s.start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
}

func (s *RaffleSuite) newRaffle() *models.Raffle {
	r, err := models.NewRaffle(s.fee, 30*time.Second, s.binding, s.start)
	s.Require().NoError(err)
	return r
}

func (s *RaffleSuite) TestConstructionInvariants() {
	s.Run("starts open and empty", func() {
		r := s.newRaffle()
		s.Equal(models.StateOpen, r.State)
		s.Zero(r.NumberOfPlayers())
		s.Zero(r.Balance.Sign())
		s.Equal(common.Address{}, r.RecentWinner)
		s.Equal(s.start, r.LastTimestamp)
		s.Equal(models.NumWords, r.Oracle.NumWords)
		s.Equal(models.RequestConfirmations, r.Oracle.RequestConfirmations)
	})

	s.Run("rejects nil entrance fee", func() {
		_, err := models.NewRaffle(nil, time.Second, s.binding, s.start)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("rejects missing coordinator", func() {
		b := s.binding
		b.Coordinator = common.Address{}
		_, err := models.NewRaffle(s.fee, time.Second, b, s.start)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("rejects zero callback gas limit", func() {
		b := s.binding
		b.CallbackGasLimit = 0
		_, err := models.NewRaffle(s.fee, time.Second, b, s.start)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *RaffleSuite) TestEnter() {
	s.Run("records player and pools payment", func() {
		r := s.newRaffle()
		s.Require().NoError(r.Enter(alice, s.fee))
		s.Require().NoError(r.Enter(bob, big.NewInt(2e16)))

		s.Equal([]common.Address{alice, bob}, r.Players)
		s.Equal(0, r.Balance.Cmp(big.NewInt(3e16)))
	})

	s.Run("allows the same player twice", func() {
		r := s.newRaffle()
		s.Require().NoError(r.Enter(alice, s.fee))
		s.Require().NoError(r.Enter(alice, s.fee))
		s.Equal(2, r.NumberOfPlayers())
	})

	s.Run("rejects payment below fee", func() {
		r := s.newRaffle()
		err := r.Enter(alice, big.NewInt(1))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientPayment))

		var ip *models.InsufficientPaymentError
		s.Require().True(errors.As(err, &ip))
		s.Equal(int64(1), ip.Payment.Int64())
		s.Zero(r.NumberOfPlayers())
	})

	s.Run("rejects entry while calculating", func() {
		r := s.newRaffle()
		r.ApplyDrawRequested()
		err := r.Enter(alice, s.fee)
		s.True(dErrors.HasCode(err, dErrors.CodeRaffleNotOpen))
	})

	s.Run("checks fee before state", func() {
		r := s.newRaffle()
		r.ApplyDrawRequested()
		err := r.Enter(alice, big.NewInt(0))
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientPayment))
	})
}

func (s *RaffleSuite) TestCheckUpkeep() {
	after := s.start.Add(31 * time.Second)

	s.Run("false without players", func() {
		r := s.newRaffle()
		res := r.CheckUpkeep(after)
		s.False(res.UpkeepNeeded)
		s.True(res.TimePassed)
	})

	s.Run("false before interval elapsed", func() {
		r := s.newRaffle()
		s.Require().NoError(r.Enter(alice, s.fee))
		s.False(r.CheckUpkeep(s.start.Add(30 * time.Second)).UpkeepNeeded)
	})

	s.Run("false while calculating", func() {
		r := s.newRaffle()
		s.Require().NoError(r.Enter(alice, s.fee))
		r.ApplyDrawRequested()
		res := r.CheckUpkeep(after)
		s.False(res.UpkeepNeeded)
		s.Equal(models.StateCalculating, res.State)
	})

	s.Run("false with players but zero balance", func() {
		r, err := models.NewRaffle(big.NewInt(0), 30*time.Second, s.binding, s.start)
		s.Require().NoError(err)
		s.Require().NoError(r.Enter(alice, big.NewInt(0)))
		s.False(r.CheckUpkeep(after).UpkeepNeeded)
	})

	s.Run("true when all conditions hold", func() {
		r := s.newRaffle()
		s.Require().NoError(r.Enter(alice, s.fee))
		res := r.CheckUpkeep(after)
		s.True(res.UpkeepNeeded)
		s.Equal(1, res.PlayerCount)
		s.Empty(res.PerformData)
	})
}

func (s *RaffleSuite) TestCanRequestDraw() {
	s.Run("carries the diagnostic snapshot", func() {
		r := s.newRaffle()
		s.Require().NoError(r.Enter(alice, s.fee))

		err := r.CanRequestDraw(s.start)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUpkeepNotNeeded))

		var un *models.UpkeepNotNeededError
		s.Require().True(errors.As(err, &un))
		s.Equal(0, un.Balance.Cmp(s.fee))
		s.Equal(1, un.PlayerCount)
		s.Equal(models.StateOpen, un.State)
		s.Equal(0, un.Details()["raffle_state"])
	})

	s.Run("passes when needed", func() {
		r := s.newRaffle()
		s.Require().NoError(r.Enter(alice, s.fee))
		s.NoError(r.CanRequestDraw(s.start.Add(time.Minute)))
	})
}

func (s *RaffleSuite) TestFulfill() {
	s.Run("rejects non-coordinator caller", func() {
		r := s.newRaffle()
		r.ApplyDrawRequested()
		err := r.CanFulfill(alice)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

		var oc *models.OnlyCoordinatorCanFulfillError
		s.Require().True(errors.As(err, &oc))
		s.Equal(alice, oc.Have)
		s.Equal(coordinator, oc.Want)
	})

	s.Run("accepts the coordinator", func() {
		r := s.newRaffle()
		s.NoError(r.CanFulfill(coordinator))
	})

	s.Run("cannot settle when no draw is running", func() {
		r := s.newRaffle()
		err := r.CanSettle()
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		r.ApplyDrawRequested()
		s.NoError(r.CanSettle())
	})

	s.Run("picks words[0] mod players", func() {
		r := s.newRaffle()
		for _, p := range []common.Address{alice, bob, carol} {
			s.Require().NoError(r.Enter(p, s.fee))
		}
		idx, winner, err := r.PickWinner([]*big.Int{big.NewInt(7)})
		s.Require().NoError(err)
		s.Equal(1, idx)
		s.Equal(bob, winner)
	})

	s.Run("handles uint256-sized words", func() {
		r := s.newRaffle()
		s.Require().NoError(r.Enter(alice, s.fee))
		s.Require().NoError(r.Enter(bob, s.fee))
		word := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
		_, winner, err := r.PickWinner([]*big.Int{word})
		s.Require().NoError(err)
		s.Equal(bob, winner)
	})

	s.Run("rejects empty words", func() {
		r := s.newRaffle()
		s.Require().NoError(r.Enter(alice, s.fee))
		_, _, err := r.PickWinner(nil)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("reopens and resets the round", func() {
		r := s.newRaffle()
		s.Require().NoError(r.Enter(alice, s.fee))
		s.Require().NoError(r.Enter(bob, s.fee))
		r.ApplyDrawRequested()

		now := s.start.Add(time.Hour)
		payout := r.ApplyWinnerPaid(bob, now)

		s.Equal(0, payout.Cmp(big.NewInt(2e16)))
		s.Equal(models.StateOpen, r.State)
		s.Equal(bob, r.RecentWinner)
		s.Zero(r.NumberOfPlayers())
		s.Zero(r.Balance.Sign())
		s.Equal(now, r.LastTimestamp)
		s.Equal(uint64(1), r.Round)
	})
}

func (s *RaffleSuite) TestCloneIsolation() {
	r := s.newRaffle()
	s.Require().NoError(r.Enter(alice, s.fee))

	c := r.Clone()
	s.Require().NoError(c.Enter(bob, s.fee))
	c.ApplyDrawRequested()

	s.Equal(1, r.NumberOfPlayers())
	s.Equal(0, r.Balance.Cmp(s.fee))
	s.Equal(models.StateOpen, r.State)
}

func (s *RaffleSuite) TestPlayerIndex() {
	r := s.newRaffle()
	s.Require().NoError(r.Enter(alice, s.fee))

	p, err := r.Player(0)
	s.Require().NoError(err)
	s.Equal(alice, p)

	_, err = r.Player(1)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	_, err = r.Player(-1)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestRaffleStateTransitions(t *testing.T) {
	cases := []struct {
		from, to models.RaffleState
		ok       bool
	}{
		{models.StateOpen, models.StateCalculating, true},
		{models.StateCalculating, models.StateOpen, true},
		{models.StateOpen, models.StateOpen, false},
		{models.StateCalculating, models.StateCalculating, false},
		{models.RaffleState("CLOSED"), models.StateOpen, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.ok {
			t.Errorf("%s -> %s: got %v want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}
