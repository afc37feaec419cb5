package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	dErrors "vrfraffle/pkg/domain-errors"
)

const (
	// NumWords is the number of random words requested per draw.
	NumWords uint32 = 1
	// RequestConfirmations is the block confirmation depth asked of the oracle.
	RequestConfirmations uint16 = 3
)

// OracleBinding is the immutable oracle configuration fixed at deployment.
type OracleBinding struct {
	Coordinator          common.Address
	GasLane              common.Hash
	SubscriptionID       uint64
	CallbackGasLimit     uint32
	NumWords             uint32
	RequestConfirmations uint16
}

// Raffle is the single aggregate guarded by the store's transaction boundary.
//
// Invariants:
//   - Entries are accepted only while State is OPEN
//   - Only the draw trigger moves OPEN -> CALCULATING
//   - Only a successful randomness callback moves CALCULATING -> OPEN
//   - EntranceFee, Interval and Oracle never change after construction
//   - Balance is the sum of payments accepted since the last payout
type Raffle struct {
	EntranceFee   *big.Int
	Interval      time.Duration
	Players       []common.Address
	State         RaffleState
	LastTimestamp time.Time
	RecentWinner  common.Address
	Balance       *big.Int
	Oracle        OracleBinding
	Round         uint64
}

// NewRaffle builds an OPEN raffle with no players.
func NewRaffle(entranceFee *big.Int, interval time.Duration, oracle OracleBinding, now time.Time) (*Raffle, error) {
	if entranceFee == nil || entranceFee.Sign() < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "entrance fee must be a non-negative amount")
	}
	if interval < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "interval must not be negative")
	}
	if oracle.Coordinator == (common.Address{}) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "coordinator address is required")
	}
	if oracle.CallbackGasLimit == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "callback gas limit must be positive")
	}
	oracle.NumWords = NumWords
	oracle.RequestConfirmations = RequestConfirmations

	return &Raffle{
		EntranceFee:   new(big.Int).Set(entranceFee),
		Interval:      interval,
		Players:       []common.Address{},
		State:         StateOpen,
		LastTimestamp: now,
		Balance:       new(big.Int),
		Oracle:        oracle,
	}, nil
}

// Clone returns a deep copy so a working set can be discarded on rollback.
func (r *Raffle) Clone() *Raffle {
	if r == nil {
		return nil
	}
	c := *r
	c.EntranceFee = cloneInt(r.EntranceFee)
	c.Balance = cloneInt(r.Balance)
	c.Players = append(make([]common.Address, 0, len(r.Players)), r.Players...)
	return &c
}

func (r *Raffle) NumberOfPlayers() int {
	return len(r.Players)
}

// Player returns the participant at index.
func (r *Raffle) Player(index int) (common.Address, error) {
	if index < 0 || index >= len(r.Players) {
		return common.Address{}, dErrors.New(dErrors.CodeNotFound, "player index out of range")
	}
	return r.Players[index], nil
}

// CanEnter checks the entry preconditions. The fee is checked before the state.
func (r *Raffle) CanEnter(payment *big.Int) error {
	if payment == nil || payment.Cmp(r.EntranceFee) < 0 {
		have := new(big.Int)
		if payment != nil {
			have.Set(payment)
		}
		return dErrors.Wrap(&InsufficientPaymentError{Payment: have, EntranceFee: cloneInt(r.EntranceFee)},
			dErrors.CodeInsufficientPayment, "not enough value sent to enter the raffle")
	}
	if r.State != StateOpen {
		return dErrors.New(dErrors.CodeRaffleNotOpen, "raffle is not open")
	}
	return nil
}

// ApplyEntry records player and adds payment to the pool.
// Call CanEnter first.
func (r *Raffle) ApplyEntry(player common.Address, payment *big.Int) {
	r.Players = append(r.Players, player)
	r.Balance = new(big.Int).Add(r.Balance, payment)
}

// Enter validates and applies an entry in one call.
func (r *Raffle) Enter(player common.Address, payment *big.Int) error {
	if err := r.CanEnter(payment); err != nil {
		return err
	}
	r.ApplyEntry(player, payment)
	return nil
}

// UpkeepResult is the outcome of the draw predicate with its diagnostics.
type UpkeepResult struct {
	UpkeepNeeded bool
	Balance      *big.Int
	PlayerCount  int
	State        RaffleState
	TimePassed   bool
	PerformData  []byte
}

// CheckUpkeep evaluates the draw predicate at now without side effects.
func (r *Raffle) CheckUpkeep(now time.Time) UpkeepResult {
	isOpen := r.State == StateOpen
	timePassed := now.Sub(r.LastTimestamp) > r.Interval
	hasPlayers := len(r.Players) > 0
	hasBalance := r.Balance.Sign() > 0

	return UpkeepResult{
		UpkeepNeeded: isOpen && timePassed && hasPlayers && hasBalance,
		Balance:      cloneInt(r.Balance),
		PlayerCount:  len(r.Players),
		State:        r.State,
		TimePassed:   timePassed,
		PerformData:  []byte{},
	}
}

// CanRequestDraw re-evaluates the predicate and returns an upkeep_not_needed
// error carrying the snapshot when it is false.
func (r *Raffle) CanRequestDraw(now time.Time) error {
	res := r.CheckUpkeep(now)
	if res.UpkeepNeeded {
		return nil
	}
	return dErrors.Wrap(&UpkeepNotNeededError{
		Balance:     res.Balance,
		PlayerCount: res.PlayerCount,
		State:       res.State,
	}, dErrors.CodeUpkeepNotNeeded, "upkeep not needed")
}

// ApplyDrawRequested locks entries while the oracle computes randomness.
func (r *Raffle) ApplyDrawRequested() {
	r.State = StateCalculating
}

// CanFulfill checks that caller is the bound coordinator.
func (r *Raffle) CanFulfill(caller common.Address) error {
	if caller != r.Oracle.Coordinator {
		return dErrors.Wrap(&OnlyCoordinatorCanFulfillError{Have: caller, Want: r.Oracle.Coordinator},
			dErrors.CodeUnauthorized, "only the coordinator can fulfill")
	}
	return nil
}

// CanSettle checks that a draw is in progress.
func (r *Raffle) CanSettle() error {
	if !r.State.CanTransitionTo(StateOpen) {
		return dErrors.New(dErrors.CodeInvariantViolation, "no draw in progress")
	}
	return nil
}

// PickWinner selects words[0] mod len(Players).
func (r *Raffle) PickWinner(words []*big.Int) (int, common.Address, error) {
	if len(words) == 0 || words[0] == nil {
		return 0, common.Address{}, dErrors.New(dErrors.CodeBadRequest, "at least one random word is required")
	}
	if words[0].Sign() < 0 {
		return 0, common.Address{}, dErrors.New(dErrors.CodeBadRequest, "random words must be unsigned")
	}
	if len(r.Players) == 0 {
		return 0, common.Address{}, dErrors.New(dErrors.CodeInvariantViolation, "no players to pick from")
	}
	idx := new(big.Int).Mod(words[0], big.NewInt(int64(len(r.Players))))
	i := int(idx.Int64())
	return i, r.Players[i], nil
}

// ApplyWinnerPaid reopens the raffle for a new round after winner has been
// paid and returns the amount that was paid out.
func (r *Raffle) ApplyWinnerPaid(winner common.Address, now time.Time) *big.Int {
	payout := cloneInt(r.Balance)
	r.RecentWinner = winner
	r.State = StateOpen
	r.Players = []common.Address{}
	r.LastTimestamp = now
	r.Balance = new(big.Int)
	r.Round++
	return payout
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
