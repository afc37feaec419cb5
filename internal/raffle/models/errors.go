package models

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// InsufficientPaymentError is returned when an entry carries less than the
// entrance fee.
type InsufficientPaymentError struct {
	Payment     *big.Int
	EntranceFee *big.Int
}

func (e *InsufficientPaymentError) Error() string {
	return fmt.Sprintf("payment %s is below entrance fee %s", e.Payment, e.EntranceFee)
}

func (e *InsufficientPaymentError) Details() map[string]any {
	return map[string]any{
		"payment":      e.Payment.String(),
		"entrance_fee": e.EntranceFee.String(),
	}
}

// UpkeepNotNeededError carries the snapshot that made the draw predicate false.
type UpkeepNotNeededError struct {
	Balance     *big.Int
	PlayerCount int
	State       RaffleState
}

func (e *UpkeepNotNeededError) Error() string {
	return fmt.Sprintf("upkeep not needed: balance=%s players=%d state=%s", e.Balance, e.PlayerCount, e.State)
}

func (e *UpkeepNotNeededError) Details() map[string]any {
	return map[string]any{
		"balance":      e.Balance.String(),
		"player_count": e.PlayerCount,
		"raffle_state": e.State.Ordinal(),
	}
}

// OnlyCoordinatorCanFulfillError is returned when something other than the
// bound coordinator tries to deliver randomness.
type OnlyCoordinatorCanFulfillError struct {
	Have common.Address
	Want common.Address
}

func (e *OnlyCoordinatorCanFulfillError) Error() string {
	return fmt.Sprintf("only coordinator %s can fulfill, got %s", e.Want.Hex(), e.Have.Hex())
}

func (e *OnlyCoordinatorCanFulfillError) Details() map[string]any {
	return map[string]any{
		"have": e.Have.Hex(),
		"want": e.Want.Hex(),
	}
}
