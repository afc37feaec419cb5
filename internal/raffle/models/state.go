package models

// RaffleState is the lifecycle state of the raffle.
type RaffleState string

const (
	StateOpen        RaffleState = "OPEN"
	StateCalculating RaffleState = "CALCULATING"
)

func (s RaffleState) IsValid() bool {
	return s == StateOpen || s == StateCalculating
}

func (s RaffleState) String() string { return string(s) }

// CanTransitionTo reports whether s may move to target.
// OPEN -> CALCULATING happens on a draw request, CALCULATING -> OPEN on a
// fulfilled draw. Nothing else is permitted.
func (s RaffleState) CanTransitionTo(target RaffleState) bool {
	switch s {
	case StateOpen:
		return target == StateCalculating
	case StateCalculating:
		return target == StateOpen
	default:
		return false
	}
}

// Ordinal is the numeric encoding used on chain (OPEN=0, CALCULATING=1).
func (s RaffleState) Ordinal() int {
	if s == StateCalculating {
		return 1
	}
	return 0
}
