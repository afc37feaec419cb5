package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Snapshot is the read-only view of the raffle.
type Snapshot struct {
	EntranceFee          string    `json:"entrance_fee"`
	Interval             int64     `json:"interval_seconds"`
	State                string    `json:"raffle_state"`
	NumberOfPlayers      int       `json:"number_of_players"`
	Players              []string  `json:"players"`
	LastTimestamp        time.Time `json:"last_timestamp"`
	RecentWinner         string    `json:"recent_winner"`
	Balance              string    `json:"balance"`
	Round                uint64    `json:"round"`
	NumWords             uint32    `json:"num_words"`
	RequestConfirmations uint16    `json:"request_confirmations"`
	Coordinator          string    `json:"coordinator"`
	SubscriptionID       uint64    `json:"subscription_id"`
}

func NewSnapshot(r *Raffle) Snapshot {
	return Snapshot{
		EntranceFee:          r.EntranceFee.String(),
		Interval:             int64(r.Interval / time.Second),
		State:                string(r.State),
		NumberOfPlayers:      len(r.Players),
		Players:              hexAddresses(r.Players),
		LastTimestamp:        r.LastTimestamp,
		RecentWinner:         r.RecentWinner.Hex(),
		Balance:              r.Balance.String(),
		Round:                r.Round,
		NumWords:             r.Oracle.NumWords,
		RequestConfirmations: r.Oracle.RequestConfirmations,
		Coordinator:          r.Oracle.Coordinator.Hex(),
		SubscriptionID:       r.Oracle.SubscriptionID,
	}
}

type UpkeepResponse struct {
	UpkeepNeeded bool   `json:"upkeep_needed"`
	PerformData  string `json:"perform_data"`
	Balance      string `json:"balance"`
	PlayerCount  int    `json:"player_count"`
	State        string `json:"raffle_state"`
	TimePassed   bool   `json:"time_passed"`
}

func NewUpkeepResponse(res UpkeepResult) UpkeepResponse {
	return UpkeepResponse{
		UpkeepNeeded: res.UpkeepNeeded,
		PerformData:  "0x" + common.Bytes2Hex(res.PerformData),
		Balance:      res.Balance.String(),
		PlayerCount:  res.PlayerCount,
		State:        string(res.State),
		TimePassed:   res.TimePassed,
	}
}

type PendingResponse struct {
	RequestID   string    `json:"request_id"`
	Round       uint64    `json:"round"`
	PlayerCount int       `json:"player_count"`
	RequestedAt time.Time `json:"requested_at"`
}

func NewPendingResponse(p PendingRequest) PendingResponse {
	return PendingResponse{
		RequestID:   p.RequestID.String(),
		Round:       p.Round,
		PlayerCount: p.PlayerCount,
		RequestedAt: p.RequestedAt,
	}
}

type NotificationResponse struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Round       uint64     `json:"round"`
	Account     string     `json:"account,omitempty"`
	RequestID   string     `json:"request_id,omitempty"`
	Amount      string     `json:"amount"`
	OccurredAt  time.Time  `json:"occurred_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

func NewNotificationResponse(n Notification) NotificationResponse {
	resp := NotificationResponse{
		ID:          n.ID.String(),
		Kind:        string(n.Kind),
		Round:       n.Round,
		RequestID:   n.RequestID.String(),
		Amount:      cloneInt(n.Amount).String(),
		OccurredAt:  n.OccurredAt,
		PublishedAt: n.PublishedAt,
	}
	if n.Account != (common.Address{}) {
		resp.Account = n.Account.Hex()
	}
	return resp
}

type EnterResponse struct {
	Player          string `json:"player"`
	NumberOfPlayers int    `json:"number_of_players"`
	Balance         string `json:"balance"`
}

type PerformUpkeepResponse struct {
	RequestID string `json:"request_id"`
}

type FulfillResponse struct {
	Winner string `json:"winner"`
	Payout string `json:"payout"`
	Round  uint64 `json:"round"`
}

type AccountResponse struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Payable bool   `json:"payable"`
}

func hexAddresses(addrs []common.Address) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.Hex()
	}
	return out
}
