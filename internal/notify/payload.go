package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"vrfraffle/internal/raffle/models"
)

// Payload is the JSON document published for each notification.
type Payload struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Round      uint64 `json:"round"`
	Account    string `json:"account,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	Amount     string `json:"amount"`
	OccurredAt string `json:"occurred_at"`
}

func NewPayload(n models.Notification) Payload {
	p := Payload{
		ID:         n.ID.String(),
		Kind:       string(n.Kind),
		Round:      n.Round,
		RequestID:  n.RequestID.String(),
		Amount:     "0",
		OccurredAt: n.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
	if n.Account != (common.Address{}) {
		p.Account = n.Account.Hex()
	}
	if n.Amount != nil {
		p.Amount = n.Amount.String()
	}
	return p
}

// Encode renders n as the published JSON document.
func Encode(n models.Notification) ([]byte, error) {
	b, err := json.Marshal(NewPayload(n))
	if err != nil {
		return nil, fmt.Errorf("marshal notification %s: %w", n.ID, err)
	}
	return b, nil
}
