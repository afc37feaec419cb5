package models

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"vrfraffle/pkg/domain"
	dErrors "vrfraffle/pkg/domain-errors"
)

// maxRandomWords mirrors the coordinator's per-request ceiling.
const maxRandomWords = 500

type EnterRequest struct {
	Player  string `json:"player"`
	Payment string `json:"payment"`
}

func (r *EnterRequest) Normalize() {
	if r == nil {
		return
	}
	r.Player = strings.TrimSpace(r.Player)
	r.Payment = strings.TrimSpace(r.Payment)
}

// Parse validates the request and returns the typed player and payment.
// Follows validation order: Required -> Syntax.
func (r *EnterRequest) Parse() (common.Address, *big.Int, error) {
	if r == nil {
		return common.Address{}, nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.Player == "" {
		return common.Address{}, nil, dErrors.New(dErrors.CodeBadRequest, "player is required")
	}
	if r.Payment == "" {
		return common.Address{}, nil, dErrors.New(dErrors.CodeBadRequest, "payment is required")
	}
	player, err := domain.ParseAddress(r.Player)
	if err != nil {
		return common.Address{}, nil, err
	}
	payment, err := domain.ParseWei(r.Payment)
	if err != nil {
		return common.Address{}, nil, err
	}
	return player, payment, nil
}

// FulfillRequest is the oracle's randomness delivery.
type FulfillRequest struct {
	RequestID   string   `json:"request_id"`
	RandomWords []string `json:"random_words"`
}

func (r *FulfillRequest) Normalize() {
	if r == nil {
		return
	}
	r.RequestID = strings.TrimSpace(r.RequestID)
	for i, w := range r.RandomWords {
		r.RandomWords[i] = strings.TrimSpace(w)
	}
}

// Parse validates the request. An empty word list is reported by the
// callback itself so that the pending-request lookup happens first.
func (r *FulfillRequest) Parse() (domain.RequestID, []*big.Int, error) {
	if r == nil {
		return "", nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if len(r.RandomWords) > maxRandomWords {
		return "", nil, dErrors.New(dErrors.CodeBadRequest, "too many random words")
	}
	if r.RequestID == "" {
		return "", nil, dErrors.New(dErrors.CodeBadRequest, "request_id is required")
	}
	id, err := domain.ParseRequestID(r.RequestID)
	if err != nil {
		return "", nil, err
	}
	words := make([]*big.Int, 0, len(r.RandomWords))
	for _, w := range r.RandomWords {
		v, err := domain.ParseUint256(w)
		if err != nil {
			return "", nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid random word")
		}
		words = append(words, v)
	}
	return id, words, nil
}

// PayableRequest toggles whether an account accepts payouts.
type PayableRequest struct {
	Payable *bool `json:"payable"`
}

func (r *PayableRequest) Normalize() {}

func (r *PayableRequest) Parse() (bool, error) {
	if r == nil || r.Payable == nil {
		return false, dErrors.New(dErrors.CodeBadRequest, "payable is required")
	}
	return *r.Payable, nil
}
