// Package oracle defines the two halves of the verifiable-randomness round
// trip: the coordinator a consumer asks for random words, and the consumer
// callback the coordinator delivers them to.
package oracle

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"vrfraffle/pkg/domain"
)

// MaxNumWords is the largest number of words a single request may ask for.
const MaxNumWords = 500

// RequestID identifies a randomness request.
type RequestID = domain.RequestID

// Request is a randomness request as submitted to the coordinator.
type Request struct {
	KeyHash                     common.Hash
	SubscriptionID              uint64
	MinimumRequestConfirmations uint16
	CallbackGasLimit            uint32
	NumWords                    uint32
	Consumer                    common.Address
}

//go:generate mockgen -source=oracle.go -destination=mocks/mocks.go -package=mocks Coordinator,Consumer

// Coordinator accepts randomness requests and later calls the consumer back.
type Coordinator interface {
	RequestRandomWords(ctx context.Context, req Request) (RequestID, error)
}

// Consumer receives random words. caller is the address the delivery claims
// to come from; consumers must check it against their bound coordinator.
type Consumer interface {
	RawFulfillRandomWords(ctx context.Context, caller common.Address, requestID RequestID, words []*big.Int) error
}
