// Package domain holds the primitive value types shared by the raffle, the
// oracle adapters and the ledger, together with their trust-boundary parsers.
package domain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	dErrors "vrfraffle/pkg/domain-errors"
)

// maxUint256 bounds every on-the-wire integer (wei amounts, request ids, random words).
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// RequestID identifies an oracle randomness request. The oracle treats it as
// a uint256; it is kept in canonical base-10 form so it can key maps and rows.
type RequestID string

// NewRequestID converts a uint256 into its canonical RequestID.
func NewRequestID(v *big.Int) RequestID {
	if v == nil {
		return ""
	}
	return RequestID(v.String())
}

// ParseRequestID validates and canonicalises a request id received from a
// transport (leading zeros are dropped).
func ParseRequestID(s string) (RequestID, error) {
	v, err := ParseUint256(s)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid request id")
	}
	return NewRequestID(v), nil
}

// Big returns the numeric value of the id, or nil when the id is empty.
func (id RequestID) Big() *big.Int {
	v, ok := new(big.Int).SetString(string(id), 10)
	if !ok {
		return nil
	}
	return v
}

func (id RequestID) String() string { return string(id) }

// IsNil reports whether the id is unset.
func (id RequestID) IsNil() bool { return id == "" }

// ParseUint256 parses a base-10 unsigned integer no larger than 2^256-1.
func ParseUint256(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "value is required")
	}
	if len(s) > 78 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "value exceeds uint256")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "value must be a base-10 unsigned integer")
		}
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "value must be a base-10 unsigned integer")
	}
	if v.Cmp(maxUint256) > 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "value exceeds uint256")
	}
	return v, nil
}

// ParseWei parses a wei amount.
func ParseWei(s string) (*big.Int, error) {
	v, err := ParseUint256(s)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid wei amount")
	}
	return v, nil
}

// ParseAddress validates a hex account address. The zero address is rejected:
// it can never be a participant or a coordinator.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, dErrors.New(dErrors.CodeInvalidInput, "invalid address")
	}
	addr := common.HexToAddress(s)
	if addr == (common.Address{}) {
		return common.Address{}, dErrors.New(dErrors.CodeInvalidInput, "zero address is not allowed")
	}
	return addr, nil
}
