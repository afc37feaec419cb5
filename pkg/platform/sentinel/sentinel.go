package sentinel

import "errors"

// Infrastructure facts returned (optionally wrapped) by stores, ledgers and
// oracle adapters. Services translate them into coded domain errors.
//
//   - ErrNotFound: the record (pending request, player slot, account) does not exist
//   - ErrAlreadyUsed: a one-shot record (pending oracle request) was already consumed
//   - ErrInvalidState: the persisted raffle is in the wrong state for the write
//   - ErrRejected: a counterparty refused the operation (non-payable account)
//   - ErrUnavailable: backing service temporarily unreachable
var (
	ErrNotFound     = errors.New("not found")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrRejected     = errors.New("rejected")
	ErrUnavailable  = errors.New("unavailable")
)
