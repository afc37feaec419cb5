// Package ledger records payouts owed to accounts.
//
// Crediting an account is part of the raffle's transaction: each store keeps
// its ledger rows (or, in memory, a Book) inside the same atomic unit as the
// raffle state, so a failed credit rolls back the whole callback.
package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"vrfraffle/pkg/platform/sentinel"
)

// Account is the ledger view of an address.
type Account struct {
	Address common.Address
	Balance *big.Int
	Payable bool
}

// Book is an in-memory ledger. It has no lock of its own: the owning store
// serializes access and clones it to build a transaction's working set.
type Book struct {
	balances   map[common.Address]*big.Int
	nonPayable map[common.Address]struct{}
}

func NewBook() *Book {
	return &Book{
		balances:   make(map[common.Address]*big.Int),
		nonPayable: make(map[common.Address]struct{}),
	}
}

// Credit adds amount to the account. Accounts marked non-payable refuse
// every credit, mirroring a receiver that reverts on transfer.
func (b *Book) Credit(to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("credit %s: amount must be non-negative: %w", to.Hex(), sentinel.ErrInvalidState)
	}
	if _, ok := b.nonPayable[to]; ok {
		return fmt.Errorf("credit %s: %w", to.Hex(), sentinel.ErrRejected)
	}
	cur, ok := b.balances[to]
	if !ok {
		cur = new(big.Int)
	}
	b.balances[to] = new(big.Int).Add(cur, amount)
	return nil
}

// SetPayable marks whether to accepts credits.
func (b *Book) SetPayable(to common.Address, payable bool) {
	if payable {
		delete(b.nonPayable, to)
		return
	}
	b.nonPayable[to] = struct{}{}
}

// Account returns the balance and payability of addr. Unknown accounts
// have a zero balance.
func (b *Book) Account(addr common.Address) Account {
	_, blocked := b.nonPayable[addr]
	bal := new(big.Int)
	if v, ok := b.balances[addr]; ok {
		bal.Set(v)
	}
	return Account{Address: addr, Balance: bal, Payable: !blocked}
}

// Clone returns an independent copy.
func (b *Book) Clone() *Book {
	c := NewBook()
	for k, v := range b.balances {
		c.balances[k] = new(big.Int).Set(v)
	}
	for k := range b.nonPayable {
		c.nonPayable[k] = struct{}{}
	}
	return c
}
