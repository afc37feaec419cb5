package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"vrfraffle/pkg/platform/sentinel"
	txctx "vrfraffle/pkg/platform/tx"
)

// Postgres keeps accounts in the ledger_accounts table. Writes join the SQL
// transaction carried in the context when there is one.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Credit adds amount to the account. A row marked non-payable matches the
// conflict target but not the WHERE clause, so nothing is returned.
func (p *Postgres) Credit(ctx context.Context, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("credit %s: amount must be non-negative: %w", to.Hex(), sentinel.ErrInvalidState)
	}
	query := `
		INSERT INTO ledger_accounts (address, balance, payable)
		VALUES ($1, $2::numeric, TRUE)
		ON CONFLICT (address) DO UPDATE SET
			balance = ledger_accounts.balance + EXCLUDED.balance
		WHERE ledger_accounts.payable
		RETURNING address
	`
	var addr string
	err := txctx.Exec(ctx, p.db).QueryRowContext(ctx, query, to.Hex(), amount.String()).Scan(&addr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("credit %s: %w", to.Hex(), sentinel.ErrRejected)
		}
		return fmt.Errorf("credit %s: %w", to.Hex(), err)
	}
	return nil
}

func (p *Postgres) SetPayable(ctx context.Context, addr common.Address, payable bool) error {
	query := `
		INSERT INTO ledger_accounts (address, balance, payable)
		VALUES ($1, 0, $2)
		ON CONFLICT (address) DO UPDATE SET
			payable = EXCLUDED.payable
	`
	if _, err := txctx.Exec(ctx, p.db).ExecContext(ctx, query, addr.Hex(), payable); err != nil {
		return fmt.Errorf("set payable %s: %w", addr.Hex(), err)
	}
	return nil
}

func (p *Postgres) Account(ctx context.Context, addr common.Address) (Account, error) {
	var (
		balance string
		payable bool
	)
	err := txctx.Exec(ctx, p.db).QueryRowContext(ctx,
		`SELECT balance::text, payable FROM ledger_accounts WHERE address = $1`, addr.Hex(),
	).Scan(&balance, &payable)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{Address: addr, Balance: new(big.Int), Payable: true}, nil
		}
		return Account{}, fmt.Errorf("load account %s: %w", addr.Hex(), err)
	}
	v, ok := new(big.Int).SetString(balance, 10)
	if !ok {
		return Account{}, fmt.Errorf("load account %s: malformed balance %q", addr.Hex(), balance)
	}
	return Account{Address: addr, Balance: v, Payable: payable}, nil
}
