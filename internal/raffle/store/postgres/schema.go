package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied idempotently at startup. The raffle table holds a single
// row (id = 1); amounts are NUMERIC(78,0) so any uint256 fits.
const schema = `
CREATE TABLE IF NOT EXISTS raffle (
	id                    SMALLINT PRIMARY KEY CHECK (id = 1),
	entrance_fee          NUMERIC(78,0) NOT NULL,
	interval_ns           BIGINT NOT NULL,
	players               TEXT[] NOT NULL DEFAULT '{}',
	state                 TEXT NOT NULL,
	last_timestamp        TIMESTAMPTZ NOT NULL,
	recent_winner         TEXT NOT NULL,
	balance               NUMERIC(78,0) NOT NULL DEFAULT 0,
	coordinator           TEXT NOT NULL,
	gas_lane              TEXT NOT NULL,
	subscription_id       NUMERIC(20,0) NOT NULL,
	callback_gas_limit    BIGINT NOT NULL,
	num_words             INTEGER NOT NULL,
	request_confirmations INTEGER NOT NULL,
	round                 BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS pending_requests (
	request_id   NUMERIC(78,0) PRIMARY KEY,
	round        BIGINT NOT NULL,
	player_count INTEGER NOT NULL,
	requested_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	seq          BIGSERIAL UNIQUE,
	id           UUID PRIMARY KEY,
	kind         TEXT NOT NULL,
	round        BIGINT NOT NULL,
	account      TEXT NOT NULL DEFAULT '',
	request_id   TEXT NOT NULL DEFAULT '',
	amount       NUMERIC(78,0) NOT NULL DEFAULT 0,
	occurred_at  TIMESTAMPTZ NOT NULL,
	published_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS notifications_unpublished_idx
	ON notifications (seq) WHERE published_at IS NULL;

CREATE TABLE IF NOT EXISTS ledger_accounts (
	address TEXT PRIMARY KEY,
	balance NUMERIC(78,0) NOT NULL DEFAULT 0,
	payable BOOLEAN NOT NULL DEFAULT TRUE
);
`

// Tables lists every table owned by the store, in truncation order.
var Tables = []string{"notifications", "pending_requests", "ledger_accounts", "raffle"}

// Migrate creates the store's tables if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate raffle schema: %w", err)
	}
	return nil
}
