// Package postgres persists the raffle in PostgreSQL. Each transaction locks
// the single raffle row with SELECT ... FOR UPDATE, which serializes writers
// across every replica sharing the database.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"vrfraffle/internal/ledger"
	"vrfraffle/internal/raffle/models"
	"vrfraffle/internal/raffle/store"
	"vrfraffle/pkg/domain"
	dErrors "vrfraffle/pkg/domain-errors"
	"vrfraffle/pkg/platform/sentinel"
	txctx "vrfraffle/pkg/platform/tx"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

const raffleColumns = `entrance_fee::text, interval_ns, players, state, last_timestamp, recent_winner,
	balance::text, coordinator, gas_lane, subscription_id::text, callback_gas_limit, num_words,
	request_confirmations, round`

const notificationColumns = `id, kind, round, account, request_id, amount::text, occurred_at, published_at`

type Store struct {
	db      *sql.DB
	ledger  *ledger.Postgres
	timeout time.Duration
}

func New(db *sql.DB) *Store {
	return &Store{db: db, ledger: ledger.NewPostgres(db), timeout: store.DefaultTxTimeout}
}

func (s *Store) RunInTx(ctx context.Context, fn func(tx store.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to begin transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	if err := fn(&pgTx{tx: sqlTx, ledger: s.ledger}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit transaction")
	}
	committed = true
	return nil
}

func (s *Store) Initialize(ctx context.Context, r *models.Raffle) (*models.Raffle, error) {
	query := `
		INSERT INTO raffle (id, entrance_fee, interval_ns, players, state, last_timestamp, recent_winner,
			balance, coordinator, gas_lane, subscription_id, callback_gas_limit, num_words,
			request_confirmations, round)
		VALUES (1, $1::numeric, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10::numeric, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query, raffleArgs(r)...)
	if err != nil {
		return nil, fmt.Errorf("initialize raffle: %w", err)
	}
	return s.Load(ctx)
}

func (s *Store) Load(ctx context.Context) (*models.Raffle, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+raffleColumns+` FROM raffle WHERE id = 1`)
	r, err := scanRaffle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load raffle: %w", err)
	}
	return r, nil
}

func (s *Store) PendingRequests(ctx context.Context) ([]models.PendingRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT request_id::text, round, player_count, requested_at FROM pending_requests ORDER BY requested_at`)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	defer rows.Close()

	var out []models.PendingRequest
	for rows.Next() {
		var (
			p  models.PendingRequest
			id string
		)
		if err := rows.Scan(&id, &p.Round, &p.PlayerCount, &p.RequestedAt); err != nil {
			return nil, fmt.Errorf("scan pending request: %w", err)
		}
		p.RequestID = domain.RequestID(id)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) Notifications(ctx context.Context, limit int) ([]models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM (
		SELECT * FROM notifications ORDER BY seq DESC LIMIT $1
	) recent ORDER BY seq`
	var lim any
	if limit > 0 {
		lim = limit
	}
	return s.queryNotifications(ctx, query, lim)
}

// Unpublished returns up to limit notifications the relay has not delivered.
func (s *Store) Unpublished(ctx context.Context, limit int) ([]models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications
		WHERE published_at IS NULL ORDER BY seq LIMIT $1`
	var lim any
	if limit > 0 {
		lim = limit
	}
	return s.queryNotifications(ctx, query, lim)
}

func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET published_at = $2 WHERE id = ANY($1::uuid[]) AND published_at IS NULL`,
		pq.Array(strs), at)
	if err != nil {
		return fmt.Errorf("mark notifications published: %w", err)
	}
	return nil
}

func (s *Store) Account(ctx context.Context, addr common.Address) (ledger.Account, error) {
	return s.ledger.Account(ctx, addr)
}

func (s *Store) SetPayable(ctx context.Context, addr common.Address, payable bool) error {
	return s.ledger.SetPayable(ctx, addr, payable)
}

func (s *Store) queryNotifications(ctx context.Context, query string, args ...any) ([]models.Notification, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// pgTx runs every statement on the open transaction.
type pgTx struct {
	tx     *sql.Tx
	ledger *ledger.Postgres
}

func (t *pgTx) Raffle(ctx context.Context) (*models.Raffle, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+raffleColumns+` FROM raffle WHERE id = 1 FOR UPDATE`)
	r, err := scanRaffle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock raffle: %w", err)
	}
	return r, nil
}

func (t *pgTx) SaveRaffle(ctx context.Context, r *models.Raffle) error {
	query := `
		UPDATE raffle SET
			players = $1,
			state = $2,
			last_timestamp = $3,
			recent_winner = $4,
			balance = $5::numeric,
			round = $6
		WHERE id = 1
	`
	res, err := t.tx.ExecContext(ctx, query,
		pq.Array(hexAddresses(r.Players)),
		string(r.State),
		r.LastTimestamp,
		r.RecentWinner.Hex(),
		r.Balance.String(),
		int64(r.Round),
	)
	if err != nil {
		return fmt.Errorf("save raffle: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (t *pgTx) PutPending(ctx context.Context, p models.PendingRequest) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO pending_requests (request_id, round, player_count, requested_at) VALUES ($1::numeric, $2, $3, $4)`,
		p.RequestID.String(), int64(p.Round), p.PlayerCount, p.RequestedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert pending request: %w", err)
	}
	return nil
}

func (t *pgTx) TakePending(ctx context.Context, id domain.RequestID) (models.PendingRequest, error) {
	p := models.PendingRequest{RequestID: id}
	err := t.tx.QueryRowContext(ctx,
		`DELETE FROM pending_requests WHERE request_id = $1::numeric RETURNING round, player_count, requested_at`,
		id.String(),
	).Scan(&p.Round, &p.PlayerCount, &p.RequestedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.PendingRequest{}, sentinel.ErrNotFound
		}
		return models.PendingRequest{}, fmt.Errorf("take pending request: %w", err)
	}
	return p, nil
}

func (t *pgTx) AppendNotification(ctx context.Context, n models.Notification) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO notifications (id, kind, round, account, request_id, amount, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7)`,
		n.ID, string(n.Kind), int64(n.Round), accountString(n.Account), n.RequestID.String(),
		amountString(n.Amount), n.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("append notification: %w", err)
	}
	return nil
}

// Credit joins the open transaction through the context.
func (t *pgTx) Credit(ctx context.Context, to common.Address, amount *big.Int) error {
	return t.ledger.Credit(txctx.WithTx(ctx, t.tx), to, amount)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRaffle(row rowScanner) (*models.Raffle, error) {
	var (
		r                                         models.Raffle
		fee, balance, subID                       string
		intervalNS, callbackGasLimit, round       int64
		numWords, confirmations                   int64
		players                                   []string
		state, recentWinner, coordinator, gasLane string
	)
	if err := row.Scan(&fee, &intervalNS, pq.Array(&players), &state, &r.LastTimestamp, &recentWinner,
		&balance, &coordinator, &gasLane, &subID, &callbackGasLimit, &numWords, &confirmations, &round); err != nil {
		return nil, err
	}

	var ok bool
	if r.EntranceFee, ok = new(big.Int).SetString(fee, 10); !ok {
		return nil, fmt.Errorf("malformed entrance fee %q", fee)
	}
	if r.Balance, ok = new(big.Int).SetString(balance, 10); !ok {
		return nil, fmt.Errorf("malformed balance %q", balance)
	}
	sub, err := strconv.ParseUint(subID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed subscription id %q: %w", subID, err)
	}

	r.Interval = time.Duration(intervalNS)
	r.Players = make([]common.Address, len(players))
	for i, p := range players {
		r.Players[i] = common.HexToAddress(p)
	}
	r.State = models.RaffleState(state)
	r.RecentWinner = common.HexToAddress(recentWinner)
	r.Round = uint64(round)
	r.Oracle = models.OracleBinding{
		Coordinator:          common.HexToAddress(coordinator),
		GasLane:              common.HexToHash(gasLane),
		SubscriptionID:       sub,
		CallbackGasLimit:     uint32(callbackGasLimit),
		NumWords:             uint32(numWords),
		RequestConfirmations: uint16(confirmations),
	}
	return &r, nil
}

func scanNotification(row rowScanner) (models.Notification, error) {
	var (
		n                    models.Notification
		kind, account, reqID string
		amount               string
		round                int64
		publishedAt          sql.NullTime
	)
	if err := row.Scan(&n.ID, &kind, &round, &account, &reqID, &amount, &n.OccurredAt, &publishedAt); err != nil {
		return models.Notification{}, fmt.Errorf("scan notification: %w", err)
	}
	n.Kind = models.NotificationKind(kind)
	n.Round = uint64(round)
	if account != "" {
		n.Account = common.HexToAddress(account)
	}
	n.RequestID = domain.RequestID(reqID)
	v, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return models.Notification{}, fmt.Errorf("malformed notification amount %q", amount)
	}
	n.Amount = v
	if publishedAt.Valid {
		t := publishedAt.Time
		n.PublishedAt = &t
	}
	return n, nil
}

func raffleArgs(r *models.Raffle) []any {
	return []any{
		r.EntranceFee.String(),
		int64(r.Interval),
		pq.Array(hexAddresses(r.Players)),
		string(r.State),
		r.LastTimestamp,
		r.RecentWinner.Hex(),
		r.Balance.String(),
		r.Oracle.Coordinator.Hex(),
		r.Oracle.GasLane.Hex(),
		strconv.FormatUint(r.Oracle.SubscriptionID, 10),
		int64(r.Oracle.CallbackGasLimit),
		int64(r.Oracle.NumWords),
		int64(r.Oracle.RequestConfirmations),
		int64(r.Round),
	}
}

func hexAddresses(addrs []common.Address) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.Hex()
	}
	return out
}

func accountString(a common.Address) string {
	if a == (common.Address{}) {
		return ""
	}
	return a.Hex()
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
