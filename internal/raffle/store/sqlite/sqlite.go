// Package sqlite persists the raffle in an embedded SQLite file through gorm.
// A process-local mutex serializes transactions so SQLite never has to
// arbitrate competing writers.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"vrfraffle/internal/ledger"
	"vrfraffle/internal/raffle/models"
	"vrfraffle/internal/raffle/store"
	"vrfraffle/pkg/domain"
	dErrors "vrfraffle/pkg/domain-errors"
	"vrfraffle/pkg/platform/sentinel"
)

type Store struct {
	mu      sync.Mutex
	db      *gorm.DB
	timeout time.Duration
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if err := db.AutoMigrate(&raffleRow{}, &pendingRow{}, &notificationRow{}, &accountRow{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &Store{db: db, timeout: store.DefaultTxTimeout}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) RunInTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		if err := fn(&gormTx{db: gtx}); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: deadline exceeded")
		}
		return nil
	})
}

func (s *Store) Initialize(ctx context.Context, r *models.Raffle) (*models.Raffle, error) {
	row := toRaffleRow(r)
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("initialize raffle: %w", err)
	}
	return s.Load(ctx)
}

func (s *Store) Load(ctx context.Context) (*models.Raffle, error) {
	return loadRaffle(s.db.WithContext(ctx))
}

func (s *Store) PendingRequests(ctx context.Context) ([]models.PendingRequest, error) {
	var rows []pendingRow
	if err := s.db.WithContext(ctx).Order("requested_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	out := make([]models.PendingRequest, len(rows))
	for i, r := range rows {
		out[i] = models.PendingRequest{
			RequestID:   domain.RequestID(r.RequestID),
			Round:       r.Round,
			PlayerCount: r.PlayerCount,
			RequestedAt: r.RequestedAt,
		}
	}
	return out, nil
}

func (s *Store) Notifications(ctx context.Context, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = -1
	}
	var rows []notificationRow
	if err := s.db.WithContext(ctx).Order("seq desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	out := make([]models.Notification, len(rows))
	for i, r := range rows {
		n, err := fromNotificationRow(r)
		if err != nil {
			return nil, err
		}
		out[len(rows)-1-i] = n
	}
	return out, nil
}

// Unpublished returns up to limit notifications the relay has not delivered.
func (s *Store) Unpublished(ctx context.Context, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = -1
	}
	var rows []notificationRow
	err := s.db.WithContext(ctx).Where("published_at IS NULL").Order("seq").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list unpublished notifications: %w", err)
	}
	out := make([]models.Notification, 0, len(rows))
	for _, r := range rows {
		n, err := fromNotificationRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	err := s.db.WithContext(ctx).Model(&notificationRow{}).
		Where("id IN ? AND published_at IS NULL", strs).
		Update("published_at", at).Error
	if err != nil {
		return fmt.Errorf("mark notifications published: %w", err)
	}
	return nil
}

func (s *Store) Account(ctx context.Context, addr common.Address) (ledger.Account, error) {
	row, err := loadAccount(s.db.WithContext(ctx), addr)
	if err != nil {
		return ledger.Account{}, err
	}
	return toAccount(row)
}

func (s *Store) SetPayable(ctx context.Context, addr common.Address, payable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := accountRow{Address: addr.Hex(), Balance: "0", Payable: payable}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"payable"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("set payable %s: %w", addr.Hex(), err)
	}
	return nil
}

// gormTx statements run on the transaction's own context, which carries
// the RunInTx deadline; the per-call context is not reapplied.
type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) Raffle(_ context.Context) (*models.Raffle, error) {
	return loadRaffle(t.db)
}

func (t *gormTx) SaveRaffle(_ context.Context, r *models.Raffle) error {
	row := toRaffleRow(r)
	if err := t.db.Save(&row).Error; err != nil {
		return fmt.Errorf("save raffle: %w", err)
	}
	return nil
}

func (t *gormTx) PutPending(_ context.Context, p models.PendingRequest) error {
	row := pendingRow{
		RequestID:   p.RequestID.String(),
		Round:       p.Round,
		PlayerCount: p.PlayerCount,
		RequestedAt: p.RequestedAt,
	}
	if err := t.db.Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert pending request: %w", err)
	}
	return nil
}

func (t *gormTx) TakePending(_ context.Context, id domain.RequestID) (models.PendingRequest, error) {
	db := t.db
	var row pendingRow
	if err := db.Where("request_id = ?", id.String()).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.PendingRequest{}, sentinel.ErrNotFound
		}
		return models.PendingRequest{}, fmt.Errorf("load pending request: %w", err)
	}
	if err := db.Delete(&pendingRow{}, "request_id = ?", row.RequestID).Error; err != nil {
		return models.PendingRequest{}, fmt.Errorf("delete pending request: %w", err)
	}
	return models.PendingRequest{
		RequestID:   id,
		Round:       row.Round,
		PlayerCount: row.PlayerCount,
		RequestedAt: row.RequestedAt,
	}, nil
}

func (t *gormTx) AppendNotification(_ context.Context, n models.Notification) error {
	row := notificationRow{
		ID:         n.ID.String(),
		Kind:       string(n.Kind),
		Round:      n.Round,
		RequestID:  n.RequestID.String(),
		Amount:     "0",
		OccurredAt: n.OccurredAt,
	}
	if n.Account != (common.Address{}) {
		row.Account = n.Account.Hex()
	}
	if n.Amount != nil {
		row.Amount = n.Amount.String()
	}
	if err := t.db.Create(&row).Error; err != nil {
		return fmt.Errorf("append notification: %w", err)
	}
	return nil
}

func (t *gormTx) Credit(_ context.Context, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("credit %s: amount must be non-negative: %w", to.Hex(), sentinel.ErrInvalidState)
	}
	db := t.db
	row, err := loadAccount(db, to)
	if err != nil {
		return err
	}
	if !row.Payable {
		return fmt.Errorf("credit %s: %w", to.Hex(), sentinel.ErrRejected)
	}
	acct, err := toAccount(row)
	if err != nil {
		return err
	}
	row.Balance = new(big.Int).Add(acct.Balance, amount).String()
	if err := db.Save(&row).Error; err != nil {
		return fmt.Errorf("credit %s: %w", to.Hex(), err)
	}
	return nil
}

func loadRaffle(db *gorm.DB) (*models.Raffle, error) {
	var row raffleRow
	if err := db.First(&row, 1).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load raffle: %w", err)
	}
	return fromRaffleRow(row)
}

// loadAccount returns the stored row, or a fresh payable row for unknown addresses.
func loadAccount(db *gorm.DB, addr common.Address) (accountRow, error) {
	var row accountRow
	err := db.Where("address = ?", addr.Hex()).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return accountRow{Address: addr.Hex(), Balance: "0", Payable: true}, nil
	}
	if err != nil {
		return accountRow{}, fmt.Errorf("load account %s: %w", addr.Hex(), err)
	}
	return row, nil
}

func toAccount(row accountRow) (ledger.Account, error) {
	bal, ok := new(big.Int).SetString(row.Balance, 10)
	if !ok {
		return ledger.Account{}, fmt.Errorf("malformed balance %q for %s", row.Balance, row.Address)
	}
	return ledger.Account{Address: common.HexToAddress(row.Address), Balance: bal, Payable: row.Payable}, nil
}

func toRaffleRow(r *models.Raffle) raffleRow {
	players := make([]string, len(r.Players))
	for i, p := range r.Players {
		players[i] = p.Hex()
	}
	return raffleRow{
		ID:                   1,
		EntranceFee:          r.EntranceFee.String(),
		IntervalNS:           int64(r.Interval),
		Players:              players,
		State:                string(r.State),
		LastTimestamp:        r.LastTimestamp,
		RecentWinner:         r.RecentWinner.Hex(),
		Balance:              r.Balance.String(),
		Coordinator:          r.Oracle.Coordinator.Hex(),
		GasLane:              r.Oracle.GasLane.Hex(),
		SubscriptionID:       strconv.FormatUint(r.Oracle.SubscriptionID, 10),
		CallbackGasLimit:     r.Oracle.CallbackGasLimit,
		NumWords:             r.Oracle.NumWords,
		RequestConfirmations: r.Oracle.RequestConfirmations,
		Round:                r.Round,
	}
}

func fromRaffleRow(row raffleRow) (*models.Raffle, error) {
	fee, ok := new(big.Int).SetString(row.EntranceFee, 10)
	if !ok {
		return nil, fmt.Errorf("malformed entrance fee %q", row.EntranceFee)
	}
	bal, ok := new(big.Int).SetString(row.Balance, 10)
	if !ok {
		return nil, fmt.Errorf("malformed balance %q", row.Balance)
	}
	sub, err := strconv.ParseUint(row.SubscriptionID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed subscription id %q: %w", row.SubscriptionID, err)
	}
	players := make([]common.Address, len(row.Players))
	for i, p := range row.Players {
		players[i] = common.HexToAddress(p)
	}
	return &models.Raffle{
		EntranceFee:   fee,
		Interval:      time.Duration(row.IntervalNS),
		Players:       players,
		State:         models.RaffleState(row.State),
		LastTimestamp: row.LastTimestamp,
		RecentWinner:  common.HexToAddress(row.RecentWinner),
		Balance:       bal,
		Oracle: models.OracleBinding{
			Coordinator:          common.HexToAddress(row.Coordinator),
			GasLane:              common.HexToHash(row.GasLane),
			SubscriptionID:       sub,
			CallbackGasLimit:     row.CallbackGasLimit,
			NumWords:             row.NumWords,
			RequestConfirmations: row.RequestConfirmations,
		},
		Round: row.Round,
	}, nil
}

func fromNotificationRow(row notificationRow) (models.Notification, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return models.Notification{}, fmt.Errorf("malformed notification id %q: %w", row.ID, err)
	}
	amount, ok := new(big.Int).SetString(row.Amount, 10)
	if !ok {
		return models.Notification{}, fmt.Errorf("malformed notification amount %q", row.Amount)
	}
	n := models.Notification{
		ID:          id,
		Kind:        models.NotificationKind(row.Kind),
		Round:       row.Round,
		RequestID:   domain.RequestID(row.RequestID),
		Amount:      amount,
		OccurredAt:  row.OccurredAt,
		PublishedAt: row.PublishedAt,
	}
	if row.Account != "" {
		n.Account = common.HexToAddress(row.Account)
	}
	return n, nil
}
