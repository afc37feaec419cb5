// Package memory is the in-process raffle store: a single writer lock and a
// copy-on-write working set swapped in when the transaction succeeds.
package memory

import (
	"context"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"vrfraffle/internal/ledger"
	"vrfraffle/internal/raffle/models"
	"vrfraffle/internal/raffle/store"
	"vrfraffle/pkg/domain"
	dErrors "vrfraffle/pkg/domain-errors"
	"vrfraffle/pkg/platform/sentinel"
)

type Store struct {
	mu            sync.RWMutex
	raffle        *models.Raffle
	pending       map[domain.RequestID]models.PendingRequest
	notifications []models.Notification
	book          *ledger.Book
	timeout       time.Duration
}

func New() *Store {
	return &Store{
		pending: make(map[domain.RequestID]models.PendingRequest),
		book:    ledger.NewBook(),
		timeout: store.DefaultTxTimeout,
	}
}

// RunInTx holds the writer lock for the duration of fn.
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

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	ws := &workingSet{
		ctx:     ctx,
		raffle:  s.raffle.Clone(),
		pending: make(map[domain.RequestID]models.PendingRequest, len(s.pending)),
		book:    s.book.Clone(),
	}
	for k, v := range s.pending {
		ws.pending[k] = v
	}

	if err := fn(ws); err != nil {
		return err
	}
	if err := ws.live(); err != nil {
		return err
	}

	s.raffle = ws.raffle
	s.pending = ws.pending
	s.book = ws.book
	s.notifications = append(s.notifications, ws.appended...)
	return nil
}

func (s *Store) Initialize(_ context.Context, r *models.Raffle) (*models.Raffle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.raffle == nil {
		s.raffle = r.Clone()
	}
	return s.raffle.Clone(), nil
}

func (s *Store) Load(_ context.Context) (*models.Raffle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.raffle == nil {
		return nil, sentinel.ErrNotFound
	}
	return s.raffle.Clone(), nil
}

func (s *Store) PendingRequests(_ context.Context) ([]models.PendingRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PendingRequest, 0, len(s.pending))
	for _, p := range s.pending {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RequestedAt.Before(out[j].RequestedAt)
	})
	return out, nil
}

func (s *Store) Notifications(_ context.Context, limit int) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := 0
	if limit > 0 && len(s.notifications) > limit {
		start = len(s.notifications) - limit
	}
	return append([]models.Notification(nil), s.notifications[start:]...), nil
}

func (s *Store) Account(_ context.Context, addr common.Address) (ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.book.Account(addr), nil
}

func (s *Store) SetPayable(_ context.Context, addr common.Address, payable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.book.SetPayable(addr, payable)
	return nil
}

// Unpublished returns up to limit notifications the relay has not delivered.
func (s *Store) Unpublished(_ context.Context, limit int) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Notification
	for _, n := range s.notifications {
		if n.PublishedAt != nil {
			continue
		}
		out = append(out, n)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkPublished(_ context.Context, ids []uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	for i := range s.notifications {
		if _, ok := want[s.notifications[i].ID]; ok && s.notifications[i].PublishedAt == nil {
			t := at
			s.notifications[i].PublishedAt = &t
		}
	}
	return nil
}

// workingSet operations fail once the transaction's deadline passes, and
// RunInTx discards a set whose deadline expired before commit.
type workingSet struct {
	ctx      context.Context
	raffle   *models.Raffle
	pending  map[domain.RequestID]models.PendingRequest
	appended []models.Notification
	book     *ledger.Book
}

func (w *workingSet) live() error {
	if err := w.ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: deadline exceeded")
	}
	return nil
}

func (w *workingSet) Raffle(_ context.Context) (*models.Raffle, error) {
	if err := w.live(); err != nil {
		return nil, err
	}
	if w.raffle == nil {
		return nil, sentinel.ErrNotFound
	}
	return w.raffle.Clone(), nil
}

func (w *workingSet) SaveRaffle(_ context.Context, r *models.Raffle) error {
	if err := w.live(); err != nil {
		return err
	}
	w.raffle = r.Clone()
	return nil
}

func (w *workingSet) PutPending(_ context.Context, p models.PendingRequest) error {
	if err := w.live(); err != nil {
		return err
	}
	if _, exists := w.pending[p.RequestID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	w.pending[p.RequestID] = p
	return nil
}

func (w *workingSet) TakePending(_ context.Context, id domain.RequestID) (models.PendingRequest, error) {
	if err := w.live(); err != nil {
		return models.PendingRequest{}, err
	}
	p, ok := w.pending[id]
	if !ok {
		return models.PendingRequest{}, sentinel.ErrNotFound
	}
	delete(w.pending, id)
	return p, nil
}

func (w *workingSet) AppendNotification(_ context.Context, n models.Notification) error {
	if err := w.live(); err != nil {
		return err
	}
	w.appended = append(w.appended, n)
	return nil
}

func (w *workingSet) Credit(_ context.Context, to common.Address, amount *big.Int) error {
	if err := w.live(); err != nil {
		return err
	}
	return w.book.Credit(to, amount)
}
