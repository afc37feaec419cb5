// Package mock is an in-process randomness coordinator for development
// networks and tests. It keeps subscriptions, charges a flat base fee per
// fulfilment and derives random words from the request id.
package mock

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"vrfraffle/internal/oracle"
	dErrors "vrfraffle/pkg/domain-errors"
	"vrfraffle/pkg/platform/sentinel"
)

// ErrInsufficientBalance is returned when a subscription cannot pay for a fulfilment.
var ErrInsufficientBalance = errors.New("insufficient subscription balance")

type subscription struct {
	balance   *big.Int
	consumers map[common.Address]struct{}
}

type pendingRequest struct {
	subID    uint64
	numWords uint32
	consumer common.Address
}

// Coordinator is safe for concurrent use. Deliveries happen outside the lock
// so a consumer may issue new requests from its callback.
type Coordinator struct {
	mu        sync.Mutex
	address   common.Address
	baseFee   *big.Int
	nextSubID uint64
	nextReqID *big.Int
	subs      map[uint64]*subscription
	targets   map[common.Address]oracle.Consumer
	pending   map[oracle.RequestID]pendingRequest
	logger    *slog.Logger
}

type Option func(*Coordinator)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// New builds a coordinator that signs deliveries as address.
func New(address common.Address, baseFee *big.Int, opts ...Option) *Coordinator {
	fee := new(big.Int)
	if baseFee != nil {
		fee.Set(baseFee)
	}
	c := &Coordinator{
		address:   address,
		baseFee:   fee,
		nextReqID: big.NewInt(1),
		subs:      make(map[uint64]*subscription),
		targets:   make(map[common.Address]oracle.Consumer),
		pending:   make(map[oracle.RequestID]pendingRequest),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Address is the caller address presented to consumers.
func (c *Coordinator) Address() common.Address {
	return c.address
}

// CreateSubscription opens an empty subscription and returns its id.
func (c *Coordinator) CreateSubscription(_ context.Context) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSubID++
	c.subs[c.nextSubID] = &subscription{balance: new(big.Int), consumers: make(map[common.Address]struct{})}
	return c.nextSubID
}

// FundSubscription adds amount to the subscription balance.
func (c *Coordinator) FundSubscription(_ context.Context, subID uint64, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return dErrors.New(dErrors.CodeBadRequest, "funding amount must be positive")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.subs[subID]
	if !ok {
		return dErrors.Wrap(sentinel.ErrNotFound, dErrors.CodeNotFound, "invalid subscription")
	}
	sub.balance = new(big.Int).Add(sub.balance, amount)
	return nil
}

// AddConsumer authorises addr to request words on subID; deliveries for
// addr go to target.
func (c *Coordinator) AddConsumer(_ context.Context, subID uint64, addr common.Address, target oracle.Consumer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.subs[subID]
	if !ok {
		return dErrors.Wrap(sentinel.ErrNotFound, dErrors.CodeNotFound, "invalid subscription")
	}
	sub.consumers[addr] = struct{}{}
	c.targets[addr] = target
	return nil
}

// SubscriptionBalance reports what is left on subID.
func (c *Coordinator) SubscriptionBalance(subID uint64) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.subs[subID]
	if !ok {
		return nil, dErrors.Wrap(sentinel.ErrNotFound, dErrors.CodeNotFound, "invalid subscription")
	}
	return new(big.Int).Set(sub.balance), nil
}

// RequestRandomWords records a pending request. Ids start at 1.
func (c *Coordinator) RequestRandomWords(_ context.Context, req oracle.Request) (oracle.RequestID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.subs[req.SubscriptionID]
	if !ok {
		return "", dErrors.Wrap(sentinel.ErrNotFound, dErrors.CodeNotFound, "invalid subscription")
	}
	if _, ok := sub.consumers[req.Consumer]; !ok {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid consumer")
	}
	if req.NumWords == 0 || req.NumWords > oracle.MaxNumWords {
		return "", dErrors.New(dErrors.CodeBadRequest, "numWords must be between 1 and 500")
	}

	id := oracle.RequestID(c.nextReqID.String())
	c.nextReqID = new(big.Int).Add(c.nextReqID, big.NewInt(1))
	c.pending[id] = pendingRequest{subID: req.SubscriptionID, numWords: req.NumWords, consumer: req.Consumer}
	c.logger.Debug("random words requested", "request_id", id.String(), "subscription_id", req.SubscriptionID)
	return id, nil
}

// Pending lists undelivered request ids in ascending order.
func (c *Coordinator) Pending() []oracle.RequestID {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]oracle.RequestID, 0, len(c.pending))
	for id := range c.pending {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Big().Cmp(out[j].Big()) < 0
	})
	return out
}

// Fulfill delivers words derived from the request id: word i is
// keccak256(requestId ++ i) with both encoded as 32-byte big-endian.
func (c *Coordinator) Fulfill(ctx context.Context, id oracle.RequestID) error {
	c.mu.Lock()
	p, ok := c.pending[id]
	c.mu.Unlock()
	if !ok {
		return dErrors.Wrap(sentinel.ErrNotFound, dErrors.CodeNotFound, "nonexistent request")
	}
	return c.FulfillWithWords(ctx, id, DeriveWords(id, p.numWords))
}

// FulfillWithWords delivers caller-chosen words. The request stays pending
// when the subscription is underfunded or the consumer rejects delivery.
func (c *Coordinator) FulfillWithWords(ctx context.Context, id oracle.RequestID, words []*big.Int) error {
	c.mu.Lock()
	p, ok := c.pending[id]
	if !ok {
		c.mu.Unlock()
		return dErrors.Wrap(sentinel.ErrNotFound, dErrors.CodeNotFound, "nonexistent request")
	}
	sub := c.subs[p.subID]
	if sub.balance.Cmp(c.baseFee) < 0 {
		c.mu.Unlock()
		return dErrors.Wrap(ErrInsufficientBalance, dErrors.CodeConflict, "subscription cannot pay for fulfilment")
	}
	target := c.targets[p.consumer]
	c.mu.Unlock()

	if target == nil {
		return dErrors.New(dErrors.CodeUnavailable, "consumer has no delivery target")
	}
	if err := target.RawFulfillRandomWords(ctx, c.address, id, words); err != nil {
		c.logger.WarnContext(ctx, "random words delivery failed",
			"request_id", id.String(),
			"error", err,
		)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
	if sub, ok := c.subs[p.subID]; ok {
		sub.balance = new(big.Int).Sub(sub.balance, c.baseFee)
		if sub.balance.Sign() < 0 {
			sub.balance.SetInt64(0)
		}
	}
	c.logger.InfoContext(ctx, "random words fulfilled", "request_id", id.String())
	return nil
}

// AutoFulfill fulfils every pending request on each tick until ctx is done.
func (c *Coordinator) AutoFulfill(ctx context.Context, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, id := range c.Pending() {
				if err := c.Fulfill(ctx, id); err != nil && !dErrors.HasCode(err, dErrors.CodeNotFound) {
					c.logger.WarnContext(ctx, "auto fulfil failed", "request_id", id.String(), "error", err)
				}
			}
		}
	}
}

// DeriveWords returns the deterministic words the coordinator delivers for id.
func DeriveWords(id oracle.RequestID, n uint32) []*big.Int {
	seed := id.Big()
	if seed == nil {
		seed = new(big.Int)
	}
	idBytes := common.LeftPadBytes(seed.Bytes(), 32)
	words := make([]*big.Int, n)
	for i := uint32(0); i < n; i++ {
		idx := common.LeftPadBytes(new(big.Int).SetUint64(uint64(i)).Bytes(), 32)
		words[i] = new(big.Int).SetBytes(crypto.Keccak256(idBytes, idx))
	}
	return words
}
