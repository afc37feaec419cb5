package keeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lease grants one holder at a time the right to run an upkeep tick.
type Lease interface {
	// Acquire reports whether the caller holds the lease for ttl.
	Acquire(ctx context.Context, ttl time.Duration) (bool, error)
	// Release gives the lease up early. Releasing a lease held by someone
	// else is a no-op.
	Release(ctx context.Context) error
}

// LocalLease serializes ticks within a single process.
type LocalLease struct {
	mu      sync.Mutex
	expires time.Time
	now     func() time.Time
}

func NewLocalLease() *LocalLease {
	return &LocalLease{now: time.Now}
}

func (l *LocalLease) Acquire(_ context.Context, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Before(l.expires) {
		return false, nil
	}
	l.expires = now.Add(ttl)
	return true, nil
}

func (l *LocalLease) Release(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.expires = time.Time{}
	return nil
}

const defaultLeaseKey = "raffle:keeper:lease"

// releaseScript deletes the key only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLease coordinates keeper replicas through a SET NX PX key.
type RedisLease struct {
	client *redis.Client
	key    string
	token  string
}

func NewRedisLease(client *redis.Client, key string) *RedisLease {
	if key == "" {
		key = defaultLeaseKey
	}
	return &RedisLease{client: client, key: key, token: uuid.NewString()}
}

func (l *RedisLease) Acquire(ctx context.Context, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire keeper lease: %w", err)
	}
	return ok, nil
}

func (l *RedisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("release keeper lease: %w", err)
	}
	return nil
}
