// internal/infrastructure/database/redis/lock.go
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotAcquired is returned when the lock stays held past the wait budget
var ErrLockNotAcquired = errors.New("lock not acquired")

// releaseScript deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

const defaultRetryInterval = 50 * time.Millisecond

// Locker is a single-instance Redis mutex keyed by name
type Locker struct {
	client        redis.UniversalClient
	retryInterval time.Duration
}

// NewLocker creates a lock helper on an existing client
func NewLocker(client redis.UniversalClient) *Locker {
	return &Locker{
		client:        client,
		retryInterval: defaultRetryInterval,
	}
}

// Lock acquires key for ttl, polling for up to wait while another holder has it.
// The returned function releases the lock if it is still ours.
func (l *Locker) Lock(ctx context.Context, key string, ttl, wait time.Duration) (func(context.Context) error, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			return func(ctx context.Context) error {
				return releaseScript.Run(ctx, l.client, []string{key}, token).Err()
			}, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrLockNotAcquired, key)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryInterval):
		}
	}
}
