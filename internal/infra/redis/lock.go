// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"fmt"
	"time"

	"telegram-channel-publisher/internal/domain"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// RedisLocker is a SetNX mutex released only by the token that took it.
type RedisLocker struct {
	cli     *redis.Client
	retry   time.Duration
	retries int
}

func NewLocker(c *Client) *RedisLocker {
	return &RedisLocker{cli: c.cli, retry: 50 * time.Millisecond, retries: 5}
}

// OperatorLockKey is the mutex guarding one operator's conversation.
func OperatorLockKey(operatorID int64) string {
	return fmt.Sprintf("lock:operator:%d", operatorID)
}

// TryLock makes a bounded number of attempts and returns domain.ErrOperatorBusy when all fail.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	for i := 0; i < l.retries; i++ {
		ok, err := l.cli.SetNX(ctx, key, token, ttl).Result()
		if err == nil && ok {
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(l.retry):
		}
	}
	return "", domain.ErrOperatorBusy
}

// Lock waits until the key is free or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	for {
		ok, err := l.cli.SetNX(ctx, key, token, ttl).Result()
		if err != nil && ctx.Err() == nil {
			return "", fmt.Errorf("%w: acquire %s: %v", domain.ErrPersistence, key, err)
		}
		if ok {
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", domain.ErrOperatorBusy, ctx.Err())
		case <-time.After(l.retry):
		}
	}
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := luaUnlock.Run(ctx, l.cli, []string{key}, token).Result()
	return err
}
