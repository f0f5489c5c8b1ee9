//go:build !integration

package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"telegram-channel-publisher/internal/domain"
	"telegram-channel-publisher/internal/domain/model"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := NewFromRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestSessionRepo(t *testing.T) {
	ctx := context.Background()

	t.Run("should return nil for a missing session", func(t *testing.T) {
		c, _ := newTestClient(t)
		repo := NewSessionRepo(c, time.Hour)

		sess, err := repo.Get(ctx, 1)
		if err != nil || sess != nil {
			t.Fatalf("expected nil, nil; got %v, %v", sess, err)
		}
	})

	t.Run("should round trip and expire after ttl", func(t *testing.T) {
		// Arrange
		c, mr := newTestClient(t)
		repo := NewSessionRepo(c, time.Hour)
		in := model.NewSession(7, 70, model.StepAwaitingTime)
		in.Draft.PostText = "Launch day tips"

		// Act
		if err := repo.Set(ctx, in); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		got, err := repo.Get(ctx, 7)

		// Assert
		if err != nil || got == nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Step != model.StepAwaitingTime || got.Draft.PostText != "Launch day tips" || got.ChatID != 70 {
			t.Errorf("unexpected session: %+v", got)
		}
		if ttl := mr.TTL(sessionKey(7)); ttl != time.Hour {
			t.Errorf("expected ttl 1h, got %v", ttl)
		}

		mr.FastForward(2 * time.Hour)
		if got, _ := repo.Get(ctx, 7); got != nil {
			t.Errorf("expected session to expire, got %+v", got)
		}
	})

	t.Run("should reset an unknown step to idle", func(t *testing.T) {
		c, mr := newTestClient(t)
		repo := NewSessionRepo(c, time.Hour)
		_ = mr.Set(sessionKey(3), `{"operator_id":3,"step":"schedule_time","draft":{"post_text":"x"}}`)

		got, err := repo.Get(ctx, 3)
		if err != nil || got == nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Step != model.StepIdle || got.Draft.PostText != "" {
			t.Errorf("expected idle with empty draft, got %+v", got)
		}
	})

	t.Run("should clear a session", func(t *testing.T) {
		c, mr := newTestClient(t)
		repo := NewSessionRepo(c, time.Hour)
		_ = repo.Set(ctx, model.NewSession(9, 9, model.StepAwaitingDraft))

		if err := repo.Clear(ctx, 9); err != nil {
			t.Fatalf("Clear failed: %v", err)
		}
		if mr.Exists(sessionKey(9)) {
			t.Error("expected key to be deleted")
		}
	})

	t.Run("should surface redis outages as persistence errors", func(t *testing.T) {
		c, mr := newTestClient(t)
		repo := NewSessionRepo(c, time.Hour)
		mr.Close()

		if _, err := repo.Get(ctx, 1); !errors.Is(err, domain.ErrPersistence) {
			t.Errorf("expected ErrPersistence, got %v", err)
		}
	})
}

func TestRedisLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("should exclude a second holder until unlock", func(t *testing.T) {
		c, _ := newTestClient(t)
		l := NewLocker(c)
		key := OperatorLockKey(5)

		token, err := l.TryLock(ctx, key, time.Minute)
		if err != nil {
			t.Fatalf("first lock failed: %v", err)
		}
		if _, err := l.TryLock(ctx, key, time.Minute); !errors.Is(err, domain.ErrOperatorBusy) {
			t.Fatalf("expected ErrOperatorBusy, got %v", err)
		}

		if err := l.Unlock(ctx, key, token); err != nil {
			t.Fatalf("unlock failed: %v", err)
		}
		if _, err := l.TryLock(ctx, key, time.Minute); err != nil {
			t.Fatalf("expected lock after unlock, got %v", err)
		}
	})

	t.Run("should not release a lock held by another token", func(t *testing.T) {
		c, mr := newTestClient(t)
		l := NewLocker(c)
		key := OperatorLockKey(6)

		if _, err := l.TryLock(ctx, key, time.Minute); err != nil {
			t.Fatalf("lock failed: %v", err)
		}
		_ = l.Unlock(ctx, key, "someone-else")
		if !mr.Exists(key) {
			t.Error("foreign token must not delete the lock")
		}
	})

	t.Run("should give up waiting when the context ends", func(t *testing.T) {
		c, _ := newTestClient(t)
		l := NewLocker(c)
		key := OperatorLockKey(8)
		if _, err := l.Lock(ctx, key, time.Minute); err != nil {
			t.Fatalf("lock failed: %v", err)
		}

		wctx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
		defer cancel()
		if _, err := l.Lock(wctx, key, time.Minute); !errors.Is(err, domain.ErrOperatorBusy) {
			t.Errorf("expected ErrOperatorBusy, got %v", err)
		}
	})
}

func TestRateLimiter(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestClient(t)
	rl := NewRateLimiter(c)
	key := OperatorCommandKey(1, "new_post")
	if key != "rl:1:new_post" {
		t.Fatalf("unexpected key %q", key)
	}

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, key, 3, time.Minute)
		if err != nil || !ok {
			t.Fatalf("hit %d should be allowed (err=%v)", i+1, err)
		}
	}
	if ok, _ := rl.Allow(ctx, key, 3, time.Minute); ok {
		t.Fatal("fourth hit should be limited")
	}

	mr.FastForward(time.Minute + time.Second)
	if ok, _ := rl.Allow(ctx, key, 3, time.Minute); !ok {
		t.Error("window should reset after expiry")
	}
}
