package application

import (
	"context"
	"time"

	"telegram-channel-publisher/internal/usecase"
)

// ---- small interfaces to decouple the facade from concrete infra structs ----
// These describe the minimal surface that the facade needs. Using interfaces
// enables tests to pass in light-weight mocks.

type ConversationIface interface {
	Handle(ctx context.Context, ev usecase.Event) ([]usecase.Reply, error)
	IsAdmin(operatorID int64) bool
}

// OperatorLocker serializes events of one operator across processes.
type OperatorLocker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

type RateLimiterIface interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
