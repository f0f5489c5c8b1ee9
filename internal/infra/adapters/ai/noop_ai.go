package ai

import (
	"context"
	"errors"

	"telegram-channel-publisher/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*NoopAIAdapter)(nil)

// ErrNotConfigured is returned when no provider credential was supplied.
var ErrNotConfigured = errors.New("ai api key not configured")

// NoopAIAdapter stands in when no provider is configured; every call fails.
type NoopAIAdapter struct{}

func NewNoopAIAdapter() *NoopAIAdapter { return &NoopAIAdapter{} }

func (a *NoopAIAdapter) Name() string { return "noop" }

func (a *NoopAIAdapter) Chat(ctx context.Context, _ []adapter.Message) (string, error) {
	return "", ErrNotConfigured
}

func (a *NoopAIAdapter) ChatWithUsage(ctx context.Context, _ []adapter.Message) (string, adapter.Usage, error) {
	return "", adapter.Usage{}, ErrNotConfigured
}
