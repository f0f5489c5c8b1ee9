// File: internal/infra/adapters/ai/multi_adapter.go
package ai

import (
	"context"
	"errors"
	"strings"

	"telegram-channel-publisher/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*FallbackAIAdapter)(nil)

// FallbackAIAdapter tries providers in order and returns the first success.
type FallbackAIAdapter struct {
	chain []adapter.AIServiceAdapter
}

func NewFallbackAIAdapter(chain ...adapter.AIServiceAdapter) *FallbackAIAdapter {
	out := make([]adapter.AIServiceAdapter, 0, len(chain))
	for _, a := range chain {
		if a != nil {
			out = append(out, a)
		}
	}
	return &FallbackAIAdapter{chain: out}
}

func (m *FallbackAIAdapter) Name() string {
	names := make([]string, 0, len(m.chain))
	for _, a := range m.chain {
		names = append(names, a.Name())
	}
	return strings.Join(names, "+")
}

func (m *FallbackAIAdapter) Chat(ctx context.Context, messages []adapter.Message) (string, error) {
	text, _, err := m.ChatWithUsage(ctx, messages)
	return text, err
}

func (m *FallbackAIAdapter) ChatWithUsage(ctx context.Context, messages []adapter.Message) (string, adapter.Usage, error) {
	if len(m.chain) == 0 {
		return "", adapter.Usage{}, ErrNotConfigured
	}
	var errs []error
	for _, a := range m.chain {
		text, u, err := a.ChatWithUsage(ctx, messages)
		if err == nil {
			return text, u, nil
		}
		errs = append(errs, errors.New(a.Name()+": "+err.Error()))
		if ctx.Err() != nil {
			break
		}
	}
	return "", adapter.Usage{}, errors.Join(errs...)
}
