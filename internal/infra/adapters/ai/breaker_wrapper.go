package ai

import (
	"context"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/rs/zerolog"

	"telegram-channel-publisher/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*breakerAI)(nil)

type chatResult struct {
	text  string
	usage adapter.Usage
}

type breakerAI struct {
	inner adapter.AIServiceAdapter
	cb    circuitbreaker.CircuitBreaker[chatResult]
}

// BreakerConfig controls when the provider is considered unhealthy.
type BreakerConfig struct {
	FailureThreshold uint          // failures within Window calls that open the circuit
	Window           uint          // calls considered
	Delay            time.Duration // how long the circuit stays open
	SuccessThreshold uint          // half-open successes needed to close
}

func defaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 3, Window: 5, Delay: 30 * time.Second, SuccessThreshold: 1}
}

// NewBreakerAI fails fast with circuitbreaker.ErrOpen while the provider keeps failing.
func NewBreakerAI(inner adapter.AIServiceAdapter, cfg BreakerConfig, logger *zerolog.Logger) adapter.AIServiceAdapter {
	def := defaultBreakerConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.Window < cfg.FailureThreshold {
		cfg.Window = cfg.FailureThreshold
	}
	if cfg.Delay <= 0 {
		cfg.Delay = def.Delay
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}

	name := inner.Name()
	cb := circuitbreaker.NewBuilder[chatResult]().
		WithFailureThresholdRatio(cfg.FailureThreshold, cfg.Window).
		WithDelay(cfg.Delay).
		WithSuccessThreshold(cfg.SuccessThreshold).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			logger.Warn().
				Str("component", "ai-breaker").
				Str("provider", name).
				Str("from_state", stateName(e.OldState)).
				Str("to_state", stateName(e.NewState)).
				Msg("circuit breaker state change")
		}).
		Build()

	return &breakerAI{inner: inner, cb: cb}
}

func (b *breakerAI) Name() string { return b.inner.Name() }

func (b *breakerAI) Chat(ctx context.Context, messages []adapter.Message) (string, error) {
	text, _, err := b.ChatWithUsage(ctx, messages)
	return text, err
}

func (b *breakerAI) ChatWithUsage(ctx context.Context, messages []adapter.Message) (string, adapter.Usage, error) {
	res, err := failsafe.With[chatResult](b.cb).Get(func() (chatResult, error) {
		text, u, err := b.inner.ChatWithUsage(ctx, messages)
		return chatResult{text: text, usage: u}, err
	})
	return res.text, res.usage, err
}

func stateName(s circuitbreaker.State) string {
	switch s {
	case circuitbreaker.OpenState:
		return "open"
	case circuitbreaker.HalfOpenState:
		return "half-open"
	default:
		return "closed"
	}
}
