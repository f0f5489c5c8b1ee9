package ai

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"telegram-channel-publisher/internal/config"
	"telegram-channel-publisher/internal/domain/ports/adapter"
)

// NewFromConfig builds the provider chain named by cfg.Provider, followed by
// the other configured provider as a fallback. Each provider gets its own
// circuit breaker; the chain shares one concurrency limit.
func NewFromConfig(ctx context.Context, cfg config.AIConfig, logger *zerolog.Logger) adapter.AIServiceAdapter {
	l := logger.With().Str("component", "ai").Logger()

	build := map[string]func() (adapter.AIServiceAdapter, error){
		"openai": func() (adapter.AIServiceAdapter, error) {
			model := cfg.Model
			if strings.HasPrefix(strings.ToLower(model), "gemini") {
				model = ""
			}
			return NewOpenAIAdapter(cfg.OpenAIKey, cfg.BaseURL, model)
		},
		"gemini": func() (adapter.AIServiceAdapter, error) {
			model := cfg.Model
			if !strings.HasPrefix(strings.ToLower(model), "gemini") {
				model = ""
			}
			return NewGeminiAdapter(ctx, cfg.GeminiKey, cfg.GeminiURL, model, 0)
		},
	}
	hasKey := map[string]bool{"openai": cfg.OpenAIKey != "", "gemini": cfg.GeminiKey != ""}

	order := []string{strings.ToLower(cfg.Provider)}
	for _, p := range []string{"openai", "gemini"} {
		if p != order[0] {
			order = append(order, p)
		}
	}

	var chain []adapter.AIServiceAdapter
	for _, p := range order {
		mk, ok := build[p]
		if !ok || !hasKey[p] {
			continue
		}
		a, err := mk()
		if err != nil {
			l.Error().Err(err).Str("provider", p).Msg("ai provider init failed")
			continue
		}
		chain = append(chain, NewBreakerAI(a, BreakerConfig{}, &l))
	}

	if len(chain) == 0 {
		l.Warn().Msg("no ai provider configured; rewrites will return the error sentinel")
		return NewNoopAIAdapter()
	}
	l.Info().Int("providers", len(chain)).Str("primary", chain[0].Name()).Msg("ai providers ready")

	var out adapter.AIServiceAdapter = chain[0]
	if len(chain) > 1 {
		out = NewFallbackAIAdapter(chain...)
	}
	return NewLimitedAI(out, cfg.ConcurrentLimit)
}
