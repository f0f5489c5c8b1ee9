// File: internal/usecase/rewrite_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"telegram-channel-publisher/internal/domain/model"
	"telegram-channel-publisher/internal/domain/ports/adapter"
	"telegram-channel-publisher/internal/infra/logging"
	"telegram-channel-publisher/internal/infra/metrics"
)

// Compile-time check
var _ RewriteUseCase = (*rewriteUC)(nil)

// RewriteUseCase never fails: provider errors come back as sentinel text.
type RewriteUseCase interface {
	Rewrite(ctx context.Context, text, style string) string
}

// TokenCounter sizes a prompt before it is sent.
type TokenCounter interface {
	Count(text string) int
}

type rewriteUC struct {
	ai        adapter.AIServiceAdapter
	counter   TokenCounter
	maxTokens int
	timeout   time.Duration
	log       *zerolog.Logger
}

func NewRewriteUseCase(ai adapter.AIServiceAdapter, counter TokenCounter, maxInputTokens int, timeout time.Duration, logger *zerolog.Logger) RewriteUseCase {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	l := logger.With().Str("component", "rewrite").Logger()
	return &rewriteUC{ai: ai, counter: counter, maxTokens: maxInputTokens, timeout: timeout, log: &l}
}

func rewriteMessages(text, style string) []adapter.Message {
	return []adapter.Message{
		{Role: "system", Content: "Rewrite the user's text in this style: " + style},
		{Role: "user", Content: text},
	}
}

func (uc *rewriteUC) Rewrite(ctx context.Context, text, style string) string {
	log := logging.With(ctx, uc.log)
	defer logging.TraceDuration(log, "RewriteUC.Rewrite")()

	msgs := rewriteMessages(text, style)
	if uc.counter != nil && uc.maxTokens > 0 {
		n := 0
		for _, m := range msgs {
			n += uc.counter.Count(m.Content)
		}
		if n > uc.maxTokens {
			metrics.IncRewriteInputRejected()
			log.Warn().Int("tokens", n).Int("limit", uc.maxTokens).Msg("draft too long for rewrite")
			return model.RewriteFailureText(fmt.Sprintf("draft is %d tokens, limit is %d", n, uc.maxTokens))
		}
	}

	cctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	start := time.Now()
	out, usage, err := uc.ai.ChatWithUsage(cctx, msgs)
	latency := int(time.Since(start).Milliseconds())

	if err == nil && strings.TrimSpace(out) == "" {
		err = errors.New("empty response")
	}
	metrics.ObserveRewrite(uc.ai.Name(), usage.PromptTokens, usage.CompletionTokens, latency, err == nil)
	if err != nil {
		log.Warn().Err(err).Str("provider", uc.ai.Name()).Int("latency_ms", latency).Msg("rewrite failed")
		return model.RewriteFailureText(err.Error())
	}

	log.Info().Str("provider", uc.ai.Name()).Int("latency_ms", latency).Int("tokens", usage.TotalTokens).Msg("rewrite done")
	return out
}
