package telegram

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"telegram-channel-publisher/internal/domain/ports/adapter"
)

var (
	_ adapter.TelegramBotAdapter = (*NoopBotAdapter)(nil)
	_ adapter.ChannelSender      = (*NoopBotAdapter)(nil)
)

// NoopBotAdapter logs outbound traffic instead of calling Telegram. Used in dev
// runs without a bot token.
type NoopBotAdapter struct {
	log    *zerolog.Logger
	nextID atomic.Int64
}

func NewNoopBotAdapter(logger *zerolog.Logger) *NoopBotAdapter {
	l := logger.With().Str("component", "noop-telegram").Logger()
	return &NoopBotAdapter{log: &l}
}

func (b *NoopBotAdapter) wait(ctx context.Context) error {
	// Simulate slight processing time and respect ctx
	select {
	case <-time.After(20 * time.Millisecond):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *NoopBotAdapter) SendMessage(ctx context.Context, p adapter.SendMessageParams) error {
	if err := b.wait(ctx); err != nil {
		return err
	}
	ev := b.log.Info().Int64("chat_id", p.ChatID).Str("text", p.Text)
	if p.ReplyMarkup != nil {
		ev = ev.Interface("buttons", p.ReplyMarkup.Buttons)
	}
	ev.Msg("operator message")
	return nil
}

func (b *NoopBotAdapter) SendToChannel(ctx context.Context, m adapter.ChannelMessage) (int64, error) {
	if err := b.wait(ctx); err != nil {
		return 0, err
	}
	id := b.nextID.Add(1)
	b.log.Info().Int64("message_id", id).Str("text", m.Text).Msg("channel post")
	return id, nil
}

func (b *NoopBotAdapter) EditChannelMessage(ctx context.Context, messageID int64, m adapter.ChannelMessage) error {
	if err := b.wait(ctx); err != nil {
		return err
	}
	b.log.Info().Int64("message_id", messageID).Str("text", m.Text).Msg("channel edit")
	return nil
}
