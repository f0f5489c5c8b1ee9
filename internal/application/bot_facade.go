package application

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"telegram-channel-publisher/internal/domain"
	"telegram-channel-publisher/internal/domain/ports/adapter"
	"telegram-channel-publisher/internal/infra/logging"
	"telegram-channel-publisher/internal/infra/metrics"
	"telegram-channel-publisher/internal/infra/redis"
	"telegram-channel-publisher/internal/usecase"
)

// FacadeConfig tunes the guards around the conversation.
type FacadeConfig struct {
	RateLimit  int           // events per operator per RateWindow, <= 0 disables
	RateWindow time.Duration // defaults to one minute
	LockTTL    time.Duration
	LockWait   time.Duration // how long an event waits for the operator's previous one
}

// BotFacade is the single entry point for inbound operator events. It guards
// the conversation with a rate limit and a per-operator lock, then forwards
// the replies to the operator's chat.
type BotFacade struct {
	Conv    ConversationIface
	Bot     adapter.TelegramBotAdapter
	Locker  OperatorLocker
	Limiter RateLimiterIface
	Tr      usecase.Translator

	cfg FacadeConfig
	log *zerolog.Logger
}

// NewBotFacade constructs a facade. Locker and Limiter may be nil in dev setups.
func NewBotFacade(
	conv ConversationIface,
	bot adapter.TelegramBotAdapter,
	locker OperatorLocker,
	limiter RateLimiterIface,
	tr usecase.Translator,
	cfg FacadeConfig,
	logger *zerolog.Logger,
) *BotFacade {
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = 10 * time.Second
	}
	l := logger.With().Str("component", "bot_facade").Logger()
	return &BotFacade{Conv: conv, Bot: bot, Locker: locker, Limiter: limiter, Tr: tr, cfg: cfg, log: &l}
}

// HandleEvent processes one operator event end to end.
func (b *BotFacade) HandleEvent(ctx context.Context, ev usecase.Event) error {
	ctx = logging.WithTraceID(ctx, logging.NewTraceID())
	ctx = logging.WithOperatorID(ctx, ev.OperatorID)
	log := logging.With(ctx, b.log)
	defer logging.TraceDuration(log, "BotFacade.HandleEvent")()

	if !b.Conv.IsAdmin(ev.OperatorID) {
		// The conversation records and drops it.
		_, err := b.Conv.Handle(ctx, ev)
		return err
	}

	if !b.allow(ctx, ev) {
		metrics.IncRateLimitTriggered()
		log.Warn().Msg("operator rate limited")
		return b.reply(ctx, ev.ChatID, usecase.Reply{Text: b.Tr.T("error.rate_limited")})
	}

	unlock, err := b.lock(ctx, ev.OperatorID)
	if err != nil {
		if errors.Is(err, domain.ErrOperatorBusy) {
			log.Info().Msg("operator busy; dropping event")
			return b.reply(ctx, ev.ChatID, usecase.Reply{Text: b.Tr.T("error.busy")})
		}
		log.Error().Err(err).Msg("operator lock failed")
		_ = b.reply(ctx, ev.ChatID, usecase.Reply{Text: b.Tr.T("error.generic")})
		return err
	}
	defer unlock()

	replies, err := b.Conv.Handle(ctx, ev)
	if err != nil {
		log.Error().Err(err).Str("kind", string(ev.Kind)).Msg("event handling failed")
		_ = b.reply(ctx, ev.ChatID, usecase.Reply{Text: b.Tr.T("error.generic")})
		return err
	}
	return b.reply(ctx, ev.ChatID, replies...)
}

func (b *BotFacade) allow(ctx context.Context, ev usecase.Event) bool {
	if b.Limiter == nil || b.cfg.RateLimit <= 0 {
		return true
	}
	bucket := string(ev.Kind)
	if ev.Kind == usecase.EventCommand {
		if cmd, ok := usecase.ParseCommand(ev.Payload); ok {
			bucket = string(cmd)
		}
	}
	ok, err := b.Limiter.Allow(ctx, redis.OperatorCommandKey(ev.OperatorID, bucket), b.cfg.RateLimit, b.cfg.RateWindow)
	if err != nil {
		// Limiter outages fail open.
		logging.With(ctx, b.log).Warn().Err(err).Msg("rate limiter unavailable")
		return true
	}
	return ok
}

func (b *BotFacade) lock(ctx context.Context, operatorID int64) (func(), error) {
	if b.Locker == nil {
		return func() {}, nil
	}
	key := redis.OperatorLockKey(operatorID)
	wctx, cancel := context.WithTimeout(ctx, b.cfg.LockWait)
	defer cancel()
	token, err := b.Locker.Lock(wctx, key, b.cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	return func() {
		// Release even when the event's context was cancelled.
		uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := b.Locker.Unlock(uctx, key, token); err != nil {
			logging.With(ctx, b.log).Warn().Err(err).Msg("operator unlock failed")
		}
	}, nil
}

func (b *BotFacade) reply(ctx context.Context, chatID int64, replies ...usecase.Reply) error {
	for _, r := range replies {
		err := b.Bot.SendMessage(ctx, adapter.SendMessageParams{
			ChatID:                chatID,
			Text:                  r.Text,
			ParseMode:             r.ParseMode,
			DisableWebPagePreview: r.DisablePreview,
			ReplyMarkup:           r.Markup,
		})
		if err != nil {
			logging.With(ctx, b.log).Error().Err(err).Msg("reply to operator failed")
			return err
		}
	}
	return nil
}
