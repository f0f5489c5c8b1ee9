package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-channel-publisher/internal/config"
	"telegram-channel-publisher/internal/domain/ports/adapter"
	"telegram-channel-publisher/internal/infra/worker"
	"telegram-channel-publisher/internal/usecase"
)

var (
	_ adapter.TelegramBotAdapter = (*RealTelegramBotAdapter)(nil)
	_ adapter.ChannelSender      = (*RealTelegramBotAdapter)(nil)
)

// EventHandler consumes one operator event; application.BotFacade implements it.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev usecase.Event) error
}

// channelTarget is either a numeric chat id or an @username.
type channelTarget struct {
	id       int64
	username string
}

func parseChannel(s string) (channelTarget, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return channelTarget{}, errors.New("channel id is empty")
	}
	if strings.HasPrefix(s, "@") {
		return channelTarget{username: s}, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return channelTarget{}, fmt.Errorf("channel id %q is neither numeric nor @username", s)
	}
	return channelTarget{id: id}, nil
}

// RealTelegramBotAdapter receives operator updates via polling or webhook,
// replies to operators, and delivers posts to the channel.
type RealTelegramBotAdapter struct {
	bot     *tgbotapi.BotAPI
	cfg     *config.BotConfig
	channel channelTarget
	handler EventHandler
	lanes   *worker.KeyedPool
	log     *zerolog.Logger

	cancelPolling context.CancelFunc
}

func NewRealTelegramBotAdapter(cfg *config.BotConfig, channelID string, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	channel, err := parseChannel(channelID)
	if err != nil {
		return nil, err
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	l := logger.With().Str("component", "telegram").Str("bot", bot.Self.UserName).Logger()
	return &RealTelegramBotAdapter{
		bot:     bot,
		cfg:     cfg,
		channel: channel,
		lanes:   worker.NewKeyedPool(cfg.QueueDepth, &l),
		log:     &l,
	}, nil
}

// SetHandler wires the inbound side. The facade needs this adapter to reply,
// so the two are connected after construction.
func (r *RealTelegramBotAdapter) SetHandler(h EventHandler) { r.handler = h }

// Start runs the update lanes until ctx is done. In polling mode it also
// pulls updates; in webhook mode it registers the webhook and waits for
// ServeHTTP calls.
func (r *RealTelegramBotAdapter) Start(ctx context.Context) error {
	if r.handler == nil {
		return errors.New("telegram: event handler not set")
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel
	r.lanes.Start(ctx)
	defer r.lanes.Wait()

	if err := r.SetMenuCommands(ctx); err != nil {
		r.log.Warn().Err(err).Msg("failed to register command menu")
	}

	if strings.EqualFold(r.cfg.Mode, "webhook") {
		wh, err := tgbotapi.NewWebhook(r.cfg.WebhookURL)
		if err != nil {
			cancel()
			return fmt.Errorf("telegram webhook config: %w", err)
		}
		if _, err := r.bot.Request(wh); err != nil {
			cancel()
			return fmt.Errorf("telegram set webhook: %w", err)
		}
		r.log.Info().Str("url", r.cfg.WebhookURL).Msg("webhook registered")
		<-ctx.Done()
		return nil
	}
	return r.poll(ctx)
}

func (r *RealTelegramBotAdapter) poll(ctx context.Context) error {
	// Polling and webhooks are exclusive on Telegram's side.
	if _, err := r.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		r.log.Warn().Err(err).Msg("failed to delete webhook before polling")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)
	r.log.Info().Msg("polling started")

	for {
		select {
		case <-ctx.Done():
			r.bot.StopReceivingUpdates()
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.enqueue(ctx, up)
		}
	}
}

func (r *RealTelegramBotAdapter) StopPolling() {
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

// ServeHTTP accepts webhook deliveries.
func (r *RealTelegramBotAdapter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	up, err := r.bot.HandleUpdate(req)
	if err != nil {
		r.log.Warn().Err(err).Msg("bad webhook payload")
		http.Error(w, "bad update", http.StatusBadRequest)
		return
	}
	r.enqueue(req.Context(), *up)
	w.WriteHeader(http.StatusOK)
}

// enqueue routes the update onto its operator's lane so one operator's
// events are handled in arrival order.
func (r *RealTelegramBotAdapter) enqueue(ctx context.Context, up tgbotapi.Update) {
	if up.CallbackQuery != nil {
		// Stop the client spinner right away.
		if _, err := r.bot.Request(tgbotapi.NewCallback(up.CallbackQuery.ID, "")); err != nil {
			r.log.Debug().Err(err).Msg("callback answer failed")
		}
	}
	ev, ok := eventFromUpdate(up)
	if !ok {
		return
	}
	err := r.lanes.Submit(ctx, ev.OperatorID, func(ctx context.Context) error {
		return r.handler.HandleEvent(ctx, ev)
	})
	if err != nil {
		r.log.Warn().Err(err).Int64("operator_id", ev.OperatorID).Msg("update dropped")
	}
}

// SendMessage implements adapter.TelegramBotAdapter.
func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, p adapter.SendMessageParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(p.ChatID, p.Text)
	msg.ParseMode = p.ParseMode
	msg.DisableWebPagePreview = p.DisableWebPagePreview
	if m := buildMarkup(p.ReplyMarkup); m != nil {
		msg.ReplyMarkup = m
	}
	_, err := r.bot.Send(msg)
	return err
}

// SendToChannel implements adapter.ChannelSender with a single attempt.
func (r *RealTelegramBotAdapter) SendToChannel(ctx context.Context, m adapter.ChannelMessage) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var msg tgbotapi.MessageConfig
	if r.channel.username != "" {
		msg = tgbotapi.NewMessageToChannel(r.channel.username, m.Text)
	} else {
		msg = tgbotapi.NewMessage(r.channel.id, m.Text)
	}
	msg.ParseMode = m.ParseMode
	msg.DisableWebPagePreview = m.DisableWebPagePreview
	sent, err := r.bot.Send(msg)
	if err != nil {
		return 0, err
	}
	return int64(sent.MessageID), nil
}

// EditChannelMessage implements adapter.ChannelSender.
func (r *RealTelegramBotAdapter) EditChannelMessage(ctx context.Context, messageID int64, m adapter.ChannelMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	edit := tgbotapi.NewEditMessageText(r.channel.id, int(messageID), m.Text)
	if r.channel.username != "" {
		edit.ChannelUsername = r.channel.username
	}
	edit.ParseMode = m.ParseMode
	edit.DisableWebPagePreview = m.DisableWebPagePreview
	_, err := r.bot.Send(edit)
	return err
}

// buildMarkup renders the transport-neutral markup.
// - If btn.URL is set, the button opens a link
// - Else if btn.Data is set, the button sends callback data
// - Else a safe fallback uses btn.Text as callback data
func buildMarkup(m *adapter.ReplyMarkup) interface{} {
	if m == nil {
		return nil
	}
	if m.Remove {
		return tgbotapi.NewRemoveKeyboard(true)
	}
	if !m.IsInline {
		rows := make([][]tgbotapi.KeyboardButton, 0, len(m.Buttons))
		for _, row := range m.Buttons {
			if len(row) == 0 {
				continue
			}
			kb := make([]tgbotapi.KeyboardButton, 0, len(row))
			for _, btn := range row {
				kb = append(kb, tgbotapi.NewKeyboardButton(btn.Text))
			}
			rows = append(rows, kb)
		}
		if len(rows) == 0 {
			return nil
		}
		k := tgbotapi.NewReplyKeyboard(rows...)
		k.OneTimeKeyboard = true
		k.ResizeKeyboard = true
		return k
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(m.Buttons))
	for _, row := range m.Buttons {
		if len(row) == 0 {
			continue
		}
		kb := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			switch {
			case btn.URL != "":
				kb = append(kb, tgbotapi.NewInlineKeyboardButtonURL(label, btn.URL))
			case btn.Data != "":
				kb = append(kb, tgbotapi.NewInlineKeyboardButtonData(label, btn.Data))
			default:
				kb = append(kb, tgbotapi.NewInlineKeyboardButtonData(label, label))
			}
		}
		rows = append(rows, kb)
	}
	if len(rows) == 0 {
		return nil
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
