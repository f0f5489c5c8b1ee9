//go:build !integration

package application_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"telegram-channel-publisher/internal/application"
	"telegram-channel-publisher/internal/domain"
	"telegram-channel-publisher/internal/domain/ports/adapter"
	"telegram-channel-publisher/internal/infra/i18n"
	"telegram-channel-publisher/internal/usecase"
)

type mockConv struct {
	admin   bool
	calls   int
	replies []usecase.Reply
	err     error
}

func (m *mockConv) Handle(ctx context.Context, ev usecase.Event) ([]usecase.Reply, error) {
	m.calls++
	if !m.admin {
		return nil, nil
	}
	return m.replies, m.err
}

func (m *mockConv) IsAdmin(int64) bool { return m.admin }

type mockBot struct {
	mu   sync.Mutex
	sent []adapter.SendMessageParams
}

func (m *mockBot) SendMessage(ctx context.Context, p adapter.SendMessageParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, p)
	return nil
}

type mockLocker struct {
	lockErr  error
	locked   []string
	unlocked []string
}

func (m *mockLocker) Lock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if m.lockErr != nil {
		return "", m.lockErr
	}
	m.locked = append(m.locked, key)
	return "token", nil
}

func (m *mockLocker) Unlock(ctx context.Context, key, token string) error {
	m.unlocked = append(m.unlocked, key)
	return nil
}

type mockLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	m.keys = append(m.keys, key)
	return m.allow, m.err
}

type facadeFixture struct {
	conv    *mockConv
	bot     *mockBot
	locker  *mockLocker
	limiter *mockLimiter
	facade  *application.BotFacade
}

func newFacadeFixture(t *testing.T) *facadeFixture {
	t.Helper()
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		t.Fatalf("translator: %v", err)
	}
	logger := zerolog.New(io.Discard)
	f := &facadeFixture{
		conv:    &mockConv{admin: true},
		bot:     &mockBot{},
		locker:  &mockLocker{},
		limiter: &mockLimiter{allow: true},
	}
	f.facade = application.NewBotFacade(f.conv, f.bot, f.locker, f.limiter, tr,
		application.FacadeConfig{RateLimit: 30}, &logger)
	return f
}

func event(kind usecase.EventKind, payload string) usecase.Event {
	return usecase.Event{OperatorID: 42, ChatID: 4242, Kind: kind, Payload: payload}
}

func TestBotFacade_HandleEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("should forward replies under the operator lock", func(t *testing.T) {
		// Arrange
		f := newFacadeFixture(t)
		markup := &adapter.ReplyMarkup{IsInline: true, Buttons: [][]adapter.Button{{{Text: "Keep as-is", Data: "compose:keep"}}}}
		f.conv.replies = []usecase.Reply{{Text: "one"}, {Text: "two", Markup: markup}}

		// Act
		err := f.facade.HandleEvent(ctx, event(usecase.EventText, "hello"))

		// Assert
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if len(f.bot.sent) != 2 || f.bot.sent[0].ChatID != 4242 || f.bot.sent[1].ReplyMarkup != markup {
			t.Errorf("unexpected sends %+v", f.bot.sent)
		}
		if len(f.locker.locked) != 1 || f.locker.locked[0] != "lock:operator:42" || len(f.locker.unlocked) != 1 {
			t.Errorf("expected one lock/unlock pair, got %v / %v", f.locker.locked, f.locker.unlocked)
		}
	})

	t.Run("should skip guards for non-admins and stay silent", func(t *testing.T) {
		f := newFacadeFixture(t)
		f.conv.admin = false

		if err := f.facade.HandleEvent(ctx, event(usecase.EventCommand, "/new_post")); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if len(f.bot.sent) != 0 || len(f.locker.locked) != 0 || len(f.limiter.keys) != 0 {
			t.Error("non-admin events must not touch the bot, lock or limiter")
		}
		if f.conv.calls != 1 {
			t.Error("the conversation must still see the event to record it")
		}
	})

	t.Run("should answer rate limited operators without handling", func(t *testing.T) {
		f := newFacadeFixture(t)
		f.limiter.allow = false

		_ = f.facade.HandleEvent(ctx, event(usecase.EventCommand, "/new_post@PubBot"))

		if f.conv.calls != 0 {
			t.Error("conversation must not run")
		}
		if len(f.limiter.keys) != 1 || !strings.HasSuffix(f.limiter.keys[0], ":new_post") {
			t.Errorf("expected a per-command bucket, got %v", f.limiter.keys)
		}
		if len(f.bot.sent) != 1 || !strings.Contains(f.bot.sent[0].Text, "Too many") {
			t.Errorf("unexpected reply %+v", f.bot.sent)
		}
	})

	t.Run("should fail open when the limiter errors", func(t *testing.T) {
		f := newFacadeFixture(t)
		f.limiter.allow = false
		f.limiter.err = errors.New("redis down")

		_ = f.facade.HandleEvent(ctx, event(usecase.EventText, "x"))

		if f.conv.calls != 1 {
			t.Error("conversation must run")
		}
	})

	t.Run("should tell a busy operator to wait", func(t *testing.T) {
		f := newFacadeFixture(t)
		f.locker.lockErr = domain.ErrOperatorBusy

		err := f.facade.HandleEvent(ctx, event(usecase.EventText, "x"))

		if err != nil {
			t.Fatalf("busy is not an error, got %v", err)
		}
		if f.conv.calls != 0 || len(f.bot.sent) != 1 || !strings.Contains(f.bot.sent[0].Text, "Still working") {
			t.Errorf("unexpected outcome: calls=%d sent=%+v", f.conv.calls, f.bot.sent)
		}
	})

	t.Run("should report persistence failures and propagate them", func(t *testing.T) {
		// Arrange
		f := newFacadeFixture(t)
		f.conv.err = domain.ErrPersistence

		// Act
		err := f.facade.HandleEvent(ctx, event(usecase.EventText, "x"))

		// Assert
		if !errors.Is(err, domain.ErrPersistence) {
			t.Fatalf("expected ErrPersistence, got %v", err)
		}
		if len(f.bot.sent) != 1 || !strings.Contains(f.bot.sent[0].Text, "not completed") {
			t.Errorf("expected the generic failure reply, got %+v", f.bot.sent)
		}
		if len(f.locker.unlocked) != 1 {
			t.Error("lock must be released on failure")
		}
	})
}
