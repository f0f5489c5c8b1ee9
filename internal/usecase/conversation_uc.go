// File: internal/usecase/conversation_uc.go
package usecase

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"telegram-channel-publisher/internal/domain/model"
	"telegram-channel-publisher/internal/domain/ports/adapter"
	"telegram-channel-publisher/internal/domain/ports/repository"
	"telegram-channel-publisher/internal/infra/logging"
	"telegram-channel-publisher/internal/infra/metrics"
)

// Compile-time check
var _ ConversationUseCase = (*conversationUC)(nil)

type EventKind string

const (
	EventText    EventKind = "text"
	EventButton  EventKind = "button"
	EventCommand EventKind = "command"
)

// Event is one deserialized operator message or button press.
type Event struct {
	OperatorID int64
	ChatID     int64
	Kind       EventKind
	Payload    string
}

// Reply is one message back to the operator's chat.
type Reply struct {
	Text           string
	Markup         *adapter.ReplyMarkup
	ParseMode      string
	DisablePreview bool
}

type Command string

const (
	CommandStart     Command = "start"
	CommandNewPost   Command = "new_post"
	CommandEditPost  Command = "edit_post"
	CommandShowPosts Command = "show_posts"
	CommandCancel    Command = "cancel"
	CommandHelp      Command = "help"
)

// ParseCommand extracts the command name from "/name@bot args".
func ParseCommand(payload string) (Command, bool) {
	payload = strings.TrimSpace(payload)
	if !strings.HasPrefix(payload, "/") {
		return "", false
	}
	name := strings.Fields(payload[1:])
	if len(name) == 0 {
		return "", false
	}
	cmd := strings.ToLower(name[0])
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	if cmd == "newpost" {
		cmd = string(CommandNewPost)
	}
	return Command(cmd), cmd != ""
}

// Translator renders operator-facing texts.
type Translator interface {
	T(key string, args ...interface{}) string
}

type ConversationUseCase interface {
	// Handle advances the operator's session by one event and returns the replies to send.
	// Events from non-admins yield no replies and no session.
	Handle(ctx context.Context, ev Event) ([]Reply, error)
	IsAdmin(operatorID int64) bool
}

type ConversationConfig struct {
	Style     string
	Location  *time.Location
	Admins    []int64
	ListLimit int
	Now       func() time.Time
}

type conversationUC struct {
	sessions  repository.SessionRepository
	publisher PublishUseCase
	rewriter  RewriteUseCase
	tr        Translator
	cfg       ConversationConfig
	admins    map[int64]struct{}
	log       *zerolog.Logger
}

func NewConversationUseCase(
	sessions repository.SessionRepository,
	publisher PublishUseCase,
	rewriter RewriteUseCase,
	tr Translator,
	cfg ConversationConfig,
	logger *zerolog.Logger,
) ConversationUseCase {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = 10
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	admins := make(map[int64]struct{}, len(cfg.Admins))
	for _, id := range cfg.Admins {
		admins[id] = struct{}{}
	}
	l := logger.With().Str("component", "conversation").Logger()
	return &conversationUC{
		sessions:  sessions,
		publisher: publisher,
		rewriter:  rewriter,
		tr:        tr,
		cfg:       cfg,
		admins:    admins,
		log:       &l,
	}
}

func (uc *conversationUC) IsAdmin(operatorID int64) bool {
	_, ok := uc.admins[operatorID]
	return ok
}

func (uc *conversationUC) Handle(ctx context.Context, ev Event) ([]Reply, error) {
	ctx = logging.WithOperatorID(ctx, ev.OperatorID)
	if !uc.IsAdmin(ev.OperatorID) {
		metrics.IncUnauthorized()
		logging.With(ctx, uc.log).Debug().Msg("ignoring event from non-admin")
		return nil, nil
	}

	if ev.Kind == EventCommand {
		cmd, ok := ParseCommand(ev.Payload)
		if !ok {
			return uc.say(uc.tr.T("unknown_command")), nil
		}
		metrics.IncTelegramCommand(string(cmd))
		return uc.handleCommand(ctx, ev, cmd)
	}

	sess, err := uc.sessions.Get(ctx, ev.OperatorID)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.Step == model.StepIdle {
		return nil, nil
	}
	sess.ChatID = ev.ChatID
	return uc.dispatch(ctx, sess, ev)
}

func (uc *conversationUC) handleCommand(ctx context.Context, ev Event, cmd Command) ([]Reply, error) {
	switch cmd {
	case CommandStart:
		replies := uc.say(uc.tr.T("start.greeting"))
		recent, err := uc.publisher.Recent(ctx, "", 5)
		if err != nil {
			return nil, err
		}
		if len(recent) > 0 {
			replies = append(replies, Reply{Text: uc.tr.T("start.recent_header") + "\n\n" + uc.renderPosts(recent)})
		}
		if err := uc.begin(ctx, ev, model.StepAwaitingDraft); err != nil {
			return nil, err
		}
		return append(replies, Reply{Text: uc.tr.T("compose.ask_draft")}), nil

	case CommandNewPost:
		if err := uc.begin(ctx, ev, model.StepAwaitingDraft); err != nil {
			return nil, err
		}
		return uc.say(uc.tr.T("compose.ask_draft")), nil

	case CommandEditPost:
		if err := uc.begin(ctx, ev, model.StepEditAwaitingCategory); err != nil {
			return nil, err
		}
		return uc.prompt(model.StepEditAwaitingCategory, uc.tr.T("edit.choose_category")), nil

	case CommandShowPosts:
		posts, err := uc.publisher.Recent(ctx, "", uc.cfg.ListLimit)
		if err != nil {
			return nil, err
		}
		if len(posts) == 0 {
			return uc.say(uc.tr.T("posts.none")), nil
		}
		return uc.say(uc.renderPosts(posts)), nil

	case CommandCancel:
		sess, err := uc.sessions.Get(ctx, ev.OperatorID)
		if err != nil {
			return nil, err
		}
		if sess == nil || sess.Step == model.StepIdle {
			return uc.say(uc.tr.T("nothing_to_cancel")), nil
		}
		if err := uc.sessions.Clear(ctx, ev.OperatorID); err != nil {
			return nil, err
		}
		return uc.say(uc.tr.T("cancelled")), nil

	case CommandHelp:
		return uc.say(uc.tr.T("help")), nil

	default:
		return uc.say(uc.tr.T("unknown_command")), nil
	}
}

// begin overwrites any session with a fresh one at step.
func (uc *conversationUC) begin(ctx context.Context, ev Event, step model.Step) error {
	sess := model.NewSession(ev.OperatorID, ev.ChatID, step)
	if err := uc.sessions.Set(ctx, sess); err != nil {
		return err
	}
	logging.With(ctx, uc.log).Debug().Str("step", string(step)).Msg("flow started")
	return nil
}

func (uc *conversationUC) save(ctx context.Context, sess *model.Session, step model.Step) error {
	sess.Advance(step)
	return uc.sessions.Set(ctx, sess)
}

func (uc *conversationUC) say(texts ...string) []Reply {
	out := make([]Reply, 0, len(texts))
	for _, t := range texts {
		out = append(out, Reply{Text: t})
	}
	return out
}

// prompt renders text with the keyboard of the choices step accepts.
func (uc *conversationUC) prompt(step model.Step, text string) []Reply {
	var rows [][]adapter.Button
	for _, c := range step.Choices() {
		if c == model.ChoicePick {
			continue
		}
		rows = append(rows, []adapter.Button{{Text: uc.label(c), Data: model.ButtonData(c, "")}})
	}
	r := Reply{Text: text}
	if len(rows) > 0 {
		r.Markup = &adapter.ReplyMarkup{Buttons: rows, IsInline: true}
	}
	return []Reply{r}
}

func (uc *conversationUC) label(c model.Choice) string {
	key := "choice." + string(c)
	if l := uc.tr.T(key); l != key {
		return l
	}
	return c.Label()
}

// resolve maps a button press or typed label onto a choice accepted by step.
func (uc *conversationUC) resolve(step model.Step, ev Event) (model.Choice, string, bool) {
	if ev.Kind == EventButton {
		c, arg := model.ParseButtonData(ev.Payload)
		return c, arg, step.Accepts(c)
	}
	text := strings.TrimSpace(ev.Payload)
	for _, c := range step.Choices() {
		if c == model.ChoicePick {
			continue
		}
		if strings.EqualFold(text, uc.label(c)) {
			return c, "", true
		}
	}
	if c, ok := step.ChoiceFromLabel(text); ok {
		return c, "", true
	}
	return "", "", false
}

func (uc *conversationUC) renderPosts(posts []*model.Post) string {
	var b strings.Builder
	for i, p := range posts {
		if i > 0 {
			b.WriteString("\n\n")
		}
		status := uc.tr.T("status." + string(p.Status))
		created := p.CreatedAt.In(uc.cfg.Location).Format("2006-01-02 15:04")
		if p.IsScheduled() && p.ScheduledAt != nil {
			b.WriteString(uc.tr.T("posts.item_scheduled", p.ID, status, uc.formatTime(*p.ScheduledAt), created, preview(p.Text, 200)))
			continue
		}
		b.WriteString(uc.tr.T("posts.item", p.ID, status, created, preview(p.Text, 200)))
	}
	return b.String()
}

func (uc *conversationUC) formatTime(t time.Time) string {
	return t.In(uc.cfg.Location).Format("2006-01-02 15:04 MST")
}

func preview(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	r := []rune(text)
	return string(r[:max]) + "…"
}

func (uc *conversationUC) now() time.Time {
	return uc.cfg.Now().In(uc.cfg.Location)
}
