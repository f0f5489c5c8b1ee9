package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-channel-publisher/internal/usecase"
)

// menuCommands is the command menu shown by Telegram clients.
var menuCommands = []tgbotapi.BotCommand{
	{Command: string(usecase.CommandNewPost), Description: "Write a new post"},
	{Command: string(usecase.CommandEditPost), Description: "Edit a sent or scheduled post"},
	{Command: string(usecase.CommandShowPosts), Description: "List recent posts"},
	{Command: string(usecase.CommandCancel), Description: "Drop the current flow"},
	{Command: string(usecase.CommandHelp), Description: "Show help"},
}

// SetMenuCommands registers the command menu for every chat.
func (r *RealTelegramBotAdapter) SetMenuCommands(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := r.bot.Request(tgbotapi.NewSetMyCommands(menuCommands...))
	return err
}

// eventFromUpdate converts a Telegram update into an operator event.
// Updates without a sender or payload are skipped.
func eventFromUpdate(up tgbotapi.Update) (usecase.Event, bool) {
	if q := up.CallbackQuery; q != nil {
		if q.From == nil || strings.TrimSpace(q.Data) == "" {
			return usecase.Event{}, false
		}
		chatID := q.From.ID
		if q.Message != nil && q.Message.Chat != nil {
			chatID = q.Message.Chat.ID
		}
		return usecase.Event{OperatorID: q.From.ID, ChatID: chatID, Kind: usecase.EventButton, Payload: q.Data}, true
	}

	msg := up.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return usecase.Event{}, false
	}
	// Operators talk to the bot privately; group chatter is ignored.
	if !msg.Chat.IsPrivate() {
		return usecase.Event{}, false
	}
	ev := usecase.Event{OperatorID: msg.From.ID, ChatID: msg.Chat.ID, Kind: usecase.EventText, Payload: msg.Text}
	if msg.IsCommand() {
		ev.Kind = usecase.EventCommand
	}
	if strings.TrimSpace(ev.Payload) == "" {
		return usecase.Event{}, false
	}
	return ev, true
}
