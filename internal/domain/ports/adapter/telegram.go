// File: internal/domain/ports/adapter/telegram.go
package adapter

import "context"

type Button struct {
	Text string
	Data string
	URL  string
}

type ReplyMarkup struct {
	Buttons  [][]Button
	IsInline bool
	// Remove hides a previously shown reply keyboard.
	Remove bool
}

type SendMessageParams struct {
	ChatID                int64
	Text                  string
	ParseMode             string
	DisableWebPagePreview bool
	ReplyMarkup           *ReplyMarkup
}

// ChannelMessage is an outbound channel post.
type ChannelMessage struct {
	Text                  string
	ParseMode             string
	DisableWebPagePreview bool
}

// TelegramBotAdapter talks to operators.
type TelegramBotAdapter interface {
	SendMessage(ctx context.Context, params SendMessageParams) error
}

// ChannelSender delivers posts to the publishing channel. One call is one attempt.
type ChannelSender interface {
	SendToChannel(ctx context.Context, msg ChannelMessage) (messageID int64, err error)
	EditChannelMessage(ctx context.Context, messageID int64, msg ChannelMessage) error
}
