// Package notify defines the outbound messaging contract used by the order
// workflow. The Telegram implementation lives in bot/tgbot.
package notify

import (
	"context"

	"github.com/m3rciful/dispatchbot/bot/action"
)

// Button is one inline button bound to an action.
type Button struct {
	Text   string
	Action action.Action
}

// Message is a chat message with optional photo and inline keyboard.
type Message struct {
	Text string
	// PhotoID is a Telegram file id sent ahead of Text.
	PhotoID    string
	Buttons    [][]Button
	ForceReply bool
}

// Row is a convenience for a single keyboard row.
func Row(buttons ...Button) []Button { return buttons }

// Notifier delivers messages to chats.
type Notifier interface {
	// Send posts msg to chatID and returns the id of the text message.
	Send(ctx context.Context, chatID int64, msg Message) (int, error)
	// Edit replaces text and keyboard of an earlier message.
	Edit(ctx context.Context, chatID int64, messageID int, msg Message) error
}
