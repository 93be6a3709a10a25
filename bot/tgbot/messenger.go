// Package tgbot adapts the order workflow to Telegram: outbound messages,
// staff checks, update handlers, owner commands and the composition root.
package tgbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/m3rciful/dispatchbot/bot/notify"
	"github.com/m3rciful/dispatchbot/core/logger"
	"github.com/m3rciful/dispatchbot/core/telegram/keyboard"
	tgsender "github.com/m3rciful/dispatchbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// ErrNotBound is returned before the bot has started.
var ErrNotBound = errors.New("tgbot: bot not bound yet")

// API is the subset of *tele.Bot the adapter calls.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	ChatMemberOf(chat, user tele.Recipient) (*tele.ChatMember, error)
}

// Client holds the bot once it is running. Services are wired before the bot
// exists, so they reach Telegram through a Client bound in OnStart.
type Client struct {
	api    atomic.Pointer[API]
	sender atomic.Pointer[tgsender.Dispatcher]
}

// Bind sets the live bot.
func (c *Client) Bind(api API) {
	c.api.Store(&api)
}

// UseSender routes calls through d and its retry policy.
func (c *Client) UseSender(d *tgsender.Dispatcher) {
	c.sender.Store(d)
}

func (c *Client) load() (API, error) {
	p := c.api.Load()
	if p == nil || *p == nil {
		return nil, ErrNotBound
	}
	return *p, nil
}

// call runs fn against the bound bot, retried by the sender when one is set.
func (c *Client) call(ctx context.Context, action, endpoint string, fn func(API) error) error {
	api, err := c.load()
	if err != nil {
		return err
	}
	if d := c.sender.Load(); d != nil {
		return d.Do(ctx, action, endpoint, func() error { return fn(api) })
	}
	return fn(api)
}

// Messenger implements notify.Notifier over the Bot API.
type Messenger struct {
	client *Client
}

// NewMessenger returns a messenger sending through client.
func NewMessenger(client *Client) *Messenger {
	return &Messenger{client: client}
}

// Send posts the optional photo and then the text with its keyboard. The id
// of the text message is returned.
func (m *Messenger) Send(ctx context.Context, chatID int64, msg notify.Message) (int, error) {
	chat := &tele.Chat{ID: chatID}
	if msg.PhotoID != "" {
		photo := &tele.Photo{File: tele.File{FileID: msg.PhotoID}}
		err := m.client.call(ctx, "notify.photo", "sendPhoto", func(api API) error {
			_, err := api.Send(chat, photo)
			return err
		})
		if err != nil {
			return 0, fmt.Errorf("send photo to %d: %w", chatID, err)
		}
	}
	var sent *tele.Message
	err := m.client.call(ctx, "notify.send", "sendMessage", func(api API) error {
		var err error
		sent, err = api.Send(chat, msg.Text, sendOptions(msg))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("send to %d: %w", chatID, err)
	}
	logger.Debug(ctx, logger.ComponentSender, "notify.sent",
		slog.Int64("chat_id", chatID),
		slog.Int("message_id", sent.ID),
		slog.Bool("kb", len(msg.Buttons) > 0),
	)
	return sent.ID, nil
}

// Edit replaces text and keyboard of messageID. Photos cannot be edited in.
func (m *Messenger) Edit(ctx context.Context, chatID int64, messageID int, msg notify.Message) error {
	stored := tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
	err := m.client.call(ctx, "notify.edit", "editMessageText", func(api API) error {
		_, err := api.Edit(stored, msg.Text, sendOptions(msg))
		return err
	})
	if err != nil {
		return fmt.Errorf("edit %d/%d: %w", chatID, messageID, err)
	}
	logger.Debug(ctx, logger.ComponentSender, "notify.edited",
		slog.Int64("chat_id", chatID),
		slog.Int("message_id", messageID),
	)
	return nil
}

func sendOptions(msg notify.Message) *tele.SendOptions {
	return &tele.SendOptions{ReplyMarkup: markup(msg)}
}

// markup renders the keyboard of msg. ForceReply wins over buttons.
func markup(msg notify.Message) *tele.ReplyMarkup {
	if msg.ForceReply {
		return keyboard.ForceReply()
	}
	rows := make([][]keyboard.InlineBtn, 0, len(msg.Buttons))
	for _, row := range msg.Buttons {
		r := make([]keyboard.InlineBtn, 0, len(row))
		for _, b := range row {
			r = append(r, keyboard.InlineBtn{
				Text:   b.Text,
				Unique: b.Action.Unique(),
				Data:   b.Action.Payload(),
			})
		}
		rows = append(rows, r)
	}
	return keyboard.Inline(rows...)
}
