package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/dispatchbot/core/logger"
	"github.com/m3rciful/dispatchbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher routes helper sends through d. A nil d sends inline.
func SetDispatcher(d *sender.Dispatcher) {
	dispatcher.Store(d)
}

// enqueue hands run to the dispatcher. A full or closed queue degrades to an
// inline call so replies are not lost during shutdown.
func enqueue(c tele.Context, action, endpoint string, run func() error) error {
	d := dispatcher.Load()
	if d == nil {
		return run()
	}
	ctx := BuildContext(c)
	err := d.Enqueue(ctx, action, endpoint, run)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, logger.ComponentSender, "queue.fallback",
			slog.String("op", action),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}

// SendText replies with plain text in the current chat.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	args := make([]any, 0, 1)
	if len(opts) > 0 && opts[0] != nil {
		args = append(args, opts[0])
	}
	return enqueue(c, "send.text", "sendMessage", func() error {
		return c.Send(text, args...)
	})
}
