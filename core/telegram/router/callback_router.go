package router

import (
	"log/slog"

	tg "github.com/m3rciful/dispatchbot/core/telegram"
	"github.com/m3rciful/dispatchbot/core/telegram/callbacks"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customise callback routing.
type CallbackOptions struct {
	// NotFound is used when the registry has no not-found handler.
	NotFound tele.HandlerFunc
}

// CallbackRoute dispatches every callback query by its unique key. Handlers
// answer the query themselves since Telegram accepts one answer.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	route := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		key, _ := callbacks.ParseCallbackData(c.Callback())
		name := handlerName("callback.", key)

		if h, ok := reg.GetCallback(key); ok {
			return handled(c, name, h, slog.String("cb_key", key))
		}
		fallback := reg.CallbackNotFound()
		if fallback == nil {
			fallback = opts.NotFound
		}
		return handled(c, name, fallback,
			slog.String("cb_key", key),
			slog.String("reason", "not_found"),
		)
	}
	return tg.Route{Endpoint: tele.OnCallback, Handler: wrap(route)}
}
