package telegram

import (
	"log/slog"
	"net"
	"strconv"
	"time"

	coreconfig "github.com/m3rciful/dispatchbot/core/config"

	tele "gopkg.in/telebot.v4"
)

const defaultLongPollTimeout = 10 * time.Second

// allowedUpdates is what the routes handle; Telegram filters the rest.
var allowedUpdates = []string{"message", "callback_query"}

// newPoller builds the update source for cfg and the attrs describing it.
func newPoller(cfg *coreconfig.Config) (tele.Poller, []slog.Attr) {
	if cfg.Telegram.RunMode == coreconfig.RunModeWebhook {
		w := cfg.Webhook
		listen := net.JoinHostPort(w.Listen, strconv.Itoa(w.Port))
		return &tele.Webhook{
				Listen:         listen,
				AllowedUpdates: allowedUpdates,
				DropUpdates:    cfg.Telegram.DropPending,
				SecretToken:    w.SecretToken,
				Endpoint:       &tele.WebhookEndpoint{PublicURL: w.URL},
			}, []slog.Attr{
				slog.String("mode", coreconfig.RunModeWebhook),
				slog.String("listen", listen),
				slog.String("public_url", w.URL),
			}
	}

	timeout := defaultLongPollTimeout
	if s := cfg.Telegram.LongPollTimeoutSeconds; s > 0 {
		timeout = time.Duration(s) * time.Second
	}
	return &tele.LongPoller{
			Timeout:        timeout,
			AllowedUpdates: allowedUpdates,
		}, []slog.Attr{
			slog.String("mode", coreconfig.RunModeLongpoll),
			slog.Duration("timeout", timeout),
		}
}
