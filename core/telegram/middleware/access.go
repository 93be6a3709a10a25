package middleware

import (
	"log/slog"

	"github.com/m3rciful/dispatchbot/core/logger"
	tghelpers "github.com/m3rciful/dispatchbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// AdminOptions configures AdminOnlyMiddleware.
type AdminOptions struct {
	AdminID  int64
	OnReject tele.HandlerFunc
}

// AdminOnlyMiddleware passes only updates sent by AdminID. It fails closed:
// with no AdminID configured nobody is admitted.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if u := c.Sender(); u != nil && opts.AdminID != 0 && u.ID == opts.AdminID {
				return next(c)
			}
			logger.Info(tghelpers.BuildContext(c), logger.ComponentTG, "tg.admin_reject",
				slog.String("status", "skip"),
			)
			if opts.OnReject != nil {
				return opts.OnReject(c)
			}
			return nil
		}
	}
}
