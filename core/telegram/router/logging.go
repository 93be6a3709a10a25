// Package router turns the registry into telebot routes and writes one
// summary line per handled update.
package router

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/dispatchbot/core/logger"
	tghelpers "github.com/m3rciful/dispatchbot/core/telegram/helpers"
	"github.com/m3rciful/dispatchbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// handled runs fn as the named handler and logs its summary. A nil fn is
// logged as skipped.
func handled(c tele.Context, name string, fn tele.HandlerFunc, extras ...slog.Attr) error {
	start := time.Now()
	ctx := tghelpers.WithHandler(c, name)

	status, outcome := "ok", "ok"
	var err error
	if fn == nil {
		status = "skip"
	} else if err = fn(c); err != nil {
		status, outcome = "fail", "fail"
	}

	n := middleware.GetCounters(c)
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("handler", name),
		slog.String("outcome", outcome),
		slog.Int("messages", n.Messages),
		slog.Bool("kb", n.KB),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	}
	if c.Callback() != nil {
		attrs = append(attrs, slog.Bool("answered", n.Answered))
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)
	}
	logger.Info(ctx, logger.ComponentTG, "handler.handled", append(attrs, extras...)...)
	return err
}

// handlerName turns a command or callback key into a log-friendly name.
func handlerName(prefix, key string) string {
	key = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(key), "/"))
	if key == "" {
		key = "unknown"
	}
	return prefix + strings.ReplaceAll(key, " ", "_")
}

// errorCode prefers an explicit Code() and falls back to the error's type
// name, upper-cased.
func errorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	typ := fmt.Sprintf("%T", err)
	if i := strings.LastIndexByte(typ, '.'); i >= 0 {
		typ = typ[i+1:]
	}
	return strings.ToUpper(typ)
}

func wrap(h tele.HandlerFunc) tele.HandlerFunc {
	return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
}
