package telegram

import (
	"strings"
	"time"

	coreconfig "github.com/m3rciful/dispatchbot/core/config"
	"github.com/m3rciful/dispatchbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// DefaultMiddlewares returns the global chain in the order it runs: panic
// recovery, the per-user rate limit when configured, request context, then
// reply counters. onLimited answers throttled updates; nil drops them.
func DefaultMiddlewares(cfg *coreconfig.Config, onLimited tele.HandlerFunc) []Middleware {
	chain := []Middleware{{Name: "recover", Use: middleware.RecoverMiddleware}}
	if limit := rateLimit(cfg, onLimited); limit != nil {
		chain = append(chain, Middleware{Name: "rate_limit", Use: limit})
	}
	return append(chain,
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware},
		Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
	)
}

func rateLimit(cfg *coreconfig.Config, onLimited tele.HandlerFunc) tele.MiddlewareFunc {
	if cfg == nil || cfg.RateLimit.IntervalMS <= 0 {
		return nil
	}
	exclude := map[string]struct{}{}
	for _, kind := range cfg.RateLimit.ExcludeUpdates {
		exclude[strings.ToLower(kind)] = struct{}{}
	}
	return middleware.RateLimitMiddleware(middleware.RateLimitOptions{
		Interval:  time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
		Exclude:   exclude,
		OnLimited: onLimited,
	})
}
