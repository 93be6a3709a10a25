package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/m3rciful/dispatchbot/core/logger"
	tghelpers "github.com/m3rciful/dispatchbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures the per-user rate limit.
type RateLimitOptions struct {
	Interval time.Duration
	// Exclude lists update kinds that bypass the limit: callback, message,
	// inline_query or other.
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
	Clock     clockwork.Clock
}

// limiter tracks the last accepted update per user.
type limiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     map[int64]time.Time
}

// allow records now for user when the interval has passed since the last
// accepted update. Stale entries are dropped as the map grows.
func (l *limiter) allow(user int64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if at, ok := l.last[user]; ok && now.Sub(at) < l.interval {
		return false
	}
	if len(l.last) >= 1024 {
		for id, at := range l.last {
			if now.Sub(at) >= l.interval {
				delete(l.last, id)
			}
		}
	}
	l.last[user] = now
	return true
}

func updateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	case upd.Query != nil:
		return "inline_query"
	}
	return "other"
}

// RateLimitMiddleware drops updates that arrive less than Interval after the
// previous accepted update from the same user. OnLimited runs for dropped
// updates so callbacks can still be answered.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	lim := &limiter{interval: opts.Interval, last: make(map[int64]time.Time)}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			kind := updateKind(c.Update())
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}
			if lim.allow(user.ID, clock.Now()) {
				return next(c)
			}
			logger.Warn(tghelpers.BuildContext(c), logger.ComponentTG, "tg.rate_limit",
				slog.String("status", "rate_limited"),
				slog.String("op", kind),
				slog.Int64("user_id", user.ID),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
