package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/m3rciful/dispatchbot/core/logger"
	"github.com/m3rciful/dispatchbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/dispatchbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// seenUpdates remembers update ids for a short while so an update routed
// through several wrapped handlers is logged once.
type seenUpdates struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[int]time.Time
}

var received = &seenUpdates{ttl: 10 * time.Second, seen: make(map[int]time.Time)}

func (s *seenUpdates) first(id int, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, at := range s.seen {
		if now.Sub(at) > s.ttl {
			delete(s.seen, k)
		}
	}
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = now
	return true
}

// LoggerMiddleware stores the request context (rid and update ids) on c and
// writes one sampled update.received line per update. Message text is not
// logged; order summaries carry customer phone numbers.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()
		var chatID, userID int64
		if chat := c.Chat(); chat != nil {
			chatID = chat.ID
		}
		if user := c.Sender(); user != nil {
			userID = user.ID
		}
		now := time.Now()
		rid := logger.BuildRID(upd.ID, chatID, userID)
		c.Set("rid", rid)
		c.Set("update_start", now)

		ctx := logger.WithRID(context.Background(), rid)
		ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
		ctx = logger.WithLogger(ctx, logger.Component(logger.ComponentTG))
		tghelpers.StoreContext(c, ctx)

		if logger.ShouldSampleDebug() && received.first(upd.ID, now) {
			logger.Debug(ctx, logger.ComponentTG, "update.received", updateAttrs(c, upd)...)
		}
		return next(c)
	}
}

func updateAttrs(c tele.Context, upd tele.Update) []slog.Attr {
	attrs := []slog.Attr{slog.String("status", "ok")}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	switch {
	case upd.Callback != nil:
		key, payload := callbacks.ParseCallbackData(upd.Callback)
		attrs = append(attrs,
			slog.String("op", "callback"),
			slog.String("cb_key", logger.SanitizeLimit(key, 128)),
			slog.String("payload", logger.SanitizeLimit(payload, 256)),
		)
	case upd.Message != nil:
		m := upd.Message
		kind := "text"
		switch {
		case m.Photo != nil:
			kind = "photo"
		case m.Document != nil:
			kind = "document"
		}
		attrs = append(attrs,
			slog.String("op", kind),
			slog.Int("text_len", utf8.RuneCountInString(m.Text)),
		)
	}
	return attrs
}
