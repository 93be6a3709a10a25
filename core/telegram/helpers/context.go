// Package helpers carries per-update context and send helpers shared by
// handlers.
package helpers

import (
	"context"

	"github.com/m3rciful/dispatchbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const requestKey = "request_ctx"

// StoreContext keeps ctx on c for later handlers and helpers.
func StoreContext(c tele.Context, ctx context.Context) {
	if c != nil && ctx != nil {
		c.Set(requestKey, ctx)
	}
}

// ContextFrom returns the context stored on c, if any.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(requestKey).(context.Context)
	return ctx, ok && ctx != nil
}

// BuildContext returns the request context of c, creating and storing one
// with rid and update ids when the logger middleware has not run.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := ContextFrom(c); ok {
		return ctx
	}
	if c == nil {
		return context.Background()
	}
	var chatID, userID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}
	updateID := c.Update().ID
	rid, _ := c.Get("rid").(string)
	if rid == "" {
		rid = logger.BuildRID(updateID, chatID, userID)
	}
	ctx := logger.WithRID(context.Background(), rid)
	ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component(logger.ComponentTG))
	StoreContext(c, ctx)
	return ctx
}

// WithHandler names the handler on the stored request context.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := logger.WithHandler(BuildContext(c), handler)
	StoreContext(c, ctx)
	return ctx
}
