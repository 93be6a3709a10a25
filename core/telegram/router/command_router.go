package router

import (
	"context"
	"log/slog"

	"github.com/m3rciful/dispatchbot/core/logger"
	tg "github.com/m3rciful/dispatchbot/core/telegram"
	"github.com/m3rciful/dispatchbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configure command routes.
type CommandRouteOptions struct {
	AdminID int64
	// OnAdminReject answers non-admins who send an admin command.
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes returns one route per registered command. Admin commands are
// gated before the handler runs.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	gate := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	})

	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	admin := 0
	for name, cmd := range cmds {
		h := wrap(cmd.Handler)
		if cmd.AdminOnly {
			h = gate(h)
			admin++
		}
		routes = append(routes, tg.Route{Endpoint: name, Handler: h})
	}

	logger.Info(context.Background(), logger.ComponentWire, "tg.wire.commands",
		slog.Int("commands", len(cmds)),
		slog.Int("admin", admin),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}
