package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/m3rciful/dispatchbot/core/config"
	"github.com/m3rciful/dispatchbot/core/logger"
	tghelpers "github.com/m3rciful/dispatchbot/core/telegram/helpers"
	tgsender "github.com/m3rciful/dispatchbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Middleware is a global bot middleware registered via bot.Use.
type Middleware struct {
	Name string
	Use  tele.MiddlewareFunc
}

// Route binds a handler to a telebot endpoint (a command, tele.OnText, ...).
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	// DispatcherOptions configure the outbound queue unless Dispatcher is set.
	DispatcherOptions tgsender.Options
	Dispatcher        *tgsender.Dispatcher

	Middlewares []Middleware
	Routes      []Route

	// OnStart runs after routes are installed and before updates flow.
	OnStart func(ctx context.Context, rt Runtime) error
	// OnStop runs after the poller stopped and before the queue closes.
	OnStop func(ctx context.Context, rt Runtime) error
}

// Runtime exposes the running components to lifecycle hooks.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// onError is the last stop for handler errors. Values with a Code were
// already summarized by the router and are logged at debug.
func onError(err error, c tele.Context) {
	ctx := context.Background()
	if c != nil {
		ctx = tghelpers.BuildContext(c)
	}
	level := slog.LevelError
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		level = slog.LevelDebug
	}
	logger.Event(ctx, logger.ComponentTG, level, "handler.error",
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
	)
}

// RunTelegram builds the bot, installs middlewares and routes, and serves
// updates until ctx is done. A canceled ctx is a clean shutdown.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := opts.Config
	if cfg == nil {
		return errors.New("telegram: nil config provided")
	}
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	poller, modeAttrs := newPoller(cfg)
	start := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.Telegram.Token,
		Poller:  poller,
		Client:  newHTTPClient(),
		OnError: onError,
	})
	if err != nil {
		return fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	logger.Info(ctx, logger.ComponentTG, "tg.mode", append(modeAttrs,
		slog.String("username", bot.Me.Username),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)...)

	if cfg.Telegram.RunMode == coreconfig.RunModeLongpoll {
		// a webhook left over from an earlier deployment blocks getUpdates
		if err := bot.RemoveWebhook(cfg.Telegram.DropPending); err != nil {
			logger.Warn(ctx, logger.ComponentTG, "tg.webhook.delete",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		}
	}

	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = tgsender.NewDispatcher(opts.DispatcherOptions)
	}
	tghelpers.SetDispatcher(dispatcher)
	defer func() {
		dispatcher.Close()
		tghelpers.SetDispatcher(nil)
	}()

	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, route := range opts.Routes {
		if route.Endpoint != nil && route.Handler != nil {
			bot.Handle(route.Endpoint, route.Handler)
		}
	}
	InitBotCommands(bot, reg)

	rt := Runtime{Bot: bot, Dispatcher: dispatcher, Registry: reg}
	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		bot.Start()
	}()
	select {
	case <-ctx.Done():
		bot.Stop()
		<-done
	case <-done:
	}

	if opts.OnStop != nil {
		// ctx is already canceled here; hooks get a fresh one
		if err := opts.OnStop(context.WithoutCancel(ctx), rt); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
