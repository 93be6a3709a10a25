// Package cmd is the shared main for bots: it loads config, bootstraps the
// app and runs it until SIGINT or SIGTERM.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	coreconfig "github.com/m3rciful/dispatchbot/core/config"
	"github.com/m3rciful/dispatchbot/core/logger"
	coretelegram "github.com/m3rciful/dispatchbot/core/telegram"
)

// ConfigCarrier is a bot config embedding the core sections.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp is a bootstrapped bot.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
}

// Options describe how to load, bootstrap and run a bot.
type Options struct {
	// ConfigEnvVar names the variable holding the config path (CONFIG_PATH).
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(cfg ConfigCarrier) (TelegramApp, error)

	// Test seams; nil selects logger.Shutdown and coretelegram.RunTelegram.
	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
}

func (o Options) configPath() (string, error) {
	env := o.ConfigEnvVar
	if env == "" {
		env = "CONFIG_PATH"
	}
	if p := os.Getenv(env); p != "" {
		return p, nil
	}
	if o.DefaultConfigPath != "" {
		return o.DefaultConfigPath, nil
	}
	return "", fmt.Errorf("cmd: config path not provided via %s or DefaultConfigPath", env)
}

// Run loads the config, bootstraps the app and serves updates until a
// shutdown signal arrives.
func Run(opts Options) error {
	if opts.LoadConfig == nil || opts.Bootstrap == nil {
		return errors.New("cmd: LoadConfig and Bootstrap are required")
	}
	path, err := opts.configPath()
	if err != nil {
		return err
	}

	log.Printf("loading config: %s", path)
	cfg, err := opts.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("cmd: load config: %w", err)
	}
	if cfg.CoreConfig() == nil {
		return errors.New("cmd: loaded config is missing core configuration")
	}

	startedAt := time.Now()
	app, err := opts.Bootstrap(cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap: %w", err)
	}
	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if err := shutdownLogger(); err != nil {
			log.Printf("logger shutdown: %v", err)
		}
	}()

	runOpts, err := app.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options: %w", err)
	}
	wrapLifecycle(&runOpts, startedAt)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}
	return run(ctx, runOpts)
}

// wrapLifecycle adds the ready and shutdown log lines around the app hooks.
func wrapLifecycle(opts *coretelegram.RunOptions, startedAt time.Time) {
	start, stop := opts.OnStart, opts.OnStop
	opts.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if start != nil {
			if err := start(ctx, rt); err != nil {
				return err
			}
		}
		logger.Info(ctx, logger.ComponentApp, "ready",
			slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
		)
		return nil
	}
	opts.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.Info(ctx, logger.ComponentApp, "shutdown")
		if stop != nil {
			return stop(ctx, rt)
		}
		return nil
	}
}
