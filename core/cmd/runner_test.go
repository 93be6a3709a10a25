package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/dispatchbot/core/config"
	coretelegram "github.com/m3rciful/dispatchbot/core/telegram"
)

type stubConfig struct{ core coreconfig.Config }

func (s *stubConfig) CoreConfig() *coreconfig.Config { return &s.core }

type stubApp struct {
	started, stopped bool
}

func (a *stubApp) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{
		OnStart: func(context.Context, coretelegram.Runtime) error { a.started = true; return nil },
		OnStop:  func(context.Context, coretelegram.Runtime) error { a.stopped = true; return nil },
	}, nil
}

func TestRunWiresLifecycle(t *testing.T) {
	t.Setenv("BOT_CONFIG", "/etc/bot.yaml")
	app := &stubApp{}
	var loaded string
	loggerClosed := false

	err := Run(Options{
		ConfigEnvVar: "BOT_CONFIG",
		LoadConfig: func(path string) (ConfigCarrier, error) {
			loaded = path
			return &stubConfig{}, nil
		},
		Bootstrap:      func(ConfigCarrier) (TelegramApp, error) { return app, nil },
		ShutdownLogger: func() error { loggerClosed = true; return nil },
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			require.NoError(t, opts.OnStart(ctx, coretelegram.Runtime{}))
			return opts.OnStop(ctx, coretelegram.Runtime{})
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "/etc/bot.yaml", loaded)
	assert.True(t, app.started)
	assert.True(t, app.stopped)
	assert.True(t, loggerClosed)
}

func TestRunRequiresConfigPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	err := Run(Options{
		LoadConfig: func(string) (ConfigCarrier, error) { return &stubConfig{}, nil },
		Bootstrap:  func(ConfigCarrier) (TelegramApp, error) { return &stubApp{}, nil },
	})
	assert.ErrorContains(t, err, "CONFIG_PATH")
}

func TestRunStopsOnBootstrapError(t *testing.T) {
	boom := errors.New("db down")
	ran := false
	err := Run(Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig:        func(string) (ConfigCarrier, error) { return &stubConfig{}, nil },
		Bootstrap:         func(ConfigCarrier) (TelegramApp, error) { return nil, boom },
		RunTelegram: func(context.Context, coretelegram.RunOptions) error {
			ran = true
			return nil
		},
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, ran)
}
