// Package config holds the settings shared by every bot built on core:
// Telegram transport, webhook, logging and rate limiting.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Run modes.
const (
	RunModeWebhook  = "webhook"
	RunModeLongpoll = "longpoll"
)

// Update kinds accepted by rate_limit.exclude_updates.
const (
	UpdateCallback    = "callback"
	UpdateMessage     = "message"
	UpdateInlineQuery = "inline_query"
)

// TelegramConfig holds the bot identity and update source.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds of 0 selects the default.
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
	// DropPending discards updates queued while the bot was offline.
	DropPending bool `yaml:"drop_pending" envconfig:"TELEGRAM_DROP_PENDING"`
}

// WebhookConfig specifies the webhook listener.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
	// SecretToken is checked against X-Telegram-Bot-Api-Secret-Token.
	SecretToken string `yaml:"secret_token" envconfig:"WEBHOOK_SECRET_TOKEN"`
}

// LoggingConfig configures core/logger.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir" envconfig:"LOG_DIR"`
	BotFile     string `yaml:"bot_file"`
	// ErrorsFile additionally receives WARN and above.
	ErrorsFile string `yaml:"errors_file"`
	// Profile is "prod", "dev" or "debug"; dev and debug default to kv output.
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// RateLimitConfig sets the minimum interval between updates of one user.
// ExcludeUpdates lists update kinds that bypass the limit.
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the core sections. Bots embed it inline.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Load reads and normalizes a core-only config file.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Decode fills out from the YAML file at path and then overlays environment
// variables.
func Decode(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := envconfig.Process("", out); err != nil {
		return fmt.Errorf("config env overlay: %w", err)
	}
	return nil
}

// Normalize validates cfg and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	if err := cfg.normalizeRunMode(); err != nil {
		return err
	}
	return cfg.RateLimit.normalize()
}

func (c *Config) normalizeRunMode() error {
	mode := strings.ToLower(strings.TrimSpace(c.Telegram.RunMode))
	switch mode {
	case "", "polling", RunModeLongpoll:
		if c.Telegram.LongPollTimeoutSeconds < 0 {
			return errors.New("telegram.longpoll_timeout_seconds must be >= 0")
		}
		c.Telegram.RunMode = RunModeLongpoll
		return nil
	case RunModeWebhook:
		w := c.Webhook
		switch {
		case strings.TrimSpace(w.URL) == "":
			return errors.New("webhook.url is required in webhook mode")
		case strings.TrimSpace(w.Listen) == "":
			return errors.New("webhook.listen is required in webhook mode")
		case w.Port <= 0:
			return errors.New("webhook.port must be > 0 in webhook mode")
		}
		c.Telegram.RunMode = RunModeWebhook
		return nil
	}
	return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", c.Telegram.RunMode)
}

func (r *RateLimitConfig) normalize() error {
	if r.IntervalMS < 0 {
		return errors.New("rate_limit.interval_ms must be >= 0")
	}
	allowed := []string{UpdateCallback, UpdateMessage, UpdateInlineQuery}
	kinds := r.ExcludeUpdates[:0]
	for _, v := range r.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if !slices.Contains(allowed, key) {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: %s", v, strings.Join(allowed, ", "))
		}
		kinds = append(kinds, key)
	}
	r.ExcludeUpdates = kinds
	return nil
}
