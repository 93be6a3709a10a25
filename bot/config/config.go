// Package config loads the dispatch bot configuration: the shared core
// sections plus the order flow, staff, storage and broker settings.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/dispatchbot/bot/intake"
	"github.com/m3rciful/dispatchbot/bot/session"
	coreconfig "github.com/m3rciful/dispatchbot/core/config"
	coredatabase "github.com/m3rciful/dispatchbot/core/database"
)

// Intake modes.
const (
	ModeStrict = "strict"
	ModeLoose  = "loose"
)

// StaffConfig binds the staff review group.
type StaffConfig struct {
	ChatID int64 `yaml:"chat_id" envconfig:"STAFF_CHAT_ID"`
	// AdminsOnly restricts approvals to group administrators.
	AdminsOnly bool `yaml:"admins_only" envconfig:"STAFF_ADMINS_ONLY"`
}

// FlowConfig holds the timings of the order flow.
type FlowConfig struct {
	HoldSeconds          int    `yaml:"hold_seconds" envconfig:"FLOW_HOLD_SECONDS"`
	DriverWindowMinutes  int    `yaml:"driver_window_minutes" envconfig:"FLOW_DRIVER_WINDOW_MINUTES"`
	GiveupMinutes        int    `yaml:"giveup_minutes" envconfig:"FLOW_GIVEUP_MINUTES"`
	ButtonTTLSeconds     int    `yaml:"button_ttl_seconds" envconfig:"BUTTON_TTL_SEC"`
	SessionTTLMinutes    int    `yaml:"session_ttl_minutes" envconfig:"FLOW_SESSION_TTL_MINUTES"`
	SweepIntervalMinutes int    `yaml:"sweep_interval_minutes" envconfig:"FLOW_SWEEP_INTERVAL_MINUTES"`
	TINEnabled           bool   `yaml:"tin_enabled" envconfig:"FLOW_TIN_ENABLED"`
	RefStyle             string `yaml:"ref_style" envconfig:"FLOW_REF_STYLE"`
	BroadcastConcurrency int    `yaml:"broadcast_concurrency" envconfig:"FLOW_BROADCAST_CONCURRENCY"`
}

// IntakeConfig tunes the order summary classifier.
type IntakeConfig struct {
	Mode          string              `yaml:"mode" envconfig:"INTAKE_MODE"`
	MinTextLength int                 `yaml:"min_text_length" envconfig:"INTAKE_MIN_TEXT_LENGTH"`
	CountryCode   string              `yaml:"country_code" envconfig:"INTAKE_COUNTRY_CODE"`
	Anchors       intake.AnchorConfig `yaml:"anchors" ignored:"true"`
}

// SupportConfig is shown to customers as the escape hatch.
type SupportConfig struct {
	Phone string `yaml:"phone" envconfig:"SUPPORT_PHONE"`
}

// TextsConfig points at an optional catalog override.
type TextsConfig struct {
	Path string `yaml:"path" envconfig:"TEXTS_PATH"`
}

// RedisConfig enables the shared receipt ledger when Addr is set.
type RedisConfig struct {
	Addr            string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password        string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB              int    `yaml:"db" envconfig:"REDIS_DB"`
	ReceiptTTLHours int    `yaml:"receipt_ttl_hours" envconfig:"REDIS_RECEIPT_TTL_HOURS"`
}

// AMQPConfig enables milestone publishing when URL is set.
type AMQPConfig struct {
	URL      string `yaml:"url" envconfig:"AMQP_URL"`
	Exchange string `yaml:"exchange" envconfig:"AMQP_EXCHANGE"`
}

// DriverSeed is a roster entry upserted at startup.
type DriverSeed struct {
	ID    int64  `yaml:"id"`
	Name  string `yaml:"name"`
	Phone string `yaml:"phone"`
}

// Config is the full bot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Staff    StaffConfig         `yaml:"staff"`
	Flow     FlowConfig          `yaml:"flow"`
	Intake   IntakeConfig        `yaml:"intake"`
	Support  SupportConfig       `yaml:"support"`
	Texts    TextsConfig         `yaml:"texts"`
	Redis    RedisConfig         `yaml:"redis"`
	AMQP     AMQPConfig          `yaml:"amqp"`
	Drivers  []DriverSeed        `yaml:"drivers" ignored:"true"`
}

// Load reads path, overlays the environment and normalizes the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config { return &c.Config }

// Normalize validates the configuration and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	c.Database.Defaults()

	if c.Staff.ChatID == 0 {
		return fmt.Errorf("staff.chat_id is required")
	}
	if c.Telegram.AdminID == 0 {
		return fmt.Errorf("telegram.admin_id is required for owner commands")
	}

	f := &c.Flow
	if f.HoldSeconds <= 0 {
		f.HoldSeconds = 60
	}
	if f.DriverWindowMinutes <= 0 {
		f.DriverWindowMinutes = 30
	}
	if f.GiveupMinutes <= 0 {
		f.GiveupMinutes = 2
	}
	if f.ButtonTTLSeconds <= 0 {
		f.ButtonTTLSeconds = 900
	}
	if f.SessionTTLMinutes <= 0 {
		f.SessionTTLMinutes = 90
	}
	if f.SweepIntervalMinutes <= 0 {
		f.SweepIntervalMinutes = 5
	}
	if f.BroadcastConcurrency <= 0 {
		f.BroadcastConcurrency = 8
	}
	switch style := strings.ToLower(strings.TrimSpace(f.RefStyle)); style {
	case "", string(session.RefRich), string(session.RefShort):
		f.RefStyle = string(session.ParseRefStyle(style))
	default:
		return fmt.Errorf("invalid flow.ref_style %q; allowed: rich, short", f.RefStyle)
	}

	in := &c.Intake
	switch mode := strings.ToLower(strings.TrimSpace(in.Mode)); mode {
	case "":
		in.Mode = ModeStrict
	case ModeStrict, ModeLoose:
		in.Mode = mode
	default:
		return fmt.Errorf("invalid intake.mode %q; allowed: strict, loose", in.Mode)
	}
	if in.MinTextLength <= 0 {
		in.MinTextLength = intake.DefaultMinTextLength
	}
	if strings.TrimSpace(in.CountryCode) == "" {
		in.CountryCode = intake.DefaultCountryCode
	}

	if c.Redis.ReceiptTTLHours <= 0 {
		c.Redis.ReceiptTTLHours = 24 * 30
	}

	for i, d := range c.Drivers {
		if d.ID == 0 {
			return fmt.Errorf("drivers[%d]: id is required", i)
		}
		c.Drivers[i].Name = strings.TrimSpace(d.Name)
		c.Drivers[i].Phone = strings.TrimSpace(d.Phone)
	}
	return nil
}

// Hold is the approval hold duration.
func (f FlowConfig) Hold() time.Duration { return time.Duration(f.HoldSeconds) * time.Second }

// DriverWindow is how long drivers get to accept a job.
func (f FlowConfig) DriverWindow() time.Duration {
	return time.Duration(f.DriverWindowMinutes) * time.Minute
}

// GiveUpWindow is how long an assigned driver may release a job.
func (f FlowConfig) GiveUpWindow() time.Duration { return time.Duration(f.GiveupMinutes) * time.Minute }

// ButtonTTL bounds the age of interactive buttons.
func (f FlowConfig) ButtonTTL() time.Duration { return time.Duration(f.ButtonTTLSeconds) * time.Second }

// SessionTTL is the idle lifetime of a session.
func (f FlowConfig) SessionTTL() time.Duration {
	return time.Duration(f.SessionTTLMinutes) * time.Minute
}

// SweepInterval is the period of the session sweep.
func (f FlowConfig) SweepInterval() time.Duration {
	return time.Duration(f.SweepIntervalMinutes) * time.Minute
}

// Options returns the classifier options.
func (i IntakeConfig) Options() intake.Options {
	return intake.Options{Strict: i.Mode != ModeLoose, MinTextLength: i.MinTextLength}
}

// ReceiptTTL is how long the redis ledger remembers a file.
func (r RedisConfig) ReceiptTTL() time.Duration {
	return time.Duration(r.ReceiptTTLHours) * time.Hour
}
