package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/dispatchbot/core/config"
)

const sampleYAML = `
telegram:
  token: "123:abc"
  admin_id: 42
staff:
  chat_id: -1001
  admins_only: true
flow:
  tin_enabled: true
  ref_style: Short
intake:
  mode: loose
  anchors:
    ref: 'ORD-\d+'
support:
  phone: "+251900000000"
drivers:
  - id: 7
    name: " Abel "
    phone: "+251911000001"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, int64(42), cfg.CoreConfig().Telegram.AdminID)
	assert.Equal(t, coreconfig.RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, int64(-1001), cfg.Staff.ChatID)
	assert.True(t, cfg.Staff.AdminsOnly)

	assert.Equal(t, 60*time.Second, cfg.Flow.Hold())
	assert.Equal(t, 30*time.Minute, cfg.Flow.DriverWindow())
	assert.Equal(t, 2*time.Minute, cfg.Flow.GiveUpWindow())
	assert.Equal(t, 15*time.Minute, cfg.Flow.ButtonTTL())
	assert.Equal(t, 90*time.Minute, cfg.Flow.SessionTTL())
	assert.Equal(t, 5*time.Minute, cfg.Flow.SweepInterval())
	assert.Equal(t, 8, cfg.Flow.BroadcastConcurrency)
	assert.Equal(t, "short", cfg.Flow.RefStyle)
	assert.True(t, cfg.Flow.TINEnabled)

	assert.Equal(t, ModeLoose, cfg.Intake.Mode)
	assert.False(t, cfg.Intake.Options().Strict)
	assert.Equal(t, 50, cfg.Intake.Options().MinTextLength)
	assert.Equal(t, "+251", cfg.Intake.CountryCode)
	assert.Equal(t, `ORD-\d+`, cfg.Intake.Anchors.Ref)

	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, "migrations", cfg.Database.MigrationsDir)
	assert.Equal(t, 30*24*time.Hour, cfg.Redis.ReceiptTTL())

	require.Len(t, cfg.Drivers, 1)
	assert.Equal(t, "Abel", cfg.Drivers[0].Name)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("STAFF_CHAT_ID", "-2002")
	t.Setenv("FLOW_HOLD_SECONDS", "5")
	t.Setenv("SUPPORT_PHONE", "+251911999999")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, int64(-2002), cfg.Staff.ChatID)
	assert.Equal(t, 5*time.Second, cfg.Flow.Hold())
	assert.Equal(t, "+251911999999", cfg.Support.Phone)
}

func TestNormalizeRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Config)
		want string
	}{
		{name: "missing staff chat", edit: func(c *Config) { c.Staff.ChatID = 0 }, want: "staff.chat_id"},
		{name: "bad ref style", edit: func(c *Config) { c.Flow.RefStyle = "long" }, want: "flow.ref_style"},
		{name: "bad intake mode", edit: func(c *Config) { c.Intake.Mode = "fuzzy" }, want: "intake.mode"},
		{name: "driver without id", edit: func(c *Config) { c.Drivers = []DriverSeed{{Name: "x"}} }, want: "drivers[0]"},
		{name: "missing token", edit: func(c *Config) { c.Telegram.Token = "" }, want: "telegram token"},
		{name: "missing owner", edit: func(c *Config) { c.Telegram.AdminID = 0 }, want: "telegram.admin_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Staff: StaffConfig{ChatID: -1}}
			cfg.Telegram.Token = "t"
			cfg.Telegram.AdminID = 1
			tt.edit(cfg)
			err := cfg.Normalize()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
