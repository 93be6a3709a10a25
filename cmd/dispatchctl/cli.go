package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/alecthomas/kong"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/dispatchbot/bot/config"
	coredatabase "github.com/m3rciful/dispatchbot/core/database"
	"github.com/m3rciful/dispatchbot/core/logger"
	tghelpers "github.com/m3rciful/dispatchbot/core/telegram/helpers"
)

// CLI is the dispatchctl command tree.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`
	Config  string           `help:"Path to the bot config file" type:"path" default:"config.yaml" env:"CONFIG_PATH" short:"c"`

	Export      ExportCmd      `cmd:"export" help:"Write orders as CSV"`
	ExportClear ExportClearCmd `cmd:"export-clear" help:"Archive orders to a CSV file and delete them"`
	History     HistoryCmd     `cmd:"history" help:"Show the milestone history of an order"`
	Drivers     DriversCmd     `cmd:"drivers" help:"Manage the driver roster (list, add, remove)"`
	Migrate     MigrateCmd     `cmd:"migrate" help:"Apply database migrations"`

	cfg *config.Config `kong:"-"`
	db  *sqlx.DB       `kong:"-"`
}

// load reads the config once and starts the logger with it.
func (c *CLI) load() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := logger.InitLogger(cfg.CoreConfig()); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	c.cfg = cfg
	return cfg, nil
}

// open connects to the database described by the config.
func (c *CLI) open() (*sqlx.DB, error) {
	if c.db != nil {
		return c.db, nil
	}
	cfg, err := c.load()
	if err != nil {
		return nil, err
	}
	db, err := coredatabase.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}
	c.db = db
	return db, nil
}

// Close releases the connection and flushes the logger.
func (c *CLI) Close() error {
	var errs []error
	if c.db != nil {
		errs = append(errs, c.db.Close())
	}
	if c.cfg != nil {
		errs = append(errs, logger.Shutdown())
	}
	return errors.Join(errs...)
}

// Window bounds a query by creation time.
type Window struct {
	Since string `help:"Only orders created at or after this date (2006-01-02 or 02.01.2006, optional 15:04)"`
	Until string `help:"Only orders created before this date"`
}

func (w Window) parse() (since, until time.Time, err error) {
	if w.Since != "" {
		if since, err = tghelpers.ParseFlexibleDate(w.Since, nil); err != nil {
			return since, until, fmt.Errorf("bad --since: %w", err)
		}
	}
	if w.Until != "" {
		if until, err = tghelpers.ParseFlexibleDate(w.Until, nil); err != nil {
			return since, until, fmt.Errorf("bad --until: %w", err)
		}
	}
	if !since.IsZero() && !until.IsZero() && !until.After(since) {
		return since, until, errors.New("--until must be after --since")
	}
	return since, until, nil
}

// MigrateCmd applies pending migrations.
type MigrateCmd struct{}

// Run executes the migrate command.
func (m *MigrateCmd) Run(cli *CLI) error {
	cfg, err := cli.load()
	if err != nil {
		return err
	}
	rep, err := coredatabase.Migrate(cfg.Database)
	if err != nil {
		return err
	}
	if len(rep.Applied) == 0 {
		fmt.Printf("schema at version %d, nothing to apply\n", rep.To)
		return nil
	}
	fmt.Printf("migrated %d -> %d in %s\n", rep.From, rep.To, rep.Took)
	for _, f := range rep.Applied {
		fmt.Println("  " + f)
	}
	return nil
}
