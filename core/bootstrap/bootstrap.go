// Package bootstrap brings up the infrastructure every bot needs before it
// can take updates: logging, the database and its schema, seed data.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/dispatchbot/core/config"
	coredatabase "github.com/m3rciful/dispatchbot/core/database"
	"github.com/m3rciful/dispatchbot/core/logger"
)

// Options select the config and, for tests, replace individual steps.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config

	// nil steps use logger.InitLogger, database.Connect and database.Migrate.
	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) (coredatabase.MigrationReport, error)

	// Seeders run in order after migrations; nil entries are skipped.
	Seeders []Seeder
}

// Result is the infrastructure handed to the bot. The caller owns DB.
type Result struct {
	DB        *sqlx.DB
	Migration coredatabase.MigrationReport
}

func (o *Options) fillDefaults() {
	if o.LoggerInit == nil {
		o.LoggerInit = logger.InitLogger
	}
	if o.Connect == nil {
		o.Connect = coredatabase.Connect
	}
	if o.Migrate == nil {
		o.Migrate = coredatabase.Migrate
	}
}

// Run executes the pipeline. On any failure after connecting, the database
// handle is closed before returning.
func Run(opts Options) (_ *Result, err error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config provided")
	}
	opts.fillDefaults()

	if err := opts.LoggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger: %w", err)
	}
	db, err := opts.Connect(opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database: %w", err)
	}
	defer func() {
		if err != nil {
			_ = db.Close()
		}
	}()

	report, err := opts.Migrate(opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: migrations: %w", err)
	}
	if err := seed(context.Background(), db, opts.Seeders); err != nil {
		return nil, err
	}
	return &Result{DB: db, Migration: report}, nil
}

func seed(ctx context.Context, db *sqlx.DB, seeders []Seeder) error {
	start := time.Now()
	ran := 0
	for i, s := range seeders {
		if s == nil {
			continue
		}
		if err := s.Seed(ctx, db); err != nil {
			logger.Error(ctx, logger.ComponentSeed, "seed.done",
				slog.String("status", "fail"),
				slog.Int("index", i),
				slog.String("err", err.Error()),
			)
			return fmt.Errorf("bootstrap: seeder %d: %w", i, err)
		}
		ran++
	}
	if ran > 0 {
		logger.Info(ctx, logger.ComponentSeed, "seed.done",
			slog.String("status", "ok"),
			slog.Int("count", ran),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		)
	}
	return nil
}
