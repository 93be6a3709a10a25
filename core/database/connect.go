package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/dispatchbot/core/logger"
)

const (
	connectTimeout = 5 * time.Second
	readyPoll      = 2 * time.Second
)

func (c Config) logAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("host", c.Host),
		slog.String("port", c.Port),
		slog.String("db", c.Name),
	}
}

// Connect opens a pooled sqlx handle and pings it.
func Connect(cfg Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	if err == nil {
		if err = db.PingContext(ctx); err != nil {
			_ = db.Close()
		}
	}
	took := logger.RoundMS(time.Since(start))
	if err != nil {
		logger.Error(ctx, logger.ComponentDB, "db.connect", append(cfg.logAttrs(),
			slog.String("status", "fail"),
			slog.Duration("duration", took),
			slog.String("err", err.Error()),
		)...)
		return nil, fmt.Errorf("db connect %s:%s/%s: %w", cfg.Host, cfg.Port, cfg.Name, err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)
	logger.Info(ctx, logger.ComponentDB, "db.connect", append(cfg.logAttrs(),
		slog.String("status", "ok"),
		slog.Int("pool_open", cfg.MaxConnections),
		slog.Duration("duration", took),
	)...)
	return db, nil
}

// WaitForPostgres pings dsn until it answers or timeout elapses.
func WaitForPostgres(dsn string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	tick := time.NewTicker(readyPoll)
	defer tick.Stop()
	for {
		err = db.PingContext(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout reached waiting for database: %w", err)
		case <-tick.C:
		}
	}
}
