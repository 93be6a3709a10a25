package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/m3rciful/dispatchbot/core/logger"
)

const readyTimeout = 30 * time.Second

// MigrationReport describes one migrate run.
type MigrationReport struct {
	From, To uint
	Applied  []string
	Took     time.Duration
}

// Migrate applies all pending up migrations from cfg.MigrationsDir and
// reports which files ran.
func Migrate(cfg Config) (MigrationReport, error) {
	ctx := context.Background()
	var rep MigrationReport
	fail := func(step string, err error) (MigrationReport, error) {
		logger.Error(ctx, logger.ComponentMigrate, "db.migrate",
			slog.String("status", "fail"),
			slog.String("op", step),
			slog.String("err", err.Error()),
		)
		return rep, fmt.Errorf("migrate %s: %w", step, err)
	}

	dsn := cfg.URL()
	if err := WaitForPostgres(dsn, readyTimeout); err != nil {
		return fail("wait", err)
	}
	dir, err := resolveMigrationsDir(cfg.MigrationsDir)
	if err != nil {
		return fail("resolve", err)
	}
	files := upFiles(dir)
	preview, more := logger.SummarizeStrings(files, 6)
	logger.Debug(ctx, logger.ComponentMigrate, "db.migrate.resolve",
		slog.String("path", dir),
		slog.Int("count", len(files)),
		slog.String("files_preview", preview),
		slog.Bool("files_truncated", more),
	)

	m, err := migrate.New("file://"+dir, dsn)
	if err != nil {
		return fail("init", err)
	}
	defer m.Close()

	rep.From, _, _ = m.Version()
	start := time.Now()
	err = m.Up()
	rep.Took = logger.RoundMS(time.Since(start))
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		rep.To = rep.From
	case err != nil:
		return fail("up", err)
	default:
		rep.To, _, _ = m.Version()
		rep.Applied = between(files, rep.From, rep.To)
	}

	applied, _ := logger.SummarizeStrings(rep.Applied, 6)
	logger.Info(ctx, logger.ComponentMigrate, "db.migrate",
		slog.String("status", "ok"),
		slog.Uint64("from_ver", uint64(rep.From)),
		slog.Uint64("to_ver", uint64(rep.To)),
		slog.Int("count", len(rep.Applied)),
		slog.String("files_preview", applied),
		slog.Duration("duration", rep.Took),
	)
	return rep, nil
}

func resolveMigrationsDir(dir string) (string, error) {
	if dir == "" {
		dir = DefaultMigrationsDir
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", err
	}
	return abs, nil
}

// upFiles lists the *.up.sql names in dir, sorted.
func upFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names
}

// between returns the files whose version prefix lies in (from, to].
func between(files []string, from, to uint) []string {
	var out []string
	for _, f := range files {
		prefix, _, _ := strings.Cut(f, "_")
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err == nil && uint(v) > from && uint(v) <= to {
			out = append(out, f)
		}
	}
	return out
}
