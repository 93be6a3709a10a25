package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/dispatchbot/core/config"
	coredatabase "github.com/m3rciful/dispatchbot/core/database"
)

func stubOptions(t *testing.T) Options {
	t.Helper()
	return Options{
		Config:     &coreconfig.Config{},
		LoggerInit: func(*coreconfig.Config) error { return nil },
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			// lib/pq connects lazily, so Open never dials here.
			return sqlx.Open("postgres", "postgres://localhost:1/none?sslmode=disable")
		},
		Migrate: func(coredatabase.Config) (coredatabase.MigrationReport, error) {
			return coredatabase.MigrationReport{From: 2, To: 3, Applied: []string{"000003_create_milestones.up.sql"}}, nil
		},
	}
}

func TestRunExecutesSeedersInOrder(t *testing.T) {
	opts := stubOptions(t)
	var order []string
	opts.Seeders = []Seeder{
		SeederFunc(func(context.Context, *sqlx.DB) error { order = append(order, "drivers"); return nil }),
		nil,
		SeederFunc(func(context.Context, *sqlx.DB) error { order = append(order, "extra"); return nil }),
	}

	res, err := Run(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.DB.Close() })
	assert.Equal(t, []string{"drivers", "extra"}, order)
	assert.Equal(t, uint(3), res.Migration.To)
}

func TestRunStopsOnSeederFailure(t *testing.T) {
	opts := stubOptions(t)
	boom := errors.New("boom")
	ran := false
	opts.Seeders = []Seeder{
		SeederFunc(func(context.Context, *sqlx.DB) error { return boom }),
		SeederFunc(func(context.Context, *sqlx.DB) error { ran = true; return nil }),
	}

	_, err := Run(opts)
	assert.ErrorIs(t, err, boom)
	assert.False(t, ran)
}

func TestRunRequiresConfig(t *testing.T) {
	_, err := Run(Options{})
	assert.Error(t, err)
}

func TestRunStopsOnMigrationFailure(t *testing.T) {
	opts := stubOptions(t)
	boom := errors.New("dirty schema")
	opts.Migrate = func(coredatabase.Config) (coredatabase.MigrationReport, error) {
		return coredatabase.MigrationReport{}, boom
	}
	seeded := false
	opts.Seeders = []Seeder{SeederFunc(func(context.Context, *sqlx.DB) error { seeded = true; return nil })}

	_, err := Run(opts)
	assert.ErrorIs(t, err, boom)
	assert.False(t, seeded)
}
