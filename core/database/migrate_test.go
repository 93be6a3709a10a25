package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpFilesSortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"000002_b.up.sql", "000001_a.up.sql", "000001_a.down.sql", "README.md",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "000003_dir.up.sql"), 0o755))

	assert.Equal(t, []string{"000001_a.up.sql", "000002_b.up.sql"}, upFiles(dir))
	assert.Nil(t, upFiles(filepath.Join(dir, "missing")))
}

func TestBetween(t *testing.T) {
	files := []string{"000001_a.up.sql", "000002_b.up.sql", "000003_c.up.sql", "bad.up.sql"}

	assert.Equal(t, []string{"000002_b.up.sql", "000003_c.up.sql"}, between(files, 1, 3))
	assert.Nil(t, between(files, 3, 3))
	assert.Equal(t, files[:1], between(files, 0, 1))
}

func TestResolveMigrationsDir(t *testing.T) {
	dir := t.TempDir()

	got, err := resolveMigrationsDir(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	_, err = resolveMigrationsDir(filepath.Join(dir, "nope"))
	assert.Error(t, err)
}

func TestConfigURL(t *testing.T) {
	cfg := Config{User: "bot", Password: "p@ss", Host: "db", Port: "5432", Name: "orders", SSLMode: "disable"}

	assert.Equal(t, "postgres://bot:p%40ss@db:5432/orders?sslmode=disable", cfg.URL())
	assert.Contains(t, cfg.DSN(), "dbname=orders")
}
