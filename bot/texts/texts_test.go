package texts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogSubstitutesPlaceholders(t *testing.T) {
	c := Default()
	got := c.T("customer.delivered", Vars{"REF": "GG_AB12"})
	assert.Equal(t, "🎉 Order GG_AB12 delivered. Thank you!", got)
}

func TestCatalogFallsBackToKey(t *testing.T) {
	c := Default()
	assert.Equal(t, "missing.key", c.T("missing.key", Vars{"REF": "x"}))
}

func TestCatalogKeepsUnknownPlaceholders(t *testing.T) {
	c, err := Parse([]byte("a:\n  b: \"{REF} {OTHER}\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "GG_1 {OTHER}", c.T("a.b", Vars{"REF": "GG_1"}))
}

func TestLoadOverridesEmbeddedEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "texts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("customer:\n  canceled: \"Bye {REF}\"\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Bye GG_1", c.T("customer.canceled", Vars{"REF": "GG_1"}))
	assert.True(t, c.Has("customer.delivered"))
}
