package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	v, c, d := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = v, c, d })

	Version, Commit, Date = "v0.4.1", "9f2c1ab", ""
	assert.Equal(t, "dispatchbot v0.4.1 (9f2c1ab)", String())

	Date = "2026-10-01T08:00:00Z"
	assert.Equal(t, "dispatchbot v0.4.1 (9f2c1ab, 2026-10-01T08:00:00Z)", String())
}
