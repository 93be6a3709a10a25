package receipt

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySeen(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(clockwork.NewFakeClock())

	dup, err := m.Seen(ctx, "file-1", "GG_AAAA")
	require.NoError(t, err)
	assert.False(t, dup)

	dup, err = m.Seen(ctx, "file-1", "GG_BBBB")
	require.NoError(t, err)
	assert.True(t, dup)

	ref, ok := m.FirstRef("file-1")
	assert.True(t, ok)
	assert.Equal(t, "GG_AAAA", ref)

	dup, err = m.Seen(ctx, "", "GG_AAAA")
	require.NoError(t, err)
	assert.False(t, dup)
	assert.Equal(t, 1, m.Len())
}

func TestMemoryPrune(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	m := NewMemory(clock)

	_, _ = m.Seen(ctx, "old", "GG_AAAA")
	clock.Advance(2 * time.Hour)
	_, _ = m.Seen(ctx, "new", "GG_BBBB")

	assert.Equal(t, 1, m.Prune(time.Hour))
	_, ok := m.FirstRef("old")
	assert.False(t, ok)

	dup, _ := m.Seen(ctx, "old", "GG_CCCC")
	assert.False(t, dup)
}

func TestRedisSeen(t *testing.T) {
	addr := os.Getenv("DISPATCH_REDIS_ADDR")
	if addr == "" {
		t.Skip("DISPATCH_REDIS_ADDR not set; skipping integration test")
	}
	ctx := context.Background()
	client, err := Dial(ctx, addr, "", 0)
	require.NoError(t, err)
	defer client.Close()

	l := NewRedis(client, time.Minute)
	id := fmt.Sprintf("test-%d", time.Now().UnixNano())
	t.Cleanup(func() { client.Del(ctx, keyPrefix+id) })

	dup, err := l.Seen(ctx, id, "GG_AAAA")
	require.NoError(t, err)
	assert.False(t, dup)

	dup, err = l.Seen(ctx, id, "GG_BBBB")
	require.NoError(t, err)
	assert.True(t, dup)
}
