package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// render writes one event through a fresh handler and returns the line.
func render(t *testing.T, format logFormat, ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) string {
	t.Helper()
	buf := &bytes.Buffer{}
	w := newAsyncWriter([]io.Writer{buf}, 16)
	h := newStructuredHandler(handlerConfig{
		level:    slog.LevelDebug,
		writer:   w,
		format:   format,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	})
	LogEvent(ctx, slog.New(h).With("component", component), level, event, attrs...)
	require.NoError(t, w.Close())
	return strings.TrimSpace(buf.String())
}

// assertInOrder checks that every part occurs in line, each after the last.
func assertInOrder(t *testing.T, line string, parts ...string) {
	t.Helper()
	pos := -1
	for _, p := range parts {
		at := strings.Index(line, p)
		if !assert.GreaterOrEqual(t, at, 0, "%q missing from %s", p, line) {
			return
		}
		assert.Greater(t, at, pos, "%q out of order in %s", p, line)
		pos = at
	}
}

func TestKVLineOrder(t *testing.T) {
	ctx := WithUpdateMeta(WithRID(context.Background(), "rid-123"), 42, 7, 9)
	line := render(t, formatKV, ctx, ComponentApp, slog.LevelInfo, "test.event",
		slog.String("cause", "unit"),
		slog.String("status", "ok"),
	)

	tokens := strings.Fields(line)
	require.GreaterOrEqual(t, len(tokens), 6, line)
	for i, prefix := range []string{"ts=", "level=INFO", "component=app", "event=test.event", "status=ok", "rid=rid-123"} {
		assert.True(t, strings.HasPrefix(tokens[i], prefix), "token %d = %s, want %s", i, tokens[i], prefix)
	}
}

func TestJSONLineOrder(t *testing.T) {
	ctx := WithUpdateMeta(WithRID(context.Background(), "rid-json"), 11, 22, 33)
	line := render(t, formatJSON, ctx, ComponentDispatch, slog.LevelError, "dispatch.broadcast",
		slog.String("err_code", "NO_DRIVERS"),
		slog.String("err", "boom"),
		slog.String("status", "fail"),
	)

	require.True(t, strings.HasPrefix(line, "{"), line)
	assertInOrder(t, line, `{"ts":`, `"level":"ERROR"`, `"component":"dispatch"`, `"event":"dispatch.broadcast"`, `"status":"fail"`, `"rid":"rid-json"`)
}

func TestCompactRID(t *testing.T) {
	const raw = "123:456:789"
	ctx := WithRID(context.Background(), raw)

	kv := render(t, formatKV, ctx, ComponentApp, slog.LevelInfo, "rid.test")
	assert.Contains(t, kv, "rid="+CompactRID(raw))
	assert.NotContains(t, kv, "rid_full=", "KV lines carry the compact rid only")

	js := render(t, formatJSON, ctx, ComponentApp, slog.LevelInfo, "rid.test")
	assert.Contains(t, js, `"rid":"`+CompactRID(raw)+`"`)
	assert.Contains(t, js, `"rid_full":"`+raw+`"`)
	assert.Contains(t, js, `"ts_unix_nano"`)
}

func TestOrderRefFollowsRID(t *testing.T) {
	ctx := WithRef(WithRID(context.Background(), "rid-123"), "GG_AB12")
	line := render(t, formatKV, ctx, ComponentOrder, slog.LevelInfo, "order.transition",
		slog.String("status_to", "APPROVED_HOLD"),
		slog.String("status_from", "AWAITING_REVIEW"),
	)
	assertInOrder(t, line, "rid=rid-123", "ref=GG_AB12", "status_from=AWAITING_REVIEW", "status_to=APPROVED_HOLD")
}

func TestLevelFilter(t *testing.T) {
	buf := &bytes.Buffer{}
	w := newAsyncWriter([]io.Writer{buf}, 16)
	h := newStructuredHandler(handlerConfig{level: slog.LevelWarn, writer: w, format: formatKV})

	LogEvent(context.Background(), slog.New(h), slog.LevelInfo, "quiet")
	LogEvent(context.Background(), slog.New(h), slog.LevelWarn, "loud")
	require.NoError(t, w.Close())

	assert.NotContains(t, buf.String(), "event=quiet")
	assert.Contains(t, buf.String(), "event=loud")
}
