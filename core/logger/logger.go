package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"github.com/m3rciful/dispatchbot/core/buildinfo"
	coreconfig "github.com/m3rciful/dispatchbot/core/config"
)

var (
	initOnce sync.Once
	closeMu  sync.Mutex
	closed   bool

	writers []*asyncWriter
	closers []io.Closer

	levelVar      slog.LevelVar
	debugSampler  = newRatioSampler(1, 50)
	traceOverride bool

	// L is the process logger. It stays nil until InitLogger; the helpers in
	// this package are no-ops until then.
	L *slog.Logger
)

// options is the resolved logging section.
type options struct {
	format   logFormat
	keyOrder []string
	level    slog.Level
	profile  string
	sampleN  int
	sampleD  int
	trace    bool
	dir      string
	mainFile string
	errFile  string
}

func resolveOptions(cfg *coreconfig.Config) options {
	o := options{
		format:   formatJSON,
		keyOrder: slices.Clone(defaultKeyOrder),
		level:    slog.LevelInfo,
		profile:  "prod",
		sampleN:  1,
		sampleD:  50,
		trace:    isTruthy(os.Getenv("TRACE")) || isTruthy(os.Getenv("LOG_TRACE")),
	}
	if cfg == nil {
		return o
	}
	lc := cfg.Logging
	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		o.profile = p
	}
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		o.format = formatKV
	case "json":
	default:
		if o.profile == "debug" || o.profile == "dev" {
			o.format = formatKV
		}
	}
	if keys := splitKeys(lc.KeysOrder); len(keys) > 0 {
		o.keyOrder = keys
	}
	switch strings.ToLower(strings.TrimSpace(lc.Level)) {
	case "debug":
		o.level = slog.LevelDebug
	case "warn", "warning":
		o.level = slog.LevelWarn
	case "error":
		o.level = slog.LevelError
	}
	if spec := strings.TrimSpace(lc.DebugSample); spec != "" {
		switch num, den := parseRatioSpec(spec); {
		case num == 0 && den == 0:
			o.sampleN, o.sampleD = 0, 0
		case num > 0 && den > 0:
			o.sampleN, o.sampleD = num, den
		}
	}
	o.dir = strings.TrimSpace(lc.Dir)
	o.mainFile = strings.TrimSpace(lc.BotFile)
	o.errFile = strings.TrimSpace(lc.ErrorsFile)
	return o
}

func splitKeys(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "default" {
		return nil
	}
	var keys []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			keys = append(keys, p)
		}
	}
	return keys
}

// InitLogger configures the global structured logger. Only the first call
// has an effect.
func InitLogger(cfg *coreconfig.Config) error {
	var initErr error
	initOnce.Do(func() {
		o := resolveOptions(cfg)
		levelVar.Set(o.level)
		debugSampler.Set(o.sampleN, o.sampleD)
		traceOverride = o.trace

		main := []io.Writer{os.Stdout}
		var errSinks []io.Writer
		if f, err := openSink(o.dir, o.mainFile); err != nil {
			initErr = err
			return
		} else if f != nil {
			main = append(main, f)
		}
		if f, err := openSink(o.dir, o.errFile); err != nil {
			initErr = err
			return
		} else if f != nil {
			errSinks = append(errSinks, f)
		}

		cfgFor := func(sinks []io.Writer) handlerConfig {
			w := newAsyncWriter(sinks, 64*1024)
			writers = append(writers, w)
			return handlerConfig{level: &levelVar, writer: w, format: o.format, keyOrder: o.keyOrder}
		}
		var handler slog.Handler = newStructuredHandler(cfgFor(main))
		if len(errSinks) > 0 {
			errCfg := cfgFor(errSinks)
			errCfg.level = slog.LevelWarn
			handler = teeHandler{handler, newStructuredHandler(errCfg)}
		}

		L = slog.New(handler)
		slog.SetDefault(L)
		Info(context.Background(), ComponentApp, "startup",
			slog.String("go_version", runtime.Version()),
			slog.String("build_version", buildinfo.Version),
			slog.String("build_commit", buildinfo.Commit),
			slog.String("build_time", buildinfo.Date),
			slog.String("cfg_profile", o.profile),
		)
	})
	return initErr
}

// openSink opens dir/name for appending. Missing dir or name disables the sink.
func openSink(dir, name string) (*os.File, error) {
	if dir == "" || name == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logger: create dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logger: open %s: %w", path, err)
	}
	closers = append(closers, f)
	return f, nil
}

// teeHandler sends each record to every handler that accepts its level.
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}

// Shutdown flushes buffered output and closes file sinks.
func Shutdown() error {
	closeMu.Lock()
	defer closeMu.Unlock()
	if closed {
		return nil
	}
	closed = true

	var errs []error
	for _, w := range writers {
		errs = append(errs, w.Flush(), w.Close())
	}
	for _, c := range closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// LogEvent writes one record with event= set. A nil logg falls back to the
// context logger and then to L.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if logg == nil {
		return
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Component returns L scoped to name, or nil before InitLogger.
func Component(name string) *slog.Logger {
	if L == nil {
		return nil
	}
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

// Event logs through the context logger, tagged with component.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	logg := FromContext(ctx)
	if logg == nil {
		return
	}
	if component = strings.TrimSpace(component); component != "" {
		logg = logg.With("component", component)
	}
	LogEvent(ctx, logg, level, event, attrs...)
}

func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// ShouldSampleDebug reports whether a high-volume debug record should be
// written. TRACE=1 disables sampling.
func ShouldSampleDebug() bool {
	return traceOverride || debugSampler.Allow()
}
