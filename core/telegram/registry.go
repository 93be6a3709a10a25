package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/m3rciful/dispatchbot/core/logger"
	"github.com/m3rciful/dispatchbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

// Registry maps slash commands and callback keys to handlers. It is filled
// during wiring and read concurrently by the routers afterwards.
type Registry struct {
	mu        sync.RWMutex
	commands  map[string]commands.Command
	aliases   map[string]string
	callbacks map[string]tele.HandlerFunc

	callbackNotFound tele.HandlerFunc
	textFallback     tele.HandlerFunc
}

// NewRegistry returns an empty registry. Unknown callbacks are answered
// with a short notice until SetCallbackNotFound replaces it.
func NewRegistry() *Registry {
	return &Registry{
		commands:  map[string]commands.Command{},
		aliases:   map[string]string{},
		callbacks: map[string]tele.HandlerFunc{},
		callbackNotFound: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
		},
	}
}

func rejectRegistration(kind, name, reason string) error {
	logger.Warn(context.Background(), logger.ComponentWire, "register."+kind+".skip",
		slog.String("name", name),
		slog.String("reason", reason),
	)
	return fmt.Errorf("telegram: %s %q: %s", kind, name, reason)
}

// RegisterCommand adds cmd under name, which must be a lower-case "/word".
// Aliases may be given with or without the slash.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	switch {
	case cmd.Handler == nil:
		return rejectRegistration("command", name, "nil handler")
	case cmd.Description == "":
		return rejectRegistration("command", name, "empty description")
	case commandName(name) != name:
		return rejectRegistration("command", name, "not a lower-case /word")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolve(name) != "" {
		return rejectRegistration("command", name, "duplicate")
	}
	for _, alias := range cmd.Aliases {
		alias = commandName("/" + strings.TrimPrefix(alias, "/"))
		if alias == "" || r.resolve(alias) != "" {
			return rejectRegistration("command", name, "bad or taken alias")
		}
	}
	r.commands[name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[commandName("/"+strings.TrimPrefix(alias, "/"))] = name
	}
	return nil
}

// resolve maps a command or alias to its registered name. Callers hold mu.
func (r *Registry) resolve(name string) string {
	if _, ok := r.commands[name]; ok {
		return name
	}
	return r.aliases[name]
}

// LookupCommand resolves the command at the start of text. A "@botname"
// suffix is ignored and text not starting with "/" never matches.
func (r *Registry) LookupCommand(text string) (string, commands.Command, bool) {
	name := commandName(text)
	if name == "" {
		return "", commands.Command{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	key := r.resolve(name)
	if key == "" {
		return "", commands.Command{}, false
	}
	return key, r.commands[key], true
}

// commandName extracts a lower-cased "/name" from the first word of text.
func commandName(text string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(text), " ")
	first, _, _ = strings.Cut(first, "@")
	if len(first) < 2 || first[0] != '/' {
		return ""
	}
	return strings.ToLower(first)
}

// ListCommands returns the commands sorted by name. With visibleOnly, hidden
// and admin commands are left out, which is what the menu shows.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []tele.Command
	for _, name := range slices.Sorted(maps.Keys(r.commands)) {
		cmd := r.commands[name]
		if visibleOnly && (cmd.Hidden || cmd.AdminOnly) {
			continue
		}
		out = append(out, tele.Command{Text: name, Description: cmd.Description})
	}
	return out
}

// Commands returns a copy of the registered commands keyed by name.
func (r *Registry) Commands() map[string]commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.commands)
}

// RegisterCallback binds a callback unique key to h.
func (r *Registry) RegisterCallback(key string, h tele.HandlerFunc) error {
	if key == "" || h == nil {
		return rejectRegistration("callback", key, "empty key or nil handler")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.callbacks[key]; taken {
		return rejectRegistration("callback", key, "duplicate")
	}
	r.callbacks[key] = h
	return nil
}

// GetCallback returns the handler bound to key.
func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns the registered keys, sorted.
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.callbacks))
}

// SetCallbackNotFound replaces the handler for unknown callback keys. nil
// keeps the current one.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.callbackNotFound = h
	r.mu.Unlock()
}

func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbackNotFound
}

// SetTextFallback sets the handler for text that is not a command.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.mu.Lock()
	r.textFallback = h
	r.mu.Unlock()
}

func (r *Registry) TextFallback() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.textFallback
}

// InitBotCommands publishes the visible commands as the bot menu. Failure
// is logged; the bot still works without a menu.
func InitBotCommands(bot *tele.Bot, reg *Registry) {
	menu := reg.ListCommands(true)
	if err := bot.SetCommands(menu); err != nil {
		logger.Error(context.Background(), logger.ComponentWire, "register.commands.set_failed",
			slog.Int("commands", len(menu)),
			slog.String("err", err.Error()),
		)
	}
}
