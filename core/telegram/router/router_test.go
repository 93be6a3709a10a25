package router

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tg "github.com/m3rciful/dispatchbot/core/telegram"
	"github.com/m3rciful/dispatchbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

type stubContext struct {
	tele.Context
	update tele.Update
	store  map[string]any
}

func textUpdate(text string) *stubContext {
	return &stubContext{
		update: tele.Update{ID: 3, Message: &tele.Message{
			Text:   text,
			Sender: &tele.User{ID: 9},
			Chat:   &tele.Chat{ID: 9, Type: tele.ChatPrivate},
		}},
		store: map[string]any{},
	}
}

func callbackUpdate(data string) *stubContext {
	return &stubContext{
		update: tele.Update{ID: 4, Callback: &tele.Callback{
			Data:   data,
			Sender: &tele.User{ID: 9},
		}},
		store: map[string]any{},
	}
}

func (s *stubContext) Update() tele.Update      { return s.update }
func (s *stubContext) Callback() *tele.Callback { return s.update.Callback }
func (s *stubContext) Get(k string) any         { return s.store[k] }
func (s *stubContext) Set(k string, v any)      { s.store[k] = v }

func (s *stubContext) Text() string {
	if s.update.Message == nil {
		return ""
	}
	return s.update.Message.Text
}

func (s *stubContext) Sender() *tele.User {
	if s.update.Callback != nil {
		return s.update.Callback.Sender
	}
	return s.update.Message.Sender
}

func (s *stubContext) Chat() *tele.Chat {
	if s.update.Message != nil {
		return s.update.Message.Chat
	}
	return nil
}

func record(into *[]string, name string) tele.HandlerFunc {
	return func(tele.Context) error {
		*into = append(*into, name)
		return nil
	}
}

func textHandler(t *testing.T, routes []tg.Route) tele.HandlerFunc {
	t.Helper()
	for _, r := range routes {
		if r.Endpoint == tele.OnText {
			return r.Handler
		}
	}
	t.Fatal("no text route")
	return nil
}

func TestTextRoutesSkipAdminCommands(t *testing.T) {
	var calls []string
	reg := tg.NewRegistry()
	require.NoError(t, reg.RegisterCommand("/help", commands.Command{Handler: record(&calls, "help"), Description: "Help"}))
	require.NoError(t, reg.RegisterCommand("/export", commands.Command{Handler: record(&calls, "export"), Description: "Export", AdminOnly: true}))
	reg.SetTextFallback(record(&calls, "fallback"))

	h := textHandler(t, TextRoutes(reg, TextOptions{}))
	require.NoError(t, h(textUpdate("/help")))
	require.NoError(t, h(textUpdate("/export now")))
	require.NoError(t, h(textUpdate("two pizzas")))

	assert.Equal(t, []string{"help", "fallback", "fallback"}, calls)
}

func TestTextRoutesUnknownDocument(t *testing.T) {
	var calls []string
	routes := TextRoutes(nil, TextOptions{
		Document:        func(tele.Context) (bool, error) { calls = append(calls, "document"); return false, nil },
		UnknownDocument: record(&calls, "unknown"),
	})
	var doc tele.HandlerFunc
	for _, r := range routes {
		if r.Endpoint == tele.OnDocument {
			doc = r.Handler
		}
	}
	require.NotNil(t, doc)

	require.NoError(t, doc(textUpdate("")))
	assert.Equal(t, []string{"document", "unknown"}, calls)
}

func TestCallbackRouteFallsBack(t *testing.T) {
	var calls []string
	reg := tg.NewRegistry()
	require.NoError(t, reg.RegisterCallback("pay", record(&calls, "pay")))
	reg.SetCallbackNotFound(record(&calls, "missing"))

	route := CallbackRoute(reg, CallbackOptions{})
	require.Equal(t, tele.OnCallback, route.Endpoint)

	require.NoError(t, route.Handler(callbackUpdate("\fpay|GG_AB12")))
	require.NoError(t, route.Handler(callbackUpdate("\fgone|GG_AB12")))
	assert.Equal(t, []string{"pay", "missing"}, calls)
}

type codedError struct{ code string }

func (e codedError) Error() string { return "coded" }
func (e codedError) Code() string  { return e.code }

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "ORDER_GONE", errorCode(codedError{code: "order gone"}))
	assert.Equal(t, "ERRORSTRING", errorCode(errors.New("plain")))
	assert.Equal(t, "ORDER_GONE", errorCode(errors.Join(codedError{code: "order_gone"})))
}

func TestHandlerName(t *testing.T) {
	assert.Equal(t, "callback.pay", handlerName("callback.", "Pay"))
	assert.Equal(t, "help", handlerName("", "/help"))
	assert.Equal(t, "callback.unknown", handlerName("callback.", " "))
}
