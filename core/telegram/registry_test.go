package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/dispatchbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

func noop(tele.Context) error { return nil }

func TestRegisterCommandValidates(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/drivers", commands.Command{Handler: noop, Description: "List drivers", AdminOnly: true}))

	assert.Error(t, reg.RegisterCommand("/drivers", commands.Command{Handler: noop, Description: "again"}))
	assert.Error(t, reg.RegisterCommand("drivers", commands.Command{Handler: noop, Description: "no slash"}))
	assert.Error(t, reg.RegisterCommand("/Drivers", commands.Command{Handler: noop, Description: "upper"}))
	assert.Error(t, reg.RegisterCommand("/help", commands.Command{Description: "no handler"}))
}

func TestLookupCommand(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/help", commands.Command{Handler: noop, Description: "Help", Aliases: []string{"info"}}))

	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"/help", "/help", true},
		{"/help@dispatch_bot", "/help", true},
		{"/HELP please", "/help", true},
		{"/info", "/help", true},
		{"help", "", false},
		{"🧾 Order Summary", "", false},
		{"/", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			key, _, ok := reg.LookupCommand(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, key)
		})
	}
}

func TestListCommandsHidesAdminCommands(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "Start"}))
	require.NoError(t, reg.RegisterCommand("/export", commands.Command{Handler: noop, Description: "Export", AdminOnly: true}))

	assert.Equal(t, []tele.Command{{Text: "/start", Description: "Start"}}, reg.ListCommands(true))
	assert.Len(t, reg.ListCommands(false), 2)
}

func TestRegisterCallbackRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCallback("approve", noop))
	assert.Error(t, reg.RegisterCallback("approve", noop))
	assert.Error(t, reg.RegisterCallback("", noop))

	_, ok := reg.GetCallback("approve")
	assert.True(t, ok)
	assert.Equal(t, []string{"approve"}, reg.ListCallbacks())
}

func TestRegisterCommandRejectsTakenAlias(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/help", commands.Command{Handler: noop, Description: "Help"}))

	err := reg.RegisterCommand("/info", commands.Command{Handler: noop, Description: "Info", Aliases: []string{"/help"}})
	assert.Error(t, err)
	_, _, ok := reg.LookupCommand("/info")
	assert.False(t, ok, "a rejected command must not be half registered")
}
