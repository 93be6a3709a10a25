// Package commands describes slash commands registered with the bot.
package commands

import tele "gopkg.in/telebot.v4"

// Command is a slash command. AdminOnly commands are hidden from the menu
// and wrapped with the admin check; Hidden ones are only hidden.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	AdminOnly   bool
	Hidden      bool
	// Aliases are alternative command names, with or without the slash.
	Aliases []string
}
