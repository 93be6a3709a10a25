// Package keyboard builds Telegram reply markups.
package keyboard

import tele "gopkg.in/telebot.v4"

// InlineBtn is one inline button. Unique and Data become the callback data
// telebot encodes as "\f<unique>|<data>".
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

// ForceReply asks the client to open a reply to the message.
func ForceReply() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{ForceReply: true}
}

// Inline lays rows out as an inline keyboard. Empty rows are dropped; no
// rows at all yields nil so callers can pass the result straight through.
func Inline(rows ...[]InlineBtn) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	var out []tele.Row
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		btns := make([]tele.Btn, len(row))
		for i, b := range row {
			btns[i] = m.Data(b.Text, b.Unique, b.Data)
		}
		out = append(out, m.Row(btns...))
	}
	if len(out) == 0 {
		return nil
	}
	m.Inline(out...)
	return m
}
