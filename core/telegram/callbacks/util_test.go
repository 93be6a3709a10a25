package callbacks

import (
	"testing"

	"github.com/stretchr/testify/assert"

	tele "gopkg.in/telebot.v4"
)

func TestParseCallbackData(t *testing.T) {
	tests := []struct {
		name         string
		cb           *tele.Callback
		unique, data string
	}{
		{"nil", nil, "", ""},
		{"resolved", &tele.Callback{Unique: "approve", Data: "GG_AB12"}, "approve", "GG_AB12"},
		{"raw", &tele.Callback{Data: "\fpay|GG_AB12|BANK"}, "pay", "GG_AB12|BANK"},
		{"no payload", &tele.Callback{Data: "\fhelp"}, "help", ""},
		{"plain", &tele.Callback{Data: "legacy"}, "legacy", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, d := ParseCallbackData(tt.cb)
			assert.Equal(t, tt.unique, u)
			assert.Equal(t, tt.data, d)
		})
	}
}
