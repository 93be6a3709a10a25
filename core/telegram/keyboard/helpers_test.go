package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInline(t *testing.T) {
	m := Inline(
		[]InlineBtn{{Text: "Approve", Unique: "approve", Data: "GG_AB12"}, {Text: "Reject", Unique: "reject", Data: "GG_AB12"}},
		nil,
		[]InlineBtn{{Text: "Undo", Unique: "undo", Data: "GG_AB12"}},
	)
	require.NotNil(t, m)
	require.Len(t, m.InlineKeyboard, 2)
	assert.Len(t, m.InlineKeyboard[0], 2)
	assert.Equal(t, "Undo", m.InlineKeyboard[1][0].Text)
	assert.Equal(t, "undo", m.InlineKeyboard[1][0].Unique)
	assert.Equal(t, "GG_AB12", m.InlineKeyboard[1][0].Data)
}

func TestInlineEmpty(t *testing.T) {
	assert.Nil(t, Inline())
	assert.Nil(t, Inline(nil, []InlineBtn{}))
}
