package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	for _, a := range []Action{
		With(Pay, "GG_AB12", "TELEBIRR"),
		New(Approve, "GG-20250101-120000-AB12"),
		With(Undo, "GG_AB12", string(Approve)),
		New(GiveUp, "GG_AB12"),
	} {
		got, err := Decode(a.Unique(), a.Payload())
		require.NoError(t, err, a)
		assert.Equal(t, a, got)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	tests := []struct {
		name, unique, payload string
	}{
		{"unknown kind", "launch", "GG_AB12"},
		{"empty ref", "approve", ""},
		{"pay without method", "pay", "GG_AB12"},
		{"undo without target", "undo", "GG_AB12|"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.unique, tt.payload)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestKindsAreValid(t *testing.T) {
	for _, k := range Kinds() {
		assert.True(t, k.Valid(), k)
	}
	assert.False(t, Kind("").Valid())
}
