package milestone

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) Record(ctx context.Context, e Event) error {
	return m.Called(ctx, e).Error(0)
}

func TestNewEvent(t *testing.T) {
	at := time.Date(2025, 1, 1, 15, 0, 0, 0, time.FixedZone("EAT", 3*3600))
	e := NewEvent("GG_AB12", 42, "APPROVED_HOLD", "DISPATCHING", 0, "hold elapsed", at)

	assert.NotEqual(t, e.ID, NewEvent("GG_AB12", 42, "", "", 0, "", at).ID)
	assert.Equal(t, time.UTC, e.At.Location())
	assert.True(t, e.At.Equal(at))
	assert.Equal(t, "order.dispatching", RoutingKey(e))

	body, err := json.Marshal(e)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"id":"`+e.ID.String()+`"`)
	assert.Contains(t, string(body), `"to":"DISPATCHING"`)
}

func TestFanoutRecordsEverywhere(t *testing.T) {
	e := NewEvent("GG_AB12", 42, "ASSIGNED", "OUT_FOR_DELIVERY", 7, "", time.Now())
	first, second := &mockRecorder{}, &mockRecorder{}
	boom := errors.New("broker down")
	first.On("Record", mock.Anything, e).Return(boom)
	second.On("Record", mock.Anything, e).Return(nil)

	err := Fanout{first, nil, second}.Record(context.Background(), e)
	assert.ErrorIs(t, err, boom)
	first.AssertExpectations(t)
	second.AssertExpectations(t)
}

func TestMemory(t *testing.T) {
	m := &Memory{}
	ctx := context.Background()
	require.NoError(t, m.Record(ctx, Event{Ref: "GG_A"}))
	require.NoError(t, m.Record(ctx, Event{Ref: "GG_B"}))
	require.NoError(t, m.Record(ctx, Event{Ref: "GG_A"}))

	assert.Len(t, m.Events(""), 3)
	assert.Len(t, m.Events("GG_A"), 2)
}
