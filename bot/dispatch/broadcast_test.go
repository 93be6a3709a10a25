package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/dispatchbot/bot/action"
	"github.com/m3rciful/dispatchbot/bot/intake"
	"github.com/m3rciful/dispatchbot/bot/notify"
	"github.com/m3rciful/dispatchbot/bot/texts"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Send(ctx context.Context, chatID int64, msg notify.Message) (int, error) {
	args := m.Called(ctx, chatID, msg)
	return args.Int(0), args.Error(1)
}

func (m *mockNotifier) Edit(ctx context.Context, chatID int64, messageID int, msg notify.Message) error {
	return m.Called(ctx, chatID, messageID, msg).Error(0)
}

type staticRoster struct {
	drivers []Driver
	err     error
}

func (r staticRoster) List(context.Context) ([]Driver, error) { return r.drivers, r.err }
func (r staticRoster) Get(_ context.Context, id int64) (Driver, error) {
	for _, d := range r.drivers {
		if d.ID == id {
			return d, nil
		}
	}
	return Driver{}, ErrDriverNotFound
}
func (staticRoster) Upsert(context.Context, Driver) error        { return nil }
func (staticRoster) Remove(context.Context, int64) (bool, error) { return false, nil }

func testJob() Job {
	return Job{
		Ref: "GG_AB12",
		Fields: intake.Fields{
			Qty:    5,
			Total:  intake.Amount{Float64: 1500, Valid: true},
			Area:   "Bole",
			MapURL: intake.Placeholder,
		},
	}
}

func TestBroadcastCollectsFailures(t *testing.T) {
	roster := staticRoster{drivers: []Driver{
		{ID: 1, Name: "Abel"}, {ID: 2, Name: "Bini"}, {ID: 3, Name: "Chala"}, {ID: 4, Name: "Dawit"},
	}}
	n := &mockNotifier{}
	n.On("Send", mock.Anything, int64(1), mock.Anything).Return(11, nil)
	n.On("Send", mock.Anything, int64(2), mock.Anything).Return(0, errors.New("bot was blocked by the user"))
	n.On("Send", mock.Anything, int64(4), mock.Anything).Return(14, nil)

	b := NewBroadcaster(roster, n, texts.Default(), 2)
	report, err := b.Broadcast(context.Background(), testJob(), []int64{3})
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 4}, report.Sent)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, int64(2), report.Failed[0].Driver.ID)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 3, report.Attempted())
	assert.Contains(t, report.Details(), "Bini (2): bot was blocked")
	n.AssertNotCalled(t, "Send", mock.Anything, int64(3), mock.Anything)
	n.AssertExpectations(t)
}

func TestBroadcastSendsAcceptButton(t *testing.T) {
	n := &mockNotifier{}
	n.On("Send", mock.Anything, int64(9), mock.MatchedBy(func(msg notify.Message) bool {
		return len(msg.Buttons) == 1 && msg.Buttons[0][0].Action == action.New(action.Accept, "GG_AB12")
	})).Return(1, nil)

	b := NewBroadcaster(staticRoster{drivers: []Driver{{ID: 9}}}, n, texts.Default(), 0)
	report, err := b.Broadcast(context.Background(), testJob(), nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{9}, report.Sent)
	assert.Empty(t, report.Details())
	n.AssertExpectations(t)
}

func TestBroadcastRosterFailure(t *testing.T) {
	boom := errors.New("db down")
	b := NewBroadcaster(staticRoster{err: boom}, &mockNotifier{}, texts.Default(), 1)
	_, err := b.Broadcast(context.Background(), testJob(), nil)
	assert.ErrorIs(t, err, boom)
}

func TestCards(t *testing.T) {
	tr := texts.Default()
	job := testJob()
	job.Fields.CustomerName = "Abebe"
	job.Fields.Phone = "+251911223344"

	card := JobCard(tr, job)
	assert.Contains(t, card.Text, "GG_AB12")
	assert.Contains(t, card.Text, "Bole")
	assert.Contains(t, card.Text, "Qty 5")
	assert.NotContains(t, card.Text, "Abebe")

	until := time.Date(2025, 1, 1, 12, 2, 0, 0, time.UTC)
	assigned := AssignedCard(tr, job, until)
	assert.Contains(t, assigned.Text, "+251911223344")
	assert.Contains(t, assigned.Text, "12:02")
	require.Len(t, assigned.Buttons, 2)
	assert.Equal(t, action.Picked, assigned.Buttons[0][0].Action.Kind)
	assert.Equal(t, action.GiveUp, assigned.Buttons[1][0].Action.Kind)
}
