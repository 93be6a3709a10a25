package record

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/dispatchbot/bot/intake"
)

// openTestDB connects to DISPATCH_TEST_DSN; the orders table must exist.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("DISPATCH_TEST_DSN")
	if dsn == "" {
		t.Skip("DISPATCH_TEST_DSN not set; skipping integration test")
	}
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPersistMergesAcrossPhases(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	s := NewStore(db, clock)
	ref := fmt.Sprintf("GG_T%d", time.Now().UnixNano()%100000)
	t.Cleanup(func() { _, _ = db.Exec(`DELETE FROM orders WHERE ref = $1`, ref) })

	id, err := s.Persist(ctx, Record{Ref: ref, CustomerName: "Abebe", Qty: 2,
		Total: intake.Amount{Float64: 900, Valid: true}}, PhaseIntake)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	again, err := s.Persist(ctx, Record{Ref: ref, DriverID: 7, Area: intake.Placeholder}, PhaseDriverAccepted)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	rec, ok, err := s.Get(ctx, ref)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Abebe", rec.CustomerName)
	assert.Equal(t, int64(7), rec.DriverID)
	assert.Equal(t, 900.0, rec.Total.Float64)
	require.NotNil(t, rec.IntakeAt)
	require.NotNil(t, rec.DriverAcceptedAt)
	assert.True(t, rec.DriverAcceptedAt.After(*rec.IntakeAt))

	_, err = s.Persist(ctx, Record{Ref: ref}, Phase("bogus"))
	assert.ErrorIs(t, err, ErrInvalidPhase)
}

func TestArchiveKeepsRowsWhenDeliveryFails(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	s := NewStore(db, nil)
	ref := fmt.Sprintf("GG_A%d", time.Now().UnixNano()%100000)
	t.Cleanup(func() { _, _ = db.Exec(`DELETE FROM orders WHERE ref = $1`, ref) })

	_, err := s.Persist(ctx, Record{Ref: ref}, PhaseIntake)
	require.NoError(t, err)

	boom := errors.New("upload failed")
	_, err = s.ArchiveAndClear(ctx, func([]byte) error { return boom })
	assert.ErrorIs(t, err, boom)

	_, ok, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.True(t, ok)
}
