package record

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/dispatchbot/bot/intake"
)

func TestMergeIncomingNonEmptyWins(t *testing.T) {
	intakeAt := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	existing := Record{
		Ref:          "GG_AB12",
		CustomerID:   42,
		CustomerName: "Abebe",
		Phone:        "+251911223344",
		Area:         "Bole",
		Qty:          5,
		Total:        intake.Amount{Float64: 1500, Valid: true},
		Method:       "TELEBIRR",
		Status:       "AWAITING_REVIEW",
		IntakeAt:     &intakeAt,
	}
	later := intakeAt.Add(time.Hour)
	incoming := Record{
		Ref:        "GG_AB12",
		Area:       intake.Placeholder,
		Phone:      "",
		DriverID:   7,
		DriverName: "Abel",
		Status:     "ASSIGNED",
		IntakeAt:   &later,
	}

	got := Merge(existing, incoming)
	assert.Equal(t, "Abebe", got.CustomerName)
	assert.Equal(t, "+251911223344", got.Phone)
	assert.Equal(t, "Bole", got.Area)
	assert.Equal(t, 5, got.Qty)
	assert.Equal(t, 1500.0, got.Total.Float64)
	assert.Equal(t, "TELEBIRR", got.Method)
	assert.Equal(t, int64(7), got.DriverID)
	assert.Equal(t, "Abel", got.DriverName)
	assert.Equal(t, "ASSIGNED", got.Status)
	assert.Equal(t, intakeAt, *got.IntakeAt)
}

func TestMergeIntoEmpty(t *testing.T) {
	incoming := Record{Ref: "GG_AB12", Qty: 2, Delivery: intake.Amount{Float64: 100, Valid: true}}
	assert.Equal(t, incoming, Merge(Record{}, incoming))
}

func TestMergeIsIdempotent(t *testing.T) {
	rec := Record{Ref: "GG_AB12", CustomerName: "Abebe", Qty: 3}
	once := Merge(Record{}, rec)
	assert.Equal(t, once, Merge(once, rec))
}

func TestStampKeepsFirst(t *testing.T) {
	first := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	var r Record
	r.Stamp(PhasePicked, first)
	r.Stamp(PhasePicked, first.Add(time.Hour))
	r.Stamp(Phase("bogus"), first)

	require.NotNil(t, r.PickedAt)
	assert.Equal(t, first, *r.PickedAt)
	assert.Nil(t, r.DeliveredAt)
	assert.False(t, Phase("bogus").Valid())
	assert.True(t, PhaseDriverAccepted.Valid())
}

func TestWriteCSV(t *testing.T) {
	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	recs := []Record{
		{ID: 1, Ref: "GG_AB12", CustomerID: 42, CustomerName: "Abebe, K.", Qty: 5,
			Total: intake.Amount{Float64: 1500, Valid: true}, IntakeAt: &at, CreatedAt: at},
		{ID: 2, Ref: "GG_CD34", DriverID: 7},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, recs))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])

	first := rows[1]
	assert.Equal(t, "GG_AB12", first[1])
	assert.Equal(t, "Abebe, K.", first[4])
	assert.Equal(t, "1500", first[9])
	assert.Equal(t, "", first[10])
	assert.Equal(t, "", first[13])
	assert.Equal(t, "2025-01-01T12:00:00Z", first[16])

	assert.Equal(t, "7", rows[2][13])
	assert.Equal(t, "", rows[2][21])
}
