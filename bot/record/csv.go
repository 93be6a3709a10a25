package record

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

var csvHeader = []string{
	"id", "ref", "source_ref", "customer_id", "customer_name", "phone", "area", "map_url",
	"qty", "total", "delivery", "method", "tin", "driver_id", "driver_name", "status",
	"intake_at", "payment_confirmed_at", "driver_accepted_at", "picked_at", "delivered_at",
	"created_at", "updated_at",
}

// WriteCSV writes recs with a header row.
func WriteCSV(w io.Writer, recs []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range recs {
		if err := cw.Write(row(r)); err != nil {
			return fmt.Errorf("write csv row %s: %w", r.Ref, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func row(r Record) []string {
	return []string{
		strconv.FormatInt(r.ID, 10),
		r.Ref,
		r.SourceRef,
		strconv.FormatInt(r.CustomerID, 10),
		r.CustomerName,
		r.Phone,
		r.Area,
		r.MapURL,
		strconv.Itoa(r.Qty),
		amount(r.Total.Float64, r.Total.Valid),
		amount(r.Delivery.Float64, r.Delivery.Valid),
		r.Method,
		r.TIN,
		optionalID(r.DriverID),
		r.DriverName,
		r.Status,
		stamp(r.IntakeAt),
		stamp(r.PaymentConfirmedAt),
		stamp(r.DriverAcceptedAt),
		stamp(r.PickedAt),
		stamp(r.DeliveredAt),
		stamp(&r.CreatedAt),
		stamp(&r.UpdatedAt),
	}
}

func amount(v float64, valid bool) string {
	if !valid {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func optionalID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func stamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
