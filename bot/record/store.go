package record

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"

	"github.com/m3rciful/dispatchbot/core/logger"
)

const columns = `id, ref, source_ref, customer_id, customer_name, phone, area, map_url, qty,
	total, delivery, method, tin, driver_id, driver_name, status, summary,
	intake_at, payment_confirmed_at, driver_accepted_at, picked_at, delivered_at,
	created_at, updated_at`

const upsertSQL = `
INSERT INTO orders (
	ref, source_ref, customer_id, customer_name, phone, area, map_url, qty,
	total, delivery, method, tin, driver_id, driver_name, status, summary,
	intake_at, payment_confirmed_at, driver_accepted_at, picked_at, delivered_at, updated_at
) VALUES (
	:ref, :source_ref, :customer_id, :customer_name, :phone, :area, :map_url, :qty,
	:total, :delivery, :method, :tin, :driver_id, :driver_name, :status, :summary,
	:intake_at, :payment_confirmed_at, :driver_accepted_at, :picked_at, :delivered_at, :updated_at
)
ON CONFLICT (ref) DO UPDATE SET
	source_ref = EXCLUDED.source_ref,
	customer_id = EXCLUDED.customer_id,
	customer_name = EXCLUDED.customer_name,
	phone = EXCLUDED.phone,
	area = EXCLUDED.area,
	map_url = EXCLUDED.map_url,
	qty = EXCLUDED.qty,
	total = EXCLUDED.total,
	delivery = EXCLUDED.delivery,
	method = EXCLUDED.method,
	tin = EXCLUDED.tin,
	driver_id = EXCLUDED.driver_id,
	driver_name = EXCLUDED.driver_name,
	status = EXCLUDED.status,
	summary = EXCLUDED.summary,
	intake_at = EXCLUDED.intake_at,
	payment_confirmed_at = EXCLUDED.payment_confirmed_at,
	driver_accepted_at = EXCLUDED.driver_accepted_at,
	picked_at = EXCLUDED.picked_at,
	delivered_at = EXCLUDED.delivered_at,
	updated_at = EXCLUDED.updated_at
RETURNING id`

// ErrInvalidPhase is returned for an unknown phase.
var ErrInvalidPhase = errors.New("record: invalid phase")

// Filter narrows exports by creation time. Zero bounds are open.
type Filter struct {
	Since time.Time
	Until time.Time
}

// Store persists records with sqlx.
type Store struct {
	db    *sqlx.DB
	clock clockwork.Clock
}

// NewStore wraps db. A nil clock uses real time.
func NewStore(db *sqlx.DB, clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{db: db, clock: clock}
}

// Persist merges rec into the row for rec.Ref and stamps phase. Calling it
// again for the same ref and phase is harmless.
func (s *Store) Persist(ctx context.Context, rec Record, phase Phase) (int64, error) {
	if !phase.Valid() {
		return 0, ErrInvalidPhase
	}
	if rec.Ref == "" {
		return 0, errors.New("record: empty ref")
	}
	now := s.clock.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("persist %s: begin: %w", rec.Ref, err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing Record
	err = tx.GetContext(ctx, &existing, `SELECT `+columns+` FROM orders WHERE ref = $1 FOR UPDATE`, rec.Ref)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		existing = Record{}
	case err != nil:
		return 0, fmt.Errorf("persist %s: load: %w", rec.Ref, err)
	}

	merged := Merge(existing, rec)
	merged.Stamp(phase, now)
	merged.UpdatedAt = now

	query, args, err := tx.BindNamed(upsertSQL, merged)
	if err != nil {
		return 0, fmt.Errorf("persist %s: bind: %w", rec.Ref, err)
	}
	var id int64
	if err := tx.GetContext(ctx, &id, query, args...); err != nil {
		return 0, fmt.Errorf("persist %s: upsert: %w", rec.Ref, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("persist %s: commit: %w", rec.Ref, err)
	}

	logger.Debug(ctx, logger.ComponentRecord, "record.persist",
		slog.String("ref", rec.Ref),
		slog.String("phase", string(phase)),
		slog.Int64("id", id),
	)
	return id, nil
}

// Get loads the row of ref.
func (s *Store) Get(ctx context.Context, ref string) (Record, bool, error) {
	var rec Record
	err := s.db.GetContext(ctx, &rec, `SELECT `+columns+` FROM orders WHERE ref = $1`, ref)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("get record %s: %w", ref, err)
	}
	return rec, true, nil
}

// All returns records matching f ordered by creation.
func (s *Store) All(ctx context.Context, f Filter) ([]Record, error) {
	return selectRecords(ctx, s.db, f, false)
}

// ArchiveAndClear exports every row through deliver and deletes the rows in
// the same transaction only after deliver succeeded.
func (s *Store) ArchiveAndClear(ctx context.Context, deliver func(csv []byte) error) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("archive: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	recs, err := selectRecords(ctx, tx, Filter{}, true)
	if err != nil {
		return 0, err
	}
	if len(recs) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, recs); err != nil {
		return 0, err
	}
	if err := deliver(buf.Bytes()); err != nil {
		return 0, fmt.Errorf("archive: deliver: %w", err)
	}

	ids := make([]int64, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	query, args, err := sqlx.In(`DELETE FROM orders WHERE id IN (?)`, ids)
	if err != nil {
		return 0, fmt.Errorf("archive: build delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("archive: delete: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("archive: commit: %w", err)
	}

	logger.Info(ctx, logger.ComponentRecord, "record.archive",
		slog.Int("count", len(recs)),
	)
	return len(recs), nil
}

func selectRecords(ctx context.Context, q sqlx.QueryerContext, f Filter, lock bool) ([]Record, error) {
	query := `SELECT ` + columns + ` FROM orders WHERE TRUE`
	var args []any
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		query += fmt.Sprintf(` AND created_at >= $%d`, len(args))
	}
	if !f.Until.IsZero() {
		args = append(args, f.Until)
		query += fmt.Sprintf(` AND created_at < $%d`, len(args))
	}
	query += ` ORDER BY created_at, id`
	if lock {
		query += ` FOR UPDATE`
	}
	var out []Record
	if err := sqlx.SelectContext(ctx, q, &out, query, args...); err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}
	return out, nil
}
