package dispatch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrDriverNotFound is returned when no driver has the requested id.
var ErrDriverNotFound = errors.New("dispatch: driver not found")

// Driver is a registered delivery driver keyed by Telegram user id.
type Driver struct {
	ID        int64     `db:"telegram_id"`
	Name      string    `db:"name"`
	Phone     string    `db:"phone"`
	CreatedAt time.Time `db:"created_at"`
}

// Roster is the set of drivers jobs are broadcast to.
type Roster interface {
	List(ctx context.Context) ([]Driver, error)
	Get(ctx context.Context, id int64) (Driver, error)
	Upsert(ctx context.Context, d Driver) error
	Remove(ctx context.Context, id int64) (bool, error)
}

// SQLRoster stores drivers in the drivers table.
type SQLRoster struct {
	db *sqlx.DB
}

// NewSQLRoster wraps db.
func NewSQLRoster(db *sqlx.DB) *SQLRoster {
	return &SQLRoster{db: db}
}

// List returns every driver ordered by name.
func (r *SQLRoster) List(ctx context.Context) ([]Driver, error) {
	var out []Driver
	err := r.db.SelectContext(ctx, &out,
		`SELECT telegram_id, name, phone, created_at FROM drivers ORDER BY name, telegram_id`)
	if err != nil {
		return nil, fmt.Errorf("list drivers: %w", err)
	}
	return out, nil
}

// Get returns one driver.
func (r *SQLRoster) Get(ctx context.Context, id int64) (Driver, error) {
	var d Driver
	err := r.db.GetContext(ctx, &d,
		`SELECT telegram_id, name, phone, created_at FROM drivers WHERE telegram_id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Driver{}, ErrDriverNotFound
	}
	if err != nil {
		return Driver{}, fmt.Errorf("get driver %d: %w", id, err)
	}
	return d, nil
}

// Upsert inserts the driver or refreshes its name and phone.
func (r *SQLRoster) Upsert(ctx context.Context, d Driver) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO drivers (telegram_id, name, phone)
		VALUES (:telegram_id, :name, :phone)
		ON CONFLICT (telegram_id) DO UPDATE SET name = EXCLUDED.name, phone = EXCLUDED.phone`, d)
	if err != nil {
		return fmt.Errorf("upsert driver %d: %w", d.ID, err)
	}
	return nil
}

// Remove deletes the driver and reports whether it existed.
func (r *SQLRoster) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM drivers WHERE telegram_id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("remove driver %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove driver %d: %w", id, err)
	}
	return n > 0, nil
}

// Seeder returns a bootstrap seeder that upserts drivers.
func Seeder(drivers []Driver) func(ctx context.Context, db *sqlx.DB) error {
	return func(ctx context.Context, db *sqlx.DB) error {
		roster := NewSQLRoster(db)
		for _, d := range drivers {
			if err := roster.Upsert(ctx, d); err != nil {
				return err
			}
		}
		return nil
	}
}
