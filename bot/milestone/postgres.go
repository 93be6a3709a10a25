package milestone

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Store appends events to the milestones table.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps db.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Record implements Recorder.
func (s *Store) Record(ctx context.Context, e Event) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO milestones (id, ref, customer_id, status_from, status_to, actor_id, note, at)
		VALUES (:id, :ref, :customer_id, :status_from, :status_to, :actor_id, :note, :at)
		ON CONFLICT (id) DO NOTHING`, e)
	if err != nil {
		return fmt.Errorf("record milestone %s: %w", e.Ref, err)
	}
	return nil
}

// List returns the history of ref in order.
func (s *Store) List(ctx context.Context, ref string) ([]Event, error) {
	var out []Event
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, ref, customer_id, status_from, status_to, actor_id, note, at
		FROM milestones WHERE ref = $1 ORDER BY at, id`, ref)
	if err != nil {
		return nil, fmt.Errorf("list milestones %s: %w", ref, err)
	}
	return out, nil
}
