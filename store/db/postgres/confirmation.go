package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/meetwhenah/meetwhenah/store"
)

// CreateConfirmation inserts if absent. ON CONFLICT DO NOTHING makes
// concurrent confirms resolve to exactly one winner; the return value
// reports whether this call was it.
func (d *DB) CreateConfirmation(ctx context.Context, create *store.Confirmation) (bool, error) {
	result, err := d.db.ExecContext(ctx, `
		INSERT INTO confirmation (event_id, start_ts, end_ts, confirmed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id) DO NOTHING`,
		create.EventID, create.StartTs, create.EndTs, create.ConfirmedAt,
	)
	if err != nil {
		return false, errors.Wrap(err, "failed to create confirmation")
	}

	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (d *DB) GetConfirmation(ctx context.Context, eventID uuid.UUID) (*store.Confirmation, error) {
	confirmation := &store.Confirmation{}
	err := d.db.QueryRowContext(ctx,
		`SELECT event_id, start_ts, end_ts, confirmed_at FROM confirmation WHERE event_id = $1`,
		eventID,
	).Scan(&confirmation.EventID, &confirmation.StartTs, &confirmation.EndTs, &confirmation.ConfirmedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get confirmation")
	}

	return confirmation, nil
}
