package sqlite

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
		VALUES (?, ?, ?, ?)
		ON CONFLICT (event_id) DO NOTHING`,
		create.EventID, create.StartTs.Unix(), create.EndTs.Unix(), create.ConfirmedAt.Unix(),
	)
	if err != nil {
		return false, errors.Wrap(err, "failed to create confirmation")
	}

	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (d *DB) GetConfirmation(ctx context.Context, eventID uuid.UUID) (*store.Confirmation, error) {
	confirmation := &store.Confirmation{}
	var startTs, endTs, confirmedAt int64
	err := d.db.QueryRowContext(ctx,
		`SELECT event_id, start_ts, end_ts, confirmed_at FROM confirmation WHERE event_id = ?`,
		eventID,
	).Scan(&confirmation.EventID, &startTs, &endTs, &confirmedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get confirmation")
	}

	confirmation.StartTs = unixTime(startTs)
	confirmation.EndTs = unixTime(endTs)
	confirmation.ConfirmedAt = unixTime(confirmedAt)

	return confirmation, nil
}
