package sqlite

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/meetwhenah/meetwhenah/store"
)

// ReplaceAvailability swaps a user's availability for an event in one
// transaction. Readers observe either the old set or the new set, never a
// mix.
func (d *DB) ReplaceAvailability(ctx context.Context, eventID, userID uuid.UUID, blocks []*store.AvailabilityBlock) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM availability_block WHERE event_id = ? AND user_id = ?`,
		eventID, userID,
	); err != nil {
		return errors.Wrap(err, "failed to delete previous availability")
	}

	for _, block := range blocks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO availability_block (event_id, user_id, start_ts, end_ts) VALUES (?, ?, ?, ?)`,
			block.EventID, block.UserID, block.StartTs.Unix(), block.EndTs.Unix(),
		); err != nil {
			return errors.Wrap(err, "failed to insert availability block")
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit availability replace")
	}

	return nil
}

func (d *DB) ListAvailability(ctx context.Context, eventID uuid.UUID) ([]*store.AvailabilityBlock, error) {
	return d.listAvailability(ctx,
		`SELECT event_id, user_id, start_ts, end_ts FROM availability_block WHERE event_id = ? ORDER BY start_ts`,
		eventID)
}

func (d *DB) ListUserAvailability(ctx context.Context, eventID, userID uuid.UUID) ([]*store.AvailabilityBlock, error) {
	return d.listAvailability(ctx,
		`SELECT event_id, user_id, start_ts, end_ts FROM availability_block WHERE event_id = ? AND user_id = ? ORDER BY start_ts`,
		eventID, userID)
}

func (d *DB) listAvailability(ctx context.Context, query string, args ...any) ([]*store.AvailabilityBlock, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list availability blocks")
	}
	defer rows.Close()

	list := make([]*store.AvailabilityBlock, 0)
	for rows.Next() {
		block := &store.AvailabilityBlock{}
		var startTs, endTs int64
		if err := rows.Scan(&block.EventID, &block.UserID, &startTs, &endTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan availability block")
		}
		block.StartTs = unixTime(startTs)
		block.EndTs = unixTime(endTs)
		list = append(list, block)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate availability blocks")
	}

	return list, nil
}
