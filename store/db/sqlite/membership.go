package sqlite

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/meetwhenah/meetwhenah/store"
)

// AddMember is insert-if-absent: joining twice is a no-op.
func (d *DB) AddMember(ctx context.Context, add *store.Membership) error {
	if _, err := d.db.ExecContext(ctx, `
		INSERT INTO membership (event_id, user_id, joined_at)
		VALUES (?, ?, ?)
		ON CONFLICT (event_id, user_id) DO NOTHING`,
		add.EventID, add.UserID, add.JoinedAt.Unix(),
	); err != nil {
		return errors.Wrap(err, "failed to add member")
	}
	return nil
}

// RemoveMember is delete-if-present: leaving twice is a no-op.
func (d *DB) RemoveMember(ctx context.Context, eventID, userID uuid.UUID) error {
	if _, err := d.db.ExecContext(ctx,
		`DELETE FROM membership WHERE event_id = ? AND user_id = ?`,
		eventID, userID,
	); err != nil {
		return errors.Wrap(err, "failed to remove member")
	}
	return nil
}

func (d *DB) ListMembers(ctx context.Context, eventID uuid.UUID) ([]*store.Membership, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT event_id, user_id, joined_at FROM membership WHERE event_id = ? ORDER BY joined_at`,
		eventID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list members")
	}
	defer rows.Close()

	list := make([]*store.Membership, 0)
	for rows.Next() {
		member := &store.Membership{}
		var joinedAt int64
		if err := rows.Scan(&member.EventID, &member.UserID, &joinedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan membership")
		}
		member.JoinedAt = unixTime(joinedAt)
		list = append(list, member)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate memberships")
	}

	return list, nil
}
