package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/meetwhenah/meetwhenah/store"
)

func (d *DB) CreateShareToken(ctx context.Context, create *store.ShareToken) error {
	if _, err := d.db.ExecContext(ctx, `
		INSERT INTO share_token (token, chat_identity, chat_id, message_id, thread_id, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		create.Token, create.ChatIdentity, create.ChatID, create.MessageID, create.ThreadID, create.ExpiresAt.Unix(),
	); err != nil {
		return errors.Wrap(err, "failed to create share token")
	}
	return nil
}

// ConsumeShareToken marks the token used and returns its context in one
// statement, so two concurrent consumers cannot both succeed.
func (d *DB) ConsumeShareToken(ctx context.Context, token string, now time.Time) (*store.ShareToken, error) {
	stmt := `
		UPDATE share_token SET used_at = ?
		WHERE token = ? AND used_at IS NULL AND expires_at > ?
		RETURNING token, chat_identity, chat_id, message_id, thread_id, expires_at, used_at`

	row := &store.ShareToken{}
	var expiresAt int64
	var usedAt sql.NullInt64
	err := d.db.QueryRowContext(ctx, stmt, now.Unix(), token, now.Unix()).Scan(
		&row.Token, &row.ChatIdentity, &row.ChatID, &row.MessageID, &row.ThreadID, &expiresAt, &usedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to consume share token")
	}

	row.ExpiresAt = unixTime(expiresAt)
	row.UsedAt = unixOrNil(usedAt)

	return row, nil
}
