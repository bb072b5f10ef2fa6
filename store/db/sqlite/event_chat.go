package sqlite

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/meetwhenah/meetwhenah/store"
)

// UpsertEventChat overwrites any prior chat association, keeping the most
// recent share authoritative.
func (d *DB) UpsertEventChat(ctx context.Context, upsert *store.EventChat) (*store.EventChat, error) {
	stmt := `
		INSERT INTO event_chat (event_id, chat_id, thread_id, reminders_enabled)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (event_id) DO UPDATE SET
			chat_id = excluded.chat_id,
			thread_id = excluded.thread_id,
			reminders_enabled = excluded.reminders_enabled
		RETURNING event_id, chat_id, thread_id, reminders_enabled`

	chat := &store.EventChat{}
	err := d.db.QueryRowContext(ctx, stmt,
		upsert.EventID, upsert.ChatID, upsert.ThreadID, upsert.RemindersEnabled,
	).Scan(&chat.EventID, &chat.ChatID, &chat.ThreadID, &chat.RemindersEnabled)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert event chat")
	}

	return chat, nil
}

func (d *DB) GetEventChat(ctx context.Context, eventID uuid.UUID) (*store.EventChat, error) {
	chat := &store.EventChat{}
	err := d.db.QueryRowContext(ctx,
		`SELECT event_id, chat_id, thread_id, reminders_enabled FROM event_chat WHERE event_id = ?`,
		eventID,
	).Scan(&chat.EventID, &chat.ChatID, &chat.ThreadID, &chat.RemindersEnabled)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get event chat")
	}

	return chat, nil
}

func (d *DB) SetEventChatReminders(ctx context.Context, eventID uuid.UUID, enabled bool) error {
	result, err := d.db.ExecContext(ctx,
		`UPDATE event_chat SET reminders_enabled = ? WHERE event_id = ?`,
		enabled, eventID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to set event chat reminders")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return store.ErrNotFound
	}

	return nil
}
