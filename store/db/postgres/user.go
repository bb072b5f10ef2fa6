package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/meetwhenah/meetwhenah/store"
)

func (d *DB) UpsertUser(ctx context.Context, upsert *store.UpsertUser) (*store.User, error) {
	stmt := `
		INSERT INTO "user" (id, chat_identity, display_name, sleep_start, sleep_end, created_ts)
		VALUES (` + placeholders(6) + `)
		ON CONFLICT (chat_identity) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			sleep_start = COALESCE(EXCLUDED.sleep_start, "user".sleep_start),
			sleep_end = COALESCE(EXCLUDED.sleep_end, "user".sleep_end)
		RETURNING id, chat_identity, display_name, sleep_start, sleep_end, created_ts`

	user := &store.User{}
	err := d.db.QueryRowContext(ctx, stmt,
		uuid.New(), upsert.ChatIdentity, upsert.DisplayName, upsert.SleepStart, upsert.SleepEnd, time.Now().Unix(),
	).Scan(&user.ID, &user.ChatIdentity, &user.DisplayName, &user.SleepStart, &user.SleepEnd, &user.CreatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert user")
	}

	return user, nil
}

func (d *DB) GetUser(ctx context.Context, find *store.FindUser) (*store.User, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.ChatIdentity != nil {
		where, args = append(where, "chat_identity = "+placeholder(len(args)+1)), append(args, *find.ChatIdentity)
	}

	query := `
		SELECT id, chat_identity, display_name, sleep_start, sleep_end, created_ts
		FROM "user"
		WHERE ` + strings.Join(where, " AND ") + `
		LIMIT 1`

	user := &store.User{}
	err := d.db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID, &user.ChatIdentity, &user.DisplayName, &user.SleepStart, &user.SleepEnd, &user.CreatedTs,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user")
	}

	return user, nil
}
