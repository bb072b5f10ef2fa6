// Package postgres implements the store driver on PostgreSQL. It is the
// reference backend: the reminder noon-match queries run entirely in SQL
// using each event's stored timezone.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/meetwhenah/meetwhenah/internal/profile"
	"github.com/meetwhenah/meetwhenah/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a database specified by its database driver name and a
// driver-specific data source name.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	pgDB, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	pgDB.SetMaxOpenConns(16)
	pgDB.SetMaxIdleConns(4)

	driver := DB{db: pgDB, profile: profile}

	return &driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

// placeholder returns the n-th positional parameter ("$n").
func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// placeholders returns "$1, $2, ..., $n".
func placeholders(n int) string {
	list := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		list = append(list, placeholder(i))
	}
	return strings.Join(list, ", ")
}

var migrationStmts = []string{
	`CREATE TABLE IF NOT EXISTS "user" (
		id UUID PRIMARY KEY,
		chat_identity TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		sleep_start TEXT,
		sleep_end TEXT,
		created_ts BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS event (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		creator_id UUID NOT NULL REFERENCES "user"(id) ON DELETE RESTRICT,
		window_start_date TEXT NOT NULL,
		window_end_date TEXT NOT NULL,
		daily_start_time TEXT NOT NULL,
		daily_end_time TEXT NOT NULL,
		min_participants INT NOT NULL DEFAULT 2,
		min_block_slots INT NOT NULL DEFAULT 2,
		max_block_slots INT NOT NULL DEFAULT 4,
		reminders_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		timezone TEXT NOT NULL,
		state TEXT NOT NULL DEFAULT 'open',
		last_nudge_date TEXT,
		last_countdown_date TEXT,
		last_imminent_at TIMESTAMPTZ,
		created_ts BIGINT NOT NULL,
		updated_ts BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS availability_block (
		event_id UUID NOT NULL REFERENCES event(id) ON DELETE CASCADE,
		user_id UUID NOT NULL REFERENCES "user"(id) ON DELETE RESTRICT,
		start_ts TIMESTAMPTZ NOT NULL,
		end_ts TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (event_id, user_id, start_ts)
	)`,
	`CREATE TABLE IF NOT EXISTS confirmation (
		event_id UUID PRIMARY KEY REFERENCES event(id) ON DELETE CASCADE,
		start_ts TIMESTAMPTZ NOT NULL,
		end_ts TIMESTAMPTZ NOT NULL,
		confirmed_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS membership (
		event_id UUID NOT NULL REFERENCES event(id) ON DELETE CASCADE,
		user_id UUID NOT NULL REFERENCES "user"(id) ON DELETE RESTRICT,
		joined_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (event_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS event_chat (
		event_id UUID PRIMARY KEY REFERENCES event(id) ON DELETE CASCADE,
		chat_id TEXT NOT NULL,
		thread_id TEXT,
		reminders_enabled BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS share_token (
		token TEXT PRIMARY KEY,
		chat_identity TEXT NOT NULL,
		chat_id TEXT NOT NULL,
		message_id INT NOT NULL,
		thread_id TEXT,
		expires_at TIMESTAMPTZ NOT NULL,
		used_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_event_state ON event (state)`,
	`CREATE INDEX IF NOT EXISTS idx_availability_event ON availability_block (event_id)`,
}

func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range migrationStmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to apply migration")
		}
	}
	return nil
}
