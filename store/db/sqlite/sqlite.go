// Package sqlite implements the store driver on SQLite.
//
// SQLite is supported on a best-effort basis for development and small
// single-instance deployments. Instants are stored as unix seconds and the
// reminder noon matches are evaluated in Go rather than in SQL, so the
// reminder list queries load candidates by state and filter in memory. For
// production use PostgreSQL.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

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

	// Connect to the database with some sane settings:
	// - Foreign keys explicitly off, matching the default.
	// - Journal mode set to WAL to prevent locking issues.
	//
	// The `modernc.org/sqlite` driver expects each pragma prefixed with
	// `_pragma=`.
	sqliteDB, err := sql.Open("sqlite", profile.DSN+"?_pragma=foreign_keys(0)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	// A single connection is optimal for SQLite with WAL mode.
	sqliteDB.SetMaxOpenConns(1)
	sqliteDB.SetMaxIdleConns(1)
	sqliteDB.SetConnMaxLifetime(0)
	sqliteDB.SetConnMaxIdleTime(0)

	driver := DB{db: sqliteDB, profile: profile}

	return &driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

// unixTime converts a unix-seconds column into time.Time.
func unixTime(v int64) time.Time {
	return time.Unix(v, 0).UTC()
}

// unixOrNil converts a nullable unix-seconds column into *time.Time.
func unixOrNil(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

var migrationStmts = []string{
	`CREATE TABLE IF NOT EXISTS user (
		id TEXT PRIMARY KEY,
		chat_identity TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		sleep_start TEXT,
		sleep_end TEXT,
		created_ts BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS event (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		creator_id TEXT NOT NULL,
		window_start_date TEXT NOT NULL,
		window_end_date TEXT NOT NULL,
		daily_start_time TEXT NOT NULL,
		daily_end_time TEXT NOT NULL,
		min_participants INTEGER NOT NULL DEFAULT 2,
		min_block_slots INTEGER NOT NULL DEFAULT 2,
		max_block_slots INTEGER NOT NULL DEFAULT 4,
		reminders_enabled BOOLEAN NOT NULL DEFAULT 1,
		timezone TEXT NOT NULL,
		state TEXT NOT NULL DEFAULT 'open',
		last_nudge_date TEXT,
		last_countdown_date TEXT,
		last_imminent_at BIGINT,
		created_ts BIGINT NOT NULL,
		updated_ts BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS availability_block (
		event_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		start_ts BIGINT NOT NULL,
		end_ts BIGINT NOT NULL,
		PRIMARY KEY (event_id, user_id, start_ts)
	)`,
	`CREATE TABLE IF NOT EXISTS confirmation (
		event_id TEXT PRIMARY KEY,
		start_ts BIGINT NOT NULL,
		end_ts BIGINT NOT NULL,
		confirmed_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS membership (
		event_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		joined_at BIGINT NOT NULL,
		PRIMARY KEY (event_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS event_chat (
		event_id TEXT PRIMARY KEY,
		chat_id TEXT NOT NULL,
		thread_id TEXT,
		reminders_enabled BOOLEAN NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS share_token (
		token TEXT PRIMARY KEY,
		chat_identity TEXT NOT NULL,
		chat_id TEXT NOT NULL,
		message_id INTEGER NOT NULL,
		thread_id TEXT,
		expires_at BIGINT NOT NULL,
		used_at BIGINT
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
