package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/meetwhenah/meetwhenah/store"
)

func (d *DB) CreateEvent(ctx context.Context, create *store.Event) (*store.Event, error) {
	fields := []string{
		"id", "name", "description", "creator_id",
		"window_start_date", "window_end_date", "daily_start_time", "daily_end_time",
		"min_participants", "min_block_slots", "max_block_slots",
		"reminders_enabled", "timezone", "state", "created_ts", "updated_ts",
	}
	args := []any{
		create.ID, create.Name, create.Description, create.CreatorID,
		create.WindowStartDate, create.WindowEndDate, create.DailyStartTime, create.DailyEndTime,
		create.MinParticipants, create.MinBlockSlots, create.MaxBlockSlots,
		create.RemindersEnabled, create.Timezone, create.State, create.CreatedTs, create.UpdatedTs,
	}

	stmt := `INSERT INTO event (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)`
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return nil, errors.Wrap(err, "failed to create event")
	}

	return create, nil
}

const eventColumns = `id, name, description, creator_id,
	window_start_date, window_end_date, daily_start_time, daily_end_time,
	min_participants, min_block_slots, max_block_slots,
	reminders_enabled, timezone, state,
	last_nudge_date, last_countdown_date, last_imminent_at,
	created_ts, updated_ts`

func scanEvent(row interface{ Scan(dest ...any) error }) (*store.Event, error) {
	event := &store.Event{}
	err := row.Scan(
		&event.ID, &event.Name, &event.Description, &event.CreatorID,
		&event.WindowStartDate, &event.WindowEndDate, &event.DailyStartTime, &event.DailyEndTime,
		&event.MinParticipants, &event.MinBlockSlots, &event.MaxBlockSlots,
		&event.RemindersEnabled, &event.Timezone, &event.State,
		&event.LastNudgeDate, &event.LastCountdownDate, &event.LastImminentAt,
		&event.CreatedTs, &event.UpdatedTs,
	)
	if err != nil {
		return nil, err
	}
	return event, nil
}

func (d *DB) GetEvent(ctx context.Context, find *store.FindEvent) (*store.Event, error) {
	where, args := eventWhere(find)

	query := `SELECT ` + eventColumns + ` FROM event WHERE ` + strings.Join(where, " AND ") + ` LIMIT 1`
	event, err := scanEvent(d.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get event")
	}

	return event, nil
}

func (d *DB) ListEvents(ctx context.Context, find *store.FindEvent) ([]*store.Event, error) {
	where, args := eventWhere(find)

	query := `SELECT ` + eventColumns + ` FROM event WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_ts DESC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list events")
	}
	defer rows.Close()

	list := make([]*store.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan event")
		}
		list = append(list, event)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate events")
	}

	return list, nil
}

func eventWhere(find *store.FindEvent) ([]string, []any) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.CreatorID != nil {
		where, args = append(where, "creator_id = "+placeholder(len(args)+1)), append(args, *find.CreatorID)
	}
	if find.State != nil {
		where, args = append(where, "state = "+placeholder(len(args)+1)), append(args, *find.State)
	}

	return where, args
}

func (d *DB) UpdateEvent(ctx context.Context, update *store.UpdateEvent) error {
	set, args := []string{}, []any{}

	if update.Name != nil {
		set, args = append(set, "name = "+placeholder(len(args)+1)), append(args, *update.Name)
	}
	if update.Description != nil {
		set, args = append(set, "description = "+placeholder(len(args)+1)), append(args, *update.Description)
	}
	if update.RemindersEnabled != nil {
		set, args = append(set, "reminders_enabled = "+placeholder(len(args)+1)), append(args, *update.RemindersEnabled)
	}
	if update.State != nil {
		set, args = append(set, "state = "+placeholder(len(args)+1)), append(args, *update.State)
	}
	if update.UpdatedTs != nil {
		set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, *update.UpdatedTs)
	}

	if len(set) == 0 {
		return errors.New("no fields to update")
	}

	args = append(args, update.ID)
	stmt := `UPDATE event SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args))
	result, err := d.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return errors.Wrap(err, "failed to update event")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return store.ErrNotFound
	}

	return nil
}

// MarkEventsPast transitions confirmed events whose confirmed end has
// elapsed. The reminder dispatcher calls this at the top of every tick.
func (d *DB) MarkEventsPast(ctx context.Context, now time.Time) (int64, error) {
	stmt := `
		UPDATE event SET state = $1, updated_ts = $2
		FROM confirmation c
		WHERE event.id = c.event_id AND event.state = $3 AND c.end_ts <= $4`
	result, err := d.db.ExecContext(ctx, stmt, store.EventStatePast, now.Unix(), store.EventStateConfirmed, now)
	if err != nil {
		return 0, errors.Wrap(err, "failed to mark events past")
	}

	rows, _ := result.RowsAffected()
	return rows, nil
}
