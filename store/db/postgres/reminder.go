package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/meetwhenah/meetwhenah/store"
)

// The noon matches below convert the tick instant into each event's stored
// timezone, so an event created in Singapore nudges at Singapore noon no
// matter where the server runs. A tick counts as noon when it lands inside
// the 12:00 slot. The wall-date comparison against the last_*_date columns
// keeps repeated ticks within the same local day silent.
const localNoonMatch = `
	date_part('hour', $1::timestamptz AT TIME ZONE event.timezone) = 12
	AND date_part('minute', $1::timestamptz AT TIME ZONE event.timezone) < 30`

func (d *DB) ListOpenEventsNeedingNudge(ctx context.Context, now time.Time) ([]*store.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM event
		WHERE state = $2
			AND reminders_enabled = TRUE
			AND ` + localNoonMatch + `
			AND (last_nudge_date IS NULL
				OR last_nudge_date <> to_char($1::timestamptz AT TIME ZONE event.timezone, 'YYYY-MM-DD'))
		ORDER BY created_ts`

	rows, err := d.db.QueryContext(ctx, query, now, store.EventStateOpen)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list events needing nudge")
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

func (d *DB) ListConfirmedEventsNeedingCountdown(ctx context.Context, now time.Time) ([]*store.ConfirmedEvent, error) {
	query := `SELECT ` + confirmedEventColumns + ` FROM event
		JOIN confirmation c ON c.event_id = event.id
		WHERE event.state = $2
			AND event.reminders_enabled = TRUE
			AND c.start_ts > $1
			AND ` + localNoonMatch + `
			AND (event.last_countdown_date IS NULL
				OR event.last_countdown_date <> to_char($1::timestamptz AT TIME ZONE event.timezone, 'YYYY-MM-DD'))
		ORDER BY c.start_ts`

	return d.listConfirmedEvents(ctx, query, now, store.EventStateConfirmed)
}

func (d *DB) ListConfirmedEventsStartingSoon(ctx context.Context, now time.Time, horizon time.Duration) ([]*store.ConfirmedEvent, error) {
	query := `SELECT ` + confirmedEventColumns + ` FROM event
		JOIN confirmation c ON c.event_id = event.id
		WHERE event.state = $1
			AND event.reminders_enabled = TRUE
			AND c.start_ts > $2
			AND c.start_ts <= $3
			AND event.last_imminent_at IS NULL
		ORDER BY c.start_ts`

	return d.listConfirmedEvents(ctx, query, store.EventStateConfirmed, now, now.Add(horizon))
}

const confirmedEventColumns = `event.id, event.name, event.description, event.creator_id,
	event.window_start_date, event.window_end_date, event.daily_start_time, event.daily_end_time,
	event.min_participants, event.min_block_slots, event.max_block_slots,
	event.reminders_enabled, event.timezone, event.state,
	event.last_nudge_date, event.last_countdown_date, event.last_imminent_at,
	event.created_ts, event.updated_ts,
	c.start_ts, c.end_ts`

func (d *DB) listConfirmedEvents(ctx context.Context, query string, args ...any) ([]*store.ConfirmedEvent, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list confirmed events")
	}
	defer rows.Close()

	list := make([]*store.ConfirmedEvent, 0)
	for rows.Next() {
		event := &store.Event{}
		confirmed := &store.ConfirmedEvent{Event: event}
		if err := rows.Scan(
			&event.ID, &event.Name, &event.Description, &event.CreatorID,
			&event.WindowStartDate, &event.WindowEndDate, &event.DailyStartTime, &event.DailyEndTime,
			&event.MinParticipants, &event.MinBlockSlots, &event.MaxBlockSlots,
			&event.RemindersEnabled, &event.Timezone, &event.State,
			&event.LastNudgeDate, &event.LastCountdownDate, &event.LastImminentAt,
			&event.CreatedTs, &event.UpdatedTs,
			&confirmed.ConfirmedStart, &confirmed.ConfirmedEnd,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan confirmed event")
		}
		list = append(list, confirmed)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate confirmed events")
	}

	return list, nil
}

func (d *DB) MarkNudgeSent(ctx context.Context, eventID uuid.UUID, wallDate string) error {
	if _, err := d.db.ExecContext(ctx,
		`UPDATE event SET last_nudge_date = $1 WHERE id = $2`,
		wallDate, eventID,
	); err != nil {
		return errors.Wrap(err, "failed to mark nudge sent")
	}
	return nil
}

func (d *DB) MarkCountdownSent(ctx context.Context, eventID uuid.UUID, wallDate string) error {
	if _, err := d.db.ExecContext(ctx,
		`UPDATE event SET last_countdown_date = $1 WHERE id = $2`,
		wallDate, eventID,
	); err != nil {
		return errors.Wrap(err, "failed to mark countdown sent")
	}
	return nil
}

func (d *DB) MarkImminentSent(ctx context.Context, eventID uuid.UUID, at time.Time) error {
	if _, err := d.db.ExecContext(ctx,
		`UPDATE event SET last_imminent_at = $1 WHERE id = $2`,
		at, eventID,
	); err != nil {
		return errors.Wrap(err, "failed to mark imminent sent")
	}
	return nil
}
