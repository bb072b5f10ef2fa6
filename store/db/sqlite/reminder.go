package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/meetwhenah/meetwhenah/internal/timeutil"
	"github.com/meetwhenah/meetwhenah/store"
)

// The noon matches load candidates by state and evaluate the per-event
// timezone in Go. SQLite has no timezone-aware SQL functions, so this stays
// correct at the cost of scanning every candidate row on noon ticks. Events
// with an unloadable timezone are skipped rather than failing the pass.

func (d *DB) ListOpenEventsNeedingNudge(ctx context.Context, now time.Time) ([]*store.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM event
		WHERE state = ? AND reminders_enabled = 1
		ORDER BY created_ts`

	rows, err := d.db.QueryContext(ctx, query, store.EventStateOpen)
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
		if needsDailySend(event, event.LastNudgeDate, now) {
			list = append(list, event)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate events")
	}

	return list, nil
}

func (d *DB) ListConfirmedEventsNeedingCountdown(ctx context.Context, now time.Time) ([]*store.ConfirmedEvent, error) {
	all, err := d.listConfirmedEvents(ctx)
	if err != nil {
		return nil, err
	}

	list := make([]*store.ConfirmedEvent, 0)
	for _, confirmed := range all {
		if !confirmed.ConfirmedStart.After(now) {
			continue
		}
		if needsDailySend(confirmed.Event, confirmed.Event.LastCountdownDate, now) {
			list = append(list, confirmed)
		}
	}

	return list, nil
}

func (d *DB) ListConfirmedEventsStartingSoon(ctx context.Context, now time.Time, horizon time.Duration) ([]*store.ConfirmedEvent, error) {
	all, err := d.listConfirmedEvents(ctx)
	if err != nil {
		return nil, err
	}

	deadline := now.Add(horizon)
	list := make([]*store.ConfirmedEvent, 0)
	for _, confirmed := range all {
		if !confirmed.ConfirmedStart.After(now) || confirmed.ConfirmedStart.After(deadline) {
			continue
		}
		if confirmed.Event.LastImminentAt != nil {
			continue
		}
		list = append(list, confirmed)
	}

	return list, nil
}

// needsDailySend reports whether now is local noon for the event and no send
// has been recorded for today's local wall date.
func needsDailySend(event *store.Event, lastDate *string, now time.Time) bool {
	loc, err := timeutil.LoadLocation(event.Timezone)
	if err != nil {
		return false
	}
	if !timeutil.IsLocalNoon(now, loc) {
		return false
	}
	today := timeutil.WallDate(now, loc)
	return lastDate == nil || *lastDate != today
}

func (d *DB) listConfirmedEvents(ctx context.Context) ([]*store.ConfirmedEvent, error) {
	query := `SELECT ` + eventColumns + `, c.start_ts, c.end_ts FROM event
		JOIN confirmation c ON c.event_id = event.id
		WHERE event.state = ? AND event.reminders_enabled = 1
		ORDER BY c.start_ts`

	rows, err := d.db.QueryContext(ctx, query, store.EventStateConfirmed)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list confirmed events")
	}
	defer rows.Close()

	list := make([]*store.ConfirmedEvent, 0)
	for rows.Next() {
		event := &store.Event{}
		confirmed := &store.ConfirmedEvent{Event: event}
		var lastImminentAt sql.NullInt64
		var startTs, endTs int64
		if err := rows.Scan(
			&event.ID, &event.Name, &event.Description, &event.CreatorID,
			&event.WindowStartDate, &event.WindowEndDate, &event.DailyStartTime, &event.DailyEndTime,
			&event.MinParticipants, &event.MinBlockSlots, &event.MaxBlockSlots,
			&event.RemindersEnabled, &event.Timezone, &event.State,
			&event.LastNudgeDate, &event.LastCountdownDate, &lastImminentAt,
			&event.CreatedTs, &event.UpdatedTs,
			&startTs, &endTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan confirmed event")
		}
		event.LastImminentAt = unixOrNil(lastImminentAt)
		confirmed.ConfirmedStart = unixTime(startTs)
		confirmed.ConfirmedEnd = unixTime(endTs)
		list = append(list, confirmed)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate confirmed events")
	}

	return list, nil
}

func (d *DB) MarkNudgeSent(ctx context.Context, eventID uuid.UUID, wallDate string) error {
	if _, err := d.db.ExecContext(ctx,
		`UPDATE event SET last_nudge_date = ? WHERE id = ?`,
		wallDate, eventID,
	); err != nil {
		return errors.Wrap(err, "failed to mark nudge sent")
	}
	return nil
}

func (d *DB) MarkCountdownSent(ctx context.Context, eventID uuid.UUID, wallDate string) error {
	if _, err := d.db.ExecContext(ctx,
		`UPDATE event SET last_countdown_date = ? WHERE id = ?`,
		wallDate, eventID,
	); err != nil {
		return errors.Wrap(err, "failed to mark countdown sent")
	}
	return nil
}

func (d *DB) MarkImminentSent(ctx context.Context, eventID uuid.UUID, at time.Time) error {
	if _, err := d.db.ExecContext(ctx,
		`UPDATE event SET last_imminent_at = ? WHERE id = ?`,
		at.Unix(), eventID,
	); err != nil {
		return errors.Wrap(err, "failed to mark imminent sent")
	}
	return nil
}
