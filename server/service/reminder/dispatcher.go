// Package reminder runs the timed reminder passes: a daily availability
// nudge for open events, a daily countdown for confirmed ones, and a
// one-shot imminent reminder shortly before the confirmed start.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/meetwhenah/meetwhenah/internal/timeutil"
	"github.com/meetwhenah/meetwhenah/plugin/chat_apps"
	"github.com/meetwhenah/meetwhenah/store"
)

// ImminentHorizon is how far ahead of the confirmed start the imminent
// reminder fires.
const ImminentHorizon = 2 * time.Hour

// defaultSendConcurrency bounds in-flight chat sends per tick.
const defaultSendConcurrency = 4

// Store is the slice of the store the dispatcher depends on.
type Store interface {
	MarkEventsPast(ctx context.Context, now time.Time) (int64, error)
	ListOpenEventsNeedingNudge(ctx context.Context, now time.Time) ([]*store.Event, error)
	ListConfirmedEventsNeedingCountdown(ctx context.Context, now time.Time) ([]*store.ConfirmedEvent, error)
	ListConfirmedEventsStartingSoon(ctx context.Context, now time.Time, horizon time.Duration) ([]*store.ConfirmedEvent, error)
	GetEventChat(ctx context.Context, eventID uuid.UUID) (*store.EventChat, error)
	MarkNudgeSent(ctx context.Context, eventID uuid.UUID, wallDate string) error
	MarkCountdownSent(ctx context.Context, eventID uuid.UUID, wallDate string) error
	MarkImminentSent(ctx context.Context, eventID uuid.UUID, at time.Time) error
}

// Dispatcher runs the reminder passes. A single dispatcher instance runs per
// process; the duplicate suppression lives in the store, so overlapping
// ticks or restarts never double-send a daily reminder.
type Dispatcher struct {
	store  Store
	clock  clock.Clock
	sender chat_apps.Sender
	sem    *semaphore.Weighted
}

func NewDispatcher(s Store, c clock.Clock, sender chat_apps.Sender) *Dispatcher {
	return &Dispatcher{
		store:  s,
		clock:  c,
		sender: sender,
		sem:    semaphore.NewWeighted(defaultSendConcurrency),
	}
}

// Tick runs one dispatch round: expire elapsed events, then the three
// reminder passes. A send failure is logged and skipped; the suppression
// marker is only written after a successful send, so the next eligible tick
// retries.
func (d *Dispatcher) Tick(ctx context.Context) {
	now := d.clock.Now()
	metricTicks.Inc()

	if moved, err := d.store.MarkEventsPast(ctx, now); err != nil {
		slog.Error("reminder: failed to expire events", "error", err)
	} else if moved > 0 {
		slog.Info("reminder: events moved to past", "count", moved)
	}

	var wg sync.WaitGroup

	nudges, err := d.store.ListOpenEventsNeedingNudge(ctx, now)
	if err != nil {
		slog.Error("reminder: nudge query failed", "error", err)
	}
	for _, event := range nudges {
		d.dispatch(ctx, &wg, event, "nudge", nudgeText(event), func(ctx context.Context) error {
			return d.store.MarkNudgeSent(ctx, event.ID, localWallDate(event, now))
		})
	}

	countdowns, err := d.store.ListConfirmedEventsNeedingCountdown(ctx, now)
	if err != nil {
		slog.Error("reminder: countdown query failed", "error", err)
	}
	for _, confirmed := range countdowns {
		event := confirmed.Event
		d.dispatch(ctx, &wg, event, "countdown", countdownText(confirmed, now), func(ctx context.Context) error {
			return d.store.MarkCountdownSent(ctx, event.ID, localWallDate(event, now))
		})
	}

	imminent, err := d.store.ListConfirmedEventsStartingSoon(ctx, now, ImminentHorizon)
	if err != nil {
		slog.Error("reminder: imminent query failed", "error", err)
	}
	for _, confirmed := range imminent {
		event := confirmed.Event
		d.dispatch(ctx, &wg, event, "imminent", imminentText(confirmed), func(ctx context.Context) error {
			return d.store.MarkImminentSent(ctx, event.ID, now)
		})
	}

	wg.Wait()
}

// dispatch sends one reminder to the event's chat and records the
// suppression marker on success. Sends run concurrently, bounded by the
// semaphore; Tick waits for all of them.
func (d *Dispatcher) dispatch(ctx context.Context, wg *sync.WaitGroup, event *store.Event, kind, text string, mark func(context.Context) error) {
	chat, err := d.store.GetEventChat(ctx, event.ID)
	if err != nil {
		slog.Error("reminder: chat lookup failed", "event", event.ID, "error", err)
		return
	}
	if chat == nil || !chat.RemindersEnabled {
		return
	}

	if err := d.sem.Acquire(ctx, 1); err != nil {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer d.sem.Release(1)

		if _, err := d.sender.SendMessage(ctx, &chat_apps.OutgoingMessage{
			ChatID:   chat.ChatID,
			ThreadID: chat.ThreadID,
			Content:  text,
		}); err != nil {
			metricSendFailures.WithLabelValues(kind).Inc()
			slog.Warn("reminder: send failed", "event", event.ID, "kind", kind, "error", err)
			return
		}
		metricSent.WithLabelValues(kind).Inc()

		if err := mark(ctx); err != nil {
			slog.Error("reminder: failed to record send", "event", event.ID, "kind", kind, "error", err)
		}
	}()
}

func localWallDate(event *store.Event, now time.Time) string {
	loc, err := timeutil.LoadLocation(event.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return timeutil.WallDate(now, loc)
}

func nudgeText(event *store.Event) string {
	return fmt.Sprintf("%q is still collecting availability. Fill in your free slots so a time can be picked.", event.Name)
}

func countdownText(confirmed *store.ConfirmedEvent, now time.Time) string {
	event := confirmed.Event
	loc, err := timeutil.LoadLocation(event.Timezone)
	if err != nil {
		loc = time.UTC
	}
	days := daysUntil(now, confirmed.ConfirmedStart, loc)
	switch {
	case days <= 0:
		return fmt.Sprintf("%q is today at %s.", event.Name, confirmed.ConfirmedStart.In(loc).Format("15:04"))
	case days == 1:
		return fmt.Sprintf("%q is tomorrow at %s.", event.Name, confirmed.ConfirmedStart.In(loc).Format("15:04"))
	default:
		return fmt.Sprintf("%d days until %q.", days, event.Name)
	}
}

func imminentText(confirmed *store.ConfirmedEvent) string {
	event := confirmed.Event
	loc, err := timeutil.LoadLocation(event.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return fmt.Sprintf("%q starts soon, at %s.", event.Name, confirmed.ConfirmedStart.In(loc).Format("15:04"))
}

// daysUntil counts wall-date boundaries between now and target in loc.
func daysUntil(now, target time.Time, loc *time.Location) int {
	nowLocal := now.In(loc)
	targetLocal := target.In(loc)
	nowDay := time.Date(nowLocal.Year(), nowLocal.Month(), nowLocal.Day(), 0, 0, 0, 0, loc)
	targetDay := time.Date(targetLocal.Year(), targetLocal.Month(), targetLocal.Day(), 0, 0, 0, 0, loc)
	return int(targetDay.Sub(nowDay) / (24 * time.Hour))
}
