package reminder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetwhenah/meetwhenah/internal/timeutil"
	"github.com/meetwhenah/meetwhenah/plugin/chat_apps"
	"github.com/meetwhenah/meetwhenah/store"
)

// fakeReminderStore mirrors the store's reminder semantics in memory: the
// list queries apply the noon match and the duplicate-suppression columns.
type fakeReminderStore struct {
	mu            sync.Mutex
	events        map[uuid.UUID]*store.Event
	confirmations map[uuid.UUID]*store.Confirmation
	chats         map[uuid.UUID]*store.EventChat
}

func newFakeReminderStore() *fakeReminderStore {
	return &fakeReminderStore{
		events:        make(map[uuid.UUID]*store.Event),
		confirmations: make(map[uuid.UUID]*store.Confirmation),
		chats:         make(map[uuid.UUID]*store.EventChat),
	}
}

func (f *fakeReminderStore) MarkEventsPast(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var moved int64
	for id, event := range f.events {
		confirmation := f.confirmations[id]
		if event.State == store.EventStateConfirmed && confirmation != nil && !confirmation.EndTs.After(now) {
			event.State = store.EventStatePast
			moved++
		}
	}
	return moved, nil
}

func (f *fakeReminderStore) needsDailySend(event *store.Event, lastDate *string, now time.Time) bool {
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

func (f *fakeReminderStore) ListOpenEventsNeedingNudge(_ context.Context, now time.Time) ([]*store.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := make([]*store.Event, 0)
	for _, event := range f.events {
		if event.State != store.EventStateOpen || !event.RemindersEnabled {
			continue
		}
		if f.needsDailySend(event, event.LastNudgeDate, now) {
			list = append(list, event)
		}
	}
	return list, nil
}

func (f *fakeReminderStore) ListConfirmedEventsNeedingCountdown(_ context.Context, now time.Time) ([]*store.ConfirmedEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := make([]*store.ConfirmedEvent, 0)
	for id, event := range f.events {
		confirmation := f.confirmations[id]
		if event.State != store.EventStateConfirmed || !event.RemindersEnabled || confirmation == nil {
			continue
		}
		if !confirmation.StartTs.After(now) {
			continue
		}
		if f.needsDailySend(event, event.LastCountdownDate, now) {
			list = append(list, &store.ConfirmedEvent{
				Event:          event,
				ConfirmedStart: confirmation.StartTs,
				ConfirmedEnd:   confirmation.EndTs,
			})
		}
	}
	return list, nil
}

func (f *fakeReminderStore) ListConfirmedEventsStartingSoon(_ context.Context, now time.Time, horizon time.Duration) ([]*store.ConfirmedEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	deadline := now.Add(horizon)
	list := make([]*store.ConfirmedEvent, 0)
	for id, event := range f.events {
		confirmation := f.confirmations[id]
		if event.State != store.EventStateConfirmed || !event.RemindersEnabled || confirmation == nil {
			continue
		}
		if !confirmation.StartTs.After(now) || confirmation.StartTs.After(deadline) {
			continue
		}
		if event.LastImminentAt != nil {
			continue
		}
		list = append(list, &store.ConfirmedEvent{
			Event:          event,
			ConfirmedStart: confirmation.StartTs,
			ConfirmedEnd:   confirmation.EndTs,
		})
	}
	return list, nil
}

func (f *fakeReminderStore) GetEventChat(_ context.Context, eventID uuid.UUID) (*store.EventChat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chats[eventID], nil
}

func (f *fakeReminderStore) MarkNudgeSent(_ context.Context, eventID uuid.UUID, wallDate string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[eventID].LastNudgeDate = &wallDate
	return nil
}

func (f *fakeReminderStore) MarkCountdownSent(_ context.Context, eventID uuid.UUID, wallDate string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[eventID].LastCountdownDate = &wallDate
	return nil
}

func (f *fakeReminderStore) MarkImminentSent(_ context.Context, eventID uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[eventID].LastImminentAt = &at
	return nil
}

// fakeSender records sent messages and can be told to fail per chat.
type fakeSender struct {
	mu       sync.Mutex
	sent     []*chat_apps.OutgoingMessage
	failChat map[string]bool
}

func newFakeSender() *fakeSender {
	return &fakeSender{failChat: make(map[string]bool)}
}

func (s *fakeSender) SendMessage(_ context.Context, msg *chat_apps.OutgoingMessage) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failChat[msg.ChatID] {
		return 0, errors.New("chat unavailable")
	}
	s.sent = append(s.sent, msg)
	return len(s.sent), nil
}

func (s *fakeSender) EditMessage(context.Context, string, int, string) error { return nil }
func (s *fakeSender) AnswerCallback(context.Context, string, string) error   { return nil }

func (s *fakeSender) sentTo(chatID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, msg := range s.sent {
		if msg.ChatID == chatID {
			count++
		}
	}
	return count
}

// noonUTC is Singapore noon: 04:00 UTC.
var noonUTC = time.Date(2025, 1, 10, 4, 0, 0, 0, time.UTC)

func addOpenEvent(fs *fakeReminderStore, chatID string) *store.Event {
	event := &store.Event{
		ID:               uuid.New(),
		Name:             "board games",
		State:            store.EventStateOpen,
		RemindersEnabled: true,
		Timezone:         "Asia/Singapore",
	}
	fs.events[event.ID] = event
	fs.chats[event.ID] = &store.EventChat{EventID: event.ID, ChatID: chatID, RemindersEnabled: true}
	return event
}

func addConfirmedEvent(fs *fakeReminderStore, chatID string, start, end time.Time) *store.Event {
	event := &store.Event{
		ID:               uuid.New(),
		Name:             "board games",
		State:            store.EventStateConfirmed,
		RemindersEnabled: true,
		Timezone:         "Asia/Singapore",
	}
	fs.events[event.ID] = event
	fs.confirmations[event.ID] = &store.Confirmation{EventID: event.ID, StartTs: start, EndTs: end}
	fs.chats[event.ID] = &store.EventChat{EventID: event.ID, ChatID: chatID, RemindersEnabled: true}
	return event
}

func newTestDispatcher(fs *fakeReminderStore, sender *fakeSender, now time.Time) *Dispatcher {
	mock := clock.NewMock()
	mock.Set(now)
	return NewDispatcher(fs, mock, sender)
}

func TestTickNudgeDedup(t *testing.T) {
	fs := newFakeReminderStore()
	sender := newFakeSender()
	addOpenEvent(fs, "-100")

	d := newTestDispatcher(fs, sender, noonUTC)

	// Two ticks inside the same noon slot deliver exactly one nudge.
	d.Tick(context.Background())
	d.Tick(context.Background())

	assert.Equal(t, 1, sender.sentTo("-100"))
}

func TestTickOutsideNoonIsSilent(t *testing.T) {
	fs := newFakeReminderStore()
	sender := newFakeSender()
	addOpenEvent(fs, "-100")

	d := newTestDispatcher(fs, sender, noonUTC.Add(3*time.Hour))
	d.Tick(context.Background())

	assert.Equal(t, 0, sender.sentTo("-100"))
}

func TestTickImminentFiresOnce(t *testing.T) {
	fs := newFakeReminderStore()
	sender := newFakeSender()
	start := noonUTC.Add(90 * time.Minute) // inside the 2h horizon
	addConfirmedEvent(fs, "-200", start, start.Add(time.Hour))

	// Off-noon tick so only the imminent pass can fire.
	d := newTestDispatcher(fs, sender, noonUTC.Add(time.Hour))
	d.Tick(context.Background())
	d.Tick(context.Background())

	assert.Equal(t, 1, sender.sentTo("-200"))
}

func TestTickImminentOutsideHorizon(t *testing.T) {
	fs := newFakeReminderStore()
	sender := newFakeSender()
	start := noonUTC.Add(5 * time.Hour)
	addConfirmedEvent(fs, "-200", start, start.Add(time.Hour))

	d := newTestDispatcher(fs, sender, noonUTC.Add(time.Hour))
	d.Tick(context.Background())

	assert.Equal(t, 0, sender.sentTo("-200"))
}

func TestTickCountdownAtNoon(t *testing.T) {
	fs := newFakeReminderStore()
	sender := newFakeSender()
	start := noonUTC.Add(72 * time.Hour)
	addConfirmedEvent(fs, "-300", start, start.Add(time.Hour))

	d := newTestDispatcher(fs, sender, noonUTC)
	d.Tick(context.Background())
	d.Tick(context.Background())

	assert.Equal(t, 1, sender.sentTo("-300"))
}

func TestTickPartialFailureContinues(t *testing.T) {
	fs := newFakeReminderStore()
	sender := newFakeSender()
	broken := addOpenEvent(fs, "-bad")
	addOpenEvent(fs, "-good")
	sender.failChat["-bad"] = true

	d := newTestDispatcher(fs, sender, noonUTC)
	d.Tick(context.Background())

	assert.Equal(t, 0, sender.sentTo("-bad"))
	assert.Equal(t, 1, sender.sentTo("-good"))

	// The failed target keeps no suppression marker, so a retry tick in the
	// same noon slot reaches it once the chat recovers.
	require.Nil(t, fs.events[broken.ID].LastNudgeDate)
	sender.failChat["-bad"] = false
	d.Tick(context.Background())

	assert.Equal(t, 1, sender.sentTo("-bad"))
	assert.Equal(t, 1, sender.sentTo("-good"))
}

func TestTickExpiresElapsedEvents(t *testing.T) {
	fs := newFakeReminderStore()
	sender := newFakeSender()
	start := noonUTC.Add(-3 * time.Hour)
	event := addConfirmedEvent(fs, "-400", start, start.Add(time.Hour))

	d := newTestDispatcher(fs, sender, noonUTC)
	d.Tick(context.Background())

	assert.Equal(t, store.EventStatePast, fs.events[event.ID].State)
	assert.Equal(t, 0, sender.sentTo("-400"))
}

func TestTickRespectsChatReminderMute(t *testing.T) {
	fs := newFakeReminderStore()
	sender := newFakeSender()
	event := addOpenEvent(fs, "-500")
	fs.chats[event.ID].RemindersEnabled = false

	d := newTestDispatcher(fs, sender, noonUTC)
	d.Tick(context.Background())

	assert.Equal(t, 0, sender.sentTo("-500"))
}
