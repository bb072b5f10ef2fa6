package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetwhenah/meetwhenah/internal/apperr"
	"github.com/meetwhenah/meetwhenah/store"
)

// fakeStore is an in-memory Store for service tests.
type fakeStore struct {
	mu            sync.Mutex
	users         map[uuid.UUID]*store.User
	events        map[uuid.UUID]*store.Event
	availability  map[uuid.UUID][]*store.AvailabilityBlock
	confirmations map[uuid.UUID]*store.Confirmation
	members       map[uuid.UUID]map[uuid.UUID]*store.Membership
	chats         map[uuid.UUID]*store.EventChat
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:         make(map[uuid.UUID]*store.User),
		events:        make(map[uuid.UUID]*store.Event),
		availability:  make(map[uuid.UUID][]*store.AvailabilityBlock),
		confirmations: make(map[uuid.UUID]*store.Confirmation),
		members:       make(map[uuid.UUID]map[uuid.UUID]*store.Membership),
		chats:         make(map[uuid.UUID]*store.EventChat),
	}
}

func (f *fakeStore) UpsertUser(_ context.Context, upsert *store.UpsertUser) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ChatIdentity == upsert.ChatIdentity {
			u.DisplayName = upsert.DisplayName
			if upsert.SleepStart != nil {
				u.SleepStart = upsert.SleepStart
			}
			if upsert.SleepEnd != nil {
				u.SleepEnd = upsert.SleepEnd
			}
			return u, nil
		}
	}
	user := &store.User{
		ID:           uuid.New(),
		ChatIdentity: upsert.ChatIdentity,
		DisplayName:  upsert.DisplayName,
		SleepStart:   upsert.SleepStart,
		SleepEnd:     upsert.SleepEnd,
	}
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeStore) GetUser(_ context.Context, find *store.FindUser) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if find.ID != nil && u.ID != *find.ID {
			continue
		}
		if find.ChatIdentity != nil && u.ChatIdentity != *find.ChatIdentity {
			continue
		}
		return u, nil
	}
	return nil, nil
}

func (f *fakeStore) CreateEvent(_ context.Context, create *store.Event) (*store.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[create.ID] = create
	return create, nil
}

func (f *fakeStore) GetEvent(_ context.Context, find *store.FindEvent) (*store.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if find.ID != nil {
		if event, ok := f.events[*find.ID]; ok {
			copied := *event
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) UpdateEvent(_ context.Context, update *store.UpdateEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.events[update.ID]
	if !ok {
		return store.ErrNotFound
	}
	if update.State != nil {
		event.State = *update.State
	}
	if update.RemindersEnabled != nil {
		event.RemindersEnabled = *update.RemindersEnabled
	}
	if update.UpdatedTs != nil {
		event.UpdatedTs = *update.UpdatedTs
	}
	return nil
}

func (f *fakeStore) ReplaceAvailability(_ context.Context, eventID, userID uuid.UUID, blocks []*store.AvailabilityBlock) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := make([]*store.AvailabilityBlock, 0)
	for _, b := range f.availability[eventID] {
		if b.UserID != userID {
			kept = append(kept, b)
		}
	}
	f.availability[eventID] = append(kept, blocks...)
	return nil
}

func (f *fakeStore) ListAvailability(_ context.Context, eventID uuid.UUID) ([]*store.AvailabilityBlock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*store.AvailabilityBlock{}, f.availability[eventID]...), nil
}

func (f *fakeStore) ListUserAvailability(_ context.Context, eventID, userID uuid.UUID) ([]*store.AvailabilityBlock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	blocks := make([]*store.AvailabilityBlock, 0)
	for _, block := range f.availability[eventID] {
		if block.UserID == userID {
			blocks = append(blocks, block)
		}
	}
	return blocks, nil
}

func (f *fakeStore) CreateConfirmation(_ context.Context, create *store.Confirmation) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.confirmations[create.EventID]; ok {
		return false, nil
	}
	f.confirmations[create.EventID] = create
	return true, nil
}

func (f *fakeStore) GetConfirmation(_ context.Context, eventID uuid.UUID) (*store.Confirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.confirmations[eventID], nil
}

func (f *fakeStore) AddMember(_ context.Context, add *store.Membership) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members[add.EventID] == nil {
		f.members[add.EventID] = make(map[uuid.UUID]*store.Membership)
	}
	if _, ok := f.members[add.EventID][add.UserID]; !ok {
		f.members[add.EventID][add.UserID] = add
	}
	return nil
}

func (f *fakeStore) RemoveMember(_ context.Context, eventID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.members[eventID], userID)
	return nil
}

func (f *fakeStore) ListMembers(_ context.Context, eventID uuid.UUID) ([]*store.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := make([]*store.Membership, 0)
	for _, m := range f.members[eventID] {
		list = append(list, m)
	}
	return list, nil
}

func (f *fakeStore) UpsertEventChat(_ context.Context, upsert *store.EventChat) (*store.EventChat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats[upsert.EventID] = upsert
	return upsert, nil
}

func (f *fakeStore) GetEventChat(_ context.Context, eventID uuid.UUID) (*store.EventChat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chats[eventID], nil
}

func (f *fakeStore) SetEventChatReminders(_ context.Context, eventID uuid.UUID, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, ok := f.chats[eventID]
	if !ok {
		return store.ErrNotFound
	}
	chat.RemindersEnabled = enabled
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeStore, *clock.Mock) {
	t.Helper()
	fs := newFakeStore()
	mock := clock.NewMock()
	mock.Set(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC))
	return NewService(fs, mock, nil, "Asia/Singapore"), fs, mock
}

func registerUser(t *testing.T, svc *Service, identity string) *store.User {
	t.Helper()
	user, err := svc.RegisterUser(context.Background(), identity, "User "+identity)
	require.NoError(t, err)
	return user
}

func createOpenEvent(t *testing.T, svc *Service, creator *store.User) *store.Event {
	t.Helper()
	event, err := svc.CreateEvent(context.Background(), &CreateEventRequest{
		CreatorID:       creator.ID,
		Name:            "board games",
		WindowStartDate: "2025-01-10",
		WindowEndDate:   "2025-01-12",
		DailyStartTime:  "09:00",
		DailyEndTime:    "22:00",
	})
	require.NoError(t, err)
	return event
}

func slotAt(hour, minute int) time.Time {
	return time.Date(2025, 1, 10, hour, minute, 0, 0, time.UTC)
}

func TestCreateEventDefaultsAndState(t *testing.T) {
	svc, _, _ := newTestService(t)
	creator := registerUser(t, svc, "100")

	event := createOpenEvent(t, svc, creator)

	assert.Equal(t, store.EventStateOpen, event.State)
	assert.Equal(t, 2, event.MinParticipants)
	assert.Equal(t, 2, event.MinBlockSlots)
	assert.Equal(t, 4, event.MaxBlockSlots)
	assert.True(t, event.RemindersEnabled)
	assert.Equal(t, "Asia/Singapore", event.Timezone)
}

func TestCreateEventValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	creator := registerUser(t, svc, "100")

	cases := []struct {
		name string
		req  CreateEventRequest
	}{
		{"empty name", CreateEventRequest{CreatorID: creator.ID}},
		{"window backwards", CreateEventRequest{
			CreatorID: creator.ID, Name: "x",
			WindowStartDate: "2025-01-12", WindowEndDate: "2025-01-10",
			DailyStartTime: "09:00", DailyEndTime: "22:00",
		}},
		{"daily hours backwards", CreateEventRequest{
			CreatorID: creator.ID, Name: "x",
			WindowStartDate: "2025-01-10", WindowEndDate: "2025-01-12",
			DailyStartTime: "22:00", DailyEndTime: "09:00",
		}},
		{"max below min slots", CreateEventRequest{
			CreatorID: creator.ID, Name: "x",
			WindowStartDate: "2025-01-10", WindowEndDate: "2025-01-12",
			DailyStartTime: "09:00", DailyEndTime: "22:00",
			MinBlockSlots: 4, MaxBlockSlots: 2,
		}},
		{"quorum of one", CreateEventRequest{
			CreatorID: creator.ID, Name: "x",
			WindowStartDate: "2025-01-10", WindowEndDate: "2025-01-12",
			DailyStartTime: "09:00", DailyEndTime: "22:00",
			MinParticipants: 1,
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateEvent(context.Background(), &tc.req)
			require.Error(t, err)
			assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
		})
	}
}

func TestRecordAvailabilityReplaceToEmpty(t *testing.T) {
	svc, fs, _ := newTestService(t)
	creator := registerUser(t, svc, "100")
	event := createOpenEvent(t, svc, creator)

	ctx := context.Background()
	slots := []time.Time{slotAt(10, 0), slotAt(10, 30), slotAt(11, 0), slotAt(11, 30)}
	require.NoError(t, svc.RecordAvailability(ctx, event.ID, creator.ID, slots))

	blocks, _ := fs.ListAvailability(ctx, event.ID)
	assert.Len(t, blocks, 4)

	require.NoError(t, svc.RecordAvailability(ctx, event.ID, creator.ID, nil))
	blocks, _ = fs.ListAvailability(ctx, event.ID)
	assert.Empty(t, blocks)
}

func TestRecordAvailabilityRejectsMisaligned(t *testing.T) {
	svc, _, _ := newTestService(t)
	creator := registerUser(t, svc, "100")
	event := createOpenEvent(t, svc, creator)

	err := svc.RecordAvailability(context.Background(), event.ID, creator.ID,
		[]time.Time{slotAt(10, 15)})
	require.Error(t, err)
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
}

func TestConfirmIdempotence(t *testing.T) {
	svc, fs, _ := newTestService(t)
	creator := registerUser(t, svc, "100")
	other := registerUser(t, svc, "101")
	event := createOpenEvent(t, svc, creator)

	ctx := context.Background()
	slots := []time.Time{slotAt(10, 0), slotAt(10, 30)}
	require.NoError(t, svc.RecordAvailability(ctx, event.ID, creator.ID, slots))
	require.NoError(t, svc.RecordAvailability(ctx, event.ID, other.ID, slots))

	require.NoError(t, svc.ConfirmEvent(ctx, event.ID, slotAt(10, 0), slotAt(11, 0)))

	err := svc.ConfirmEvent(ctx, event.ID, slotAt(10, 0), slotAt(11, 0))
	require.Error(t, err)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))

	confirmation, _ := fs.GetConfirmation(ctx, event.ID)
	require.NotNil(t, confirmation)

	members, _ := fs.ListMembers(ctx, event.ID)
	assert.Len(t, members, 2)
}

func TestConfirmMembershipIsSnapshot(t *testing.T) {
	svc, fs, _ := newTestService(t)
	creator := registerUser(t, svc, "100")
	other := registerUser(t, svc, "101")
	late := registerUser(t, svc, "102")
	event := createOpenEvent(t, svc, creator)

	ctx := context.Background()
	slots := []time.Time{slotAt(10, 0), slotAt(10, 30)}
	require.NoError(t, svc.RecordAvailability(ctx, event.ID, creator.ID, slots))
	require.NoError(t, svc.RecordAvailability(ctx, event.ID, other.ID, slots))

	require.NoError(t, svc.ConfirmEvent(ctx, event.ID, slotAt(10, 0), slotAt(11, 0)))

	// Membership reflects the intersection at confirm time; late arrivals
	// are not swept in.
	members, _ := fs.ListMembers(ctx, event.ID)
	memberIDs := make(map[uuid.UUID]bool)
	for _, m := range members {
		memberIDs[m.UserID] = true
	}
	assert.True(t, memberIDs[creator.ID])
	assert.True(t, memberIDs[other.ID])
	assert.False(t, memberIDs[late.ID])
}

func TestConfirmRejectsBadBlock(t *testing.T) {
	svc, _, _ := newTestService(t)
	creator := registerUser(t, svc, "100")
	event := createOpenEvent(t, svc, creator)

	ctx := context.Background()

	err := svc.ConfirmEvent(ctx, event.ID, slotAt(10, 15), slotAt(11, 15))
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))

	// One slot is below min_block_slots=2.
	err = svc.ConfirmEvent(ctx, event.ID, slotAt(10, 0), slotAt(10, 30))
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))

	// Five slots exceed max_block_slots=4.
	err = svc.ConfirmEvent(ctx, event.ID, slotAt(10, 0), slotAt(12, 30))
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
}

func TestNoBackwardTransition(t *testing.T) {
	svc, fs, _ := newTestService(t)
	creator := registerUser(t, svc, "100")
	other := registerUser(t, svc, "101")
	event := createOpenEvent(t, svc, creator)

	ctx := context.Background()
	slots := []time.Time{slotAt(10, 0), slotAt(10, 30)}
	require.NoError(t, svc.RecordAvailability(ctx, event.ID, creator.ID, slots))
	require.NoError(t, svc.RecordAvailability(ctx, event.ID, other.ID, slots))
	require.NoError(t, svc.ConfirmEvent(ctx, event.ID, slotAt(10, 0), slotAt(11, 0)))

	// Availability is closed once confirmed, and the state stays confirmed.
	err := svc.RecordAvailability(ctx, event.ID, creator.ID, slots)
	assert.Equal(t, apperr.InvalidState, apperr.KindOf(err))

	got, _ := fs.GetEvent(ctx, &store.FindEvent{ID: &event.ID})
	assert.Equal(t, store.EventStateConfirmed, got.State)
}

func TestJoinLeaveRequireConfirmed(t *testing.T) {
	svc, fs, _ := newTestService(t)
	creator := registerUser(t, svc, "100")
	other := registerUser(t, svc, "101")
	joiner := registerUser(t, svc, "102")
	event := createOpenEvent(t, svc, creator)

	ctx := context.Background()

	err := svc.Join(ctx, event.ID, joiner.ID)
	assert.Equal(t, apperr.InvalidState, apperr.KindOf(err))

	slots := []time.Time{slotAt(10, 0), slotAt(10, 30)}
	require.NoError(t, svc.RecordAvailability(ctx, event.ID, creator.ID, slots))
	require.NoError(t, svc.RecordAvailability(ctx, event.ID, other.ID, slots))
	require.NoError(t, svc.ConfirmEvent(ctx, event.ID, slotAt(10, 0), slotAt(11, 0)))

	require.NoError(t, svc.Join(ctx, event.ID, joiner.ID))
	require.NoError(t, svc.Join(ctx, event.ID, joiner.ID)) // no-op
	members, _ := fs.ListMembers(ctx, event.ID)
	assert.Len(t, members, 3)

	require.NoError(t, svc.Leave(ctx, event.ID, joiner.ID))
	require.NoError(t, svc.Leave(ctx, event.ID, joiner.ID)) // no-op
	members, _ = fs.ListMembers(ctx, event.ID)
	assert.Len(t, members, 2)
}

func TestToggleRemindersAsymmetry(t *testing.T) {
	svc, fs, _ := newTestService(t)
	creator := registerUser(t, svc, "100")
	stranger := registerUser(t, svc, "101")
	event := createOpenEvent(t, svc, creator)

	ctx := context.Background()

	// Non-creator cannot disable.
	_, err := svc.ToggleReminders(ctx, event.ID, stranger.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))

	got, _ := fs.GetEvent(ctx, &store.FindEvent{ID: &event.ID})
	assert.True(t, got.RemindersEnabled)

	// Creator disables.
	enabled, err := svc.ToggleReminders(ctx, event.ID, creator.ID)
	require.NoError(t, err)
	assert.False(t, enabled)

	// Once disabled, anyone may re-enable.
	enabled, err = svc.ToggleReminders(ctx, event.ID, stranger.ID)
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestSetSleepHours(t *testing.T) {
	svc, _, _ := newTestService(t)
	user := registerUser(t, svc, "100")

	ctx := context.Background()
	require.NoError(t, svc.SetSleepHours(ctx, user.ChatIdentity, "23:00", "07:00"))

	got, err := svc.Authorizer().IdentityFor(ctx, user.ChatIdentity)
	require.NoError(t, err)
	require.NotNil(t, got.SleepStart)
	assert.Equal(t, "23:00", *got.SleepStart)

	err = svc.SetSleepHours(ctx, user.ChatIdentity, "25:00", "07:00")
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))

	err = svc.SetSleepHours(ctx, "999", "23:00", "07:00")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestComputeBestTime(t *testing.T) {
	svc, _, _ := newTestService(t)
	creator := registerUser(t, svc, "100")
	other := registerUser(t, svc, "101")
	event := createOpenEvent(t, svc, creator)

	ctx := context.Background()
	slots := []time.Time{slotAt(10, 0), slotAt(10, 30)}
	require.NoError(t, svc.RecordAvailability(ctx, event.ID, creator.ID, slots))
	require.NoError(t, svc.RecordAvailability(ctx, event.ID, other.ID, slots))

	blocks, err := svc.ComputeBestTime(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.True(t, blocks[0].Start.Equal(slotAt(10, 0)))
	assert.Len(t, blocks[0].Participants, 2)
}

func TestAuthorizer(t *testing.T) {
	svc, _, _ := newTestService(t)
	creator := registerUser(t, svc, "100")
	stranger := registerUser(t, svc, "101")
	event := createOpenEvent(t, svc, creator)

	ctx := context.Background()
	auth := svc.Authorizer()

	isCreator, err := auth.IsCreator(ctx, event.ID, creator.ID)
	require.NoError(t, err)
	assert.True(t, isCreator)

	isCreator, err = auth.IsCreator(ctx, event.ID, stranger.ID)
	require.NoError(t, err)
	assert.False(t, isCreator)

	isMember, err := auth.IsMember(ctx, event.ID, creator.ID)
	require.NoError(t, err)
	assert.False(t, isMember)

	_, err = auth.IdentityFor(ctx, "does-not-exist")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestUserAvailabilityIsScopedToUser(t *testing.T) {
	svc, _, _ := newTestService(t)
	creator := registerUser(t, svc, "100")
	other := registerUser(t, svc, "101")
	event := createOpenEvent(t, svc, creator)
	ctx := context.Background()

	require.NoError(t, svc.RecordAvailability(ctx, event.ID, creator.ID, []time.Time{slotAt(10, 0), slotAt(10, 30)}))
	require.NoError(t, svc.RecordAvailability(ctx, event.ID, other.ID, []time.Time{slotAt(12, 0)}))

	slots, err := svc.UserAvailability(ctx, event.ID, creator.ID)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.True(t, slots[0].Equal(slotAt(10, 0)))
	assert.True(t, slots[1].Equal(slotAt(10, 30)))

	_, err = svc.UserAvailability(ctx, uuid.New(), creator.ID)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}
