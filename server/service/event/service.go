// Package event implements the event lifecycle: creation, availability,
// best-time computation, confirmation, membership, and reminder toggles.
// Every operation re-reads state fresh from the store; concurrency control
// lives in the store's insert-if-absent primitives, not in process locks.
package event

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/meetwhenah/meetwhenah/internal/apperr"
	"github.com/meetwhenah/meetwhenah/internal/timeutil"
	"github.com/meetwhenah/meetwhenah/plugin/chat_apps"
	"github.com/meetwhenah/meetwhenah/scheduler"
	"github.com/meetwhenah/meetwhenah/store"
)

// Store is the slice of the store the event service depends on.
type Store interface {
	UpsertUser(ctx context.Context, upsert *store.UpsertUser) (*store.User, error)
	GetUser(ctx context.Context, find *store.FindUser) (*store.User, error)
	CreateEvent(ctx context.Context, create *store.Event) (*store.Event, error)
	GetEvent(ctx context.Context, find *store.FindEvent) (*store.Event, error)
	UpdateEvent(ctx context.Context, update *store.UpdateEvent) error
	ReplaceAvailability(ctx context.Context, eventID, userID uuid.UUID, blocks []*store.AvailabilityBlock) error
	ListAvailability(ctx context.Context, eventID uuid.UUID) ([]*store.AvailabilityBlock, error)
	ListUserAvailability(ctx context.Context, eventID, userID uuid.UUID) ([]*store.AvailabilityBlock, error)
	CreateConfirmation(ctx context.Context, create *store.Confirmation) (bool, error)
	GetConfirmation(ctx context.Context, eventID uuid.UUID) (*store.Confirmation, error)
	AddMember(ctx context.Context, add *store.Membership) error
	RemoveMember(ctx context.Context, eventID, userID uuid.UUID) error
	ListMembers(ctx context.Context, eventID uuid.UUID) ([]*store.Membership, error)
	UpsertEventChat(ctx context.Context, upsert *store.EventChat) (*store.EventChat, error)
	GetEventChat(ctx context.Context, eventID uuid.UUID) (*store.EventChat, error)
	SetEventChatReminders(ctx context.Context, eventID uuid.UUID, enabled bool) error
}

// Service drives events through draft → open → confirmed. The draft state
// never persists: CreateEvent validates the draft and writes it already open.
type Service struct {
	store      Store
	clock      clock.Clock
	sender     chat_apps.Sender
	authorizer *Authorizer

	defaultTimezone string
}

// NewService creates the event service. sender may be nil in tests; creator
// notifications are then skipped.
func NewService(s Store, c clock.Clock, sender chat_apps.Sender, defaultTimezone string) *Service {
	return &Service{
		store:           s,
		clock:           c,
		sender:          sender,
		authorizer:      NewAuthorizer(s),
		defaultTimezone: defaultTimezone,
	}
}

// Authorizer exposes the read-only authorization helper.
func (s *Service) Authorizer() *Authorizer {
	return s.authorizer
}

// CreateEventRequest carries the creator's draft. Zero constraint fields
// take the defaults: quorum 2, length 2 to 4 slots.
type CreateEventRequest struct {
	CreatorID       uuid.UUID
	Name            string
	Description     string
	WindowStartDate string
	WindowEndDate   string
	DailyStartTime  string
	DailyEndTime    string
	MinParticipants int
	MinBlockSlots   int
	MaxBlockSlots   int
	Timezone        string
}

// CreateEvent validates the draft and persists it in the open state.
func (s *Service) CreateEvent(ctx context.Context, req *CreateEventRequest) (*store.Event, error) {
	if req.Name == "" {
		return nil, apperr.New(apperr.InvalidInput, "event name required")
	}

	if req.MinParticipants == 0 {
		req.MinParticipants = 2
	}
	if req.MinBlockSlots == 0 {
		req.MinBlockSlots = 2
	}
	if req.MaxBlockSlots == 0 {
		req.MaxBlockSlots = 4
	}
	if req.Timezone == "" {
		req.Timezone = s.defaultTimezone
	}

	loc, err := timeutil.LoadLocation(req.Timezone)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.InvalidInput, "invalid timezone")
	}

	windowStart, err := timeutil.ParseWallDate(req.WindowStartDate, loc)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.InvalidInput, "invalid window start date")
	}
	windowEnd, err := timeutil.ParseWallDate(req.WindowEndDate, loc)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.InvalidInput, "invalid window end date")
	}
	if windowEnd.Before(windowStart) {
		return nil, apperr.New(apperr.InvalidInput, "window ends before it starts")
	}

	startH, startM, err := timeutil.ParseWallTime(req.DailyStartTime)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.InvalidInput, "invalid daily start time")
	}
	endH, endM, err := timeutil.ParseWallTime(req.DailyEndTime)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.InvalidInput, "invalid daily end time")
	}
	if startH*60+startM >= endH*60+endM {
		return nil, apperr.New(apperr.InvalidInput, "daily hours must start before they end")
	}

	if req.MinParticipants < 2 {
		return nil, apperr.New(apperr.InvalidInput, "min participants must be at least 2")
	}
	if req.MinBlockSlots < 1 {
		return nil, apperr.New(apperr.InvalidInput, "min block slots must be at least 1")
	}
	if req.MaxBlockSlots < req.MinBlockSlots {
		return nil, apperr.New(apperr.InvalidInput, "max block slots below min block slots")
	}

	creator, err := s.store.GetUser(ctx, &store.FindUser{ID: &req.CreatorID})
	if err != nil {
		return nil, err
	}
	if creator == nil {
		return nil, apperr.New(apperr.NotFound, "creator not registered")
	}

	now := s.clock.Now()
	event := &store.Event{
		ID:               uuid.New(),
		Name:             req.Name,
		Description:      req.Description,
		CreatorID:        req.CreatorID,
		WindowStartDate:  req.WindowStartDate,
		WindowEndDate:    req.WindowEndDate,
		DailyStartTime:   req.DailyStartTime,
		DailyEndTime:     req.DailyEndTime,
		MinParticipants:  req.MinParticipants,
		MinBlockSlots:    req.MinBlockSlots,
		MaxBlockSlots:    req.MaxBlockSlots,
		RemindersEnabled: true,
		Timezone:         req.Timezone,
		State:            store.EventStateOpen,
		CreatedTs:        now.Unix(),
		UpdatedTs:        now.Unix(),
	}

	return s.store.CreateEvent(ctx, event)
}

// RecordAvailability atomically replaces the user's availability with the
// given slot starts. An empty set clears prior availability.
func (s *Service) RecordAvailability(ctx context.Context, eventID, userID uuid.UUID, slots []time.Time) error {
	event, err := s.getEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if event.State != store.EventStateOpen {
		return apperr.New(apperr.InvalidState, "event is %s, availability is closed", event.State)
	}

	blocks := make([]*store.AvailabilityBlock, 0, len(slots))
	for _, slot := range slots {
		if !timeutil.IsSlotAligned(slot) {
			return apperr.New(apperr.InvalidInput, "slot %s is not aligned", slot.Format(time.RFC3339))
		}
		blocks = append(blocks, &store.AvailabilityBlock{
			EventID: eventID,
			UserID:  userID,
			StartTs: slot,
			EndTs:   slot.Add(timeutil.Slot),
		})
	}

	return s.store.ReplaceAvailability(ctx, eventID, userID, blocks)
}

// Get returns the event, or NotFound.
func (s *Service) Get(ctx context.Context, eventID uuid.UUID) (*store.Event, error) {
	return s.getEvent(ctx, eventID)
}

// UserAvailability lists the slot starts one user has submitted, sorted
// ascending.
func (s *Service) UserAvailability(ctx context.Context, eventID, userID uuid.UUID) ([]time.Time, error) {
	if _, err := s.getEvent(ctx, eventID); err != nil {
		return nil, err
	}

	blocks, err := s.store.ListUserAvailability(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}

	slots := make([]time.Time, 0, len(blocks))
	for _, block := range blocks {
		slots = append(slots, block.StartTs)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Before(slots[j]) })
	return slots, nil
}

// ComputeBestTime returns the tied set of best blocks for the event under
// its own constraints. Read-only.
func (s *Service) ComputeBestTime(ctx context.Context, eventID uuid.UUID) ([]scheduler.Block, error) {
	event, err := s.getEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	blocks, err := s.store.ListAvailability(ctx, eventID)
	if err != nil {
		return nil, err
	}

	selector := &scheduler.Selector{Constraints: scheduler.Constraints{
		MinParticipants: event.MinParticipants,
		MinBlockSlots:   event.MinBlockSlots,
		MaxBlockSlots:   event.MaxBlockSlots,
	}}
	return selector.Select(blocks), nil
}

// ConfirmEvent fixes the meeting time. The confirmation row is the point of
// no return: its insert-if-absent semantics make concurrent confirms resolve
// to one winner, and the loser gets Conflict, which callers treat as
// idempotent success. Membership is snapshotted from the availability
// intersection over the chosen block at confirm time.
func (s *Service) ConfirmEvent(ctx context.Context, eventID uuid.UUID, chosenStart, chosenEnd time.Time) error {
	event, err := s.getEvent(ctx, eventID)
	if err != nil {
		return err
	}
	switch event.State {
	case store.EventStateConfirmed:
		return apperr.New(apperr.Conflict, "event already confirmed")
	case store.EventStatePast:
		return apperr.New(apperr.InvalidState, "event is past")
	}

	if !timeutil.IsSlotAligned(chosenStart) || !timeutil.IsSlotAligned(chosenEnd) {
		return apperr.New(apperr.InvalidInput, "chosen block is not slot aligned")
	}
	length := timeutil.SlotsBetween(chosenStart, chosenEnd)
	if length < event.MinBlockSlots || length > event.MaxBlockSlots {
		return apperr.New(apperr.InvalidInput, "chosen block length %d outside [%d, %d] slots",
			length, event.MinBlockSlots, event.MaxBlockSlots)
	}

	availability, err := s.store.ListAvailability(ctx, eventID)
	if err != nil {
		return err
	}
	participants := participantsFor(availability, chosenStart, chosenEnd)

	now := s.clock.Now()
	won, err := s.store.CreateConfirmation(ctx, &store.Confirmation{
		EventID:     eventID,
		StartTs:     chosenStart,
		EndTs:       chosenEnd,
		ConfirmedAt: now,
	})
	if err != nil {
		return err
	}
	if !won {
		return apperr.New(apperr.Conflict, "event already confirmed")
	}

	confirmed := store.EventStateConfirmed
	updatedTs := now.Unix()
	if err := s.store.UpdateEvent(ctx, &store.UpdateEvent{
		ID:        eventID,
		State:     &confirmed,
		UpdatedTs: &updatedTs,
	}); err != nil {
		return apperr.Wrap(err, apperr.Fatal, "confirmation exists but state transition failed")
	}

	for _, userID := range participants {
		if err := s.store.AddMember(ctx, &store.Membership{
			EventID:  eventID,
			UserID:   userID,
			JoinedAt: now,
		}); err != nil {
			return err
		}
	}

	s.notifyCreator(ctx, event, chosenStart, chosenEnd)
	return nil
}

// Join adds the user to a confirmed event. Joining twice is a no-op.
func (s *Service) Join(ctx context.Context, eventID, userID uuid.UUID) error {
	event, err := s.getEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if event.State != store.EventStateConfirmed {
		return apperr.New(apperr.InvalidState, "event is %s, membership needs a confirmed event", event.State)
	}

	return s.store.AddMember(ctx, &store.Membership{
		EventID:  eventID,
		UserID:   userID,
		JoinedAt: s.clock.Now(),
	})
}

// Leave removes the user from a confirmed event. Leaving twice is a no-op.
func (s *Service) Leave(ctx context.Context, eventID, userID uuid.UUID) error {
	event, err := s.getEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if event.State != store.EventStateConfirmed {
		return apperr.New(apperr.InvalidState, "event is %s, membership needs a confirmed event", event.State)
	}

	return s.store.RemoveMember(ctx, eventID, userID)
}

// ToggleReminders flips reminders_enabled. Only the creator may touch an
// enabled event; once disabled, anyone may re-enable. The asymmetry is
// deliberate: silencing a group is privileged, un-silencing is benign.
func (s *Service) ToggleReminders(ctx context.Context, eventID, userID uuid.UUID) (bool, error) {
	event, err := s.getEvent(ctx, eventID)
	if err != nil {
		return false, err
	}

	if event.RemindersEnabled && event.CreatorID != userID {
		return false, apperr.New(apperr.Unauthorized, "only the creator can disable reminders")
	}

	enabled := !event.RemindersEnabled
	updatedTs := s.clock.Now().Unix()
	if err := s.store.UpdateEvent(ctx, &store.UpdateEvent{
		ID:               eventID,
		RemindersEnabled: &enabled,
		UpdatedTs:        &updatedTs,
	}); err != nil {
		return false, err
	}

	// Mirror onto the chat association when one exists.
	if err := s.store.SetEventChatReminders(ctx, eventID, enabled); err != nil && err != store.ErrNotFound {
		return false, err
	}

	return enabled, nil
}

// SetEventChat associates a chat with the event for broadcasts. A later
// share overwrites the association.
func (s *Service) SetEventChat(ctx context.Context, eventID uuid.UUID, chatID string, threadID *string) error {
	if _, err := s.getEvent(ctx, eventID); err != nil {
		return err
	}

	_, err := s.store.UpsertEventChat(ctx, &store.EventChat{
		EventID:          eventID,
		ChatID:           chatID,
		ThreadID:         threadID,
		RemindersEnabled: true,
	})
	return err
}

// RegisterUser upserts the user row on first interaction, refreshing the
// display name on later ones.
func (s *Service) RegisterUser(ctx context.Context, chatIdentity, displayName string) (*store.User, error) {
	if chatIdentity == "" {
		return nil, apperr.New(apperr.InvalidInput, "chat identity required")
	}
	return s.store.UpsertUser(ctx, &store.UpsertUser{
		ChatIdentity: chatIdentity,
		DisplayName:  displayName,
	})
}

// SetSleepHours stores the user's sleep window. The window may wrap past
// midnight, such as 23:00 to 07:00.
func (s *Service) SetSleepHours(ctx context.Context, chatIdentity, sleepStart, sleepEnd string) error {
	if _, _, err := timeutil.ParseWallTime(sleepStart); err != nil {
		return apperr.Wrap(err, apperr.InvalidInput, "invalid sleep start")
	}
	if _, _, err := timeutil.ParseWallTime(sleepEnd); err != nil {
		return apperr.Wrap(err, apperr.InvalidInput, "invalid sleep end")
	}

	user, err := s.store.GetUser(ctx, &store.FindUser{ChatIdentity: &chatIdentity})
	if err != nil {
		return err
	}
	if user == nil {
		return apperr.New(apperr.NotFound, "user not registered")
	}

	_, err = s.store.UpsertUser(ctx, &store.UpsertUser{
		ChatIdentity: chatIdentity,
		DisplayName:  user.DisplayName,
		SleepStart:   &sleepStart,
		SleepEnd:     &sleepEnd,
	})
	return err
}

func (s *Service) getEvent(ctx context.Context, eventID uuid.UUID) (*store.Event, error) {
	event, err := s.store.GetEvent(ctx, &store.FindEvent{ID: &eventID})
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, apperr.New(apperr.NotFound, "event %s not found", eventID)
	}
	return event, nil
}

// participantsFor intersects per-slot availability over [start, end). A
// single uncovered slot empties the set.
func participantsFor(blocks []*store.AvailabilityBlock, start, end time.Time) []uuid.UUID {
	slots := make(map[int64]map[uuid.UUID]struct{})
	for _, block := range blocks {
		for t := block.StartTs; t.Before(block.EndTs); t = t.Add(timeutil.Slot) {
			set, ok := slots[t.Unix()]
			if !ok {
				set = make(map[uuid.UUID]struct{})
				slots[t.Unix()] = set
			}
			set[block.UserID] = struct{}{}
		}
	}

	var intersection map[uuid.UUID]struct{}
	for t := start; t.Before(end); t = t.Add(timeutil.Slot) {
		set := slots[t.Unix()]
		if len(set) == 0 {
			return nil
		}
		if intersection == nil {
			intersection = set
			continue
		}
		shrunk := make(map[uuid.UUID]struct{})
		for id := range intersection {
			if _, ok := set[id]; ok {
				shrunk[id] = struct{}{}
			}
		}
		if len(shrunk) == 0 {
			return nil
		}
		intersection = shrunk
	}

	ids := make([]uuid.UUID, 0, len(intersection))
	for id := range intersection {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// notifyCreator is best-effort: a chat outage must not undo a confirmation.
func (s *Service) notifyCreator(ctx context.Context, event *store.Event, start, end time.Time) {
	if s.sender == nil {
		return
	}

	creator, err := s.store.GetUser(ctx, &store.FindUser{ID: &event.CreatorID})
	if err != nil || creator == nil {
		slog.Warn("confirm: creator lookup failed", "event", event.ID, "error", err)
		return
	}

	loc, err := timeutil.LoadLocation(event.Timezone)
	if err != nil {
		loc = time.UTC
	}
	text := fmt.Sprintf("%q is confirmed for %s to %s.",
		event.Name,
		start.In(loc).Format("Mon 2 Jan 15:04"),
		end.In(loc).Format("15:04"),
	)

	if _, err := s.sender.SendMessage(ctx, &chat_apps.OutgoingMessage{
		ChatID:  creator.ChatIdentity,
		Content: text,
	}); err != nil {
		slog.Warn("confirm: creator notification failed", "event", event.ID, "error", err)
	}
}
