// Package store provides database access to all raw objects.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/meetwhenah/meetwhenah/internal/profile"
)

// ErrNotFound reports that a mutation touched zero rows. Single-row reads do
// not use it: they return (nil, nil) on absence.
var ErrNotFound = errors.New("not found")

// Driver is the contract every database backend implements. Single-row gets
// return the first match or (nil, nil); inserts of a duplicate primary key
// fail; updates of missing rows return ErrNotFound. Mutations are
// at-most-once; callers are idempotent at a higher level.
type Driver interface {
	GetDB() *sql.DB
	Close() error
	Migrate(ctx context.Context) error

	// Users
	UpsertUser(ctx context.Context, upsert *UpsertUser) (*User, error)
	GetUser(ctx context.Context, find *FindUser) (*User, error)

	// Events
	CreateEvent(ctx context.Context, create *Event) (*Event, error)
	GetEvent(ctx context.Context, find *FindEvent) (*Event, error)
	ListEvents(ctx context.Context, find *FindEvent) ([]*Event, error)
	UpdateEvent(ctx context.Context, update *UpdateEvent) error
	// MarkEventsPast moves confirmed events whose confirmed end has elapsed
	// into the past state. Returns the number of rows moved.
	MarkEventsPast(ctx context.Context, now time.Time) (int64, error)

	// Availability
	ReplaceAvailability(ctx context.Context, eventID, userID uuid.UUID, blocks []*AvailabilityBlock) error
	ListAvailability(ctx context.Context, eventID uuid.UUID) ([]*AvailabilityBlock, error)
	ListUserAvailability(ctx context.Context, eventID, userID uuid.UUID) ([]*AvailabilityBlock, error)

	// Confirmation
	// CreateConfirmation inserts if absent and reports whether this call won
	// the insert. Concurrent confirms therefore resolve to one winner.
	CreateConfirmation(ctx context.Context, create *Confirmation) (bool, error)
	GetConfirmation(ctx context.Context, eventID uuid.UUID) (*Confirmation, error)

	// Membership
	AddMember(ctx context.Context, add *Membership) error
	RemoveMember(ctx context.Context, eventID, userID uuid.UUID) error
	ListMembers(ctx context.Context, eventID uuid.UUID) ([]*Membership, error)

	// Event chats
	UpsertEventChat(ctx context.Context, upsert *EventChat) (*EventChat, error)
	GetEventChat(ctx context.Context, eventID uuid.UUID) (*EventChat, error)
	SetEventChatReminders(ctx context.Context, eventID uuid.UUID, enabled bool) error

	// Share tokens
	CreateShareToken(ctx context.Context, create *ShareToken) error
	// ConsumeShareToken atomically marks the token used and returns its
	// context, or (nil, nil) when the token is missing, expired, or spent.
	ConsumeShareToken(ctx context.Context, token string, now time.Time) (*ShareToken, error)

	// Reminder queries. The noon matches are evaluated against each event's
	// stored timezone and bucketed by wall date so repeated ticks within the
	// same day stay silent.
	ListOpenEventsNeedingNudge(ctx context.Context, now time.Time) ([]*Event, error)
	ListConfirmedEventsNeedingCountdown(ctx context.Context, now time.Time) ([]*ConfirmedEvent, error)
	ListConfirmedEventsStartingSoon(ctx context.Context, now time.Time, horizon time.Duration) ([]*ConfirmedEvent, error)
	MarkNudgeSent(ctx context.Context, eventID uuid.UUID, wallDate string) error
	MarkCountdownSent(ctx context.Context, eventID uuid.UUID, wallDate string) error
	MarkImminentSent(ctx context.Context, eventID uuid.UUID, at time.Time) error
}

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) UpsertUser(ctx context.Context, upsert *UpsertUser) (*User, error) {
	return s.driver.UpsertUser(ctx, upsert)
}

func (s *Store) GetUser(ctx context.Context, find *FindUser) (*User, error) {
	return s.driver.GetUser(ctx, find)
}

func (s *Store) CreateEvent(ctx context.Context, create *Event) (*Event, error) {
	return s.driver.CreateEvent(ctx, create)
}

func (s *Store) GetEvent(ctx context.Context, find *FindEvent) (*Event, error) {
	return s.driver.GetEvent(ctx, find)
}

func (s *Store) ListEvents(ctx context.Context, find *FindEvent) ([]*Event, error) {
	return s.driver.ListEvents(ctx, find)
}

func (s *Store) UpdateEvent(ctx context.Context, update *UpdateEvent) error {
	return s.driver.UpdateEvent(ctx, update)
}

func (s *Store) MarkEventsPast(ctx context.Context, now time.Time) (int64, error) {
	return s.driver.MarkEventsPast(ctx, now)
}

func (s *Store) ReplaceAvailability(ctx context.Context, eventID, userID uuid.UUID, blocks []*AvailabilityBlock) error {
	return s.driver.ReplaceAvailability(ctx, eventID, userID, blocks)
}

func (s *Store) ListAvailability(ctx context.Context, eventID uuid.UUID) ([]*AvailabilityBlock, error) {
	return s.driver.ListAvailability(ctx, eventID)
}

func (s *Store) ListUserAvailability(ctx context.Context, eventID, userID uuid.UUID) ([]*AvailabilityBlock, error) {
	return s.driver.ListUserAvailability(ctx, eventID, userID)
}

func (s *Store) CreateConfirmation(ctx context.Context, create *Confirmation) (bool, error) {
	return s.driver.CreateConfirmation(ctx, create)
}

func (s *Store) GetConfirmation(ctx context.Context, eventID uuid.UUID) (*Confirmation, error) {
	return s.driver.GetConfirmation(ctx, eventID)
}

func (s *Store) AddMember(ctx context.Context, add *Membership) error {
	return s.driver.AddMember(ctx, add)
}

func (s *Store) RemoveMember(ctx context.Context, eventID, userID uuid.UUID) error {
	return s.driver.RemoveMember(ctx, eventID, userID)
}

func (s *Store) ListMembers(ctx context.Context, eventID uuid.UUID) ([]*Membership, error) {
	return s.driver.ListMembers(ctx, eventID)
}

func (s *Store) UpsertEventChat(ctx context.Context, upsert *EventChat) (*EventChat, error) {
	return s.driver.UpsertEventChat(ctx, upsert)
}

func (s *Store) GetEventChat(ctx context.Context, eventID uuid.UUID) (*EventChat, error) {
	return s.driver.GetEventChat(ctx, eventID)
}

func (s *Store) SetEventChatReminders(ctx context.Context, eventID uuid.UUID, enabled bool) error {
	return s.driver.SetEventChatReminders(ctx, eventID, enabled)
}

func (s *Store) CreateShareToken(ctx context.Context, create *ShareToken) error {
	return s.driver.CreateShareToken(ctx, create)
}

func (s *Store) ConsumeShareToken(ctx context.Context, token string, now time.Time) (*ShareToken, error) {
	return s.driver.ConsumeShareToken(ctx, token, now)
}

func (s *Store) ListOpenEventsNeedingNudge(ctx context.Context, now time.Time) ([]*Event, error) {
	return s.driver.ListOpenEventsNeedingNudge(ctx, now)
}

func (s *Store) ListConfirmedEventsNeedingCountdown(ctx context.Context, now time.Time) ([]*ConfirmedEvent, error) {
	return s.driver.ListConfirmedEventsNeedingCountdown(ctx, now)
}

func (s *Store) ListConfirmedEventsStartingSoon(ctx context.Context, now time.Time, horizon time.Duration) ([]*ConfirmedEvent, error) {
	return s.driver.ListConfirmedEventsStartingSoon(ctx, now, horizon)
}

func (s *Store) MarkNudgeSent(ctx context.Context, eventID uuid.UUID, wallDate string) error {
	return s.driver.MarkNudgeSent(ctx, eventID, wallDate)
}

func (s *Store) MarkCountdownSent(ctx context.Context, eventID uuid.UUID, wallDate string) error {
	return s.driver.MarkCountdownSent(ctx, eventID, wallDate)
}

func (s *Store) MarkImminentSent(ctx context.Context, eventID uuid.UUID, at time.Time) error {
	return s.driver.MarkImminentSent(ctx, eventID, at)
}
