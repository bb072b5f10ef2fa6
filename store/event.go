package store

import (
	"time"

	"github.com/google/uuid"
)

// EventState is the lifecycle state of an event. The draft state is purely
// transient: CreateEvent validates the draft and persists it already open, so
// only open, confirmed, and past ever reach the database.
type EventState string

const (
	EventStateOpen      EventState = "open"
	EventStateConfirmed EventState = "confirmed"
	EventStatePast      EventState = "past"
)

func (s EventState) IsValid() bool {
	switch s {
	case EventStateOpen, EventStateConfirmed, EventStatePast:
		return true
	default:
		return false
	}
}

// Event is a meeting being scheduled. Wall dates and times are in the
// event's Timezone.
type Event struct {
	ID               uuid.UUID
	Name             string
	Description      string
	CreatorID        uuid.UUID
	WindowStartDate  string // wall date "2006-01-02"
	WindowEndDate    string // wall date, inclusive
	DailyStartTime   string // wall time "15:04"
	DailyEndTime     string // wall time, exclusive
	MinParticipants  int
	MinBlockSlots    int
	MaxBlockSlots    int
	RemindersEnabled bool
	Timezone         string // IANA name
	State            EventState

	// Reminder duplicate-suppression bookkeeping, owned by the dispatcher.
	LastNudgeDate     *string // wall date of the last availability nudge
	LastCountdownDate *string // wall date of the last daily countdown
	LastImminentAt    *time.Time

	CreatedTs int64
	UpdatedTs int64
}

type FindEvent struct {
	ID        *uuid.UUID
	CreatorID *uuid.UUID
	State     *EventState
}

// UpdateEvent patches an event. Only non-nil fields are applied; updating a
// missing row returns ErrNotFound.
type UpdateEvent struct {
	ID               uuid.UUID
	Name             *string
	Description      *string
	RemindersEnabled *bool
	State            *EventState
	UpdatedTs        *int64
}

// ConfirmedEvent is the read projection the reminder queries return: the
// event joined with its confirmation row.
type ConfirmedEvent struct {
	Event          *Event
	ConfirmedStart time.Time
	ConfirmedEnd   time.Time
}
