package store

import (
	"time"

	"github.com/google/uuid"
)

// Confirmation pins the chosen meeting block of an event. Its presence IS
// the confirmed state: it is created with insert-if-absent semantics and
// never mutated afterwards.
type Confirmation struct {
	EventID     uuid.UUID
	StartTs     time.Time
	EndTs       time.Time
	ConfirmedAt time.Time
}
