package store

import (
	"time"

	"github.com/google/uuid"
)

// Membership records a user attending a confirmed event. Rows are seeded
// from the participant intersection at confirm time; join and leave toggle
// them afterwards.
type Membership struct {
	EventID  uuid.UUID
	UserID   uuid.UUID
	JoinedAt time.Time
}
