package store

import (
	"time"

	"github.com/google/uuid"
)

// AvailabilityBlock is a single 30-minute slot during which one user is
// available for one event. EndTs is always StartTs plus one slot; it is
// stored anyway so the table round-trips without recomputation.
type AvailabilityBlock struct {
	EventID uuid.UUID
	UserID  uuid.UUID
	StartTs time.Time
	EndTs   time.Time
}
