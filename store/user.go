package store

import (
	"github.com/google/uuid"
)

// User is a person known to the bot. A row is created on first interaction
// and never deleted.
type User struct {
	ID           uuid.UUID
	ChatIdentity string // external chat-system user id, unique
	DisplayName  string
	SleepStart   *string // wall time "HH:MM", optional
	SleepEnd     *string // wall time "HH:MM", optional
	CreatedTs    int64
}

// UpsertUser creates the user on first interaction or refreshes the display
// name and sleep preferences on later ones.
type UpsertUser struct {
	ChatIdentity string
	DisplayName  string
	SleepStart   *string
	SleepEnd     *string
}

type FindUser struct {
	ID           *uuid.UUID
	ChatIdentity *string
}
