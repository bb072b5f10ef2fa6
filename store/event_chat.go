package store

import (
	"github.com/google/uuid"
)

// EventChat associates an event with the chat (and optional thread) where
// its prompts and reminders are emitted. Set on first share, overwritten on
// later shares.
type EventChat struct {
	EventID          uuid.UUID
	ChatID           string
	ThreadID         *string
	RemindersEnabled bool
}
