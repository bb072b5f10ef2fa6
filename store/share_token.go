package store

import (
	"time"
)

// ShareToken carries the chat context of a user's initiating message into
// the webapp flow. Tokens are short-lived and single-use: ConsumeShareToken
// atomically marks the row used and returns its context.
type ShareToken struct {
	Token        string
	ChatIdentity string // the initiating user's chat-system id
	ChatID       string
	MessageID    int
	ThreadID     *string
	ExpiresAt    time.Time
	UsedAt       *time.Time
}

// ShareTokenTTL is how long a minted token stays consumable.
const ShareTokenTTL = 15 * time.Minute
