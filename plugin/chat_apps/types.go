// Package chat_apps defines the chat-platform contract: the outbound Sender
// interface the core talks to, and the normalized incoming update types the
// channels produce. Telegram is the only channel today.
package chat_apps

import "context"

// Platform represents a supported chat platform.
type Platform string

const (
	PlatformTelegram Platform = "telegram"
)

// IsValid checks if the platform is valid.
func (p Platform) IsValid() bool {
	switch p {
	case PlatformTelegram:
		return true
	default:
		return false
	}
}

// Button is one inline keyboard button. URL buttons open the link;
// otherwise CallbackData is delivered back as a CallbackQuery.
type Button struct {
	Label        string
	CallbackData string
	URL          string
}

// OutgoingMessage is a message to send to a chat. ThreadID targets a forum
// topic when set. Buttons render as one row per inner slice.
type OutgoingMessage struct {
	ChatID    string
	ThreadID  *string
	Content   string
	ParseMode string
	Buttons   [][]Button
}

// Sender is the outbound chat surface the core depends on. SendMessage
// returns the platform message id so the caller can edit it later.
type Sender interface {
	SendMessage(ctx context.Context, msg *OutgoingMessage) (int, error)
	EditMessage(ctx context.Context, chatID string, messageID int, content string) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}

// Command is a slash command from a user.
type Command struct {
	UpdateID    string
	UserID      string
	Username    string
	DisplayName string
	ChatID      string
	ThreadID    *string
	MessageID   int
	Name        string
	Args        string
}

// CallbackQuery is an inline button press. Data carries the payloads the
// bot attaches to its buttons, "join:<event_id>" and "reminders:<event_id>".
type CallbackQuery struct {
	UpdateID    string
	CallbackID  string
	UserID      string
	DisplayName string
	ChatID      string
	MessageID   int
	Data        string
}

// WebAppSubmission is data posted back from the scheduling webapp.
type WebAppSubmission struct {
	UpdateID    string
	UserID      string
	DisplayName string
	ChatID      string
	Data        string
}

// Update is a normalized incoming update: exactly one field is set.
type Update struct {
	Command  *Command
	Callback *CallbackQuery
	WebApp   *WebAppSubmission
}

// ID returns the platform update id, used for duplicate suppression.
func (u *Update) ID() string {
	switch {
	case u.Command != nil:
		return u.Command.UpdateID
	case u.Callback != nil:
		return u.Callback.UpdateID
	case u.WebApp != nil:
		return u.WebApp.UpdateID
	default:
		return ""
	}
}
