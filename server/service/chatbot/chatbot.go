// Package chatbot turns normalized chat updates into event operations and
// renders the replies. It owns the share-token flow that hands a chat
// context to the webapp and back.
package chatbot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"

	"github.com/meetwhenah/meetwhenah/internal/apperr"
	"github.com/meetwhenah/meetwhenah/plugin/chat_apps"
	"github.com/meetwhenah/meetwhenah/server/service/event"
	"github.com/meetwhenah/meetwhenah/store"
)

// Default daily hours applied when the creation form does not set them.
const (
	defaultDailyStart = "09:00"
	defaultDailyEnd   = "23:00"
)

// TokenStore is the slice of the store the chatbot needs for share tokens.
type TokenStore interface {
	CreateShareToken(ctx context.Context, create *store.ShareToken) error
	ConsumeShareToken(ctx context.Context, token string, now time.Time) (*store.ShareToken, error)
}

// Service handles inbound chat updates. Duplicate updates are dropped by the
// bounded cache before any side effect runs.
type Service struct {
	events *event.Service
	tokens TokenStore
	sender chat_apps.Sender
	clock  clock.Clock
	dedup  *chat_apps.DedupCache

	instanceURL string
}

func NewService(events *event.Service, tokens TokenStore, sender chat_apps.Sender, c clock.Clock, dedup *chat_apps.DedupCache, instanceURL string) *Service {
	return &Service{
		events:      events,
		tokens:      tokens,
		sender:      sender,
		clock:       c,
		dedup:       dedup,
		instanceURL: instanceURL,
	}
}

// HandleUpdate demultiplexes one normalized update. Errors are rendered to
// the user as short templates; the returned error is for logging only.
func (s *Service) HandleUpdate(ctx context.Context, update *chat_apps.Update) error {
	if update == nil {
		return nil
	}
	if id := update.ID(); id != "" && s.dedup.Seen(id) {
		slog.Debug("chatbot: duplicate update dropped", "update_id", id)
		return nil
	}

	switch {
	case update.Command != nil:
		return s.handleCommand(ctx, update.Command)
	case update.Callback != nil:
		return s.handleCallback(ctx, update.Callback)
	case update.WebApp != nil:
		return s.handleWebApp(ctx, update.WebApp)
	default:
		return nil
	}
}

func (s *Service) handleCommand(ctx context.Context, cmd *chat_apps.Command) error {
	if _, err := s.events.RegisterUser(ctx, cmd.UserID, cmd.DisplayName); err != nil {
		return err
	}

	switch cmd.Name {
	case "create":
		return s.commandCreate(ctx, cmd)
	case "share":
		return s.commandShare(ctx, cmd)
	case "help":
		return s.reply(ctx, cmd.ChatID, cmd.ThreadID, helpText)
	default:
		return s.reply(ctx, cmd.ChatID, cmd.ThreadID, "Unknown command. "+helpText)
	}
}

// commandCreate mints a one-time token binding the webapp form back to this
// chat, then offers the form link.
func (s *Service) commandCreate(ctx context.Context, cmd *chat_apps.Command) error {
	token, err := s.mintToken(ctx, cmd.UserID, cmd.ChatID, cmd.MessageID, cmd.ThreadID)
	if err != nil {
		return err
	}

	_, err = s.sender.SendMessage(ctx, &chat_apps.OutgoingMessage{
		ChatID:   cmd.ChatID,
		ThreadID: cmd.ThreadID,
		Content:  "Set up your event here:",
		Buttons: [][]chat_apps.Button{{
			{Label: "Create event", URL: s.webappURL("create", token)},
		}},
	})
	return err
}

// commandShare offers the event picker; the webapp calls back with the
// chosen event and the token identifies this chat as the share target.
func (s *Service) commandShare(ctx context.Context, cmd *chat_apps.Command) error {
	token, err := s.mintToken(ctx, cmd.UserID, cmd.ChatID, cmd.MessageID, cmd.ThreadID)
	if err != nil {
		return err
	}

	_, err = s.sender.SendMessage(ctx, &chat_apps.OutgoingMessage{
		ChatID:   cmd.ChatID,
		ThreadID: cmd.ThreadID,
		Content:  "Pick an event to share with this chat:",
		Buttons: [][]chat_apps.Button{{
			{Label: "Share event", URL: s.webappURL("share", token)},
		}},
	})
	return err
}

func (s *Service) handleCallback(ctx context.Context, cb *chat_apps.CallbackQuery) error {
	user, err := s.events.RegisterUser(ctx, cb.UserID, cb.DisplayName)
	if err != nil {
		return err
	}

	action, eventID, ok := parseCallbackData(cb.Data)
	if !ok {
		return s.answer(ctx, cb.CallbackID, "This button has expired.")
	}

	switch action {
	case "join":
		return s.callbackJoin(ctx, cb, user, eventID)
	case "reminders":
		return s.callbackReminders(ctx, cb, user, eventID)
	default:
		return s.answer(ctx, cb.CallbackID, "This button has expired.")
	}
}

// callbackJoin toggles membership: pressing Join while already a member
// leaves.
func (s *Service) callbackJoin(ctx context.Context, cb *chat_apps.CallbackQuery, user *store.User, eventID uuid.UUID) error {
	isMember, err := s.events.Authorizer().IsMember(ctx, eventID, user.ID)
	if err != nil {
		return s.answer(ctx, cb.CallbackID, renderError(err))
	}

	if isMember {
		if err := s.events.Leave(ctx, eventID, user.ID); err != nil {
			return s.answer(ctx, cb.CallbackID, renderError(err))
		}
		return s.answer(ctx, cb.CallbackID, "You left the event.")
	}

	if err := s.events.Join(ctx, eventID, user.ID); err != nil {
		return s.answer(ctx, cb.CallbackID, renderError(err))
	}
	return s.answer(ctx, cb.CallbackID, "You joined the event.")
}

func (s *Service) callbackReminders(ctx context.Context, cb *chat_apps.CallbackQuery, user *store.User, eventID uuid.UUID) error {
	enabled, err := s.events.ToggleReminders(ctx, eventID, user.ID)
	if err != nil {
		return s.answer(ctx, cb.CallbackID, renderError(err))
	}
	if enabled {
		return s.answer(ctx, cb.CallbackID, "Reminders are on.")
	}
	return s.answer(ctx, cb.CallbackID, "Reminders are off.")
}

// webAppPayload is the JSON the webapp posts back through the chat surface.
// web_app_number 0 carries the creation form, 1 the confirmation choice.
type webAppPayload struct {
	WebAppNumber int `json:"web_app_number"`

	EventName    string `json:"event_name"`
	EventDetails string `json:"event_details"`
	Start        string `json:"start"`
	End          string `json:"end"`
	DailyStart   string `json:"daily_start"`
	DailyEnd     string `json:"daily_end"`
	Timezone     string `json:"timezone"`

	EventID       string `json:"event_id"`
	BestStartTime string `json:"best_start_time"`
	BestEndTime   string `json:"best_end_time"`
}

func (s *Service) handleWebApp(ctx context.Context, submission *chat_apps.WebAppSubmission) error {
	user, err := s.events.RegisterUser(ctx, submission.UserID, submission.DisplayName)
	if err != nil {
		return err
	}

	var payload webAppPayload
	if err := json.Unmarshal([]byte(submission.Data), &payload); err != nil {
		return s.reply(ctx, submission.ChatID, nil, "That submission could not be read.")
	}

	switch payload.WebAppNumber {
	case 0:
		return s.webAppCreate(ctx, submission, user, &payload)
	case 1:
		return s.webAppConfirm(ctx, submission, &payload)
	default:
		return s.reply(ctx, submission.ChatID, nil, "That submission could not be read.")
	}
}

func (s *Service) webAppCreate(ctx context.Context, submission *chat_apps.WebAppSubmission, user *store.User, payload *webAppPayload) error {
	created, err := s.events.CreateEvent(ctx, &event.CreateEventRequest{
		CreatorID:       user.ID,
		Name:            payload.EventName,
		Description:     payload.EventDetails,
		WindowStartDate: payload.Start,
		WindowEndDate:   payload.End,
		DailyStartTime:  orDefault(payload.DailyStart, defaultDailyStart),
		DailyEndTime:    orDefault(payload.DailyEnd, defaultDailyEnd),
		Timezone:        payload.Timezone,
	})
	if err != nil {
		return s.reply(ctx, submission.ChatID, nil, renderError(err))
	}

	if err := s.events.SetEventChat(ctx, created.ID, submission.ChatID, nil); err != nil {
		return err
	}

	_, err = s.sender.SendMessage(ctx, &chat_apps.OutgoingMessage{
		ChatID:  submission.ChatID,
		Content: SharePrompt(created),
		Buttons: EventButtons(created.ID),
	})
	return err
}

func (s *Service) webAppConfirm(ctx context.Context, submission *chat_apps.WebAppSubmission, payload *webAppPayload) error {
	eventID, err := uuid.Parse(payload.EventID)
	if err != nil {
		return s.reply(ctx, submission.ChatID, nil, "That submission could not be read.")
	}
	start, err := time.Parse(time.RFC3339, payload.BestStartTime)
	if err != nil {
		return s.reply(ctx, submission.ChatID, nil, "That submission could not be read.")
	}
	end, err := time.Parse(time.RFC3339, payload.BestEndTime)
	if err != nil {
		return s.reply(ctx, submission.ChatID, nil, "That submission could not be read.")
	}

	if err := s.events.ConfirmEvent(ctx, eventID, start, end); err != nil {
		if apperr.Is(err, apperr.Conflict) {
			return s.reply(ctx, submission.ChatID, nil, "Already confirmed.")
		}
		return s.reply(ctx, submission.ChatID, nil, renderError(err))
	}

	return s.reply(ctx, submission.ChatID, nil, "Event confirmed.")
}

// CreateFromWeb is the HTTP counterpart of the creation form: the webapp
// posts the form with its one-time token, and the share prompt lands in the
// chat the token was minted from.
func (s *Service) CreateFromWeb(ctx context.Context, token string, req *event.CreateEventRequest, creatorName string) (*store.Event, error) {
	shareToken, err := s.consumeToken(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.events.RegisterUser(ctx, shareToken.ChatIdentity, creatorName)
	if err != nil {
		return nil, err
	}
	req.CreatorID = user.ID
	req.DailyStartTime = orDefault(req.DailyStartTime, defaultDailyStart)
	req.DailyEndTime = orDefault(req.DailyEndTime, defaultDailyEnd)

	created, err := s.events.CreateEvent(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.events.SetEventChat(ctx, created.ID, shareToken.ChatID, shareToken.ThreadID); err != nil {
		return nil, err
	}

	if _, err := s.sender.SendMessage(ctx, &chat_apps.OutgoingMessage{
		ChatID:   shareToken.ChatID,
		ThreadID: shareToken.ThreadID,
		Content:  SharePrompt(created),
		Buttons:  EventButtons(created.ID),
	}); err != nil {
		slog.Warn("chatbot: share prompt failed", "event", created.ID, "error", err)
	}

	return created, nil
}

// ShareFromWeb binds an existing event to the chat the token was minted
// from and replaces the picker message with the share prompt.
func (s *Service) ShareFromWeb(ctx context.Context, token string, eventID uuid.UUID) error {
	shareToken, err := s.consumeToken(ctx, token)
	if err != nil {
		return err
	}

	if err := s.events.SetEventChat(ctx, eventID, shareToken.ChatID, shareToken.ThreadID); err != nil {
		return err
	}

	prompt := "An event was shared with this chat."
	if sharer, getErr := s.events.Authorizer().IdentityFor(ctx, shareToken.ChatIdentity); getErr == nil {
		prompt = fmt.Sprintf("%s shared an event with this chat.", sharer.DisplayName)
	}

	if err := s.sender.EditMessage(ctx, shareToken.ChatID, shareToken.MessageID, prompt); err != nil {
		slog.Warn("chatbot: share edit failed", "event", eventID, "error", err)
	}

	if _, err := s.sender.SendMessage(ctx, &chat_apps.OutgoingMessage{
		ChatID:   shareToken.ChatID,
		ThreadID: shareToken.ThreadID,
		Content:  "Press Join to take part.",
		Buttons:  EventButtons(eventID),
	}); err != nil {
		slog.Warn("chatbot: share prompt failed", "event", eventID, "error", err)
	}

	return nil
}

func (s *Service) mintToken(ctx context.Context, chatIdentity, chatID string, messageID int, threadID *string) (string, error) {
	token := shortuuid.New()
	err := s.tokens.CreateShareToken(ctx, &store.ShareToken{
		Token:        token,
		ChatIdentity: chatIdentity,
		ChatID:       chatID,
		MessageID:    messageID,
		ThreadID:     threadID,
		ExpiresAt:    s.clock.Now().Add(store.ShareTokenTTL),
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

func (s *Service) consumeToken(ctx context.Context, token string) (*store.ShareToken, error) {
	shareToken, err := s.tokens.ConsumeShareToken(ctx, token, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if shareToken == nil {
		return nil, apperr.New(apperr.NotFound, "token missing, expired, or already used")
	}
	return shareToken, nil
}

func (s *Service) webappURL(page, token string) string {
	return fmt.Sprintf("%s/webapp/%s?token=%s", s.instanceURL, page, url.QueryEscape(token))
}

func (s *Service) reply(ctx context.Context, chatID string, threadID *string, text string) error {
	_, err := s.sender.SendMessage(ctx, &chat_apps.OutgoingMessage{
		ChatID:   chatID,
		ThreadID: threadID,
		Content:  text,
	})
	return err
}

func (s *Service) answer(ctx context.Context, callbackID, text string) error {
	return s.sender.AnswerCallback(ctx, callbackID, text)
}

// EventButtons builds the standard inline keyboard under a shared event.
func EventButtons(eventID uuid.UUID) [][]chat_apps.Button {
	return [][]chat_apps.Button{{
		{Label: "Join", CallbackData: "join:" + eventID.String()},
		{Label: "Reminders", CallbackData: "reminders:" + eventID.String()},
	}}
}

// SharePrompt renders the message posted when an event lands in a chat.
func SharePrompt(event *store.Event) string {
	text := fmt.Sprintf("%q is collecting availability between %s and %s.",
		event.Name, event.WindowStartDate, event.WindowEndDate)
	if event.Description != "" {
		text += "\n" + event.Description
	}
	return text
}

func parseCallbackData(data string) (action string, eventID uuid.UUID, ok bool) {
	for _, prefix := range []string{"join:", "reminders:"} {
		if len(data) > len(prefix) && data[:len(prefix)] == prefix {
			id, err := uuid.Parse(data[len(prefix):])
			if err != nil {
				return "", uuid.Nil, false
			}
			return prefix[:len(prefix)-1], id, true
		}
	}
	return "", uuid.Nil, false
}

func renderError(err error) string {
	switch apperr.KindOf(err) {
	case apperr.InvalidInput:
		return "That input is not valid."
	case apperr.NotFound:
		return "Not found."
	case apperr.InvalidState:
		return "The event is not in the right state for that."
	case apperr.Unauthorized:
		return "You are not the creator."
	case apperr.Conflict:
		return "Already done."
	default:
		return "Something went wrong, try again."
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

const helpText = "Commands: /create starts a new event, /share posts an existing event into this chat, /help shows this."
