package telegram

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/meetwhenah/meetwhenah/plugin/chat_apps"
	"github.com/meetwhenah/meetwhenah/plugin/chat_apps/channels"
)

// updateOverlay captures update fields the bot API library predates:
// web_app_data (Bot API 6.0) and message_thread_id (6.3).
type updateOverlay struct {
	Message *struct {
		MessageThreadID int `json:"message_thread_id"`
		WebAppData      *struct {
			Data       string `json:"data"`
			ButtonText string `json:"button_text"`
		} `json:"web_app_data"`
	} `json:"message"`
}

// ParseUpdate normalizes a raw webhook body into an Update. Updates the bot
// does not act on, such as plain text messages, return (nil, nil).
func ParseUpdate(payload []byte) (*chat_apps.Update, error) {
	var update tgbotapi.Update
	if err := json.Unmarshal(payload, &update); err != nil {
		slog.Warn("telegram: failed to parse webhook payload", "error", err)
		return nil, channels.ErrInvalidPayload
	}

	var overlay updateOverlay
	// The outer unmarshal succeeded, so this one cannot fail.
	_ = json.Unmarshal(payload, &overlay)

	updateID := strconv.Itoa(update.UpdateID)

	if cq := update.CallbackQuery; cq != nil {
		if cq.Message == nil || cq.From == nil {
			return nil, channels.ErrInvalidPayload
		}
		return &chat_apps.Update{Callback: &chat_apps.CallbackQuery{
			UpdateID:    updateID,
			CallbackID:  cq.ID,
			UserID:      strconv.FormatInt(cq.From.ID, 10),
			DisplayName: displayName(cq.From),
			ChatID:      strconv.FormatInt(cq.Message.Chat.ID, 10),
			MessageID:   cq.Message.MessageID,
			Data:        cq.Data,
		}}, nil
	}

	msg := update.Message
	if msg == nil || msg.From == nil {
		return nil, nil
	}

	if overlay.Message != nil && overlay.Message.WebAppData != nil {
		return &chat_apps.Update{WebApp: &chat_apps.WebAppSubmission{
			UpdateID:    updateID,
			UserID:      strconv.FormatInt(msg.From.ID, 10),
			DisplayName: displayName(msg.From),
			ChatID:      strconv.FormatInt(msg.Chat.ID, 10),
			Data:        overlay.Message.WebAppData.Data,
		}}, nil
	}

	if msg.IsCommand() {
		command := &chat_apps.Command{
			UpdateID:    updateID,
			UserID:      strconv.FormatInt(msg.From.ID, 10),
			Username:    msg.From.UserName,
			DisplayName: displayName(msg.From),
			ChatID:      strconv.FormatInt(msg.Chat.ID, 10),
			MessageID:   msg.MessageID,
			Name:        msg.Command(),
			Args:        msg.CommandArguments(),
		}
		if overlay.Message != nil && overlay.Message.MessageThreadID > 0 {
			threadID := strconv.Itoa(overlay.Message.MessageThreadID)
			command.ThreadID = &threadID
		}
		return &chat_apps.Update{Command: command}, nil
	}

	return nil, nil
}

func displayName(user *tgbotapi.User) string {
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" {
		name = user.UserName
	}
	return name
}
