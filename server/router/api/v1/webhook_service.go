package v1

import (
	"crypto/subtle"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/meetwhenah/meetwhenah/internal/apperr"
	"github.com/meetwhenah/meetwhenah/plugin/chat_apps/channels"
	"github.com/meetwhenah/meetwhenah/plugin/chat_apps/channels/telegram"
)

// HandleWebhook ingests raw chat platform updates. The secret path segment is
// the only authentication; a mismatch reads as a missing route. Parsed
// updates always get a 200 so the platform does not redeliver them.
func (s *APIV1Service) HandleWebhook(c echo.Context) error {
	if s.Profile.WebhookSecret == "" ||
		subtle.ConstantTimeCompare([]byte(c.Param("secret")), []byte(s.Profile.WebhookSecret)) != 1 {
		return c.NoContent(http.StatusNotFound)
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return errorJSON(c, apperr.New(apperr.InvalidInput, "unreadable body"))
	}

	update, err := telegram.ParseUpdate(body)
	if err != nil {
		if errors.Is(err, channels.ErrInvalidPayload) {
			return errorJSON(c, apperr.New(apperr.InvalidInput, "malformed update"))
		}
		return errorJSON(c, err)
	}
	if update == nil {
		return okJSON(c, nil)
	}

	if err := s.ChatbotService.HandleUpdate(c.Request().Context(), update); err != nil {
		slog.Error("webhook: update handling failed", "update_id", update.ID(), "error", err)
	}
	return okJSON(c, nil)
}

// TriggerReminders runs one dispatch round on demand. It backs deployments
// where an external cron hits the endpoint instead of the in-process ticker.
func (s *APIV1Service) TriggerReminders(c echo.Context) error {
	if s.Profile.ReminderAPIKey == "" ||
		subtle.ConstantTimeCompare([]byte(c.Request().Header.Get("X-Api-Key")), []byte(s.Profile.ReminderAPIKey)) != 1 {
		return errorJSON(c, apperr.New(apperr.Unauthorized, "missing or wrong api key"))
	}

	s.Dispatcher.Tick(c.Request().Context())
	return okJSON(c, nil)
}
