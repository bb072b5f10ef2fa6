// Package v1 is the JSON HTTP boundary: the webapp endpoints, the inbound
// chat webhook, and the operational routes.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meetwhenah/meetwhenah/internal/profile"
	"github.com/meetwhenah/meetwhenah/server/service/chatbot"
	"github.com/meetwhenah/meetwhenah/server/service/event"
	"github.com/meetwhenah/meetwhenah/server/service/reminder"
)

type APIV1Service struct {
	Profile        *profile.Profile
	EventService   *event.Service
	ChatbotService *chatbot.Service
	Dispatcher     *reminder.Dispatcher
}

func NewAPIV1Service(p *profile.Profile, events *event.Service, bot *chatbot.Service, dispatcher *reminder.Dispatcher) *APIV1Service {
	return &APIV1Service{
		Profile:        p,
		EventService:   events,
		ChatbotService: bot,
		Dispatcher:     dispatcher,
	}
}

// Register mounts all routes on the echo instance.
func (s *APIV1Service) Register(echoServer *echo.Echo) {
	apiGroup := echoServer.Group("/api")
	apiGroup.POST("/event/create", s.CreateEvent)
	apiGroup.POST("/event/confirm", s.ConfirmEvent)
	apiGroup.POST("/event/get-best-time", s.GetBestTime)
	apiGroup.GET("/event/:id", s.GetEvent)
	apiGroup.POST("/availability", s.RecordAvailability)
	apiGroup.GET("/availability/:user/:event_id", s.GetAvailability)
	apiGroup.POST("/share", s.ShareEvent)
	apiGroup.POST("/reminders", s.TriggerReminders)

	echoServer.POST("/webhook/:secret", s.HandleWebhook)

	echoServer.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{"status": "ok", "version": s.Profile.Version})
	})
	echoServer.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}
