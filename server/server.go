// Package server assembles the HTTP surface, the chat services, and the
// reminder ticker into one runnable unit.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/meetwhenah/meetwhenah/internal/profile"
	"github.com/meetwhenah/meetwhenah/plugin/chat_apps"
	"github.com/meetwhenah/meetwhenah/plugin/chat_apps/channels/telegram"
	apiv1 "github.com/meetwhenah/meetwhenah/server/router/api/v1"
	"github.com/meetwhenah/meetwhenah/server/service/chatbot"
	"github.com/meetwhenah/meetwhenah/server/service/event"
	"github.com/meetwhenah/meetwhenah/server/service/reminder"
	"github.com/meetwhenah/meetwhenah/store"
)

// tickSchedule drives the in-process reminder dispatcher. The dispatcher's
// duplicate suppression makes the cadence safe to shorten.
const tickSchedule = "@every 1m"

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
	cronRunner *cron.Cron
	dispatcher *reminder.Dispatcher
}

func NewServer(_ context.Context, instanceProfile *profile.Profile, storeInstance *store.Store) (*Server, error) {
	echoServer := echo.New()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(middleware.Recover())
	echoServer.Use(middleware.CORS())
	echoServer.Use(requestLogger())

	clockInstance := clock.New()

	var sender chat_apps.Sender = chat_apps.NopSender{}
	if instanceProfile.TelegramBotToken != "" {
		channel, err := telegram.NewChannel(&telegram.Config{BotToken: instanceProfile.TelegramBotToken})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create telegram channel")
		}
		slog.Info("telegram channel ready", "bot", channel.BotUsername())
		sender = channel
	} else {
		slog.Warn("no telegram bot token configured, outbound messages are discarded")
	}

	eventService := event.NewService(storeInstance, clockInstance, sender, instanceProfile.DefaultTimezone)
	chatbotService := chatbot.NewService(
		eventService,
		storeInstance,
		sender,
		clockInstance,
		chat_apps.NewDedupCache(instanceProfile.DedupCacheSize),
		instanceProfile.InstanceURL,
	)
	dispatcher := reminder.NewDispatcher(storeInstance, clockInstance, sender)

	apiService := apiv1.NewAPIV1Service(instanceProfile, eventService, chatbotService, dispatcher)
	apiService.Register(echoServer)

	server := &Server{
		Profile:    instanceProfile,
		Store:      storeInstance,
		echoServer: echoServer,
		cronRunner: cron.New(),
		dispatcher: dispatcher,
	}

	if _, err := server.cronRunner.AddFunc(tickSchedule, func() {
		tickCtx, cancel := context.WithTimeout(context.Background(), 50*time.Second)
		defer cancel()
		dispatcher.Tick(tickCtx)
	}); err != nil {
		return nil, errors.Wrap(err, "failed to schedule reminder ticks")
	}

	return server, nil
}

// Start begins serving in the background and starts the reminder ticker.
func (s *Server) Start(_ context.Context) error {
	s.cronRunner.Start()

	go func() {
		address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
		var err error
		if s.Profile.UNIXSock != "" {
			err = startUnixSocket(s.echoServer, s.Profile.UNIXSock)
		} else {
			err = s.echoServer.Start(address)
		}
		if err != nil {
			slog.Error("server stopped", "error", err)
		}
	}()

	return nil
}

func (s *Server) Shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	stopCtx := s.cronRunner.Stop()
	select {
	case <-stopCtx.Done():
	case <-shutdownCtx.Done():
	}

	if err := s.echoServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close store", "error", err)
	}

	slog.Info("server shutdown complete")
}

// startUnixSocket serves over a unix socket, replacing a stale socket file
// left by a previous run.
func startUnixSocket(e *echo.Echo, path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return err
	}
	e.Listener = listener
	return e.Start("")
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogError:  true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				slog.Warn("request failed", "method", v.Method, "uri", v.URI, "status", v.Status, "error", v.Error)
				return nil
			}
			slog.Debug("request", "method", v.Method, "uri", v.URI, "status", v.Status)
			return nil
		},
	})
}
