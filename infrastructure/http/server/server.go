// Package server exposes the chat service over HTTP with fiber.
package server

import (
	"campus-chat/auth"
	"campus-chat/domain"
	"campus-chat/observability"
	"campus-chat/services"
	"log/slog"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

type StatsProvider interface {
	GetLatest() observability.MonitoringStats
}

type Config struct {
	Secret    []byte
	AccessLog bool
	Clock     domain.Clock
}

type Server struct {
	log   *slog.Logger
	chat  services.IChatService
	stats StatsProvider
	clock domain.Clock
}

// New builds the fiber application. Every route but /healthz and /stats
// requires a Bearer token.
func New(log *slog.Logger, chat services.IChatService, stats StatsProvider, cfg Config) *fiber.App {
	if cfg.Clock == nil {
		cfg.Clock = domain.SystemClock
	}
	s := &Server{log: log, chat: chat, stats: stats, clock: cfg.Clock}

	app := fiber.New(fiber.Config{
		AppName:               "campus-chat",
		DisableStartupMessage: true,
		// Params and bodies end up as map keys in the stores and must outlive the request.
		Immutable:    true,
		ErrorHandler: s.handleFiberError,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New())
	if cfg.AccessLog {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
			Output: os.Stdout,
		}))
	}

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })
	app.Get("/stats", s.getStats)

	authed := auth.Middleware(cfg.Secret, s.writeError)
	app.Post("/messages", authed, s.sendMessage)
	app.Get("/conversations", authed, s.listConversations)
	app.Post("/conversations/direct", authed, s.createDirect)
	app.Get("/conversations/:id/messages", authed, s.listMessages)
	app.Post("/conversations/:id/read", authed, s.markRead)
	app.Get("/conversations/:id/unread", authed, s.unreadCount)
	app.Post("/groups", authed, s.createGroup)
	app.Post("/groups/:id/members", authed, s.addMember)
	app.Delete("/groups/:id/members/:userId", authed, s.removeMember)
	app.Post("/stories", authed, s.createStory)
	app.Get("/stories/active", authed, s.activeStories)
	app.Post("/stories/:id/views", authed, s.viewStory)
	app.Delete("/stories/:id", authed, s.deleteStory)
	app.Get("/users/:id/stories", authed, s.storiesByAuthor)
	app.Get("/users/:id/stories/badge", authed, s.storyBadge)

	return app
}
