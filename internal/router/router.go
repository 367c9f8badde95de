package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-risk-api/internal/config"
	"github.com/noah-isme/gema-risk-api/internal/handler"
	"github.com/noah-isme/gema-risk-api/internal/observability"
	"github.com/noah-isme/gema-risk-api/internal/service"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	Sessions           service.SessionService
	SessionHandler     *handler.SessionHandler
	EvaluationHandler  *handler.EvaluationHandler
	StudentHandler     *handler.StudentHandler
	AlertHandler       *handler.AlertHandler
	ReportHandler      *handler.ReportHandler
	RosterHandler      *handler.RosterHandler
	IdentityMiddleware fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.Sessions))
	api.Get("/metrics", observability.MetricsHandler())

	// Use provided identity middleware, or a no-op if nil
	identity := deps.IdentityMiddleware
	if identity == nil {
		identity = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.SessionHandler != nil {
		deps.SessionHandler.Register(api.Group("/sessions"))
	}
	if deps.EvaluationHandler != nil {
		deps.EvaluationHandler.Register(api.Group("/evaluations", identity))
	}
	if deps.StudentHandler != nil {
		deps.StudentHandler.Register(api.Group("/students", identity))
	}
	if deps.AlertHandler != nil {
		deps.AlertHandler.Register(api.Group("/alerts", identity))
	}
	if deps.ReportHandler != nil {
		deps.ReportHandler.Register(api.Group("/reports", identity))
	}
	if deps.RosterHandler != nil {
		deps.RosterHandler.Register(api.Group("/roster", identity))
	}
}
