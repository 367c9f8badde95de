package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-risk-api/internal/config"
	"github.com/noah-isme/gema-risk-api/internal/service"
	"github.com/noah-isme/gema-risk-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	Service        string    `json:"service"`
	Environment    string    `json:"environment"`
	ActiveSessions int       `json:"active_sessions"`
	EmailEnabled   bool      `json:"email_enabled"`
}

// HealthCheck returns a handler that reports application health information.
func HealthCheck(cfg config.Config, sessions service.SessionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:       "ok",
			Timestamp:    time.Now().UTC(),
			Service:      cfg.AppName,
			Environment:  cfg.AppEnv,
			EmailEnabled: cfg.SMTP.Configured(),
		}
		if sessions != nil {
			payload.ActiveSessions = sessions.Count()
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
