package handler

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-risk-api/internal/dto"
	"github.com/noah-isme/gema-risk-api/internal/service"
	"github.com/noah-isme/gema-risk-api/internal/utils"
)

// SessionHandler opens and closes advisor sessions.
type SessionHandler struct {
	sessions service.SessionService
	idleTTL  time.Duration
	logger   zerolog.Logger
}

// NewSessionHandler constructs a session handler.
func NewSessionHandler(sessions service.SessionService, idleTTL time.Duration, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		idleTTL:  idleTTL,
		logger:   logger.With().Str("component", "session_handler").Logger(),
	}
}

// Register binds the session routes.
func (h *SessionHandler) Register(router fiber.Router) {
	router.Post("/", h.create)
	router.Delete("/:id", h.close)
}

func (h *SessionHandler) create(c *fiber.Ctx) error {
	session := h.sessions.Create(c.UserContext())
	requestLogger(h.logger, c).Info().Str("session_id", session.ID).Msg("session opened")

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "session created", dto.SessionResponse{
		SessionID:      session.ID,
		CreatedAt:      session.CreatedAt,
		IdleTTLSeconds: int(h.idleTTL / time.Second),
	})
}

func (h *SessionHandler) close(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if !h.sessions.Close(c.UserContext(), id) {
		return utils.SendError(c, fiber.StatusNotFound, "session not found")
	}
	return utils.SendSuccess(c, "session closed", nil)
}
