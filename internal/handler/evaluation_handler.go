package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-risk-api/internal/service"
	"github.com/noah-isme/gema-risk-api/internal/utils"
)

// EvaluationHandler runs the risk engine for a session.
type EvaluationHandler struct {
	sessions    service.SessionService
	evaluations service.EvaluationService
	logger      zerolog.Logger
}

// NewEvaluationHandler constructs an evaluation handler.
func NewEvaluationHandler(sessions service.SessionService, evaluations service.EvaluationService, logger zerolog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		sessions:    sessions,
		evaluations: evaluations,
		logger:      logger.With().Str("component", "evaluation_handler").Logger(),
	}
}

// Register binds the evaluation routes.
func (h *EvaluationHandler) Register(router fiber.Router) {
	router.Post("/", h.evaluate)
}

func (h *EvaluationHandler) evaluate(c *fiber.Ctx) error {
	logger := requestLogger(h.logger, c)

	session, err := resolveSession(c, h.sessions)
	if err != nil {
		return respondError(c, logger, err, "failed to resolve session")
	}

	resp, err := h.evaluations.Evaluate(c.UserContext(), session)
	if err != nil {
		return respondError(c, logger, err, "failed to evaluate cohort")
	}

	logger.Info().
		Int("added", resp.NotificationsAdded).
		Int("pending", resp.PendingNotifications).
		Msg("cohort evaluated")

	return utils.SendSuccess(c, "cohort evaluated", resp)
}
