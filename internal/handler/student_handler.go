package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-risk-api/internal/dto"
	"github.com/noah-isme/gema-risk-api/internal/middleware"
	"github.com/noah-isme/gema-risk-api/internal/service"
	"github.com/noah-isme/gema-risk-api/internal/utils"
)

// StudentHandler serves the advisor roster view and per-student actions.
type StudentHandler struct {
	sessions service.SessionService
	advisors service.AdvisorService
	logger   zerolog.Logger
	notify   []fiber.Handler
}

// NewStudentHandler constructs a student handler. notifyGuards run ahead of
// the notify route.
func NewStudentHandler(sessions service.SessionService, advisors service.AdvisorService, logger zerolog.Logger, notifyGuards ...fiber.Handler) *StudentHandler {
	return &StudentHandler{
		sessions: sessions,
		advisors: advisors,
		logger:   logger.With().Str("component", "student_handler").Logger(),
		notify:   notifyGuards,
	}
}

// Register binds the student routes.
func (h *StudentHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Get("/:id", h.detail)
	router.Get("/:id/interventions", h.interventions)

	notify := append(append([]fiber.Handler{}, h.notify...), h.sendNotification)
	router.Post("/:id/notify", notify...)
}

func (h *StudentHandler) list(c *fiber.Ctx) error {
	logger := requestLogger(h.logger, c)

	page, pageSize, err := parsePaging(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	session, err := resolveSession(c, h.sessions)
	if err != nil {
		return respondError(c, logger, err, "failed to resolve session")
	}

	resp, meta, err := h.advisors.List(c.UserContext(), session, dto.StudentListRequest{
		Search:   c.Query("search"),
		Risk:     c.Query("risk"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return respondError(c, logger, err, "failed to list students")
	}

	return utils.OK(c, resp, "students", meta)
}

func (h *StudentHandler) detail(c *fiber.Ctx) error {
	logger := requestLogger(h.logger, c)

	session, err := resolveSession(c, h.sessions)
	if err != nil {
		return respondError(c, logger, err, "failed to resolve session")
	}

	resp, err := h.advisors.Detail(c.UserContext(), session, strings.TrimSpace(c.Params("id")))
	if err != nil {
		return respondError(c, logger, err, "failed to load student")
	}

	return utils.SendSuccess(c, "student detail", resp)
}

func (h *StudentHandler) interventions(c *fiber.Ctx) error {
	logger := requestLogger(h.logger, c)

	session, err := resolveSession(c, h.sessions)
	if err != nil {
		return respondError(c, logger, err, "failed to resolve session")
	}

	resp, err := h.advisors.Interventions(c.UserContext(), session, strings.TrimSpace(c.Params("id")))
	if err != nil {
		return respondError(c, logger, err, "failed to load interventions")
	}

	return utils.SendSuccess(c, "interventions", resp)
}

func (h *StudentHandler) sendNotification(c *fiber.Ctx) error {
	logger := requestLogger(h.logger, c)

	var req dto.NotifyRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
	}
	if strings.TrimSpace(req.Advisor) == "" {
		req.Advisor = middleware.GetAdvisor(c)
	}

	session, err := resolveSession(c, h.sessions)
	if err != nil {
		return respondError(c, logger, err, "failed to resolve session")
	}

	studentID := strings.TrimSpace(c.Params("id"))
	resp, err := h.advisors.Notify(c.UserContext(), session, studentID, req)
	if err != nil {
		return respondError(c, logger, err, "failed to notify advisor")
	}

	logger.Info().
		Str("student_id", studentID).
		Bool("email_sent", resp.Delivery.Sent).
		Msg("manual notification recorded")

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, resp.Delivery.Info, resp)
}
