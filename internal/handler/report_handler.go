package handler

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-risk-api/internal/dto"
	"github.com/noah-isme/gema-risk-api/internal/service"
	"github.com/noah-isme/gema-risk-api/internal/utils"
)

// ReportHandler serves the paginated risk report and its CSV export.
type ReportHandler struct {
	sessions service.SessionService
	reports  service.ReportService
	logger   zerolog.Logger
}

// NewReportHandler constructs a report handler.
func NewReportHandler(sessions service.SessionService, reports service.ReportService, logger zerolog.Logger) *ReportHandler {
	return &ReportHandler{
		sessions: sessions,
		reports:  reports,
		logger:   logger.With().Str("component", "report_handler").Logger(),
	}
}

// Register binds the report routes.
func (h *ReportHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Get("/export", h.export)
}

func (h *ReportHandler) list(c *fiber.Ctx) error {
	logger := requestLogger(h.logger, c)

	page, pageSize, err := parsePaging(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	session, err := resolveSession(c, h.sessions)
	if err != nil {
		return respondError(c, logger, err, "failed to resolve session")
	}

	rows, meta, err := h.reports.List(c.UserContext(), session, dto.ReportRequest{
		Search:   c.Query("search"),
		Risk:     c.Query("risk"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return respondError(c, logger, err, "failed to build report")
	}

	return utils.OK(c, rows, "risk report", meta)
}

func (h *ReportHandler) export(c *fiber.Ctx) error {
	logger := requestLogger(h.logger, c)

	payload, err := h.reports.Export(c.UserContext(), dto.ReportRequest{
		Search: c.Query("search"),
		Risk:   c.Query("risk"),
	})
	if err != nil {
		return respondError(c, logger, err, "failed to export report")
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", "risk_report.csv"))
	return c.Status(fiber.StatusOK).Send(payload)
}
