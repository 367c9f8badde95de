package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-risk-api/internal/dto"
	"github.com/noah-isme/gema-risk-api/internal/service"
	"github.com/noah-isme/gema-risk-api/internal/utils"
)

// AlertHandler serves the alert feed, acknowledgments and the live stream.
type AlertHandler struct {
	sessions    service.SessionService
	feed        service.AlertFeedService
	advisors    service.AdvisorService
	broadcaster service.AlertBroadcaster
	logger      zerolog.Logger
	keepAlive   time.Duration
}

// NewAlertHandler constructs an alert handler.
func NewAlertHandler(sessions service.SessionService, feed service.AlertFeedService, advisors service.AdvisorService, broadcaster service.AlertBroadcaster, logger zerolog.Logger, keepAlive time.Duration) *AlertHandler {
	return &AlertHandler{
		sessions:    sessions,
		feed:        feed,
		advisors:    advisors,
		broadcaster: broadcaster,
		logger:      logger.With().Str("component", "alert_handler").Logger(),
		keepAlive:   keepAlive,
	}
}

// Register binds the alert routes.
func (h *AlertHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Get("/stream", h.stream)
	router.Post("/:studentID/acknowledge", h.acknowledge)
}

func (h *AlertHandler) list(c *fiber.Ctx) error {
	logger := requestLogger(h.logger, c)

	page, pageSize, err := parsePaging(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	session, err := resolveSession(c, h.sessions)
	if err != nil {
		return respondError(c, logger, err, "failed to resolve session")
	}

	resp, meta, err := h.feed.List(c.UserContext(), session, dto.AlertFeedRequest{
		Search:   c.Query("search"),
		Severity: c.Query("severity"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return respondError(c, logger, err, "failed to list alerts")
	}

	return utils.OK(c, resp, "alerts", meta)
}

func (h *AlertHandler) acknowledge(c *fiber.Ctx) error {
	logger := requestLogger(h.logger, c)

	var req dto.AcknowledgeRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	session, err := resolveSession(c, h.sessions)
	if err != nil {
		return respondError(c, logger, err, "failed to resolve session")
	}

	studentID := strings.TrimSpace(c.Params("studentID"))
	resp, err := h.advisors.Acknowledge(c.UserContext(), session, studentID, req)
	if err != nil {
		return respondError(c, logger, err, "failed to acknowledge notification")
	}

	logger.Info().Str("student_id", studentID).Int("remaining", resp.Remaining).Msg("notification acknowledged")
	return utils.SendSuccess(c, "notification acknowledged", resp)
}

func (h *AlertHandler) stream(c *fiber.Ctx) error {
	logger := requestLogger(h.logger, c)

	session, err := resolveSession(c, h.sessions)
	if err != nil {
		return respondError(c, logger, err, "failed to resolve session")
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)

	events, cleanup := h.broadcaster.Subscribe(session.ID)

	keepAliveInterval := h.keepAlive
	if keepAliveInterval <= 0 {
		keepAliveInterval = 30 * time.Second
	}

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			cleanup()
			cancel()
		}()

		ticker := time.NewTicker(keepAliveInterval / 2)
		defer ticker.Stop()

		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				if err := writeAlertEvent(w, event); err != nil {
					h.logger.Debug().Err(err).Msg("failed to write alert event")
					return
				}
			case <-ticker.C:
				if err := writeKeepAlive(w); err != nil {
					h.logger.Debug().Err(err).Msg("failed to write alert keepalive")
					return
				}
			case <-ctx.Done():
				return
			}
		}
	})

	return nil
}

func writeAlertEvent(w *bufio.Writer, event dto.AlertStreamEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\n", event.Kind); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeKeepAlive(w *bufio.Writer) error {
	if _, err := fmt.Fprintf(w, ": keep-alive %s\n\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return w.Flush()
}
