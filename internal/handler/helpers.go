package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-risk-api/internal/middleware"
	"github.com/noah-isme/gema-risk-api/internal/risk"
	"github.com/noah-isme/gema-risk-api/internal/service"
	"github.com/noah-isme/gema-risk-api/internal/utils"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

// parsePaging reads page and page_size; absent values are zero.
func parsePaging(c *fiber.Ctx) (int, int, error) {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return 0, 0, errors.New("invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return 0, 0, errors.New("invalid page size")
	}
	return page, pageSize, nil
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		ctx := base.With()
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			ctx = ctx.Str("correlation_id", correlation)
		}
		if session := middleware.GetSessionID(c); session != "" {
			ctx = ctx.Str("session_id", session)
		}
		logger = ctx.Logger()
	}
	return &logger
}

// resolveSession loads the session named by the request header.
func resolveSession(c *fiber.Ctx, sessions service.SessionService) (*service.Session, error) {
	return sessions.Get(c.UserContext(), middleware.GetSessionID(c))
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

func validationDetails(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	details := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		details[strings.ToLower(fieldErr.Field())] = fieldErr.Tag()
	}
	return details
}

// respondError maps service errors onto status codes. Unknown errors are
// logged and reported with the fallback message.
func respondError(c *fiber.Ctx, logger *zerolog.Logger, err error, fallback string) error {
	switch {
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "invalid request", validationDetails(err))
	case errors.Is(err, service.ErrSessionRequired):
		return utils.SendError(c, fiber.StatusBadRequest, "session id required")
	case errors.Is(err, service.ErrSessionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "session not found")
	case errors.Is(err, service.ErrStudentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "student not found")
	case errors.Is(err, service.ErrNotificationNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "notification not found")
	case errors.Is(err, service.ErrRosterTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, service.ErrRosterFileType):
		return utils.SendError(c, fiber.StatusUnsupportedMediaType, service.ErrRosterFileType.Error())
	case errors.Is(err, service.ErrRosterEmpty), errors.Is(err, risk.ErrMissingStudentID):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	default:
		logger.Error().Err(err).Msg(fallback)
		return utils.SendError(c, fiber.StatusInternalServerError, fallback)
	}
}
