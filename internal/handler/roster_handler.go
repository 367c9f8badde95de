package handler

import (
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-risk-api/internal/service"
	"github.com/noah-isme/gema-risk-api/internal/utils"
)

const defaultRosterFilename = "roster.csv"

// RosterHandler accepts roster uploads.
type RosterHandler struct {
	roster service.RosterService
	logger zerolog.Logger
	guards []fiber.Handler
}

// NewRosterHandler constructs a roster handler. guards run ahead of the
// import route.
func NewRosterHandler(roster service.RosterService, logger zerolog.Logger, guards ...fiber.Handler) *RosterHandler {
	return &RosterHandler{
		roster: roster,
		logger: logger.With().Str("component", "roster_handler").Logger(),
		guards: guards,
	}
}

// Register binds the roster routes.
func (h *RosterHandler) Register(router fiber.Router) {
	handlers := append(append([]fiber.Handler{}, h.guards...), h.importRoster)
	router.Post("/import", handlers...)
}

func (h *RosterHandler) importRoster(c *fiber.Ctx) error {
	logger := requestLogger(h.logger, c)

	filename, content, err := readRosterUpload(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	resp, err := h.roster.Import(c.UserContext(), filename, content)
	if err != nil {
		return respondError(c, logger, err, "roster import failed")
	}

	logger.Info().
		Str("filename", filename).
		Int("imported", resp.Imported).
		Int("skipped", resp.Skipped).
		Msg("roster imported")

	return utils.SendSuccess(c, "roster imported", resp)
}

// readRosterUpload accepts either a multipart "file" field or a raw CSV body.
func readRosterUpload(c *fiber.Ctx) (string, []byte, error) {
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		header, err := c.FormFile("file")
		if err != nil {
			return "", nil, err
		}
		file, err := header.Open()
		if err != nil {
			return "", nil, err
		}
		defer file.Close()

		content, err := io.ReadAll(file)
		if err != nil {
			return "", nil, err
		}
		return header.Filename, content, nil
	}

	body := c.Body()
	if len(body) == 0 {
		return "", nil, fiber.ErrBadRequest
	}
	filename := strings.TrimSpace(c.Query("filename"))
	if filename == "" {
		filename = defaultRosterFilename
	}
	return filename, append([]byte(nil), body...), nil
}
