package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-risk-api/internal/middleware"
	"github.com/noah-isme/gema-risk-api/internal/service"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
	Details json.RawMessage `json:"details"`
	Message string          `json:"message"`
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}

func newSessions(t *testing.T) (service.SessionService, *service.Session) {
	t.Helper()
	sessions := service.NewSessionService(time.Hour, zerolog.Nop())
	return sessions, sessions.Create(context.Background())
}

// sessionApp mounts the session middleware ahead of the routes under prefix.
func sessionApp(prefix string, register func(fiber.Router)) *fiber.App {
	app := fiber.New()
	register(app.Group(prefix, middleware.SessionID()))
	return app
}

func jsonRequest(t *testing.T, method, target, sessionID string, payload interface{}) *http.Request {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionID != "" {
		req.Header.Set(middleware.SessionHeader, sessionID)
	}
	return req
}
