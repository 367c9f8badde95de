package handler_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-risk-api/internal/dto"
	"github.com/noah-isme/gema-risk-api/internal/handler"
	"github.com/noah-isme/gema-risk-api/internal/risk"
	"github.com/noah-isme/gema-risk-api/internal/service"
)

type mockAdvisorService struct {
	lastSession    *service.Session
	lastStudentID  string
	lastList       dto.StudentListRequest
	lastNotify     dto.NotifyRequest
	lastAck        dto.AcknowledgeRequest
	listResponse   dto.StudentListResponse
	listMeta       dto.PaginationMeta
	detailResponse dto.StudentDetailResponse
	notifyResponse dto.NotifyResponse
	ackResponse    dto.AcknowledgeResponse
	err            error
}

func (m *mockAdvisorService) List(_ context.Context, session *service.Session, req dto.StudentListRequest) (dto.StudentListResponse, dto.PaginationMeta, error) {
	m.lastSession = session
	m.lastList = req
	return m.listResponse, m.listMeta, m.err
}

func (m *mockAdvisorService) Detail(_ context.Context, session *service.Session, studentID string) (dto.StudentDetailResponse, error) {
	m.lastSession = session
	m.lastStudentID = studentID
	return m.detailResponse, m.err
}

func (m *mockAdvisorService) Notify(_ context.Context, session *service.Session, studentID string, req dto.NotifyRequest) (dto.NotifyResponse, error) {
	m.lastSession = session
	m.lastStudentID = studentID
	m.lastNotify = req
	return m.notifyResponse, m.err
}

func (m *mockAdvisorService) Acknowledge(_ context.Context, session *service.Session, studentID string, req dto.AcknowledgeRequest) (dto.AcknowledgeResponse, error) {
	m.lastSession = session
	m.lastStudentID = studentID
	m.lastAck = req
	return m.ackResponse, m.err
}

func (m *mockAdvisorService) Interventions(_ context.Context, session *service.Session, studentID string) ([]dto.InterventionResponse, error) {
	m.lastSession = session
	m.lastStudentID = studentID
	if m.err != nil {
		return nil, m.err
	}
	return []dto.InterventionResponse{{Type: "Notification Acknowledged", Advisor: "Dr. Reyes"}}, nil
}

func TestStudentHandler_ListPassesFilters(t *testing.T) {
	sessions, session := newSessions(t)
	svc := &mockAdvisorService{
		listResponse: dto.StudentListResponse{
			Items:  []dto.StudentSummary{{StudentID: "S005", RiskScore: 75, RiskLabel: risk.LabelHigh, Escalated: true}},
			Counts: map[string]int{"High": 3, "Medium": 1, "Low": 4, "Total": 8},
		},
		listMeta: dto.PaginationMeta{Page: 2, PageSize: 5, TotalItems: 8, TotalPages: 2},
	}
	app := sessionApp("/api/students", func(r fiber.Router) {
		handler.NewStudentHandler(sessions, svc, zerolog.New(io.Discard)).Register(r)
	})

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/api/students?search=s00&risk=High&page=2&page_size=5", session.ID, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Success bool                    `json:"success"`
		Data    dto.StudentListResponse `json:"data"`
		Meta    dto.PaginationMeta      `json:"meta"`
	}
	decodeResponse(t, resp, &body)
	require.True(t, body.Success)
	require.Equal(t, 3, body.Data.Counts["High"])
	require.Equal(t, 2, body.Meta.Page)
	require.Equal(t, session.ID, svc.lastSession.ID)
	require.Equal(t, dto.StudentListRequest{Search: "s00", Risk: "High", Page: 2, PageSize: 5}, svc.lastList)
}

func TestStudentHandler_SessionErrors(t *testing.T) {
	sessions, _ := newSessions(t)
	app := sessionApp("/api/students", func(r fiber.Router) {
		handler.NewStudentHandler(sessions, &mockAdvisorService{}, zerolog.New(io.Discard)).Register(r)
	})

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/api/students", "", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/api/students", "missing", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/api/students?page=oops", "missing", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestStudentHandler_DetailNotFound(t *testing.T) {
	sessions, session := newSessions(t)
	svc := &mockAdvisorService{err: service.ErrStudentNotFound}
	app := sessionApp("/api/students", func(r fiber.Router) {
		handler.NewStudentHandler(sessions, svc, zerolog.New(io.Discard)).Register(r)
	})

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/api/students/S999", session.ID, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	require.Equal(t, "S999", svc.lastStudentID)
}

func TestStudentHandler_NotifyDefaultsAdvisorFromIdentity(t *testing.T) {
	sessions, session := newSessions(t)
	svc := &mockAdvisorService{notifyResponse: dto.NotifyResponse{
		Notification: dto.NotificationResponse{StudentID: "S001", Subject: "Risk alerts for John Smith (Medium)"},
		Recipient:    "s001@university.edu",
		Delivery:     dto.DeliveryResult{Info: "SMTP not configured. Set SMTP credentials to enable email sending."},
	}}
	app := sessionApp("/api/students", func(r fiber.Router) {
		identity := func(c *fiber.Ctx) error {
			c.Locals("advisor", "Dr. Okafor")
			return c.Next()
		}
		handler.NewStudentHandler(sessions, svc, zerolog.New(io.Discard), identity).Register(r)
	})

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/students/S001/notify", session.ID, map[string]string{"notes": "Please follow up"}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var body struct {
		Success bool               `json:"success"`
		Data    dto.NotifyResponse `json:"data"`
		Message string             `json:"message"`
	}
	decodeResponse(t, resp, &body)
	require.True(t, body.Success)
	require.Equal(t, "SMTP not configured. Set SMTP credentials to enable email sending.", body.Message)
	require.Equal(t, "s001@university.edu", body.Data.Recipient)
	require.Equal(t, "Dr. Okafor", svc.lastNotify.Advisor)
	require.Equal(t, "Please follow up", svc.lastNotify.Notes)
}

func TestStudentHandler_NotifyErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		statusCode int
	}{
		{name: "unknown_student", err: service.ErrStudentNotFound, statusCode: fiber.StatusNotFound},
		{name: "generic", err: errors.New("boom"), statusCode: fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sessions, session := newSessions(t)
			svc := &mockAdvisorService{err: tc.err}
			app := sessionApp("/api/students", func(r fiber.Router) {
				handler.NewStudentHandler(sessions, svc, zerolog.New(io.Discard)).Register(r)
			})

			resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/students/S001/notify", session.ID, nil))
			require.NoError(t, err)
			require.Equal(t, tc.statusCode, resp.StatusCode)
		})
	}
}

func TestStudentHandler_Interventions(t *testing.T) {
	sessions, session := newSessions(t)
	svc := &mockAdvisorService{}
	app := sessionApp("/api/students", func(r fiber.Router) {
		handler.NewStudentHandler(sessions, svc, zerolog.New(io.Discard)).Register(r)
	})

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/api/students/S001/interventions", session.ID, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Data []dto.InterventionResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.Len(t, body.Data, 1)
	require.Equal(t, "Notification Acknowledged", body.Data[0].Type)
}
