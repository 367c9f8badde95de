package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-risk-api/internal/dto"
	"github.com/noah-isme/gema-risk-api/internal/observability"
	"github.com/noah-isme/gema-risk-api/internal/risk"
)

const topCriticalLimit = 5

// ErrNotificationNotFound indicates an acknowledgment index with no pending notification.
var ErrNotificationNotFound = errors.New("notification not found")

// AdvisorService serves the advisor views of the scored roster and the
// notification lifecycle of a session.
type AdvisorService interface {
	List(ctx context.Context, session *Session, req dto.StudentListRequest) (dto.StudentListResponse, dto.PaginationMeta, error)
	Detail(ctx context.Context, session *Session, studentID string) (dto.StudentDetailResponse, error)
	Notify(ctx context.Context, session *Session, studentID string, req dto.NotifyRequest) (dto.NotifyResponse, error)
	Acknowledge(ctx context.Context, session *Session, studentID string, req dto.AcknowledgeRequest) (dto.AcknowledgeResponse, error)
	Interventions(ctx context.Context, session *Session, studentID string) ([]dto.InterventionResponse, error)
}

type advisorService struct {
	evaluations EvaluationService
	mailer      Mailer
	broadcaster AlertBroadcaster
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	emailDomain string
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewAdvisorService constructs the advisor service. broadcaster may be nil.
func NewAdvisorService(evaluations EvaluationService, mailer Mailer, broadcaster AlertBroadcaster, validate *validator.Validate, emailDomain string, logger zerolog.Logger) AdvisorService {
	if strings.TrimSpace(emailDomain) == "" {
		emailDomain = "example.edu"
	}
	return &advisorService{
		evaluations: evaluations,
		mailer:      mailer,
		broadcaster: broadcaster,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		emailDomain: strings.TrimPrefix(strings.TrimSpace(emailDomain), "@"),
		logger:      logger.With().Str("component", "advisor_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-risk-api/internal/service/advisor"),
	}
}

func (s *advisorService) List(ctx context.Context, session *Session, req dto.StudentListRequest) (dto.StudentListResponse, dto.PaginationMeta, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.StudentListResponse{}, dto.PaginationMeta{}, err
	}
	if session == nil {
		return dto.StudentListResponse{}, dto.PaginationMeta{}, ErrSessionRequired
	}

	cohort, err := s.evaluations.Cohort(ctx)
	if err != nil {
		return dto.StudentListResponse{}, dto.PaginationMeta{}, err
	}

	label, filtered := riskFilter(req.Risk)
	search := strings.ToLower(strings.TrimSpace(req.Search))

	matches := make([]dto.StudentSummary, 0, len(cohort.Students))
	for _, student := range cohort.Students {
		if search != "" && !strings.Contains(strings.ToLower(student.Record.ID), search) {
			continue
		}
		if filtered && student.RiskLabel != label {
			continue
		}
		matches = append(matches, s.summarize(session, cohort, student))
	}

	start, end, meta := pageWindow(session, viewStudents, len(matches), req.Page, req.PageSize)

	counts := make(map[string]int, 4)
	for label, count := range risk.CountByLabel(cohort.Students) {
		counts[string(label)] = count
	}
	counts["Total"] = len(cohort.Students)

	return dto.StudentListResponse{
		Items:       matches[start:end],
		Counts:      counts,
		TopCritical: s.topCritical(session, cohort),
	}, meta, nil
}

// topCritical lists the first students of the engine ordering, which puts the
// most critical alerts first.
func (s *advisorService) topCritical(session *Session, cohort Cohort) []dto.StudentSummary {
	top := make([]dto.StudentSummary, 0, topCriticalLimit)
	for _, entry := range cohort.Alerts {
		if len(top) == topCriticalLimit {
			break
		}
		student, ok := cohort.Student(entry.StudentID)
		if !ok {
			continue
		}
		top = append(top, s.summarize(session, cohort, student))
	}
	return top
}

func (s *advisorService) summarize(session *Session, cohort Cohort, student risk.AugmentedStudent) dto.StudentSummary {
	alerts := cohort.AlertsFor(student.Record.ID)
	return dto.StudentSummary{
		StudentID:            student.Record.ID,
		Name:                 displayName(student.Record),
		Major:                student.Record.Major,
		Year:                 student.Record.Year,
		GPA:                  gpaOrNil(student.Record.GPA),
		Credits:              student.Record.Credits,
		RiskScore:            student.RiskScore,
		RiskLabel:            student.RiskLabel,
		Escalated:            student.Escalated,
		CriticalAlerts:       alerts.CriticalCount(),
		TotalAlerts:          len(alerts.Alerts),
		PendingNotifications: len(session.Store.Notifications(student.Record.ID)),
		Acknowledged:         session.Store.Acknowledged(student.Record.ID),
	}
}

func (s *advisorService) Detail(ctx context.Context, session *Session, studentID string) (dto.StudentDetailResponse, error) {
	if session == nil {
		return dto.StudentDetailResponse{}, ErrSessionRequired
	}

	cohort, student, err := s.lookup(ctx, studentID)
	if err != nil {
		return dto.StudentDetailResponse{}, err
	}

	id := student.Record.ID
	alerts := cohort.AlertsFor(id).Alerts
	if alerts == nil {
		alerts = []risk.Alert{}
	}
	active := student.Flags.Active()
	if active == nil {
		active = []risk.Indicator{}
	}

	return dto.StudentDetailResponse{
		Record:           student.Record,
		Advisor:          cohort.Advisor(id),
		Profile:          student.Profile,
		Flags:            student.Flags,
		ActiveIndicators: active,
		Assessment:       student.Assessment,
		RiskScore:        student.RiskScore,
		RiskLabel:        student.RiskLabel,
		Escalated:        student.Escalated,
		Summary:          risk.BriefSummary(student),
		Alerts:           alerts,
		Notifications:    pendingResponses(session.Store, id),
		Interventions:    toInterventionResponses(session.Store.Interventions(id)),
		Acknowledged:     session.Store.Acknowledged(id),
		Extra:            cohort.Extra[id],
	}, nil
}

// Notify records a manual notification for the student and attempts to email it.
// The notification is kept whatever the delivery outcome.
func (s *advisorService) Notify(ctx context.Context, session *Session, studentID string, req dto.NotifyRequest) (dto.NotifyResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.NotifyResponse{}, err
	}
	if session == nil {
		return dto.NotifyResponse{}, ErrSessionRequired
	}

	ctx, span := s.tracer.Start(ctx, "advisor.notify", trace.WithAttributes(
		attribute.String("session.id", session.ID),
		attribute.String("student.id", studentID),
	))
	defer span.End()

	cohort, student, err := s.lookup(ctx, studentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "student lookup failed")
		return dto.NotifyResponse{}, err
	}

	id := student.Record.ID
	entry := cohort.AlertsFor(id)
	name := displayName(student.Record)
	label := student.RiskLabel
	if len(entry.Alerts) > 0 {
		label = entry.RiskLevel
	}

	subject := fmt.Sprintf("Risk alerts for %s (%s)", name, label)
	message := compileAlerts(entry.Alerts)
	if notes := strings.TrimSpace(s.sanitizer.Sanitize(req.Notes)); notes != "" {
		if message != "" {
			message += "\n\n"
		}
		message += notes
	}
	if message == "" {
		message = "No active risk alerts."
	}

	advisor := strings.TrimSpace(s.sanitizer.Sanitize(req.Advisor))
	if advisor == "" {
		advisor = cohort.Advisor(id)
	}

	added := session.Store.AddNotification(id, subject, message, advisor)
	notification := toNotificationResponse(added.StudentID, added.Index, added.Notification)
	if s.broadcaster != nil {
		s.broadcaster.Publish(ctx, dto.AlertStreamEvent{
			Kind:         dto.StreamNotificationCreated,
			SessionID:    session.ID,
			Notification: notification,
		})
	}

	recipient := fmt.Sprintf("%s@%s", strings.ToLower(id), s.emailDomain)
	delivery := s.mailer.Send(ctx, recipient, subject, message)
	span.SetAttributes(attribute.Bool("notify.delivered", delivery.Sent))
	if !delivery.Sent {
		s.logger.Warn().Str("student_id", id).Str("info", delivery.Info).Msg("notification email not sent")
	}

	return dto.NotifyResponse{
		Notification: notification,
		Recipient:    recipient,
		Delivery:     delivery,
	}, nil
}

func (s *advisorService) Acknowledge(ctx context.Context, session *Session, studentID string, req dto.AcknowledgeRequest) (dto.AcknowledgeResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AcknowledgeResponse{}, err
	}
	if session == nil {
		return dto.AcknowledgeResponse{}, ErrSessionRequired
	}

	id := strings.TrimSpace(studentID)
	index := *req.Index

	removed, intervention, ok := session.Store.Acknowledge(id, index)
	if !ok {
		return dto.AcknowledgeResponse{Acknowledged: false, Remaining: len(session.Store.Notifications(id))}, ErrNotificationNotFound
	}
	observability.NotificationsAcknowledged().Inc()

	if s.broadcaster != nil {
		s.broadcaster.Publish(ctx, dto.AlertStreamEvent{
			Kind:         dto.StreamNotificationAcknowledged,
			SessionID:    session.ID,
			Notification: toNotificationResponse(id, index, removed),
		})
	}

	s.logger.Info().Str("student_id", id).Int("index", index).Msg("notification acknowledged")

	response := dto.InterventionResponse(intervention)
	return dto.AcknowledgeResponse{
		Acknowledged: true,
		Intervention: &response,
		Remaining:    len(session.Store.Notifications(id)),
	}, nil
}

func (s *advisorService) Interventions(ctx context.Context, session *Session, studentID string) ([]dto.InterventionResponse, error) {
	if session == nil {
		return nil, ErrSessionRequired
	}
	if _, _, err := s.lookup(ctx, studentID); err != nil {
		return nil, err
	}
	return toInterventionResponses(session.Store.Interventions(strings.TrimSpace(studentID))), nil
}

func (s *advisorService) lookup(ctx context.Context, studentID string) (Cohort, risk.AugmentedStudent, error) {
	id := strings.TrimSpace(studentID)
	if id == "" {
		return Cohort{}, risk.AugmentedStudent{}, ErrStudentNotFound
	}

	cohort, err := s.evaluations.Cohort(ctx)
	if err != nil {
		return Cohort{}, risk.AugmentedStudent{}, err
	}

	student, ok := cohort.Student(id)
	if !ok {
		return Cohort{}, risk.AugmentedStudent{}, ErrStudentNotFound
	}
	return cohort, student, nil
}

// compileAlerts renders one "- [SEVERITY] type: message" line per alert.
func compileAlerts(alerts []risk.Alert) string {
	lines := make([]string, 0, len(alerts))
	for _, alert := range alerts {
		lines = append(lines, fmt.Sprintf("- [%s] %s: %s", strings.ToUpper(string(alert.Severity)), alert.Type, alert.Message))
	}
	return strings.Join(lines, "\n")
}

func pendingResponses(store *AlertStore, studentID string) []dto.NotificationResponse {
	pending := store.Notifications(studentID)
	responses := make([]dto.NotificationResponse, 0, len(pending))
	for idx, note := range pending {
		responses = append(responses, toNotificationResponse(studentID, idx, note))
	}
	return responses
}

// riskFilter parses a label filter; "All" and empty disable filtering.
func riskFilter(value string) (risk.Label, bool) {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "all") {
		return "", false
	}
	label, ok := risk.ParseLabel(value)
	return label, ok
}

func displayName(record risk.StudentRecord) string {
	if name := strings.TrimSpace(record.Name); name != "" {
		return name
	}
	return record.ID
}

func gpaOrNil(gpa *float64) *float64 {
	if value, ok := risk.GPAValue(gpa); ok {
		return &value
	}
	return nil
}
