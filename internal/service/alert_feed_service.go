package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-risk-api/internal/dto"
	"github.com/noah-isme/gema-risk-api/internal/risk"
)

// AlertFeedService lists the alerts an advisor should look at.
type AlertFeedService interface {
	List(ctx context.Context, session *Session, req dto.AlertFeedRequest) (dto.AlertFeedResponse, dto.PaginationMeta, error)
}

type alertFeedService struct {
	evaluations EvaluationService
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewAlertFeedService constructs the alert feed service.
func NewAlertFeedService(evaluations EvaluationService, validate *validator.Validate, logger zerolog.Logger) AlertFeedService {
	return &alertFeedService{
		evaluations: evaluations,
		validator:   validate,
		logger:      logger.With().Str("component", "alert_feed_service").Logger(),
	}
}

// List returns the session's pending notifications, or live engine alerts when
// the session holds none.
func (s *alertFeedService) List(ctx context.Context, session *Session, req dto.AlertFeedRequest) (dto.AlertFeedResponse, dto.PaginationMeta, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AlertFeedResponse{}, dto.PaginationMeta{}, err
	}
	if session == nil {
		return dto.AlertFeedResponse{}, dto.PaginationMeta{}, ErrSessionRequired
	}

	cohort, err := s.evaluations.Cohort(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("cohort unavailable, alert feed degraded")
		cohort = Cohort{}
	}

	source := dto.FeedSourceSession
	items := sessionFeed(session.Store, cohort)
	if len(items) == 0 {
		source = dto.FeedSourceLive
		items = liveFeed(cohort)
	}

	items = filterFeed(items, req.Search, req.Severity)
	start, end, meta := pageWindow(session, viewAlerts, len(items), req.Page, req.PageSize)

	return dto.AlertFeedResponse{
		Source: source,
		Items:  items[start:end],
	}, meta, nil
}

func sessionFeed(store *AlertStore, cohort Cohort) []dto.AlertFeedItem {
	entries := store.Feed()
	items := make([]dto.AlertFeedItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.AlertFeedItem{
			StudentID:   entry.StudentID,
			StudentName: studentName(cohort, entry.StudentID),
			Index:       entry.Index,
			Subject:     entry.Notification.Subject,
			Message:     entry.Notification.Message,
			Severity:    inferSeverity(entry.Notification.Subject),
			Advisor:     entry.Notification.Advisor,
			Date:        entry.Notification.Date,
		})
	}
	return items
}

// liveFeed lists the cohort's engine alerts without touching the session.
func liveFeed(cohort Cohort) []dto.AlertFeedItem {
	items := make([]dto.AlertFeedItem, 0)
	for _, student := range cohort.Alerts {
		for _, alert := range student.Alerts {
			items = append(items, dto.AlertFeedItem{
				StudentID:   student.StudentID,
				StudentName: studentName(cohort, student.StudentID),
				Subject:     alert.Type,
				Message:     alert.Message,
				Severity:    alert.Severity,
				Advisor:     student.Advisor,
				Date:        alert.Timestamp,
			})
		}
	}
	return items
}

// studentName falls back to the id for students missing from the roster.
func studentName(cohort Cohort, id string) string {
	if student, ok := cohort.Student(id); ok && student.Record.Name != "" {
		return student.Record.Name
	}
	return id
}

// inferSeverity treats any subject mentioning CRITICAL as critical.
func inferSeverity(subject string) risk.Severity {
	if strings.Contains(strings.ToUpper(subject), "CRITICAL") {
		return risk.SeverityCritical
	}
	return risk.SeverityWarning
}

func filterFeed(items []dto.AlertFeedItem, search, severity string) []dto.AlertFeedItem {
	query := strings.ToLower(strings.TrimSpace(search))
	wanted, bySeverity := risk.ParseSeverity(severity)

	filtered := make([]dto.AlertFeedItem, 0, len(items))
	for _, item := range items {
		if query != "" &&
			!strings.Contains(strings.ToLower(item.StudentID), query) &&
			!strings.Contains(strings.ToLower(item.Subject), query) {
			continue
		}
		if bySeverity && item.Severity != wanted {
			continue
		}
		filtered = append(filtered, item)
	}
	return filtered
}
