package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-risk-api/internal/dto"
	"github.com/noah-isme/gema-risk-api/internal/observability"
	"github.com/noah-isme/gema-risk-api/internal/risk"
)

// Cohort is the scored roster together with the alerts derived from it.
type Cohort struct {
	Students        []risk.AugmentedStudent `json:"students"`
	Escalated       int                     `json:"escalated"`
	Alerts          []risk.StudentAlerts    `json:"alerts"`
	Summary         risk.Summary            `json:"summary"`
	AlertsAvailable bool                    `json:"alerts_available"`
	EvaluatedAt     time.Time               `json:"evaluated_at"`

	Advisors map[string]string                 `json:"advisors"`
	Extra    map[string]map[string]interface{} `json:"-"`
}

// Student returns the augmented student with the id.
func (c Cohort) Student(id string) (risk.AugmentedStudent, bool) {
	for _, student := range c.Students {
		if student.Record.ID == id {
			return student, true
		}
	}
	return risk.AugmentedStudent{}, false
}

// AlertsFor returns the alerts raised for the student, if any.
func (c Cohort) AlertsFor(id string) risk.StudentAlerts {
	for _, entry := range c.Alerts {
		if entry.StudentID == id {
			return entry
		}
	}
	return risk.StudentAlerts{StudentID: id}
}

// Advisor returns the student's advisor or the default one.
func (c Cohort) Advisor(id string) string {
	if advisor := c.Advisors[id]; advisor != "" {
		return advisor
	}
	return risk.DefaultAdvisor
}

// EvaluationService scores the roster and feeds its alerts into session stores.
type EvaluationService interface {
	Cohort(ctx context.Context) (Cohort, error)
	Evaluate(ctx context.Context, session *Session) (dto.EvaluationResponse, error)
}

type evaluationService struct {
	roster      RosterService
	engine      *risk.Engine
	cache       *redis.Client
	cacheTTL    time.Duration
	minimumHigh int
	broadcaster AlertBroadcaster
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewEvaluationService constructs the evaluation service. cache and broadcaster may be nil.
func NewEvaluationService(roster RosterService, engine *risk.Engine, cache *redis.Client, ttl time.Duration, minimumHigh int, broadcaster AlertBroadcaster, logger zerolog.Logger) EvaluationService {
	if engine == nil {
		engine = risk.NewEngine()
	}
	return &evaluationService{
		roster:      roster,
		engine:      engine,
		cache:       cache,
		cacheTTL:    ttl,
		minimumHigh: minimumHigh,
		broadcaster: broadcaster,
		logger:      logger.With().Str("component", "evaluation_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-risk-api/internal/service/evaluation"),
		now:         time.Now,
	}
}

// scoredRoster is the cacheable part of a cohort. Alerts are never cached.
type scoredRoster struct {
	Students  []risk.AugmentedStudent `json:"students"`
	Escalated int                     `json:"escalated"`
}

func (s *evaluationService) Cohort(ctx context.Context) (Cohort, error) {
	ctx, span := s.tracer.Start(ctx, "risk.cohort")
	defer span.End()

	roster, err := s.roster.Load(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "roster load failed")
		return Cohort{}, fmt.Errorf("load roster: %w", err)
	}
	span.SetAttributes(attribute.Int("risk.students", len(roster.Records)))

	cacheKey := fmt.Sprintf("risk:cohort:%s:%d", roster.Checksum, s.minimumHigh)
	scored, hit := s.cachedScores(ctx, cacheKey)
	span.SetAttributes(attribute.Bool("risk.cache_hit", hit))
	if hit {
		s.logger.Debug().Str("checksum", roster.Checksum).Msg("cohort cache hit")
	} else {
		scored = s.score(roster)
		s.storeScores(ctx, cacheKey, scored)
	}

	return s.assemble(roster, scored), nil
}

func (s *evaluationService) cachedScores(ctx context.Context, key string) (scoredRoster, bool) {
	if s.cache == nil {
		return scoredRoster{}, false
	}

	cached, err := s.cache.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read cohort cache")
		}
		return scoredRoster{}, false
	}

	var scored scoredRoster
	if err := json.Unmarshal([]byte(cached), &scored); err != nil {
		s.logger.Warn().Err(err).Msg("discarding unreadable cohort cache entry")
		return scoredRoster{}, false
	}
	return scored, true
}

func (s *evaluationService) storeScores(ctx context.Context, key string, scored scoredRoster) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(scored)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to store cohort cache")
	}
}

func (s *evaluationService) score(roster Roster) scoredRoster {
	students, escalated := risk.EnsureMinimumHigh(risk.Augment(roster.Records), s.minimumHigh)
	if escalated > 0 {
		observability.CohortEscalations().Add(float64(escalated))
	}
	return scoredRoster{Students: students, Escalated: escalated}
}

// assemble runs the alert engine over the scored students. Alerts and the
// evaluation time are produced fresh on every call.
func (s *evaluationService) assemble(roster Roster, scored scoredRoster) Cohort {
	cohort := Cohort{
		Students:    scored.Students,
		Escalated:   scored.Escalated,
		EvaluatedAt: s.now().UTC(),
		Advisors:    roster.Advisors,
		Extra:       roster.Extra,
	}

	alerts, summary, err := s.runEngine(alertTable(scored.Students, roster.Advisors))
	if err != nil {
		s.logger.Warn().Err(err).Msg("alert engine failed, continuing without alerts")
		observability.Evaluations().WithLabelValues("engine_error").Inc()
		cohort.Alerts = []risk.StudentAlerts{}
		cohort.Summary = risk.Summary{StudentsEvaluated: len(scored.Students)}
		return cohort
	}

	cohort.Alerts = alerts
	cohort.Summary = summary
	cohort.AlertsAvailable = true
	return cohort
}

func (s *evaluationService) runEngine(table risk.Table) (alerts []risk.StudentAlerts, summary risk.Summary, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("alert engine panic: %v", recovered)
		}
	}()
	return s.engine.EvaluateTable(table)
}

// alertTable renders the cohort with each student's advisor attached.
func alertTable(students []risk.AugmentedStudent, advisors map[string]string) risk.Table {
	table := risk.ToTable(students)
	table.Columns = append(table.Columns, risk.ColumnAdvisor)
	for idx, student := range students {
		if advisor, ok := advisors[student.Record.ID]; ok {
			table.Rows[idx][risk.ColumnAdvisor] = advisor
		}
	}
	return table
}

func (s *evaluationService) Evaluate(ctx context.Context, session *Session) (dto.EvaluationResponse, error) {
	if session == nil {
		return dto.EvaluationResponse{}, ErrSessionRequired
	}

	start := s.now()
	ctx, span := s.tracer.Start(ctx, "risk.evaluate", trace.WithAttributes(
		attribute.String("session.id", session.ID),
	))
	defer span.End()

	cohort, err := s.Cohort(ctx)
	if err != nil {
		observability.Evaluations().WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "cohort unavailable")
		return dto.EvaluationResponse{}, err
	}

	added, result := session.Store.IngestAll(cohort.Alerts)
	observability.NotificationsIngested().WithLabelValues("added").Add(float64(result.Added))
	observability.NotificationsIngested().WithLabelValues("deduplicated").Add(float64(result.Deduplicated))
	for _, entry := range cohort.Alerts {
		for _, alert := range entry.Alerts {
			observability.AlertsGenerated().WithLabelValues(string(alert.Severity)).Inc()
		}
	}

	if s.broadcaster != nil {
		for _, entry := range added {
			s.broadcaster.Publish(ctx, dto.AlertStreamEvent{
				Kind:         dto.StreamNotificationCreated,
				SessionID:    session.ID,
				Notification: toNotificationResponse(entry.StudentID, entry.Index, entry.Notification),
			})
		}
	}

	observability.Evaluations().WithLabelValues("success").Inc()
	observability.EvaluationLatency().Observe(s.now().Sub(start).Seconds())
	span.SetAttributes(
		attribute.Int("risk.alerts.critical", cohort.Summary.Critical),
		attribute.Int("risk.alerts.warning", cohort.Summary.Warning),
		attribute.Int("risk.notifications.added", result.Added),
	)

	s.logger.Info().
		Str("session_id", session.ID).
		Int("students", cohort.Summary.StudentsEvaluated).
		Int("with_alerts", cohort.Summary.StudentsWithAlerts).
		Int("added", result.Added).
		Int("deduplicated", result.Deduplicated).
		Msg("cohort evaluated")

	return dto.EvaluationResponse{
		EvaluatedAt:               cohort.EvaluatedAt,
		Summary:                   cohort.Summary,
		Escalated:                 cohort.Escalated,
		LabelCounts:               risk.CountByLabel(cohort.Students),
		NotificationsAdded:        result.Added,
		NotificationsDeduplicated: result.Deduplicated,
		PendingNotifications:      session.Store.Pending(),
		AlertsAvailable:           cohort.AlertsAvailable,
		Students:                  cohort.Alerts,
	}, nil
}
