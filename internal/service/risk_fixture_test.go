package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-risk-api/internal/dto"
	"github.com/noah-isme/gema-risk-api/internal/models"
	"github.com/noah-isme/gema-risk-api/internal/repository"
	"github.com/noah-isme/gema-risk-api/internal/risk"
)

var fixtureNow = time.Date(2024, time.March, 4, 9, 30, 0, 0, time.UTC)

type riskFixture struct {
	repo        repository.RosterRepository
	roster      RosterService
	evaluations EvaluationService
	sessions    SessionService
	validate    *validator.Validate
}

func newRosterDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Student{}))
	return db
}

// newRiskFixture seeds the sample cohort with S001 on academic probation and
// S001 assigned to Dr. Reyes.
func newRiskFixture(t *testing.T, cache *redis.Client) riskFixture {
	t.Helper()

	repo := repository.NewRosterRepository(newRosterDB(t))
	records := risk.DemoRoster()
	probation := 1.8
	records[0].GPA = &probation

	students := make([]models.Student, 0, len(records))
	for idx, record := range records {
		advisor := ""
		if idx == 0 {
			advisor = "Dr. Reyes"
		}
		students = append(students, studentFromRecord(record, advisor, nil))
	}
	_, err := repo.UpsertBatch(context.Background(), students)
	require.NoError(t, err)

	roster := NewRosterService(repo, 5, zerolog.Nop())
	evaluations := NewEvaluationService(roster, risk.NewEngineWithClock(func() time.Time { return fixtureNow }), cache, time.Minute, 3, nil, zerolog.Nop())
	evaluations.(*evaluationService).now = func() time.Time { return fixtureNow }

	return riskFixture{
		repo:        repo,
		roster:      roster,
		evaluations: evaluations,
		sessions:    newSessionService(time.Hour, zerolog.Nop(), func() time.Time { return fixtureNow }),
		validate:    validator.New(),
	}
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type fakeMailer struct {
	mu     sync.Mutex
	sent   []sentMail
	result dto.DeliveryResult
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) dto.DeliveryResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return m.result
}

func (m *fakeMailer) Sent() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail{}, m.sent...)
}
