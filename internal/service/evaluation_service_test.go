package service

import (
	"context"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-risk-api/internal/risk"
)

func TestEvaluationServiceIngestsOncePerSession(t *testing.T) {
	fixture := newRiskFixture(t, nil)
	ctx := context.Background()
	session := fixture.sessions.Create(ctx)

	first, err := fixture.evaluations.Evaluate(ctx, session)
	require.NoError(t, err)
	require.Equal(t, risk.Summary{StudentsEvaluated: 8, StudentsWithAlerts: 8, Critical: 8, Warning: 13}, first.Summary)
	require.Equal(t, 3, first.Escalated)
	require.Equal(t, map[risk.Label]int{risk.LabelHigh: 3, risk.LabelMedium: 1, risk.LabelLow: 4}, first.LabelCounts)
	require.True(t, first.AlertsAvailable)
	require.Equal(t, 21, first.NotificationsAdded)
	require.Zero(t, first.NotificationsDeduplicated)
	require.Equal(t, 21, first.PendingNotifications)
	require.Equal(t, "S005", first.Students[0].StudentID)
	require.Equal(t, fixtureNow, first.EvaluatedAt)

	second, err := fixture.evaluations.Evaluate(ctx, session)
	require.NoError(t, err)
	require.Zero(t, second.NotificationsAdded)
	require.Equal(t, 21, second.NotificationsDeduplicated)
	require.Equal(t, 21, second.PendingNotifications)

	other := fixture.sessions.Create(ctx)
	third, err := fixture.evaluations.Evaluate(ctx, other)
	require.NoError(t, err)
	require.Equal(t, 21, third.NotificationsAdded)
}

func TestEvaluationServiceFailsOpenWhenEngineBreaks(t *testing.T) {
	fixture := newRiskFixture(t, nil)
	ctx := context.Background()
	session := fixture.sessions.Create(ctx)

	_, err := fixture.evaluations.Evaluate(ctx, session)
	require.NoError(t, err)
	pending := session.Store.Feed()

	broken := []risk.Rule{{
		Indicator: risk.IndicatorAttendanceAlert,
		Type:      "Broken",
		Severity:  risk.SeverityWarning,
		Applies:   func(risk.AlertRow) bool { panic("rule exploded") },
		Message:   func(risk.AlertRow) string { return "" },
	}}
	fixture.evaluations.(*evaluationService).engine = risk.NewEngineWithRules(broken, nil)

	resp, err := fixture.evaluations.Evaluate(ctx, session)
	require.NoError(t, err)
	require.False(t, resp.AlertsAvailable)
	require.Empty(t, resp.Students)
	require.Equal(t, risk.Summary{StudentsEvaluated: 8}, resp.Summary)
	require.Zero(t, resp.NotificationsAdded)
	require.Equal(t, 3, resp.Escalated)
	require.Equal(t, 21, resp.PendingNotifications)
	require.Equal(t, pending, session.Store.Feed())
}

func TestEvaluationServiceRequiresSession(t *testing.T) {
	fixture := newRiskFixture(t, nil)

	_, err := fixture.evaluations.Evaluate(context.Background(), nil)
	require.ErrorIs(t, err, ErrSessionRequired)
}

func TestEvaluationServiceCarriesAdvisors(t *testing.T) {
	fixture := newRiskFixture(t, nil)

	cohort, err := fixture.evaluations.Cohort(context.Background())
	require.NoError(t, err)

	s001 := cohort.AlertsFor("S001")
	require.Equal(t, "Dr. Reyes", s001.Advisor)
	require.Equal(t, risk.LabelMedium, s001.RiskLevel)
	require.Equal(t, risk.DefaultAdvisor, cohort.AlertsFor("S005").Advisor)
	require.Equal(t, "Dr. Reyes", cohort.Advisor("S001"))
	require.Equal(t, risk.DefaultAdvisor, cohort.Advisor("S008"))

	student, ok := cohort.Student("S005")
	require.True(t, ok)
	require.True(t, student.Escalated)
	require.Equal(t, 75, student.RiskScore)
	require.Equal(t, 52, student.Assessment.Score)
}

func TestEvaluationServiceCachesCohortByRoster(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	fixture := newRiskFixture(t, client)
	ctx := context.Background()

	first, err := fixture.evaluations.Cohort(ctx)
	require.NoError(t, err)

	keys := mini.Keys()
	require.Len(t, keys, 1)
	require.True(t, strings.HasPrefix(keys[0], "risk:cohort:"))
	require.True(t, strings.HasSuffix(keys[0], ":3"))

	// a cache hit reuses the scores but stamps alerts with the current time
	later := fixtureNow.Add(time.Hour)
	svc := fixture.evaluations.(*evaluationService)
	svc.now = func() time.Time { return later }
	svc.engine = risk.NewEngineWithClock(func() time.Time { return later })

	cached, err := fixture.evaluations.Cohort(ctx)
	require.NoError(t, err)
	require.Len(t, mini.Keys(), 1)
	require.Equal(t, first.Students, cached.Students)
	require.Equal(t, first.Summary, cached.Summary)
	require.True(t, later.Equal(cached.EvaluatedAt))
	require.NotEmpty(t, cached.Alerts)
	for _, entry := range cached.Alerts {
		for _, alert := range entry.Alerts {
			require.True(t, later.Equal(alert.Timestamp))
		}
	}
	require.Equal(t, "Dr. Reyes", cached.Advisor("S001"))

	// a roster change produces a new checksum and a new cache entry
	_, err = fixture.roster.Import(ctx, "update.csv", []byte("student_id,name,gpa,credits\nS009,New Student,3.9,12\n"))
	require.NoError(t, err)

	updated, err := fixture.evaluations.Cohort(ctx)
	require.NoError(t, err)
	require.Len(t, updated.Students, 9)
	require.Len(t, mini.Keys(), 2)
}

func TestAlertTableAddsAdvisorColumn(t *testing.T) {
	students := risk.Augment(risk.DemoRoster()[:2])
	table := alertTable(students, map[string]string{"S002": "Dr. Okafor"})

	require.True(t, table.HasColumn(risk.ColumnAdvisor))
	require.Nil(t, table.Rows[0][risk.ColumnAdvisor])
	require.Equal(t, "Dr. Okafor", table.Rows[1][risk.ColumnAdvisor])

	rows, err := risk.BuildAlertTable(table)
	require.NoError(t, err)
	require.Equal(t, risk.DefaultAdvisor, rows[0].Advisor)
	require.Equal(t, "Dr. Okafor", rows[1].Advisor)
}
