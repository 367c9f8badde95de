package service

import (
	"context"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-risk-api/internal/config"
	"github.com/noah-isme/gema-risk-api/internal/dto"
	"github.com/noah-isme/gema-risk-api/internal/risk"
)

func intPtr(v int) *int {
	return &v
}

func newAdvisorFixture(t *testing.T) (riskFixture, AdvisorService, *fakeMailer) {
	t.Helper()

	fixture := newRiskFixture(t, nil)
	mailer := &fakeMailer{result: dto.DeliveryResult{Sent: true, Info: "Email sent"}}
	svc := NewAdvisorService(fixture.evaluations, mailer, nil, fixture.validate, "university.edu", zerolog.Nop())
	return fixture, svc, mailer
}

func studentIDs(items []dto.StudentSummary) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.StudentID)
	}
	return ids
}

func TestAdvisorServiceListFiltersAndCounts(t *testing.T) {
	fixture, svc, _ := newAdvisorFixture(t)
	ctx := context.Background()
	session := fixture.sessions.Create(ctx)

	resp, meta, err := svc.List(ctx, session, dto.StudentListRequest{Risk: "High"})
	require.NoError(t, err)
	require.Equal(t, []string{"S002", "S005", "S006"}, studentIDs(resp.Items))
	require.Equal(t, map[string]int{"High": 3, "Medium": 1, "Low": 4, "Total": 8}, resp.Counts)
	require.Equal(t, dto.PaginationMeta{Page: 1, PageSize: dto.DefaultPageSize, TotalItems: 3, TotalPages: 1}, meta)
	for _, item := range resp.Items {
		require.True(t, item.Escalated)
		require.Equal(t, 75, item.RiskScore)
	}

	require.Len(t, resp.TopCritical, 5)
	require.Equal(t, []string{"S005", "S008", "S002", "S003", "S004"}, studentIDs(resp.TopCritical))

	resp, _, err = svc.List(ctx, session, dto.StudentListRequest{Search: "s00", Risk: "low"})
	require.NoError(t, err)
	require.Equal(t, []string{"S001", "S003", "S007", "S008"}, studentIDs(resp.Items))

	resp, _, err = svc.List(ctx, session, dto.StudentListRequest{Search: "s001"})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	require.Equal(t, 1, resp.Items[0].CriticalAlerts)
	require.Equal(t, 2, resp.Items[0].TotalAlerts)
}

func TestAdvisorServiceListClampsAndRemembersPage(t *testing.T) {
	fixture, svc, _ := newAdvisorFixture(t)
	ctx := context.Background()
	session := fixture.sessions.Create(ctx)

	resp, meta, err := svc.List(ctx, session, dto.StudentListRequest{Page: 9, PageSize: 5})
	require.NoError(t, err)
	require.Equal(t, 2, meta.Page)
	require.Equal(t, 2, meta.TotalPages)
	require.Equal(t, []string{"S006", "S007", "S008"}, studentIDs(resp.Items))

	_, meta, err = svc.List(ctx, session, dto.StudentListRequest{PageSize: 5})
	require.NoError(t, err)
	require.Equal(t, 2, meta.Page)

	_, _, err = svc.List(ctx, session, dto.StudentListRequest{PageSize: 7})
	require.Error(t, err)
	var validationErrors validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrors)
}

func TestAdvisorServiceDetail(t *testing.T) {
	fixture, svc, _ := newAdvisorFixture(t)
	ctx := context.Background()
	session := fixture.sessions.Create(ctx)

	detail, err := svc.Detail(ctx, session, "S001")
	require.NoError(t, err)
	require.Equal(t, "John Smith", detail.Record.Name)
	require.Equal(t, "Dr. Reyes", detail.Advisor)
	require.True(t, detail.Flags.AcademicHighRisk)
	require.Contains(t, detail.ActiveIndicators, risk.IndicatorAcademicHighRisk)
	require.Equal(t, 38, detail.Assessment.Score)
	require.Equal(t, risk.LabelLow, detail.RiskLabel)
	require.Contains(t, detail.Summary, "Low GPA")
	require.Len(t, detail.Alerts, 2)
	require.Empty(t, detail.Notifications)
	require.Empty(t, detail.Interventions)
	require.False(t, detail.Acknowledged)

	_, err = svc.Detail(ctx, session, "S404")
	require.ErrorIs(t, err, ErrStudentNotFound)
}

func TestAdvisorServiceDefaultEmailDomain(t *testing.T) {
	fixture := newRiskFixture(t, nil)
	mailer := &fakeMailer{result: dto.DeliveryResult{Sent: true, Info: "Email sent"}}
	svc := NewAdvisorService(fixture.evaluations, mailer, nil, fixture.validate, " ", zerolog.Nop())
	ctx := context.Background()

	resp, err := svc.Notify(ctx, fixture.sessions.Create(ctx), "S002", dto.NotifyRequest{})
	require.NoError(t, err)
	require.Equal(t, "s002@example.edu", resp.Recipient)
}

func TestAdvisorServiceNotifyBypassesDedup(t *testing.T) {
	fixture, svc, mailer := newAdvisorFixture(t)
	ctx := context.Background()
	session := fixture.sessions.Create(ctx)

	resp, err := svc.Notify(ctx, session, "S001", dto.NotifyRequest{Notes: "<b>Call</b> before Friday"})
	require.NoError(t, err)
	require.Equal(t, "s001@university.edu", resp.Recipient)
	require.True(t, resp.Delivery.Sent)
	require.Equal(t, "Risk alerts for John Smith (Medium)", resp.Notification.Subject)
	require.Equal(t, "Dr. Reyes", resp.Notification.Advisor)
	require.Equal(t, 0, resp.Notification.Index)
	require.Equal(t,
		"- [CRITICAL] Academic Probation: GPA of 1.80 is below the 2.00 academic standing minimum.\n"+
			"- [WARNING] Low Attendance: Attendance is 72%, below the 80% expectation.\n\n"+
			"Call before Friday",
		resp.Notification.Message)

	second, err := svc.Notify(ctx, session, "S001", dto.NotifyRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, second.Notification.Index)
	require.Len(t, session.Store.Notifications("S001"), 2)

	sent := mailer.Sent()
	require.Len(t, sent, 2)
	require.Equal(t, "s001@university.edu", sent[0].To)
	require.Equal(t, resp.Notification.Message, sent[0].Body)

	_, err = svc.Notify(ctx, session, "S404", dto.NotifyRequest{})
	require.ErrorIs(t, err, ErrStudentNotFound)
}

func TestAdvisorServiceNotifyKeepsNotificationWhenMailUnavailable(t *testing.T) {
	fixture := newRiskFixture(t, nil)
	svc := NewAdvisorService(fixture.evaluations, NewSMTPMailer(config.SMTPConfig{}, zerolog.Nop()), nil, fixture.validate, "", zerolog.Nop())
	ctx := context.Background()
	session := fixture.sessions.Create(ctx)

	resp, err := svc.Notify(ctx, session, "S005", dto.NotifyRequest{Advisor: "Dr. Okafor"})
	require.NoError(t, err)
	require.False(t, resp.Delivery.Sent)
	require.Equal(t, "SMTP not configured. Set SMTP credentials to enable email sending.", resp.Delivery.Info)
	require.Equal(t, "Dr. Okafor", resp.Notification.Advisor)
	require.Len(t, session.Store.Notifications("S005"), 1)
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []dto.AlertStreamEvent
}

func (b *recordingBroadcaster) Publish(_ context.Context, event dto.AlertStreamEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBroadcaster) Subscribe(string) (<-chan dto.AlertStreamEvent, func()) {
	return make(chan dto.AlertStreamEvent), func() {}
}

func (b *recordingBroadcaster) Start(context.Context) {}

func (b *recordingBroadcaster) Kind(kind string) []dto.AlertStreamEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	matched := make([]dto.AlertStreamEvent, 0)
	for _, event := range b.events {
		if event.Kind == kind {
			matched = append(matched, event)
		}
	}
	return matched
}

func TestAdvisorServiceAcknowledgePublishesRemovedNotification(t *testing.T) {
	fixture := newRiskFixture(t, nil)
	broadcaster := &recordingBroadcaster{}
	svc := NewAdvisorService(fixture.evaluations, &fakeMailer{}, broadcaster, fixture.validate, "example.edu", zerolog.Nop())
	ctx := context.Background()
	session := fixture.sessions.Create(ctx)

	_, err := fixture.evaluations.Evaluate(ctx, session)
	require.NoError(t, err)
	pending := session.Store.Notifications("S001")
	require.Len(t, pending, 2)

	_, err = svc.Acknowledge(ctx, session, "S001", dto.AcknowledgeRequest{Index: intPtr(1)})
	require.NoError(t, err)

	events := broadcaster.Kind(dto.StreamNotificationAcknowledged)
	require.Len(t, events, 1)
	require.Equal(t, session.ID, events[0].SessionID)
	require.Equal(t, pending[1].ID, events[0].Notification.ID)
	require.Equal(t, 1, events[0].Notification.Index)
	require.True(t, events[0].Notification.Acknowledged)
}

func TestAdvisorServiceAcknowledge(t *testing.T) {
	fixture, svc, _ := newAdvisorFixture(t)
	ctx := context.Background()
	session := fixture.sessions.Create(ctx)

	_, err := fixture.evaluations.Evaluate(ctx, session)
	require.NoError(t, err)
	pending := session.Store.Notifications("S001")
	require.Len(t, pending, 2)

	resp, err := svc.Acknowledge(ctx, session, "S001", dto.AcknowledgeRequest{Index: intPtr(0)})
	require.NoError(t, err)
	require.True(t, resp.Acknowledged)
	require.Equal(t, 1, resp.Remaining)
	require.NotNil(t, resp.Intervention)
	require.Equal(t, InterventionAcknowledged, resp.Intervention.Type)
	require.Equal(t, "Dr. Reyes", resp.Intervention.Advisor)
	require.Equal(t, pending[0].Message, resp.Intervention.Notes)

	history, err := svc.Interventions(ctx, session, "S001")
	require.NoError(t, err)
	require.Len(t, history, 1)

	detail, err := svc.Detail(ctx, session, "S001")
	require.NoError(t, err)
	require.True(t, detail.Acknowledged)
	require.Len(t, detail.Notifications, 1)
	require.Equal(t, pending[1].Subject, detail.Notifications[0].Subject)

	resp, err = svc.Acknowledge(ctx, session, "S001", dto.AcknowledgeRequest{Index: intPtr(5)})
	require.ErrorIs(t, err, ErrNotificationNotFound)
	require.False(t, resp.Acknowledged)
	require.Equal(t, 1, resp.Remaining)

	_, err = svc.Acknowledge(ctx, session, "S001", dto.AcknowledgeRequest{})
	var validationErrors validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrors)
}
