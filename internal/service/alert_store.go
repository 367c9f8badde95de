package service

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/gema-risk-api/internal/dto"
	"github.com/noah-isme/gema-risk-api/internal/risk"
)

// InterventionAcknowledged is the intervention type recorded on acknowledgment.
const InterventionAcknowledged = "Notification Acknowledged"

// Notification is a pending advisor notification for one student.
type Notification struct {
	ID           string    `json:"id"`
	Subject      string    `json:"subject"`
	Message      string    `json:"message"`
	Advisor      string    `json:"advisor"`
	Date         time.Time `json:"date"`
	Acknowledged bool      `json:"acknowledged"`
}

// Intervention is the permanent record left by an acknowledged notification.
type Intervention struct {
	Type    string    `json:"type"`
	Advisor string    `json:"advisor"`
	Notes   string    `json:"notes"`
	Date    time.Time `json:"date"`
}

// FeedEntry is one pending notification flattened with its owner and position.
type FeedEntry struct {
	StudentID    string       `json:"student_id"`
	Index        int          `json:"index"`
	Notification Notification `json:"notification"`
}

// IngestResult counts what happened to a batch of offered alerts.
type IngestResult struct {
	Added        int `json:"added"`
	Deduplicated int `json:"deduplicated"`
}

type digestKey struct {
	studentID string
	alertType string
	severity  risk.Severity
	message   string
}

// AlertStore holds one session's notifications, interventions and dedup digest.
// All methods are safe for concurrent use.
type AlertStore struct {
	mu            sync.Mutex
	notifications map[string][]Notification
	arrival       []string
	digest        map[digestKey]struct{}
	acknowledged  map[string]struct{}
	interventions map[string][]Intervention
	now           func() time.Time
}

// NewAlertStore creates an empty store.
func NewAlertStore() *AlertStore {
	return NewAlertStoreWithClock(time.Now)
}

// NewAlertStoreWithClock creates an empty store stamping entries with now.
func NewAlertStoreWithClock(now func() time.Time) *AlertStore {
	if now == nil {
		now = time.Now
	}
	return &AlertStore{
		notifications: make(map[string][]Notification),
		digest:        make(map[digestKey]struct{}),
		acknowledged:  make(map[string]struct{}),
		interventions: make(map[string][]Intervention),
		now:           now,
	}
}

// AlertSubject renders the notification subject for an engine alert.
func AlertSubject(alert risk.Alert) string {
	return fmt.Sprintf("%s - %s", alert.Type, strings.ToUpper(string(alert.Severity)))
}

// Ingest appends the alert as a pending notification unless an alert with the
// same student, type, severity and message was already ingested in this session.
// It reports whether a notification was added.
func (s *AlertStore) Ingest(alert risk.Alert, advisor string) (Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	note, _, ok := s.ingestLocked(alert, advisor)
	return note, ok
}

func (s *AlertStore) ingestLocked(alert risk.Alert, advisor string) (Notification, int, bool) {
	key := digestKey{
		studentID: alert.StudentID,
		alertType: alert.Type,
		severity:  alert.Severity,
		message:   alert.Message,
	}
	if _, seen := s.digest[key]; seen {
		return Notification{}, -1, false
	}
	s.digest[key] = struct{}{}
	note, index := s.appendLocked(alert.StudentID, AlertSubject(alert), alert.Message, advisor)
	return note, index, true
}

// IngestAll offers every alert of every student to the store.
func (s *AlertStore) IngestAll(students []risk.StudentAlerts) ([]FeedEntry, IngestResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := make([]FeedEntry, 0)
	result := IngestResult{}
	for _, student := range students {
		for _, alert := range student.Alerts {
			notification, index, ok := s.ingestLocked(alert, student.Advisor)
			if !ok {
				result.Deduplicated++
				continue
			}
			result.Added++
			added = append(added, FeedEntry{StudentID: alert.StudentID, Index: index, Notification: notification})
		}
	}
	return added, result
}

// AddNotification appends a notification without consulting the digest.
func (s *AlertStore) AddNotification(studentID, subject, message, advisor string) FeedEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	note, index := s.appendLocked(studentID, subject, message, advisor)
	return FeedEntry{StudentID: studentID, Index: index, Notification: note}
}

func (s *AlertStore) appendLocked(studentID, subject, message, advisor string) (Notification, int) {
	if advisor == "" {
		advisor = risk.DefaultAdvisor
	}
	note := Notification{
		ID:      uuid.NewString(),
		Subject: subject,
		Message: message,
		Advisor: advisor,
		Date:    s.now().UTC(),
	}
	if _, exists := s.notifications[studentID]; !exists {
		s.arrival = append(s.arrival, studentID)
	}
	s.notifications[studentID] = append(s.notifications[studentID], note)
	return note, len(s.notifications[studentID]) - 1
}

// Notifications returns a copy of the student's pending notifications, oldest first.
func (s *AlertStore) Notifications(studentID string) []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification{}, s.notifications[studentID]...)
}

// Acknowledge pops the notification at index and records an intervention
// carrying its advisor and message. It returns the removed notification marked
// acknowledged. An out-of-range index reports false.
func (s *AlertStore) Acknowledge(studentID string, index int) (Notification, Intervention, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	notes := s.notifications[studentID]
	if index < 0 || index >= len(notes) {
		return Notification{}, Intervention{}, false
	}

	note := notes[index]
	note.Acknowledged = true
	remaining := make([]Notification, 0, len(notes)-1)
	remaining = append(remaining, notes[:index]...)
	remaining = append(remaining, notes[index+1:]...)
	s.notifications[studentID] = remaining

	s.acknowledged[studentID] = struct{}{}
	intervention := Intervention{
		Type:    InterventionAcknowledged,
		Advisor: note.Advisor,
		Notes:   note.Message,
		Date:    s.now().UTC(),
	}
	s.interventions[studentID] = append(s.interventions[studentID], intervention)
	return note, intervention, true
}

// Interventions returns a copy of the student's intervention history.
func (s *AlertStore) Interventions(studentID string) []Intervention {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Intervention{}, s.interventions[studentID]...)
}

// Acknowledged reports whether any notification of the student was acknowledged.
func (s *AlertStore) Acknowledged(studentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.acknowledged[studentID]
	return ok
}

// Feed flattens all pending notifications: students in first-arrival order,
// each student's notifications oldest first.
func (s *AlertStore) Feed() []FeedEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]FeedEntry, 0)
	for _, studentID := range s.arrival {
		for idx, note := range s.notifications[studentID] {
			entries = append(entries, FeedEntry{StudentID: studentID, Index: idx, Notification: note})
		}
	}
	return entries
}

// Pending counts all pending notifications.
func (s *AlertStore) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, notes := range s.notifications {
		total += len(notes)
	}
	return total
}

func toNotificationResponse(studentID string, index int, note Notification) dto.NotificationResponse {
	return dto.NotificationResponse{
		ID:           note.ID,
		StudentID:    studentID,
		Index:        index,
		Subject:      note.Subject,
		Message:      note.Message,
		Advisor:      note.Advisor,
		Date:         note.Date,
		Acknowledged: note.Acknowledged,
	}
}

func toInterventionResponses(items []Intervention) []dto.InterventionResponse {
	responses := make([]dto.InterventionResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, dto.InterventionResponse(item))
	}
	return responses
}
