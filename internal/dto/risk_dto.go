package dto

import (
	"time"

	"github.com/noah-isme/gema-risk-api/internal/risk"
)

// DefaultPageSize applies when a list request names no page size.
const DefaultPageSize = 10

// PaginationMeta describes a paginated collection.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// SessionResponse is returned when an advisor session is opened.
type SessionResponse struct {
	SessionID      string    `json:"session_id"`
	CreatedAt      time.Time `json:"created_at"`
	IdleTTLSeconds int       `json:"idle_ttl_seconds"`
}

// EvaluationResponse summarises one evaluate call.
type EvaluationResponse struct {
	EvaluatedAt               time.Time            `json:"evaluated_at"`
	Summary                   risk.Summary         `json:"summary"`
	Escalated                 int                  `json:"escalated"`
	LabelCounts               map[risk.Label]int   `json:"label_counts"`
	NotificationsAdded        int                  `json:"notifications_added"`
	NotificationsDeduplicated int                  `json:"notifications_deduplicated"`
	PendingNotifications      int                  `json:"pending_notifications"`
	AlertsAvailable           bool                 `json:"alerts_available"`
	Students                  []risk.StudentAlerts `json:"students"`
}

// StudentListRequest filters the advisor roster view.
type StudentListRequest struct {
	Search   string `validate:"max=64"`
	Risk     string `validate:"omitempty,oneof=All High Medium Low all high medium low"`
	Page     int    `validate:"min=0"`
	PageSize int    `validate:"omitempty,oneof=5 10 20"`
}

// StudentSummary is one row of the advisor roster view.
type StudentSummary struct {
	StudentID            string     `json:"student_id"`
	Name                 string     `json:"name"`
	Major                string     `json:"major"`
	Year                 string     `json:"year"`
	GPA                  *float64   `json:"gpa"`
	Credits              int        `json:"credits"`
	RiskScore            int        `json:"risk_score"`
	RiskLabel            risk.Label `json:"risk_label"`
	Escalated            bool       `json:"escalated"`
	CriticalAlerts       int        `json:"critical_alerts"`
	TotalAlerts          int        `json:"total_alerts"`
	PendingNotifications int        `json:"pending_notifications"`
	Acknowledged         bool       `json:"acknowledged"`
}

// StudentListResponse is the advisor roster view.
type StudentListResponse struct {
	Items       []StudentSummary `json:"items"`
	Counts      map[string]int   `json:"counts"`
	TopCritical []StudentSummary `json:"top_critical"`
}

// NotificationResponse is a pending notification as shown to advisors.
type NotificationResponse struct {
	ID           string    `json:"id"`
	StudentID    string    `json:"student_id"`
	Index        int       `json:"index"`
	Subject      string    `json:"subject"`
	Message      string    `json:"message"`
	Advisor      string    `json:"advisor"`
	Date         time.Time `json:"date"`
	Acknowledged bool      `json:"acknowledged"`
}

// InterventionResponse is one entry of a student's intervention history.
type InterventionResponse struct {
	Type    string    `json:"type"`
	Advisor string    `json:"advisor"`
	Notes   string    `json:"notes"`
	Date    time.Time `json:"date"`
}

// StudentDetailResponse joins everything known about one student.
type StudentDetailResponse struct {
	Record           risk.StudentRecord     `json:"record"`
	Advisor          string                 `json:"advisor"`
	Profile          risk.StudentProfile    `json:"profile"`
	Flags            risk.IndicatorFlags    `json:"flags"`
	ActiveIndicators []risk.Indicator       `json:"active_indicators"`
	Assessment       risk.RiskAssessment    `json:"assessment"`
	RiskScore        int                    `json:"risk_score"`
	RiskLabel        risk.Label             `json:"risk_label"`
	Escalated        bool                   `json:"escalated"`
	Summary          string                 `json:"summary"`
	Alerts           []risk.Alert           `json:"alerts"`
	Notifications    []NotificationResponse `json:"notifications"`
	Interventions    []InterventionResponse `json:"interventions"`
	Acknowledged     bool                   `json:"acknowledged"`
	Extra            map[string]interface{} `json:"extra,omitempty"`
}

// NotifyRequest carries an advisor's optional note for a manual notification.
type NotifyRequest struct {
	Notes   string `json:"notes" validate:"max=2000"`
	Advisor string `json:"advisor" validate:"omitempty,max=255"`
}

// DeliveryResult reports the outcome of an outbound email.
type DeliveryResult struct {
	Sent bool   `json:"sent"`
	Info string `json:"info"`
}

// NotifyResponse is returned after a manual notification.
type NotifyResponse struct {
	Notification NotificationResponse `json:"notification"`
	Recipient    string               `json:"recipient"`
	Delivery     DeliveryResult       `json:"delivery"`
}

// AcknowledgeRequest names the pending notification to acknowledge.
type AcknowledgeRequest struct {
	Index *int `json:"index" validate:"required,min=0"`
}

// AcknowledgeResponse reports an acknowledgment.
type AcknowledgeResponse struct {
	Acknowledged bool                  `json:"acknowledged"`
	Intervention *InterventionResponse `json:"intervention,omitempty"`
	Remaining    int                   `json:"remaining"`
}

// AlertFeedRequest filters the alert feed.
type AlertFeedRequest struct {
	Search   string `validate:"max=128"`
	Severity string `validate:"omitempty,oneof=all critical warning All Critical Warning"`
	Page     int    `validate:"min=0"`
	PageSize int    `validate:"omitempty,oneof=5 10 20"`
}

// Alert feed sources.
const (
	FeedSourceSession = "session"
	FeedSourceLive    = "live"
)

// AlertFeedItem is one entry of the alert feed.
type AlertFeedItem struct {
	StudentID   string        `json:"student_id"`
	StudentName string        `json:"student_name"`
	Index       int           `json:"index"`
	Subject     string        `json:"subject"`
	Message     string        `json:"message"`
	Severity    risk.Severity `json:"severity"`
	Advisor     string        `json:"advisor"`
	Date        time.Time     `json:"date"`
}

// AlertFeedResponse is the alert feed page.
type AlertFeedResponse struct {
	Source string          `json:"source"`
	Items  []AlertFeedItem `json:"items"`
}

// ReportPageSize applies when a report request names no page size.
const ReportPageSize = 6

// ReportRequest filters the risk report.
type ReportRequest struct {
	Search   string `validate:"max=64"`
	Risk     string `validate:"omitempty,oneof=All High Medium Low all high medium low"`
	Page     int    `validate:"min=0"`
	PageSize int    `validate:"omitempty,oneof=6 9 12"`
}

// ReportRow is one line of the risk report.
type ReportRow struct {
	StudentID string     `json:"student_id"`
	Name      string     `json:"name"`
	Risk      risk.Label `json:"risk"`
	Summary   string     `json:"summary"`
}

// RosterImportResponse reports a roster upload.
type RosterImportResponse struct {
	Imported    int      `json:"imported"`
	Skipped     int      `json:"skipped"`
	Columns     []string `json:"columns"`
	RosterTotal int64    `json:"roster_total"`
}

// Alert stream event kinds.
const (
	StreamNotificationCreated      = "notification.created"
	StreamNotificationAcknowledged = "notification.acknowledged"
)

// AlertStreamEvent is pushed to alert stream subscribers of a session.
type AlertStreamEvent struct {
	Kind         string               `json:"kind"`
	SessionID    string               `json:"session_id"`
	Notification NotificationResponse `json:"notification"`
	At           time.Time            `json:"at"`
}
