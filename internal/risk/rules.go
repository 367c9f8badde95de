package risk

import (
	"fmt"
	"strings"
)

// Severity classifies an alert.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// ParseSeverity accepts a severity in any letter case.
func ParseSeverity(value string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(SeverityWarning):
		return SeverityWarning, true
	case string(SeverityCritical):
		return SeverityCritical, true
	default:
		return "", false
	}
}

// Rule is one entry of the alert rule table.
type Rule struct {
	Indicator Indicator
	Type      string
	Severity  Severity
	Applies   func(AlertRow) bool
	Message   func(AlertRow) string
}

// Rules is the fixed, ordered alert rule table. Academic, financial and dropout
// rules are critical; attendance, engagement and warning-count rules are warnings.
// Housing, study-hours and GPA-drop indicators have no column in the alert table
// and therefore no rule.
var Rules = []Rule{
	{
		Indicator: IndicatorAcademicHighRisk,
		Type:      "Academic Probation",
		Severity:  SeverityCritical,
		Applies: func(r AlertRow) bool {
			gpa, ok := GPAValue(r.GPA)
			return ok && gpa < 2.0
		},
		Message: func(r AlertRow) string {
			return fmt.Sprintf("GPA of %.2f is below the 2.00 academic standing minimum.", *r.GPA)
		},
	},
	{
		Indicator: IndicatorAttendanceAlert,
		Type:      "Low Attendance",
		Severity:  SeverityWarning,
		Applies:   func(r AlertRow) bool { return r.Attendance < 80 },
		Message: func(r AlertRow) string {
			return fmt.Sprintf("Attendance is %d%%, below the 80%% expectation.", r.Attendance)
		},
	},
	{
		Indicator: IndicatorFinancialRisk,
		Type:      "Unpaid Fees",
		Severity:  SeverityCritical,
		Applies:   func(r AlertRow) bool { return r.UnpaidFees > 500 },
		Message: func(r AlertRow) string {
			return fmt.Sprintf("Outstanding balance of $%.0f exceeds the $500 limit.", r.UnpaidFees)
		},
	},
	{
		Indicator: IndicatorDropoutRisk,
		Type:      "Credit Deficit",
		Severity:  SeverityCritical,
		Applies:   func(r AlertRow) bool { return r.Credits < 30 },
		Message: func(r AlertRow) string {
			return fmt.Sprintf("Only %d credits completed; fewer than 30 signals dropout risk.", r.Credits)
		},
	},
	{
		Indicator: IndicatorLowEngagement,
		Type:      "Low Engagement",
		Severity:  SeverityWarning,
		Applies:   func(r AlertRow) bool { return r.CounselingVisits == 0 || r.EngagementScore < 50 },
		Message: func(r AlertRow) string {
			return fmt.Sprintf("Engagement score %d with %d counseling visits this term.", r.EngagementScore, r.CounselingVisits)
		},
	},
	{
		Indicator: IndicatorHighAttritionWarnings,
		Type:      "Multiple Warnings",
		Severity:  SeverityWarning,
		Applies:   func(r AlertRow) bool { return r.Warnings >= 2 },
		Message: func(r AlertRow) string {
			return fmt.Sprintf("%d academic warnings on record.", r.Warnings)
		},
	},
	{
		Indicator: IndicatorStopOutRisk,
		Type:      "Financial Aid Delayed",
		Severity:  SeverityCritical,
		Applies:   func(r AlertRow) bool { return r.FinancialAidStatus == AidDelayed },
		Message: func(AlertRow) string {
			return "Financial aid disbursement is delayed; student may stop out."
		},
	},
}
