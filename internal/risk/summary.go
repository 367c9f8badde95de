package risk

import (
	"fmt"
	"strings"
)

const maxSummaryReasons = 3

// BriefSummary lists up to three headline reasons for a student's risk.
func BriefSummary(student AugmentedStudent) string {
	reasons := make([]string, 0, 5)

	if gpa, ok := GPAValue(student.Record.GPA); ok {
		switch {
		case gpa < 2.0:
			reasons = append(reasons, "Low GPA")
		case gpa < 2.5:
			reasons = append(reasons, "At-risk GPA")
		}
	}
	if student.Profile.UnpaidFees > 500 {
		reasons = append(reasons, "Unpaid fees")
	}
	if student.Profile.AttendancePct < 80 {
		reasons = append(reasons, "Low attendance")
	}
	if student.Profile.WarningsCount >= 2 {
		reasons = append(reasons, "Multiple warnings")
	}
	if student.Profile.CounselingVisits < 1 || student.Profile.EngagementScore < 50 {
		reasons = append(reasons, "Low engagement")
	}

	if len(reasons) == 0 {
		return "No major risks"
	}
	if len(reasons) > maxSummaryReasons {
		reasons = reasons[:maxSummaryReasons]
	}
	return strings.Join(reasons, ", ")
}

// ReportLine renders the formula label followed by the brief summary.
func ReportLine(student AugmentedStudent) string {
	return fmt.Sprintf("%s risk — %s", student.Assessment.Label, BriefSummary(student))
}
