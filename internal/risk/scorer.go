package risk

import "strings"

// Label is the three level risk classification.
type Label string

const (
	LabelLow    Label = "Low"
	LabelMedium Label = "Medium"
	LabelHigh   Label = "High"
)

const (
	highThreshold   = 70
	mediumThreshold = 40

	// academic component used when no GPA is available
	neutralAcademic = 50
)

// RiskAssessment is the weighted score, its label and the component scores behind it.
type RiskAssessment struct {
	Score      int   `json:"risk_score"`
	Label      Label `json:"risk_label"`
	Academic   int   `json:"academic_component"`
	Financial  int   `json:"financial_component"`
	Engagement int   `json:"engagement_component"`
}

// Score combines academic, financial and engagement components into a 0-100 score.
//
// Components are truncated to integers, except the GPA drop term which is rounded.
// The weighted total is computed in tenths and rounded half up, so 38.5 becomes 39.
func Score(profile StudentProfile, gpa *float64) RiskAssessment {
	academic := academicComponent(profile, gpa)
	financial := financialComponent(profile)
	engagement := clampInt(0, 100, 100-profile.EngagementScore)

	tenths := 5*academic + 3*financial + 2*engagement
	total := (tenths + 5) / 10

	return RiskAssessment{
		Score:      total,
		Label:      LabelFor(total),
		Academic:   academic,
		Financial:  financial,
		Engagement: engagement,
	}
}

// LabelFor maps a score onto its label: >=70 High, >=40 Medium, otherwise Low.
func LabelFor(score int) Label {
	switch {
	case score >= highThreshold:
		return LabelHigh
	case score >= mediumThreshold:
		return LabelMedium
	default:
		return LabelLow
	}
}

// ParseLabel accepts a label in any letter case.
func ParseLabel(value string) (Label, bool) {
	for _, label := range []Label{LabelLow, LabelMedium, LabelHigh} {
		if strings.EqualFold(string(label), strings.TrimSpace(value)) {
			return label, true
		}
	}
	return "", false
}

func academicComponent(profile StudentProfile, gpa *float64) int {
	value, ok := GPAValue(gpa)
	if !ok {
		return neutralAcademic
	}

	score := int(clampFloat(0, 100, (3.5-value)/3.5*100))
	score = min(100, score+roundInt(profile.GPADrop*40))
	if profile.StudyHours < 20 {
		score = min(100, score+10)
	}
	return score
}

func financialComponent(profile StudentProfile) int {
	score := min(100, max(0, profile.UnpaidFees*100/2000))
	if profile.FinancialAidStatus == AidDelayed {
		score = min(100, score+25)
	}
	return score
}
