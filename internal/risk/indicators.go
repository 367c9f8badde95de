package risk

// Indicator names one independent risk signal.
type Indicator string

const (
	IndicatorAcademicHighRisk      Indicator = "academic_high_risk"
	IndicatorAttendanceAlert       Indicator = "attendance_alert"
	IndicatorFinancialRisk         Indicator = "financial_risk"
	IndicatorDropoutRisk           Indicator = "dropout_risk"
	IndicatorLowEngagement         Indicator = "low_engagement"
	IndicatorHighAttritionWarnings Indicator = "high_attrition_warnings"
	IndicatorStopOutRisk           Indicator = "stop_out_risk"
	IndicatorIntegrationRisk       Indicator = "integration_risk"
	IndicatorStudyHoursRisk        Indicator = "study_hours_risk"
	IndicatorGPADropWarning        Indicator = "gpa_drop_warning"
)

// IndicatorFlags carries the ten boolean indicators for one student.
type IndicatorFlags struct {
	AcademicHighRisk      bool `json:"academic_high_risk"`
	AttendanceAlert       bool `json:"attendance_alert"`
	FinancialRisk         bool `json:"financial_risk"`
	DropoutRisk           bool `json:"dropout_risk"`
	LowEngagement         bool `json:"low_engagement"`
	HighAttritionWarnings bool `json:"high_attrition_warnings"`
	StopOutRisk           bool `json:"stop_out_risk"`
	IntegrationRisk       bool `json:"integration_risk"`
	StudyHoursRisk        bool `json:"study_hours_risk"`
	GPADropWarning        bool `json:"gpa_drop_warning"`
}

// Flags evaluates every indicator against the profile and GPA.
func Flags(profile StudentProfile, gpa *float64) IndicatorFlags {
	value, hasGPA := GPAValue(gpa)

	return IndicatorFlags{
		AcademicHighRisk:      hasGPA && value < 2.0,
		AttendanceAlert:       profile.AttendancePct < 80,
		FinancialRisk:         profile.UnpaidFees > 500,
		DropoutRisk:           profile.Credits < 30,
		LowEngagement:         profile.CounselingVisits == 0 || profile.EngagementScore < 50,
		HighAttritionWarnings: profile.WarningsCount >= 2,
		StopOutRisk:           profile.FinancialAidStatus == AidDelayed,
		IntegrationRisk:       profile.Housing == HousingCommuter,
		StudyHoursRisk:        profile.StudyHours < 20,
		GPADropWarning:        profile.GPADrop > 0.5,
	}
}

// Active lists the raised indicators in declaration order.
func (f IndicatorFlags) Active() []Indicator {
	pairs := []struct {
		set  bool
		name Indicator
	}{
		{f.AcademicHighRisk, IndicatorAcademicHighRisk},
		{f.AttendanceAlert, IndicatorAttendanceAlert},
		{f.FinancialRisk, IndicatorFinancialRisk},
		{f.DropoutRisk, IndicatorDropoutRisk},
		{f.LowEngagement, IndicatorLowEngagement},
		{f.HighAttritionWarnings, IndicatorHighAttritionWarnings},
		{f.StopOutRisk, IndicatorStopOutRisk},
		{f.IntegrationRisk, IndicatorIntegrationRisk},
		{f.StudyHoursRisk, IndicatorStudyHoursRisk},
		{f.GPADropWarning, IndicatorGPADropWarning},
	}

	active := make([]Indicator, 0, len(pairs))
	for _, pair := range pairs {
		if pair.set {
			active = append(active, pair.name)
		}
	}
	return active
}
