// Package risk derives synthetic student attributes, indicator flags, weighted
// risk scores and rule-based alerts from tabular student records.
//
// Everything in this package is a pure function of its inputs: identical
// records always produce identical profiles, scores and alerts.
package risk

import "math"

// AidStatus describes how a student's financial aid is being disbursed.
type AidStatus string

const (
	AidOnTime      AidStatus = "On time"
	AidDelayed     AidStatus = "Delayed"
	AidPaymentPlan AidStatus = "Payment Plan"
)

var aidStatuses = []AidStatus{AidOnTime, AidDelayed, AidPaymentPlan}

// Housing describes where a student lives during term.
type Housing string

const (
	HousingCommuter Housing = "Commuter"
	HousingOnCampus Housing = "On-campus"
)

// StudentRecord is one row of the caller supplied roster.
type StudentRecord struct {
	ID      string   `json:"student_id"`
	Name    string   `json:"name"`
	Major   string   `json:"major"`
	Year    string   `json:"year"`
	GPA     *float64 `json:"gpa"`
	Credits int      `json:"credits"`
}

// StudentProfile holds the auxiliary attributes synthesized for a student.
type StudentProfile struct {
	AttendancePct      int       `json:"attendance_pct"`
	UnpaidFees         int       `json:"unpaid_fees"`
	CounselingVisits   int       `json:"counseling_visits"`
	WarningsCount      int       `json:"warnings_count"`
	FinancialAidStatus AidStatus `json:"financial_aid_status"`
	EngagementScore    int       `json:"engagement_score"`
	GPADrop            float64   `json:"gpa_drop"`
	Housing            Housing   `json:"housing"`
	StudyHours         int       `json:"study_hours"`
	Credits            int       `json:"credits"`
}

// Seed returns the stable per-student seed: the sum of the identifier's code points.
func Seed(studentID string) int {
	seed := 0
	for _, r := range studentID {
		seed += int(r)
	}
	return seed
}

// Synthesize derives the student's profile from the identifier, GPA and credits.
// A missing or NaN GPA drops the GPA terms and falls back to a neutral baseline.
func Synthesize(record StudentRecord) StudentProfile {
	seed := Seed(record.ID)
	gpa, hasGPA := GPAValue(record.GPA)

	attendance := 75
	engagement := 60
	if hasGPA {
		attendance += roundInt((gpa - 2.5) * 8)
		engagement += roundInt((gpa - 2.5) * 12)
	}

	warnings := seed % 4
	if hasGPA && gpa < 2.5 {
		warnings++
	}

	// a zero GPA is treated like a missing one for study hours
	studyBase := 2.5
	if hasGPA && gpa != 0 {
		studyBase = gpa
	}

	housing := HousingOnCampus
	if seed%2 == 0 {
		housing = HousingCommuter
	}

	return StudentProfile{
		AttendancePct:      clampInt(30, 100, attendance+(seed%11)-5),
		UnpaidFees:         (seed % 6) * 300,
		CounselingVisits:   seed % 5,
		WarningsCount:      warnings,
		FinancialAidStatus: aidStatuses[seed%len(aidStatuses)],
		EngagementScore:    clampInt(0, 100, engagement+(seed%21)-10),
		GPADrop:            roundTo(float64(seed%9)/10, 2),
		Housing:            housing,
		StudyHours:         clampInt(0, 80, 15+roundInt(studyBase*6)+(seed%21)-10),
		Credits:            record.Credits,
	}
}

// GPAValue reports the GPA and whether it is usable. Nil and NaN are unusable.
func GPAValue(gpa *float64) (float64, bool) {
	if gpa == nil || math.IsNaN(*gpa) || math.IsInf(*gpa, 0) {
		return 0, false
	}
	return *gpa, true
}

// roundInt rounds half away from zero.
func roundInt(v float64) int {
	return int(math.Round(v))
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

func clampInt(lo, hi, v int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(lo, hi, v float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
