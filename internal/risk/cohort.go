package risk

import "sort"

// escalatedFloorScore is the lowest score shown for a student escalated to High.
const escalatedFloorScore = 75

// AugmentedStudent joins a record with everything derived from it.
//
// Assessment is the formula result. RiskScore and RiskLabel are what advisors
// see; they differ from Assessment only when the cohort floor escalated the student.
type AugmentedStudent struct {
	Record     StudentRecord  `json:"record"`
	Profile    StudentProfile `json:"profile"`
	Flags      IndicatorFlags `json:"flags"`
	Assessment RiskAssessment `json:"assessment"`
	RiskScore  int            `json:"risk_score"`
	RiskLabel  Label          `json:"risk_label"`
	Escalated  bool           `json:"escalated"`
}

// Augment derives profile, flags and assessment for every record, in order.
func Augment(records []StudentRecord) []AugmentedStudent {
	students := make([]AugmentedStudent, 0, len(records))
	for _, record := range records {
		students = append(students, AugmentStudent(record))
	}
	return students
}

// AugmentStudent derives profile, flags and assessment for one record.
func AugmentStudent(record StudentRecord) AugmentedStudent {
	profile := Synthesize(record)
	assessment := Score(profile, record.GPA)
	return AugmentedStudent{
		Record:     record,
		Profile:    profile,
		Flags:      Flags(profile, record.GPA),
		Assessment: assessment,
		RiskScore:  assessment.Score,
		RiskLabel:  assessment.Label,
	}
}

// EnsureMinimumHigh escalates the highest scoring non-High students until at
// least minimum students are labelled High, so advisors always see several cases.
// Escalated students show max(cohort maximum score, 75). It returns a new slice
// and the number of students escalated.
func EnsureMinimumHigh(students []AugmentedStudent, minimum int) ([]AugmentedStudent, int) {
	out := append([]AugmentedStudent(nil), students...)
	if minimum <= 0 || len(out) == 0 {
		return out, 0
	}

	high := 0
	maxScore := 0
	for _, student := range out {
		if student.RiskLabel == LabelHigh {
			high++
		}
		maxScore = max(maxScore, student.RiskScore)
	}
	if high >= minimum {
		return out, 0
	}

	candidates := make([]int, 0, len(out))
	for idx, student := range out {
		if student.RiskLabel != LabelHigh {
			candidates = append(candidates, idx)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return out[candidates[i]].RiskScore > out[candidates[j]].RiskScore
	})

	needed := min(minimum-high, len(candidates))
	floor := max(maxScore, escalatedFloorScore)
	for _, idx := range candidates[:needed] {
		out[idx].RiskLabel = LabelHigh
		out[idx].RiskScore = floor
		out[idx].Escalated = true
	}
	return out, needed
}

// CountByLabel tallies the displayed labels.
func CountByLabel(students []AugmentedStudent) map[Label]int {
	counts := map[Label]int{LabelHigh: 0, LabelMedium: 0, LabelLow: 0}
	for _, student := range students {
		counts[student.RiskLabel]++
	}
	return counts
}

// ToTable renders augmented students as a table with the record columns
// followed by the synthesized ones, ready for BuildAlertTable.
func ToTable(students []AugmentedStudent) Table {
	table := Table{
		Columns: []string{
			ColumnStudentID, ColumnName, ColumnMajor, ColumnYear, ColumnGPA, ColumnCredits,
			ColumnAttendancePct, ColumnUnpaidFees, ColumnCounselingVisits, ColumnWarningsCount,
			ColumnAidStatus, ColumnEngagementScore, ColumnGPADrop, ColumnHousing, ColumnStudyHours,
			ColumnRiskScore, ColumnRiskLabel,
		},
		Rows: make([]Row, 0, len(students)),
	}

	for _, student := range students {
		var gpa any
		if value, ok := GPAValue(student.Record.GPA); ok {
			gpa = value
		}
		table.Rows = append(table.Rows, Row{
			ColumnStudentID:        student.Record.ID,
			ColumnName:             student.Record.Name,
			ColumnMajor:            student.Record.Major,
			ColumnYear:             student.Record.Year,
			ColumnGPA:              gpa,
			ColumnCredits:          student.Record.Credits,
			ColumnAttendancePct:    student.Profile.AttendancePct,
			ColumnUnpaidFees:       student.Profile.UnpaidFees,
			ColumnCounselingVisits: student.Profile.CounselingVisits,
			ColumnWarningsCount:    student.Profile.WarningsCount,
			ColumnAidStatus:        string(student.Profile.FinancialAidStatus),
			ColumnEngagementScore:  student.Profile.EngagementScore,
			ColumnGPADrop:          student.Profile.GPADrop,
			ColumnHousing:          string(student.Profile.Housing),
			ColumnStudyHours:       student.Profile.StudyHours,
			ColumnRiskScore:        student.RiskScore,
			ColumnRiskLabel:        string(student.RiskLabel),
		})
	}
	return table
}
