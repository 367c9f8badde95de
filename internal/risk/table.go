package risk

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMissingStudentID is returned when a table has no student_id column.
var ErrMissingStudentID = errors.New("student_id column required for alert generation")

// Canonical column names.
const (
	ColumnStudentID        = "student_id"
	ColumnName             = "name"
	ColumnMajor            = "major"
	ColumnYear             = "year"
	ColumnAdvisor          = "advisor"
	ColumnGPA              = "gpa"
	ColumnCredits          = "credits"
	ColumnWarnings         = "warnings"
	ColumnWarningsCount    = "warnings_count"
	ColumnUnpaidFees       = "unpaid_fees"
	ColumnAidStatus        = "financial_aid_status"
	ColumnAttendance       = "attendance"
	ColumnAttendancePct    = "attendance_pct"
	ColumnCounselingVisits = "counseling_visits"
	ColumnEngagementScore  = "engagement_score"
	ColumnGPADrop          = "gpa_drop"
	ColumnHousing          = "housing"
	ColumnStudyHours       = "study_hours"
	ColumnRiskScore        = "risk_score"
	ColumnRiskLabel        = "risk_label"
)

// DefaultAdvisor is used when the table carries no advisor column.
const DefaultAdvisor = "Advisor"

// Row maps column names to cell values.
type Row map[string]any

// Table is an ordered set of rows sharing a column set.
type Table struct {
	Columns []string
	Rows    []Row
}

// HasColumn reports whether the table declares the column.
func (t Table) HasColumn(name string) bool {
	for _, column := range t.Columns {
		if column == name {
			return true
		}
	}
	return false
}

// NormalizeDataset aliases alternate source columns onto the canonical set.
// prior_gpa becomes gpa and credits_completed becomes credits; a missing gpa
// column yields null GPAs and a missing credits column yields zero credits.
func NormalizeDataset(t Table) Table {
	out := Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([]Row, 0, len(t.Rows)),
	}

	gpaSource := ""
	switch {
	case t.HasColumn(ColumnGPA):
	case t.HasColumn("prior_gpa"):
		gpaSource = "prior_gpa"
	default:
		gpaSource = "-"
	}
	if gpaSource != "" {
		out.Columns = append(out.Columns, ColumnGPA)
	}

	creditSource := ""
	switch {
	case t.HasColumn(ColumnCredits):
	case t.HasColumn("credits_completed"):
		creditSource = "credits_completed"
	default:
		creditSource = "-"
	}
	if creditSource != "" {
		out.Columns = append(out.Columns, ColumnCredits)
	}

	for _, row := range t.Rows {
		copied := make(Row, len(row)+2)
		for key, value := range row {
			copied[key] = value
		}
		switch gpaSource {
		case "":
		case "-":
			copied[ColumnGPA] = nil
		default:
			copied[ColumnGPA] = row[gpaSource]
		}
		switch creditSource {
		case "":
		case "-":
			copied[ColumnCredits] = 0
		default:
			copied[ColumnCredits] = row[creditSource]
		}
		out.Rows = append(out.Rows, copied)
	}

	return out
}

// RecordsFromTable converts a normalized table into student records.
// Rows with an empty identifier are skipped.
func RecordsFromTable(t Table) ([]StudentRecord, error) {
	if !t.HasColumn(ColumnStudentID) {
		return nil, ErrMissingStudentID
	}

	records := make([]StudentRecord, 0, len(t.Rows))
	for _, row := range t.Rows {
		if record, ok := RecordFromRow(row); ok {
			records = append(records, record)
		}
	}
	return records, nil
}

// RecordFromRow converts one normalized row. It reports false when the row has no identifier.
func RecordFromRow(row Row) (StudentRecord, bool) {
	id := strings.TrimSpace(SafeString(row[ColumnStudentID], ""))
	if id == "" {
		return StudentRecord{}, false
	}
	return StudentRecord{
		ID:      id,
		Name:    strings.TrimSpace(SafeString(row[ColumnName], "")),
		Major:   SafeString(row[ColumnMajor], ""),
		Year:    SafeString(row[ColumnYear], ""),
		GPA:     SafeFloat(row[ColumnGPA]),
		Credits: SafeInt(row[ColumnCredits], 0),
	}, true
}

// AlertRow is one student's slice of the table the alert rules run against.
type AlertRow struct {
	StudentID          string
	Name               string
	Advisor            string
	GPA                *float64
	Credits            int
	Warnings           int
	UnpaidFees         float64
	FinancialAidStatus AidStatus
	Attendance         int
	CounselingVisits   int
	EngagementScore    int
}

// BuildAlertTable projects a table onto the alert schema, filling absent columns
// with their defaults: warnings 0, unpaid_fees 0, financial_aid_status "On time",
// attendance 90, counseling_visits 0, engagement_score 60.
// Blank names fall back to the student identifier.
func BuildAlertTable(t Table) ([]AlertRow, error) {
	if !t.HasColumn(ColumnStudentID) {
		return nil, ErrMissingStudentID
	}

	warningsColumn := firstColumn(t, ColumnWarnings, ColumnWarningsCount)
	attendanceColumn := firstColumn(t, ColumnAttendance, ColumnAttendancePct)

	rows := make([]AlertRow, 0, len(t.Rows))
	for _, row := range t.Rows {
		id := strings.TrimSpace(SafeString(row[ColumnStudentID], ""))
		name := strings.TrimSpace(SafeString(row[ColumnName], ""))
		if name == "" {
			name = id
		}
		advisor := strings.TrimSpace(SafeString(row[ColumnAdvisor], ""))
		if advisor == "" {
			advisor = DefaultAdvisor
		}
		aid := AidStatus(strings.TrimSpace(SafeString(row[ColumnAidStatus], "")))
		if aid == "" {
			aid = AidOnTime
		}

		fees := 0.0
		if value := SafeFloat(row[ColumnUnpaidFees]); value != nil {
			fees = *value
		}

		rows = append(rows, AlertRow{
			StudentID:          id,
			Name:               name,
			Advisor:            advisor,
			GPA:                SafeFloat(row[ColumnGPA]),
			Credits:            SafeInt(row[ColumnCredits], 0),
			Warnings:           SafeInt(lookup(row, warningsColumn), 0),
			UnpaidFees:         fees,
			FinancialAidStatus: aid,
			Attendance:         SafeInt(lookup(row, attendanceColumn), 90),
			CounselingVisits:   SafeInt(row[ColumnCounselingVisits], 0),
			EngagementScore:    SafeInt(row[ColumnEngagementScore], 60),
		})
	}
	return rows, nil
}

func firstColumn(t Table, candidates ...string) string {
	for _, candidate := range candidates {
		if t.HasColumn(candidate) {
			return candidate
		}
	}
	return ""
}

func lookup(row Row, column string) any {
	if column == "" {
		return nil
	}
	return row[column]
}

// SafeFloat converts a cell into a float. It never fails: unparseable, empty and NaN cells yield nil.
func SafeFloat(value any) *float64 {
	var result float64
	switch v := value.(type) {
	case nil:
		return nil
	case float64:
		result = v
	case *float64:
		if v == nil {
			return nil
		}
		result = *v
	case float32:
		result = float64(v)
	case int:
		result = float64(v)
	case int64:
		result = float64(v)
	case int32:
		result = float64(v)
	case uint:
		result = float64(v)
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil
		}
		result = parsed
	case fmt.Stringer:
		return SafeFloat(v.String())
	default:
		return nil
	}

	if math.IsNaN(result) || math.IsInf(result, 0) {
		return nil
	}
	return &result
}

// SafeInt converts a cell into an integer, truncating fractions, or returns the fallback.
func SafeInt(value any, fallback int) int {
	converted := SafeFloat(value)
	if converted == nil {
		return fallback
	}
	return int(*converted)
}

// SafeString renders a cell as text, or returns the fallback for nil.
func SafeString(value any, fallback string) string {
	switch v := value.(type) {
	case nil:
		return fallback
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case float64:
		if math.IsNaN(v) {
			return fallback
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
