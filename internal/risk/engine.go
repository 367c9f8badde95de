package risk

import (
	"sort"
	"time"
)

// Alert is one triggered rule for one student.
type Alert struct {
	StudentID string    `json:"student_id"`
	Type      string    `json:"type"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// StudentAlerts groups the alerts raised for a single student.
type StudentAlerts struct {
	StudentID string  `json:"student_id"`
	Name      string  `json:"name"`
	Advisor   string  `json:"advisor"`
	RiskLevel Label   `json:"risk_level"`
	Alerts    []Alert `json:"alerts"`
}

// CriticalCount counts the critical alerts.
func (s StudentAlerts) CriticalCount() int {
	count := 0
	for _, alert := range s.Alerts {
		if alert.Severity == SeverityCritical {
			count++
		}
	}
	return count
}

// Summary aggregates one evaluation run.
type Summary struct {
	StudentsEvaluated  int `json:"students_evaluated"`
	StudentsWithAlerts int `json:"students_with_alerts"`
	Critical           int `json:"critical"`
	Warning            int `json:"warning"`
}

// Engine applies a rule table to alert rows. It keeps no state between calls.
type Engine struct {
	rules []Rule
	now   func() time.Time
}

// NewEngine builds an engine over the default rule table.
func NewEngine() *Engine {
	return NewEngineWithRules(Rules, time.Now)
}

// NewEngineWithClock builds an engine whose alert timestamps come from now.
func NewEngineWithClock(now func() time.Time) *Engine {
	return NewEngineWithRules(Rules, now)
}

// NewEngineWithRules builds an engine over a custom rule table. A nil table
// falls back to Rules and a nil clock to time.Now.
func NewEngineWithRules(rules []Rule, now func() time.Time) *Engine {
	if rules == nil {
		rules = Rules
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{rules: rules, now: now}
}

// EvaluateTable normalizes the table onto the alert schema and evaluates it.
func (e *Engine) EvaluateTable(t Table) ([]StudentAlerts, Summary, error) {
	rows, err := BuildAlertTable(t)
	if err != nil {
		return nil, Summary{}, err
	}
	students, summary := e.Evaluate(rows)
	return students, summary, nil
}

// Evaluate returns the students with at least one alert, most critical first.
// Ties keep input order.
func (e *Engine) Evaluate(rows []AlertRow) ([]StudentAlerts, Summary) {
	timestamp := e.now().UTC()
	summary := Summary{StudentsEvaluated: len(rows)}

	students := make([]StudentAlerts, 0)
	for _, row := range rows {
		if row.StudentID == "" {
			continue
		}

		alerts := make([]Alert, 0, len(e.rules))
		for _, rule := range e.rules {
			if !rule.Applies(row) {
				continue
			}
			alerts = append(alerts, Alert{
				StudentID: row.StudentID,
				Type:      rule.Type,
				Severity:  rule.Severity,
				Message:   rule.Message(row),
				Timestamp: timestamp,
			})
			if rule.Severity == SeverityCritical {
				summary.Critical++
			} else {
				summary.Warning++
			}
		}
		if len(alerts) == 0 {
			continue
		}

		entry := StudentAlerts{
			StudentID: row.StudentID,
			Name:      row.Name,
			Advisor:   row.Advisor,
			Alerts:    alerts,
		}
		entry.RiskLevel = alertRiskLevel(entry)
		students = append(students, entry)
	}

	sort.SliceStable(students, func(i, j int) bool {
		ci, cj := students[i].CriticalCount(), students[j].CriticalCount()
		if ci != cj {
			return ci > cj
		}
		return len(students[i].Alerts) > len(students[j].Alerts)
	})

	summary.StudentsWithAlerts = len(students)
	return students, summary
}

// alertRiskLevel grades a student by alert mix: two or more critical alerts is
// High, one critical or two warnings is Medium, anything else Low.
func alertRiskLevel(s StudentAlerts) Label {
	critical := s.CriticalCount()
	warnings := len(s.Alerts) - critical
	switch {
	case critical >= 2:
		return LabelHigh
	case critical == 1 || warnings >= 2:
		return LabelMedium
	default:
		return LabelLow
	}
}
