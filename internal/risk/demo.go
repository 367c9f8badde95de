package risk

import "fmt"

// DemoRoster returns the eight student sample cohort used to seed an empty roster.
func DemoRoster() []StudentRecord {
	names := []string{
		"John Smith", "Emily Davis", "Michael Chen", "Sarah Johnson",
		"David Martinez", "Jessica Williams", "Alex Brown", "Lisa Anderson",
	}
	majors := []string{"Engineering", "Business", "Computer Science", "Arts"}
	years := []string{"Junior", "Sophomore", "Senior", "Junior", "Senior", "Junior", "Sophomore", "Senior"}
	gpas := []float64{2.1, 2.4, 2.8, 3.0, 3.2, 3.5, 2.9, 3.1}
	credits := []int{78, 65, 110, 95, 120, 88, 72, 105}

	records := make([]StudentRecord, 0, len(names))
	for i, name := range names {
		gpa := gpas[i]
		records = append(records, StudentRecord{
			ID:      fmt.Sprintf("S%03d", i+1),
			Name:    name,
			Major:   majors[i%len(majors)],
			Year:    years[i],
			GPA:     &gpa,
			Credits: credits[i],
		})
	}
	return records
}

