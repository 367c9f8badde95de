package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/noah-isme/gema-risk-api/internal/dto"
	"github.com/noah-isme/gema-risk-api/internal/models"
	"github.com/noah-isme/gema-risk-api/internal/repository"
	"github.com/noah-isme/gema-risk-api/internal/risk"
)

var (
	// ErrStudentNotFound indicates the student id is not on the roster.
	ErrStudentNotFound = errors.New("student not found")
	// ErrRosterEmpty indicates an upload without any usable student row.
	ErrRosterEmpty = errors.New("roster contains no student rows")
	// ErrRosterFileType indicates the upload is not CSV text.
	ErrRosterFileType = errors.New("roster upload must be a CSV file")
	// ErrRosterTooLarge indicates the upload exceeds the configured limit.
	ErrRosterTooLarge = errors.New("roster upload too large")
)

var knownRosterColumns = map[string]struct{}{
	risk.ColumnStudentID: {},
	risk.ColumnName:      {},
	risk.ColumnMajor:     {},
	risk.ColumnYear:      {},
	risk.ColumnGPA:       {},
	risk.ColumnCredits:   {},
	risk.ColumnAdvisor:   {},
	"prior_gpa":          {},
	"credits_completed":  {},
}

// Roster is the evaluated cohort input: records in roster order plus their advisors.
type Roster struct {
	Records  []risk.StudentRecord
	Advisors map[string]string
	Extra    map[string]map[string]interface{}
	Checksum string
}

// RosterService loads and imports the student roster.
type RosterService interface {
	Load(ctx context.Context) (Roster, error)
	Import(ctx context.Context, filename string, content []byte) (dto.RosterImportResponse, error)
}

type rosterService struct {
	repo    repository.RosterRepository
	logger  zerolog.Logger
	maxSize int64
	tracer  trace.Tracer
}

// NewRosterService constructs the roster service. maxUploadMB bounds imports.
func NewRosterService(repo repository.RosterRepository, maxUploadMB int, logger zerolog.Logger) RosterService {
	if maxUploadMB <= 0 {
		maxUploadMB = 5
	}
	return &rosterService{
		repo:    repo,
		logger:  logger.With().Str("component", "roster_service").Logger(),
		maxSize: int64(maxUploadMB) * 1024 * 1024,
		tracer:  otel.Tracer("github.com/noah-isme/gema-risk-api/internal/service/roster"),
	}
}

// Load returns the roster, seeding the sample cohort when the store is empty.
func (s *rosterService) Load(ctx context.Context) (Roster, error) {
	students, err := s.repo.All(ctx)
	if err != nil {
		return Roster{}, err
	}

	if len(students) == 0 {
		seed := make([]models.Student, 0, 8)
		for _, record := range risk.DemoRoster() {
			seed = append(seed, studentFromRecord(record, "", nil))
		}
		if _, err := s.repo.UpsertBatch(ctx, seed); err != nil {
			return Roster{}, fmt.Errorf("seed roster: %w", err)
		}
		s.logger.Info().Int("students", len(seed)).Msg("roster empty, seeded sample cohort")

		students, err = s.repo.All(ctx)
		if err != nil {
			return Roster{}, err
		}
	}

	roster := Roster{
		Records:  make([]risk.StudentRecord, 0, len(students)),
		Advisors: make(map[string]string, len(students)),
		Extra:    make(map[string]map[string]interface{}),
	}
	for _, student := range students {
		roster.Records = append(roster.Records, risk.StudentRecord{
			ID:      student.StudentID,
			Name:    student.Name,
			Major:   student.Major,
			Year:    student.Year,
			GPA:     student.GPA,
			Credits: student.Credits,
		})
		if student.Advisor != "" {
			roster.Advisors[student.StudentID] = student.Advisor
		}
		if len(student.Extra) > 0 {
			roster.Extra[student.StudentID] = map[string]interface{}(student.Extra)
		}
	}
	roster.Checksum = rosterChecksum(roster)

	return roster, nil
}

// Import parses a CSV roster, aliases its columns and upserts every row with a student id.
func (s *rosterService) Import(ctx context.Context, filename string, content []byte) (dto.RosterImportResponse, error) {
	ctx, span := s.tracer.Start(ctx, "roster.import")
	defer span.End()

	span.SetAttributes(
		attribute.String("roster.filename", strings.TrimSpace(filename)),
		attribute.Int("roster.bytes", len(content)),
	)

	if int64(len(content)) > s.maxSize {
		span.SetStatus(codes.Error, "payload too large")
		return dto.RosterImportResponse{}, ErrRosterTooLarge
	}

	detected := mimetype.Detect(content)
	span.SetAttributes(attribute.String("roster.detected_mime", detected.String()))
	if !isTextUpload(detected) {
		span.SetStatus(codes.Error, "type not allowed")
		return dto.RosterImportResponse{}, ErrRosterFileType
	}

	table, err := parseRosterCSV(content)
	if errors.Is(err, ErrRosterEmpty) {
		span.SetStatus(codes.Error, "empty roster")
		return dto.RosterImportResponse{}, err
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return dto.RosterImportResponse{}, fmt.Errorf("%w: %v", ErrRosterFileType, err)
	}

	normalized := risk.NormalizeDataset(table)
	if !normalized.HasColumn(risk.ColumnStudentID) {
		span.RecordError(risk.ErrMissingStudentID)
		span.SetStatus(codes.Error, "missing key column")
		return dto.RosterImportResponse{}, risk.ErrMissingStudentID
	}

	skipped := 0
	byID := make(map[string]int, len(normalized.Rows))
	students := make([]models.Student, 0, len(normalized.Rows))
	for _, row := range normalized.Rows {
		record, ok := risk.RecordFromRow(row)
		if !ok {
			skipped++
			continue
		}
		advisor := strings.TrimSpace(risk.SafeString(row[risk.ColumnAdvisor], ""))
		student := studentFromRecord(record, advisor, extraColumns(table.Columns, row))

		// later rows win for repeated ids
		if existing, dup := byID[record.ID]; dup {
			students[existing] = student
			skipped++
			continue
		}
		byID[record.ID] = len(students)
		students = append(students, student)
	}

	if len(students) == 0 {
		span.SetStatus(codes.Error, "empty roster")
		return dto.RosterImportResponse{}, ErrRosterEmpty
	}

	if _, err := s.repo.UpsertBatch(ctx, students); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return dto.RosterImportResponse{}, err
	}

	total, err := s.repo.Count(ctx)
	if err != nil {
		span.RecordError(err)
		return dto.RosterImportResponse{}, err
	}

	s.logger.Info().
		Int("imported", len(students)).
		Int("skipped", skipped).
		Int64("roster_total", total).
		Msg("roster imported")
	span.SetStatus(codes.Ok, "imported")

	return dto.RosterImportResponse{
		Imported:    len(students),
		Skipped:     skipped,
		Columns:     table.Columns,
		RosterTotal: total,
	}, nil
}

func isTextUpload(detected *mimetype.MIME) bool {
	for m := detected; m != nil; m = m.Parent() {
		if m.Is("text/csv") || m.Is("text/plain") {
			return true
		}
	}
	return false
}

func parseRosterCSV(content []byte) (risk.Table, error) {
	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(content, []byte("\ufeff"))))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return risk.Table{}, ErrRosterEmpty
		}
		return risk.Table{}, err
	}

	columns := make([]string, len(header))
	for idx, name := range header {
		columns[idx] = normalizeColumnName(name)
	}

	table := risk.Table{Columns: columns}
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return risk.Table{}, err
		}

		row := make(risk.Row, len(columns))
		for idx, column := range columns {
			if column == "" || idx >= len(fields) {
				continue
			}
			value := strings.TrimSpace(fields[idx])
			if value == "" {
				row[column] = nil
				continue
			}
			row[column] = value
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

func normalizeColumnName(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.Join(strings.Fields(strings.ReplaceAll(lower, "-", " ")), "_")
}

func extraColumns(columns []string, row risk.Row) datatypes.JSONMap {
	extra := datatypes.JSONMap{}
	for _, column := range columns {
		if column == "" {
			continue
		}
		if _, known := knownRosterColumns[column]; known {
			continue
		}
		if value, ok := row[column]; ok && value != nil {
			extra[column] = value
		}
	}
	if len(extra) == 0 {
		return nil
	}
	return extra
}

func studentFromRecord(record risk.StudentRecord, advisor string, extra datatypes.JSONMap) models.Student {
	var gpa *float64
	if value, ok := risk.GPAValue(record.GPA); ok {
		gpa = &value
	}
	return models.Student{
		StudentID: record.ID,
		Name:      record.Name,
		Major:     record.Major,
		Year:      record.Year,
		GPA:       gpa,
		Credits:   record.Credits,
		Advisor:   advisor,
		Extra:     extra,
	}
}

func rosterChecksum(roster Roster) string {
	hasher := sha256.New()
	for _, record := range roster.Records {
		gpa := "-"
		if value, ok := risk.GPAValue(record.GPA); ok {
			gpa = strconv.FormatFloat(value, 'f', -1, 64)
		}
		fmt.Fprintf(hasher, "%s|%s|%s|%s|%s|%d|%s\n",
			record.ID, record.Name, record.Major, record.Year, gpa, record.Credits, roster.Advisors[record.ID])
	}
	return hex.EncodeToString(hasher.Sum(nil))
}
