package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-risk-api/internal/dto"
	"github.com/noah-isme/gema-risk-api/internal/risk"
)

var reportHeader = []string{"Student ID", "Name", "Risk", "Summary"}

// ReportService renders the per-student risk report.
type ReportService interface {
	List(ctx context.Context, session *Session, req dto.ReportRequest) ([]dto.ReportRow, dto.PaginationMeta, error)
	Export(ctx context.Context, req dto.ReportRequest) ([]byte, error)
}

type reportService struct {
	evaluations EvaluationService
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewReportService constructs the report service.
func NewReportService(evaluations EvaluationService, validate *validator.Validate, logger zerolog.Logger) ReportService {
	return &reportService{
		evaluations: evaluations,
		validator:   validate,
		logger:      logger.With().Str("component", "report_service").Logger(),
	}
}

func (s *reportService) List(ctx context.Context, session *Session, req dto.ReportRequest) ([]dto.ReportRow, dto.PaginationMeta, error) {
	rows, err := s.rows(ctx, req)
	if err != nil {
		return nil, dto.PaginationMeta{}, err
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = dto.ReportPageSize
	}
	start, end, meta := pageWindow(session, viewReports, len(rows), req.Page, pageSize)
	return rows[start:end], meta, nil
}

// Export renders every matching row as CSV, ignoring pagination.
func (s *reportService) Export(ctx context.Context, req dto.ReportRequest) ([]byte, error) {
	rows, err := s.rows(ctx, req)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(reportHeader); err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := writer.Write([]string{row.StudentID, row.Name, string(row.Risk), row.Summary}); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}

	s.logger.Info().Int("rows", len(rows)).Msg("risk report exported")
	return buf.Bytes(), nil
}

// rows reports the formula label, not the escalated display label.
func (s *reportService) rows(ctx context.Context, req dto.ReportRequest) ([]dto.ReportRow, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	cohort, err := s.evaluations.Cohort(ctx)
	if err != nil {
		return nil, err
	}

	label, filtered := riskFilter(req.Risk)
	query := strings.ToLower(strings.TrimSpace(req.Search))

	rows := make([]dto.ReportRow, 0, len(cohort.Students))
	for _, student := range cohort.Students {
		row := dto.ReportRow{
			StudentID: student.Record.ID,
			Name:      student.Record.Name,
			Risk:      student.Assessment.Label,
			Summary:   risk.ReportLine(student),
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(row.StudentID), query) &&
			!strings.Contains(strings.ToLower(row.Name), query) {
			continue
		}
		if filtered && row.Risk != label {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}
