package service

import (
	"math"

	"github.com/noah-isme/gema-risk-api/internal/dto"
)

// Remembered list views.
const (
	viewStudents = "students"
	viewAlerts   = "alerts"
	viewReports  = "reports"
)

// pageWindow clamps the requested page into [1, total_pages] and returns the
// slice bounds for it. A zero page resumes the session's last page for view.
func pageWindow(session *Session, view string, total, page, pageSize int) (int, int, dto.PaginationMeta) {
	if pageSize <= 0 {
		pageSize = dto.DefaultPageSize
	}
	if page <= 0 && session != nil {
		page = session.Page(view)
	}

	totalPages := 1
	if total > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(pageSize)))
	}
	page = min(max(page, 1), totalPages)

	if session != nil {
		session.RememberPage(view, page)
	}

	start := min((page-1)*pageSize, total)
	end := min(start+pageSize, total)
	return start, end, dto.PaginationMeta{
		Page:       page,
		PageSize:   pageSize,
		TotalItems: int64(total),
		TotalPages: totalPages,
	}
}
