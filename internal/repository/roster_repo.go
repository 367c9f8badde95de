package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-risk-api/internal/models"
)

// RosterRepository persists the student roster the engine evaluates.
type RosterRepository interface {
	All(ctx context.Context) ([]models.Student, error)
	Count(ctx context.Context) (int64, error)
	UpsertBatch(ctx context.Context, students []models.Student) (int64, error)
}

type rosterRepository struct {
	db *gorm.DB
}

// NewRosterRepository constructs the roster repository.
func NewRosterRepository(db *gorm.DB) RosterRepository {
	return &rosterRepository{db: db}
}

// All returns the full roster in insertion order.
func (r *rosterRepository) All(ctx context.Context) ([]models.Student, error) {
	var students []models.Student
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&students).Error; err != nil {
		return nil, err
	}
	return students, nil
}

func (r *rosterRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Student{}).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// UpsertBatch inserts students, replacing the editable fields of existing student ids.
func (r *rosterRepository) UpsertBatch(ctx context.Context, students []models.Student) (int64, error) {
	if len(students) == 0 {
		return 0, nil
	}

	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "major", "year", "gpa", "credits", "advisor", "extra", "updated_at"}),
	})

	result := tx.Create(&students)
	return result.RowsAffected, result.Error
}
