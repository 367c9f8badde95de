package models

import (
	"time"

	"gorm.io/datatypes"
)

// Student is one roster row: the caller supplied record the risk engine evaluates.
type Student struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	StudentID string            `gorm:"size:64;uniqueIndex;not null" json:"student_id"`
	Name      string            `gorm:"size:255" json:"name"`
	Major     string            `gorm:"size:128" json:"major"`
	Year      string            `gorm:"size:64" json:"year"`
	GPA       *float64          `json:"gpa"`
	Credits   int               `gorm:"not null;default:0" json:"credits"`
	Advisor   string            `gorm:"size:255" json:"advisor"`
	Extra     datatypes.JSONMap `gorm:"type:json" json:"extra,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// TableName pins the roster table name.
func (Student) TableName() string {
	return "roster_students"
}
