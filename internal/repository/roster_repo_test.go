package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-risk-api/internal/models"
)

func floatPtr(v float64) *float64 {
	return &v
}

func TestRosterRepositoryUpsertAndAll(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRosterRepository(db)
	ctx := context.Background()

	rows, err := repo.UpsertBatch(ctx, []models.Student{
		{StudentID: "S001", Name: "John Smith", GPA: floatPtr(2.1), Credits: 78},
		{StudentID: "S002", Name: "Emily Davis", GPA: floatPtr(2.4), Credits: 65},
		{StudentID: "X900", Name: "No Grades", Extra: datatypes.JSONMap{"campus": "north"}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(3), rows)

	_, err = repo.UpsertBatch(ctx, []models.Student{
		{StudentID: "S001", Name: "John Smith", GPA: floatPtr(1.8), Credits: 80, Advisor: "Dr. Reyes"},
	})
	require.NoError(t, err)

	total, err := repo.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), total)

	all, err := repo.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "S001", all[0].StudentID)
	require.InDelta(t, 1.8, *all[0].GPA, 1e-9)
	require.Equal(t, 80, all[0].Credits)
	require.Equal(t, "Dr. Reyes", all[0].Advisor)
	require.Nil(t, all[2].GPA)
	require.Equal(t, "north", all[2].Extra["campus"])
}

func TestRosterRepositoryEmpty(t *testing.T) {
	repo := NewRosterRepository(setupTestDB(t))
	ctx := context.Background()

	total, err := repo.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, total)

	rows, err := repo.UpsertBatch(ctx, nil)
	require.NoError(t, err)
	require.Zero(t, rows)

	all, err := repo.All(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Student{}))
	return db
}
