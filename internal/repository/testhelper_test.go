package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"intake-forms/backend/internal/model"
	"intake-forms/backend/internal/repository"
)

// newTestRepo 基于内存 SQLite 的 Repository（单连接，保证同一个内存库）
func newTestRepo(t *testing.T) (*repository.Repository, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&model.Admin{}, &model.FormTemplate{}, &model.Submission{}))
	return repository.NewRepository(db), db
}

func seedAdmin(t *testing.T, repo *repository.Repository, username string) *model.Admin {
	t.Helper()
	admin := &model.Admin{Username: username, PasswordHash: "x"}
	require.NoError(t, repo.Admin.Create(context.Background(), admin))
	return admin
}

func seedForm(t *testing.T, repo *repository.Repository, adminID, slug string) *model.FormTemplate {
	t.Helper()
	form := &model.FormTemplate{
		AdminID: adminID,
		Title:   slug,
		Slug:    slug,
		Fields: []model.FieldDescriptor{
			{Name: "Full Name", Type: model.FieldTypeText, Required: true},
			{Name: "Photo", Type: model.FieldTypePhotoCroppable},
		},
	}
	require.NoError(t, repo.FormTemplate.Create(context.Background(), form))
	return form
}

func seedSubmission(t *testing.T, repo *repository.Repository, formID string, uid int, at time.Time) *model.Submission {
	t.Helper()
	var data model.Answers
	data.Set("Full Name", model.TextAnswer("student"))
	sub := &model.Submission{FormID: formID, UniqueID: uid, Data: data, SubmittedAt: at}
	require.NoError(t, repo.Submission.Create(context.Background(), sub))
	return sub
}
