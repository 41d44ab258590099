package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"intake-forms/backend/internal/model"
	pkgerrors "intake-forms/backend/pkg/errors"
)

// ════════════════════════════════════════
// FormTemplate
// ════════════════════════════════════════

func TestFormTemplateRepo_CreateDuplicateSlug(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	admin := seedAdmin(t, repo, "admin")
	seedForm(t, repo, admin.AdminID, "annual-picnic")

	dup := &model.FormTemplate{AdminID: admin.AdminID, Title: "x", Slug: "annual-picnic"}
	err := repo.FormTemplate.Create(ctx, dup)
	assert.ErrorIs(t, err, pkgerrors.ErrSlugTaken)

	exists, err := repo.FormTemplate.SlugExists(ctx, "annual-picnic")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestFormTemplateRepo_GetByIDForAdmin_Scoped(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	owner := seedAdmin(t, repo, "owner")
	other := seedAdmin(t, repo, "other")
	form := seedForm(t, repo, owner.AdminID, "f1")

	got, err := repo.FormTemplate.GetByIDForAdmin(ctx, form.FormID, owner.AdminID)
	require.NoError(t, err)
	assert.Equal(t, "f1", got.Slug)
	require.Len(t, got.Fields, 2)
	assert.Equal(t, model.FieldTypePhotoCroppable, got.Fields[1].Type)

	_, err = repo.FormTemplate.GetByIDForAdmin(ctx, form.FormID, other.AdminID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestFormTemplateRepo_UpdateKeepsSlug(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	admin := seedAdmin(t, repo, "admin")
	form := seedForm(t, repo, admin.AdminID, "keep-me")

	form.Title = "Renamed"
	form.Slug = "changed"
	require.NoError(t, repo.FormTemplate.Update(ctx, form))

	got, err := repo.FormTemplate.GetByID(ctx, form.FormID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, "keep-me", got.Slug)
}

func TestFormTemplateRepo_DeleteCascades(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	admin := seedAdmin(t, repo, "admin")
	form := seedForm(t, repo, admin.AdminID, "f1")
	seedSubmission(t, repo, form.FormID, 1234, time.Now())

	require.NoError(t, repo.FormTemplate.Delete(ctx, form.FormID))

	count, err := repo.Submission.CountByForm(ctx, form.FormID)
	require.NoError(t, err)
	assert.Zero(t, count)

	err = repo.FormTemplate.Delete(ctx, form.FormID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

// ════════════════════════════════════════
// Submission
// ════════════════════════════════════════

func TestSubmissionRepo_CreateConflict(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	admin := seedAdmin(t, repo, "admin")
	f1 := seedForm(t, repo, admin.AdminID, "f1")
	f2 := seedForm(t, repo, admin.AdminID, "f2")
	seedSubmission(t, repo, f1.FormID, 4321, time.Now())

	err := repo.Submission.Create(ctx, &model.Submission{FormID: f1.FormID, UniqueID: 4321, Data: model.Answers{}})
	assert.ErrorIs(t, err, pkgerrors.ErrUniqueIDConflict)

	// 不同表单可以复用同一编号
	seedSubmission(t, repo, f2.FormID, 4321, time.Now())

	exists, err := repo.Submission.UniqueIDExists(ctx, f1.FormID, 4321)
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = repo.Submission.UniqueIDExists(ctx, f1.FormID, 4322)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSubmissionRepo_ListByFormOrderedBySubmittedAt(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	admin := seedAdmin(t, repo, "admin")
	form := seedForm(t, repo, admin.AdminID, "f1")
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	seedSubmission(t, repo, form.FormID, 3000, base.Add(2*time.Minute))
	seedSubmission(t, repo, form.FormID, 1000, base)
	seedSubmission(t, repo, form.FormID, 2000, base.Add(time.Minute))

	subs, err := repo.Submission.ListByForm(ctx, form.FormID)
	require.NoError(t, err)
	require.Len(t, subs, 3)
	assert.Equal(t, []int{1000, 2000, 3000}, []int{subs[0].UniqueID, subs[1].UniqueID, subs[2].UniqueID})

	name, ok := subs[0].Data.Get("Full Name")
	require.True(t, ok)
	assert.Equal(t, "student", name.Text)

	ids, err := repo.Submission.ListUniqueIDs(ctx, form.FormID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1000, 2000, 3000}, ids)
}

func TestSubmissionRepo_GetByIDForAdmin_Scoped(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	owner := seedAdmin(t, repo, "owner")
	other := seedAdmin(t, repo, "other")
	form := seedForm(t, repo, owner.AdminID, "f1")
	sub := seedSubmission(t, repo, form.FormID, 1500, time.Now())

	got, err := repo.Submission.GetByIDForAdmin(ctx, sub.SubmissionID, owner.AdminID)
	require.NoError(t, err)
	assert.Equal(t, 1500, got.UniqueID)

	_, err = repo.Submission.GetByIDForAdmin(ctx, sub.SubmissionID, other.AdminID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSubmissionRepo_CountByForms(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	admin := seedAdmin(t, repo, "admin")
	f1 := seedForm(t, repo, admin.AdminID, "f1")
	f2 := seedForm(t, repo, admin.AdminID, "f2")
	seedSubmission(t, repo, f1.FormID, 1001, time.Now())
	seedSubmission(t, repo, f1.FormID, 1002, time.Now())

	counts, err := repo.Submission.CountByForms(ctx, []string{f1.FormID, f2.FormID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[f1.FormID])
	assert.Equal(t, int64(0), counts[f2.FormID])
}

func TestSubmissionRepo_Delete(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	admin := seedAdmin(t, repo, "admin")
	form := seedForm(t, repo, admin.AdminID, "f1")
	sub := seedSubmission(t, repo, form.FormID, 1001, time.Now())

	require.NoError(t, repo.Submission.Delete(ctx, sub.SubmissionID))
	assert.ErrorIs(t, repo.Submission.Delete(ctx, sub.SubmissionID), gorm.ErrRecordNotFound)
}

// ════════════════════════════════════════
// Admin
// ════════════════════════════════════════

func TestAdminRepo_GetByUsername(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	admin := seedAdmin(t, repo, "root")

	got, err := repo.Admin.GetByUsername(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, admin.AdminID, got.AdminID)

	require.NoError(t, repo.Admin.UpdatePassword(ctx, admin.AdminID, "new-hash"))
	got, err = repo.Admin.GetByID(ctx, admin.AdminID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.PasswordHash)

	_, err = repo.Admin.GetByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
