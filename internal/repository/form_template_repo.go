package repository

import (
	"context"

	"gorm.io/gorm"

	"intake-forms/backend/internal/model"
	pkgerrors "intake-forms/backend/pkg/errors"
)

// FormTemplateRepository 表单模板数据访问接口
type FormTemplateRepository interface {
	// Create 插入模板；slug 唯一约束冲突返回 pkgerrors.ErrSlugTaken
	Create(ctx context.Context, form *model.FormTemplate) error
	GetByID(ctx context.Context, id string) (*model.FormTemplate, error)
	// GetByIDForAdmin 仅返回属于 adminID 的模板，否则 gorm.ErrRecordNotFound
	GetByIDForAdmin(ctx context.Context, id, adminID string) (*model.FormTemplate, error)
	GetBySlug(ctx context.Context, slug string) (*model.FormTemplate, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	// ListByAdmin 按创建时间倒序
	ListByAdmin(ctx context.Context, adminID string) ([]model.FormTemplate, error)
	Update(ctx context.Context, form *model.FormTemplate) error
	// Delete 在事务内删除模板及其全部提交
	Delete(ctx context.Context, id string) error
}

type formTemplateRepo struct {
	db *gorm.DB
}

// NewFormTemplateRepo 创建 FormTemplateRepository 实例
func NewFormTemplateRepo(db *gorm.DB) FormTemplateRepository {
	return &formTemplateRepo{db: db}
}

func (r *formTemplateRepo) Create(ctx context.Context, form *model.FormTemplate) error {
	err := r.db.WithContext(ctx).Omit("Submissions").Create(form).Error
	if isDuplicate(err) {
		return pkgerrors.ErrSlugTaken
	}
	return err
}

func (r *formTemplateRepo) GetByID(ctx context.Context, id string) (*model.FormTemplate, error) {
	var form model.FormTemplate
	err := r.db.WithContext(ctx).
		Where("form_id = ?", id).
		First(&form).Error
	if err != nil {
		return nil, err
	}
	return &form, nil
}

func (r *formTemplateRepo) GetByIDForAdmin(ctx context.Context, id, adminID string) (*model.FormTemplate, error) {
	var form model.FormTemplate
	err := r.db.WithContext(ctx).
		Where("form_id = ? AND admin_id = ?", id, adminID).
		First(&form).Error
	if err != nil {
		return nil, err
	}
	return &form, nil
}

func (r *formTemplateRepo) GetBySlug(ctx context.Context, slug string) (*model.FormTemplate, error) {
	var form model.FormTemplate
	err := r.db.WithContext(ctx).
		Where("slug = ?", slug).
		First(&form).Error
	if err != nil {
		return nil, err
	}
	return &form, nil
}

func (r *formTemplateRepo) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.FormTemplate{}).
		Where("slug = ?", slug).
		Count(&count).Error
	return count > 0, err
}

func (r *formTemplateRepo) ListByAdmin(ctx context.Context, adminID string) ([]model.FormTemplate, error) {
	var forms []model.FormTemplate
	err := r.db.WithContext(ctx).
		Where("admin_id = ?", adminID).
		Order("created_at DESC, form_id ASC").
		Find(&forms).Error
	return forms, err
}

// Update 只更新可编辑列，slug 与归属不在其中
func (r *formTemplateRepo) Update(ctx context.Context, form *model.FormTemplate) error {
	return r.db.WithContext(ctx).
		Model(form).
		Select("title", "fields", "styling", "updated_at", "updated_by").
		Updates(form).Error
}

func (r *formTemplateRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("form_id = ?", id).Delete(&model.Submission{}).Error; err != nil {
			return err
		}
		res := tx.Where("form_id = ?", id).Delete(&model.FormTemplate{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
