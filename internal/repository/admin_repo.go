package repository

import (
	"context"

	"gorm.io/gorm"

	"intake-forms/backend/internal/model"
)

// AdminRepository 管理员数据访问接口
type AdminRepository interface {
	Create(ctx context.Context, admin *model.Admin) error
	GetByID(ctx context.Context, id string) (*model.Admin, error)
	GetByUsername(ctx context.Context, username string) (*model.Admin, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

type adminRepo struct {
	db *gorm.DB
}

// NewAdminRepo 创建 AdminRepository 实例
func NewAdminRepo(db *gorm.DB) AdminRepository {
	return &adminRepo{db: db}
}

func (r *adminRepo) Create(ctx context.Context, admin *model.Admin) error {
	return r.db.WithContext(ctx).Create(admin).Error
}

func (r *adminRepo) GetByID(ctx context.Context, id string) (*model.Admin, error) {
	var admin model.Admin
	err := r.db.WithContext(ctx).
		Where("admin_id = ?", id).
		First(&admin).Error
	if err != nil {
		return nil, err
	}
	return &admin, nil
}

func (r *adminRepo) GetByUsername(ctx context.Context, username string) (*model.Admin, error) {
	var admin model.Admin
	err := r.db.WithContext(ctx).
		Where("username = ?", username).
		First(&admin).Error
	if err != nil {
		return nil, err
	}
	return &admin, nil
}

func (r *adminRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.db.WithContext(ctx).
		Model(&model.Admin{}).
		Where("admin_id = ?", id).
		Updates(map[string]interface{}{
			"password_hash": passwordHash,
			"updated_at":    gorm.Expr("CURRENT_TIMESTAMP"),
		}).Error
}
