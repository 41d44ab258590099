package model

import "gorm.io/gorm"

// Admin 管理员，对应 admins 表
type Admin struct {
	AdminID      string `gorm:"type:uuid;primaryKey"                   json:"admin_id"`
	Username     string `gorm:"type:varchar(150);not null;uniqueIndex" json:"username"`
	PasswordHash string `gorm:"type:varchar(255);not null"             json:"-"`
	BaseModel
}

// TableName 指定表名
func (Admin) TableName() string { return "admins" }

// BeforeCreate 生成主键
func (a *Admin) BeforeCreate(*gorm.DB) error {
	ensureID(&a.AdminID)
	return nil
}
