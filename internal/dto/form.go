package dto

import "intake-forms/backend/internal/model"

// ── 表单模板 DTO ──

// BackgroundRequest 背景配置
type BackgroundRequest struct {
	Kind  string `json:"kind"  binding:"required,oneof=color image"`
	Color string `json:"color" binding:"omitempty,hexcolor"`
}

// CreateFormRequest 创建表单请求；slug 为空时由标题生成
type CreateFormRequest struct {
	Title      string                  `json:"title"      binding:"required,max=255"`
	Slug       string                  `json:"slug"       binding:"omitempty,max=255"`
	Fields     []model.FieldDescriptor `json:"fields"     binding:"required,min=1,max=200"`
	Background *BackgroundRequest      `json:"background"`
}

// UpdateFormRequest 更新表单请求；slug 创建后不可修改
type UpdateFormRequest struct {
	Title      *string                 `json:"title"      binding:"omitempty,max=255"`
	Fields     []model.FieldDescriptor `json:"fields"     binding:"omitempty,min=1,max=200"`
	Background *BackgroundRequest      `json:"background"`
}

// BackgroundResponse 背景配置响应
type BackgroundResponse struct {
	Kind     string `json:"kind"`
	Color    string `json:"color,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// FormResponse 表单模板响应
type FormResponse struct {
	ID              string                  `json:"id"`
	Title           string                  `json:"title"`
	Slug            string                  `json:"slug"`
	PublicPath      string                  `json:"public_path"`
	Fields          []model.FieldDescriptor `json:"fields"`
	LogoURL         string                  `json:"logo_url,omitempty"`
	Background      *BackgroundResponse     `json:"background,omitempty"`
	SubmissionCount int64                   `json:"submission_count"`
	CreatedAt       string                  `json:"created_at"`
	UpdatedAt       string                  `json:"updated_at"`
}

// PublicFormResponse 公开填写页所需的表单信息
type PublicFormResponse struct {
	Title      string                  `json:"title"`
	Slug       string                  `json:"slug"`
	Fields     []model.FieldDescriptor `json:"fields"`
	LogoURL    string                  `json:"logo_url,omitempty"`
	Background *BackgroundResponse     `json:"background,omitempty"`
}

// DashboardResponse 管理后台首页
type DashboardResponse struct {
	Forms            []FormResponse `json:"forms"`
	TotalForms       int            `json:"total_forms"`
	TotalSubmissions int64          `json:"total_submissions"`
}
