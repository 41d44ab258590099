package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"intake-forms/backend/internal/dto"
	"intake-forms/backend/internal/service"
	"intake-forms/backend/pkg/response"
)

// FormHandler 表单模板管理 HTTP 处理器
type FormHandler struct {
	formSvc      service.FormService
	maxFileBytes int64
	logger       *zap.Logger
}

// NewFormHandler 创建 FormHandler
func NewFormHandler(formSvc service.FormService, maxFileBytes int64, logger *zap.Logger) *FormHandler {
	return &FormHandler{formSvc: formSvc, maxFileBytes: maxFileBytes, logger: logger}
}

// Dashboard 当前管理员的表单列表与统计
// GET /api/v1/forms
func (h *FormHandler) Dashboard(c *gin.Context) {
	adminID, ok := MustGetAdminID(c)
	if !ok {
		return
	}
	result, err := h.formSvc.Dashboard(c.Request.Context(), adminID)
	if err != nil {
		h.handleFormError(c, err)
		return
	}
	response.OK(c, result)
}

// Create 创建表单
// POST /api/v1/forms
func (h *FormHandler) Create(c *gin.Context) {
	adminID, ok := MustGetAdminID(c)
	if !ok {
		return
	}
	var req dto.CreateFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.formSvc.Create(c.Request.Context(), adminID, &req)
	if err != nil {
		h.handleFormError(c, err)
		return
	}
	response.Created(c, result)
}

// Get 表单详情
// GET /api/v1/forms/:id
func (h *FormHandler) Get(c *gin.Context) {
	adminID, ok := MustGetAdminID(c)
	if !ok {
		return
	}
	result, err := h.formSvc.Get(c.Request.Context(), adminID, c.Param("id"))
	if err != nil {
		h.handleFormError(c, err)
		return
	}
	response.OK(c, result)
}

// Update 修改表单
// PUT /api/v1/forms/:id
func (h *FormHandler) Update(c *gin.Context) {
	adminID, ok := MustGetAdminID(c)
	if !ok {
		return
	}
	var req dto.UpdateFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.formSvc.Update(c.Request.Context(), adminID, c.Param("id"), &req)
	if err != nil {
		h.handleFormError(c, err)
		return
	}
	response.OK(c, result)
}

// Duplicate 复制表单
// POST /api/v1/forms/:id/duplicate
func (h *FormHandler) Duplicate(c *gin.Context) {
	adminID, ok := MustGetAdminID(c)
	if !ok {
		return
	}
	result, err := h.formSvc.Duplicate(c.Request.Context(), adminID, c.Param("id"))
	if err != nil {
		h.handleFormError(c, err)
		return
	}
	response.Created(c, result)
}

// Delete 删除表单及全部提交
// DELETE /api/v1/forms/:id
func (h *FormHandler) Delete(c *gin.Context) {
	adminID, ok := MustGetAdminID(c)
	if !ok {
		return
	}
	if err := h.formSvc.Delete(c.Request.Context(), adminID, c.Param("id")); err != nil {
		h.handleFormError(c, err)
		return
	}
	response.OK(c, nil)
}

// UploadLogo 上传 Logo（multipart 字段 file）
// POST /api/v1/forms/:id/logo
func (h *FormHandler) UploadLogo(c *gin.Context) {
	h.uploadImage(c, h.formSvc.UploadLogo)
}

// UploadBackground 上传背景图（multipart 字段 file）
// POST /api/v1/forms/:id/background
func (h *FormHandler) UploadBackground(c *gin.Context) {
	h.uploadImage(c, h.formSvc.UploadBackgroundImage)
}

type uploadFunc func(ctx context.Context, adminID, formID string, file *dto.UploadedFile) (*dto.FormResponse, error)

func (h *FormHandler) uploadImage(c *gin.Context, upload uploadFunc) {
	adminID, ok := MustGetAdminID(c)
	if !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		respondBindError(c, err)
		return
	}
	file, err := readUpload(fh, h.maxFileBytes)
	if err != nil {
		respondBindError(c, err)
		return
	}

	result, err := upload(c.Request.Context(), adminID, c.Param("id"), &file)
	if err != nil {
		h.handleFormError(c, err)
		return
	}
	response.OK(c, result)
}

func (h *FormHandler) handleFormError(c *gin.Context, err error) {
	if respondValidation(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrFormNotFound):
		response.NotFound(c, 12001, "表单不存在")
	case errors.Is(err, service.ErrSlugUnavailable):
		response.Conflict(c, 12002, "表单链接已被占用")
	default:
		respondInternal(c, h.logger, err)
	}
}
