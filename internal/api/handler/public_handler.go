package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"intake-forms/backend/internal/dto"
	"intake-forms/backend/internal/service"
	"intake-forms/backend/pkg/response"
)

// multipartMemory 解析 multipart 时保存在内存中的上限，超出部分写入临时文件
const multipartMemory = 8 << 20

// PublicHandler 公开填写页 HTTP 处理器（无需认证）
type PublicHandler struct {
	formSvc       service.FormService
	submissionSvc service.SubmissionService
	maxFileBytes  int64
	logger        *zap.Logger
}

// NewPublicHandler 创建 PublicHandler
func NewPublicHandler(formSvc service.FormService, submissionSvc service.SubmissionService, maxFileBytes int64, logger *zap.Logger) *PublicHandler {
	return &PublicHandler{
		formSvc:       formSvc,
		submissionSvc: submissionSvc,
		maxFileBytes:  maxFileBytes,
		logger:        logger,
	}
}

// GetForm 按 slug 获取表单
// GET /api/v1/public/forms/:slug
func (h *PublicHandler) GetForm(c *gin.Context) {
	result, err := h.formSvc.GetPublic(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.handlePublicError(c, err)
		return
	}
	response.OK(c, result)
}

// Submit 提交表单（multipart/form-data 或 application/x-www-form-urlencoded）
// POST /api/v1/public/forms/:slug/submissions
func (h *PublicHandler) Submit(c *gin.Context) {
	in, err := h.readSubmission(c.Request)
	if err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.submissionSvc.Submit(c.Request.Context(), c.Param("slug"), in)
	if err != nil {
		h.handlePublicError(c, err)
		return
	}
	response.Created(c, result)
}

// readSubmission 读取普通字段（保留多值）与每个文件字段的第一个文件
func (h *PublicHandler) readSubmission(r *http.Request) (*dto.SubmissionInput, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, err
	}

	in := &dto.SubmissionInput{
		Values: make(map[string][]string, len(r.PostForm)),
		Files:  make(map[string]dto.UploadedFile),
	}
	for k, v := range r.PostForm {
		in.Values[k] = v
	}
	if r.MultipartForm == nil {
		return in, nil
	}
	for field, headers := range r.MultipartForm.File {
		if len(headers) == 0 || headers[0].Size == 0 {
			continue
		}
		file, err := readUpload(headers[0], h.maxFileBytes)
		if err != nil {
			return nil, err
		}
		in.Files[field] = file
	}
	return in, nil
}

func (h *PublicHandler) handlePublicError(c *gin.Context, err error) {
	if respondValidation(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrFormNotFound):
		response.NotFound(c, 12001, "表单不存在")
	case errors.Is(err, service.ErrSubmitConflict):
		response.Conflict(c, 13002, "提交人数较多，请稍后重试")
	case errors.Is(err, service.ErrUniqueIDExhausted):
		response.Conflict(c, 13003, "该表单的提交编号已用完")
	default:
		respondInternal(c, h.logger, err)
	}
}
