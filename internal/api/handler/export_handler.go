package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"intake-forms/backend/internal/dto"
	"intake-forms/backend/internal/query"
	"intake-forms/backend/internal/service"
	"intake-forms/backend/pkg/response"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	zipContentType  = "application/zip"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
	logger    *zap.Logger
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService, logger *zap.Logger) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc, logger: logger}
}

// ExportSpreadsheet 按当前筛选条件导出 Excel
// GET /api/v1/forms/:id/export/xlsx?q=&class_filter=&sort_by=&order=
func (h *ExportHandler) ExportSpreadsheet(c *gin.Context) {
	adminID, spec, ok := h.bind(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportSpreadsheet(c.Request.Context(), adminID, c.Param("id"), spec)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	setAttachment(c, filename)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// ExportArchive 按当前筛选条件打包上传文件
// GET /api/v1/forms/:id/export/zip?q=&class_filter=&sort_by=&order=
func (h *ExportHandler) ExportArchive(c *gin.Context) {
	adminID, spec, ok := h.bind(c)
	if !ok {
		return
	}

	result, err := h.exportSvc.ExportArchive(c.Request.Context(), adminID, c.Param("id"), spec)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	setAttachment(c, result.Filename)
	c.Header("X-Skipped-Files", strconv.Itoa(len(result.Skipped)))
	c.Data(http.StatusOK, zipContentType, result.Buffer.Bytes())
}

func (h *ExportHandler) bind(c *gin.Context) (string, query.Spec, bool) {
	adminID, ok := MustGetAdminID(c)
	if !ok {
		return "", query.Spec{}, false
	}
	var req dto.SubmissionQueryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBindError(c, err)
		return "", query.Spec{}, false
	}
	return adminID, query.Spec{
		Text:      req.Q,
		Category:  req.ClassFilter,
		SortKey:   req.SortBy,
		Direction: query.ParseDirection(req.Order),
	}, true
}

// setAttachment 设置下载响应头（RFC 5987 编码文件名）
func setAttachment(c *gin.Context, filename string) {
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(filename))
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExportEmpty):
		// 不是错误：返回 JSON 提示而不是文件
		response.OK(c, dto.ExportEmptyResponse{Empty: true, Message: err.Error()})
	case errors.Is(err, service.ErrFormNotFound):
		response.NotFound(c, 12001, "表单不存在")
	default:
		respondInternal(c, h.logger, err)
	}
}
