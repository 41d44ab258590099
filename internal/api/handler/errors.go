package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"intake-forms/backend/internal/service"
	"intake-forms/backend/pkg/response"
)

// ── 跨模块共用的错误响应 ──

// respondValidation 输入校验失败：400，details 指明字段
// 不是 ValidationError 时返回 false
func respondValidation(c *gin.Context, err error) bool {
	ve, ok := service.AsValidationError(err)
	if !ok {
		return false
	}
	response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", ve.Error())
	return true
}

// respondBindError 请求绑定失败；请求体超限时返回 413
func respondBindError(c *gin.Context, err error) {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
		return
	}
	response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", err.Error())
}

// respondInternal 未预期的错误：记录日志后返回统一的 50000
func respondInternal(c *gin.Context, logger *zap.Logger, err error) {
	_ = c.Error(err)
	logger.Error("请求处理异常",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	response.InternalError(c)
}
