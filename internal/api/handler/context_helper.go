package handler

import (
	"github.com/gin-gonic/gin"

	"intake-forms/backend/internal/api/middleware"
	"intake-forms/backend/pkg/jwt"
	"intake-forms/backend/pkg/response"
)

// MustGetAdminID 从 Gin 上下文中安全提取 admin_id。
// 如果 JWT 中间件未正确注入 admin_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetAdminID(c *gin.Context) (string, bool) {
	v, exists := c.Get(middleware.ContextAdminID)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// getClaims 取出 JWT 中间件解析的声明，不存在时返回 nil
func getClaims(c *gin.Context) *jwt.Claims {
	v, exists := c.Get(middleware.ContextClaims)
	if !exists {
		return nil
	}
	claims, _ := v.(*jwt.Claims)
	return claims
}
