package dto

// ── 认证模块 DTO ──

// LoginRequest 管理员登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required,max=150"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse 登录成功响应
type TokenResponse struct {
	AccessToken string        `json:"access_token"`
	ExpiresIn   int           `json:"expires_in"` // 有效期（秒）
	Admin       AdminResponse `json:"admin"`
}

// AdminResponse 管理员信息（脱敏）
type AdminResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	CreatedAt string `json:"created_at,omitempty"`
}
