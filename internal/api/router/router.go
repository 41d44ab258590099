package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"intake-forms/backend/config"
	"intake-forms/backend/internal/api/handler"
	"intake-forms/backend/internal/api/middleware"
	"intake-forms/backend/pkg/jwt"
	"intake-forms/backend/pkg/redis"
	"intake-forms/backend/pkg/storage"
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 为 nil 时关闭 Token 黑名单与限流
func Setup(
	cfg *config.Config,
	h *handler.Handler,
	jwtMgr *jwt.Manager,
	rdb *redis.Client,
	store storage.Store,
	db *gorm.DB,
	logger *zap.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.MaxMultipartMemory = 8 << 20

	// 避免把 nil 指针包装成非 nil 接口
	var (
		blacklist middleware.TokenChecker
		limiter   middleware.RateLimiter
	)
	if rdb != nil {
		blacklist = rdb
		limiter = rdb
	}

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		dbStatus := "ok"
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status = http.StatusServiceUnavailable
			dbStatus = "unavailable"
		}
		c.JSON(status, gin.H{"status": dbStatus, "redis": rdb != nil})
	})

	// ── 本地存储的上传文件 ──
	if local, ok := store.(*storage.LocalStore); ok {
		r.Static(cfg.Storage.Local.URLPrefix, local.Root())
	}

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		v1.POST("/auth/login",
			middleware.RateLimit(limiter, cfg.RateLimit.SubmitLimit, cfg.RateLimit.SubmitWindow, logger),
			h.Auth.Login)

		// 公开填写页
		public := v1.Group("/public/forms/:slug")
		{
			public.GET("", h.Public.GetForm)
			public.POST("/submissions",
				middleware.RateLimit(limiter, cfg.RateLimit.SubmitLimit, cfg.RateLimit.SubmitWindow, logger),
				h.Public.Submit)
		}

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, blacklist))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.Me)

			// 表单模板
			forms := authorized.Group("/forms")
			{
				forms.GET("", h.Form.Dashboard)
				forms.POST("", h.Form.Create)
				forms.GET("/:id", h.Form.Get)
				forms.PUT("/:id", h.Form.Update)
				forms.DELETE("/:id", h.Form.Delete)
				forms.POST("/:id/duplicate", h.Form.Duplicate)
				forms.POST("/:id/logo", h.Form.UploadLogo)
				forms.POST("/:id/background", h.Form.UploadBackground)

				// 提交列表与导出
				forms.GET("/:id/submissions", h.Submission.List)
				forms.GET("/:id/export/xlsx", h.Export.ExportSpreadsheet)
				forms.GET("/:id/export/zip", h.Export.ExportArchive)
			}

			// 单条提交
			submissions := authorized.Group("/submissions")
			{
				submissions.GET("/:id", h.Submission.Get)
				submissions.DELETE("/:id", h.Submission.Delete)
			}
		}
	}

	return r
}
