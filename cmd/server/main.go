package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"intake-forms/backend/config"
	"intake-forms/backend/internal/api/handler"
	"intake-forms/backend/internal/api/router"
	"intake-forms/backend/internal/repository"
	"intake-forms/backend/internal/service"
	"intake-forms/backend/pkg/database"
	"intake-forms/backend/pkg/jwt"
	applogger "intake-forms/backend/pkg/logger"
	"intake-forms/backend/pkg/redis"
	"intake-forms/backend/pkg/storage"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "配置文件路径（默认查找 ./config/config.yaml）")
	envFile := pflag.String("env-file", ".env", "环境变量文件，不存在时忽略")
	noRedis := pflag.Bool("no-redis", false, "不连接 Redis（关闭限流与 Token 黑名单）")
	pflag.Parse()

	// 0. 加载 .env（已存在的环境变量优先）
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "加载 %s 失败: %v\n", *envFile, err)
		os.Exit(1)
	}

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("storage", cfg.Storage.Driver),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, applogger.GormLevel(cfg.Log.Level), logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：连接失败时降级运行，不中断启动）
	var rdb *redis.Client
	if !*noRedis {
		rdb, err = redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis 连接失败，限流与 Token 黑名单功能将不可用", zap.Error(err))
			rdb = nil
		}
	}

	// 5. 初始化文件存储
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := storage.New(initCtx, cfg, logger)
	initCancel()
	if err != nil {
		logger.Fatal("初始化文件存储失败", zap.Error(err))
	}

	// 6. 初始化 JWT 管理器
	jwtMgr := jwt.NewManager(&cfg.Auth)

	// 7. 依赖注入: Repository → Service → Handler
	var blacklist service.TokenBlacklist
	if rdb != nil {
		blacklist = rdb
	}
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, store, jwtMgr, blacklist, logger)
	h := handler.NewHandler(cfg, svc, logger)

	// 8. 初始化路由
	engine := router.Setup(cfg, h, jwtMgr, rdb, store, db, logger)

	// 9. 启动 HTTP 服务器（优雅关闭）
	// 导出与上传可能较慢，写超时放宽
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 10. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	// 关闭数据库连接
	if err := sqlDB.Close(); err != nil {
		logger.Warn("关闭数据库连接失败", zap.Error(err))
	}

	// 关闭 Redis 连接
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
