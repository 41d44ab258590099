// createadmin 根据环境变量 ADMIN_USERNAME / ADMIN_PASSWORD 创建管理员账号。
// 账号已存在时跳过；--reset-password 覆盖已有账号的密码。
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"intake-forms/backend/config"
	"intake-forms/backend/internal/repository"
	"intake-forms/backend/internal/service"
	"intake-forms/backend/pkg/database"
	"intake-forms/backend/pkg/jwt"
	applogger "intake-forms/backend/pkg/logger"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "配置文件路径")
	envFile := pflag.String("env-file", ".env", "环境变量文件，不存在时忽略")
	resetPassword := pflag.Bool("reset-password", false, "账号已存在时重置密码")
	pflag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "加载 %s 失败: %v\n", *envFile, err)
		os.Exit(1)
	}

	username := os.Getenv("ADMIN_USERNAME")
	password := os.Getenv("ADMIN_PASSWORD")
	if username == "" || password == "" {
		fmt.Fprintln(os.Stderr, "ADMIN_USERNAME 或 ADMIN_PASSWORD 未设置")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := database.NewDB(&cfg.Database, applogger.GormLevel(cfg.Log.Level), logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	authSvc := service.NewAuthService(repository.NewRepository(db), jwt.NewManager(&cfg.Auth), nil, logger)
	created, err := authSvc.EnsureAdmin(ctx, username, password, *resetPassword)
	if err != nil {
		logger.Fatal("创建管理员失败", zap.String("username", username), zap.Error(err))
	}

	switch {
	case created:
		fmt.Printf("管理员 %s 创建成功\n", username)
	case *resetPassword:
		fmt.Printf("管理员 %s 已存在，密码已重置\n", username)
	default:
		fmt.Printf("管理员 %s 已存在，跳过创建\n", username)
	}
}
