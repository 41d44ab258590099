package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Query     QueryConfig     `mapstructure:"query"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int        `mapstructure:"port"`
	BaseURL      string     `mapstructure:"base_url"`
	MaxBodyBytes int64      `mapstructure:"max_body_bytes"`
	CORS         CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置（限流与 Token 黑名单）
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 认证配置
type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
	Issuer         string        `mapstructure:"issuer"`
}

// StorageConfig 文件存储配置
// driver: local | minio
type StorageConfig struct {
	Driver string             `mapstructure:"driver"`
	Local  LocalStorageConfig `mapstructure:"local"`
	Minio  MinioStorageConfig `mapstructure:"minio"`
}

// LocalStorageConfig 本地磁盘存储
type LocalStorageConfig struct {
	Root      string `mapstructure:"root"`
	URLPrefix string `mapstructure:"url_prefix"`
}

// MinioStorageConfig MinIO / S3 兼容对象存储
type MinioStorageConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	PublicURL string `mapstructure:"public_url"` // 为空时按 endpoint/bucket 拼接
}

// UploadConfig 上传文件限制
type UploadConfig struct {
	MaxFileBytes     int64 `mapstructure:"max_file_bytes"`
	PhotoMaxEdge     int   `mapstructure:"photo_max_edge"` // 0 表示不缩放
	PhotoJPEGQuality int   `mapstructure:"photo_jpeg_quality"`
}

// QueryConfig 提交列表查询配置
type QueryConfig struct {
	SortableFields  []string `mapstructure:"sortable_fields"`
	DefaultPageSize int      `mapstructure:"default_page_size"`
}

// RateLimitConfig 公开提交接口限流
type RateLimitConfig struct {
	SubmitLimit  int           `mapstructure:"submit_limit"`
	SubmitWindow time.Duration `mapstructure:"submit_window"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.max_body_bytes", 32<<20)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "intake_forms")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.access_token_ttl", "12h")
	v.SetDefault("auth.issuer", "intake-forms")

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local.root", "./media")
	v.SetDefault("storage.local.url_prefix", "/media")
	v.SetDefault("storage.minio.endpoint", "")
	v.SetDefault("storage.minio.access_key", "")
	v.SetDefault("storage.minio.secret_key", "")
	v.SetDefault("storage.minio.bucket", "intake-forms")
	v.SetDefault("storage.minio.public_url", "")
	v.SetDefault("storage.minio.use_ssl", false)

	v.SetDefault("upload.max_file_bytes", 10<<20)
	v.SetDefault("upload.photo_max_edge", 2400)
	v.SetDefault("upload.photo_jpeg_quality", 90)

	v.SetDefault("query.sortable_fields", []string{"Full Name", "Roll Number"})
	v.SetDefault("query.default_page_size", 50)

	v.SetDefault("rate_limit.submit_limit", 20)
	v.SetDefault("rate_limit.submit_window", "1m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	// 只有设置过默认值的键才能被 AutomaticEnv 覆盖，新增配置项时需同步添加默认值
	v.SetEnvPrefix("INTAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	switch c.Storage.Driver {
	case "local":
		if c.Storage.Local.Root == "" {
			return fmt.Errorf("配置校验失败: storage.local.root 不能为空")
		}
	case "minio":
		if c.Storage.Minio.Endpoint == "" || c.Storage.Minio.Bucket == "" {
			return fmt.Errorf("配置校验失败: storage.minio.endpoint 与 storage.minio.bucket 不能为空")
		}
	default:
		return fmt.Errorf("配置校验失败: 不支持的 storage.driver %q", c.Storage.Driver)
	}
	if c.Upload.PhotoJPEGQuality < 1 || c.Upload.PhotoJPEGQuality > 100 {
		return fmt.Errorf("配置校验失败: upload.photo_jpeg_quality 必须在 1-100 之间")
	}
	return nil
}
