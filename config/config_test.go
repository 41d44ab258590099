package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("INTAKE_AUTH_JWT_SECRET", "env-secret-0123456789")
	t.Setenv("INTAKE_SERVER_PORT", "9090")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("显式指定的配置文件不存在时应报错")
	}
	_ = cfg

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load 应成功: %v", err)
	}
	if cfg.Auth.JWTSecret != "env-secret-0123456789" {
		t.Errorf("环境变量应覆盖 jwt_secret，实际: %q", cfg.Auth.JWTSecret)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("环境变量应覆盖端口，实际: %d", cfg.Server.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("配置文件应覆盖日志级别，实际: %q", cfg.Log.Level)
	}
	if cfg.Auth.AccessTokenTTL != 12*time.Hour {
		t.Errorf("默认 TTL 应为 12h，实际: %v", cfg.Auth.AccessTokenTTL)
	}
	if cfg.Storage.Driver != "local" || cfg.Query.DefaultPageSize != 50 {
		t.Errorf("默认值错误: %+v %+v", cfg.Storage, cfg.Query)
	}
	if len(cfg.Query.SortableFields) != 2 || cfg.Query.SortableFields[0] != "Full Name" {
		t.Errorf("默认可排序字段错误: %v", cfg.Query.SortableFields)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:  ServerConfig{Port: 8080},
			Auth:    AuthConfig{JWTSecret: "0123456789abcdef"},
			Storage: StorageConfig{Driver: "local", Local: LocalStorageConfig{Root: "./media"}},
			Upload:  UploadConfig{PhotoJPEGQuality: 90},
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("合法配置不应报错: %v", err)
	}

	cases := map[string]func(c *Config){
		"短密钥":        func(c *Config) { c.Auth.JWTSecret = "short" },
		"端口越界":       func(c *Config) { c.Server.Port = 70000 },
		"未知存储驱动":     func(c *Config) { c.Storage.Driver = "ftp" },
		"minio 缺少端点": func(c *Config) { c.Storage.Driver = "minio" },
		"JPEG 质量越界":  func(c *Config) { c.Upload.PhotoJPEGQuality = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			if err := c.Validate(); err == nil {
				t.Errorf("%s 应校验失败", name)
			}
		})
	}
}
