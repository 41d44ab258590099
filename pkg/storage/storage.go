// Package storage 定义上传文件的内容存储接口及其实现
//
// 路径约定由调用方决定（例如 submissions/{form_id}/{unique_id}-photo.jpg），
// 存储实现只保证 Save 返回的实际路径可以被 Open/Exists/Delete/URL 使用。
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"go.uber.org/zap"

	"intake-forms/backend/config"
)

// ErrNotFound 文件不存在
var ErrNotFound = errors.New("文件不存在")

// ErrInvalidPath 路径非法（为空、绝对路径或包含 ..）
var ErrInvalidPath = errors.New("文件路径非法")

// Store 内容存储接口
type Store interface {
	// Save 写入文件；目标已存在时实现可以改名，返回实际路径
	Save(ctx context.Context, p string, r io.Reader, size int64, contentType string) (string, error)
	// URL 返回可公开访问的地址
	URL(p string) string
	// Open 读取文件，不存在时返回 ErrNotFound
	Open(ctx context.Context, p string) (io.ReadCloser, error)
	Exists(ctx context.Context, p string) (bool, error)
	// Delete 删除文件，不存在时不报错
	Delete(ctx context.Context, p string) error
}

// New 根据配置创建存储实现
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, error) {
	switch cfg.Storage.Driver {
	case "local":
		return NewLocalStore(cfg.Storage.Local.Root, strings.TrimRight(cfg.Server.BaseURL, "/")+cfg.Storage.Local.URLPrefix)
	case "minio":
		return NewMinioStore(ctx, &cfg.Storage.Minio, logger)
	default:
		return nil, fmt.Errorf("不支持的存储驱动: %s", cfg.Storage.Driver)
	}
}

// cleanPath 规范化对象路径，拒绝越界访问
func cleanPath(p string) (string, error) {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	if p == "" || strings.HasPrefix(p, "/") {
		return "", ErrInvalidPath
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidPath
	}
	return cleaned, nil
}

// ErrNoFreePath 同名文件过多，无法找到可用路径
var ErrNoFreePath = errors.New("没有可用的文件路径")

// freePath 依次尝试 p、p_1 … p_N，返回第一个不存在的路径
func freePath(ctx context.Context, p string, exists func(context.Context, string) (bool, error)) (string, error) {
	actual := p
	for i := 1; i <= maxRenameAttempts+1; i++ {
		taken, err := exists(ctx, actual)
		if err != nil {
			return "", err
		}
		if !taken {
			return actual, nil
		}
		actual = withCounter(p, i)
	}
	return "", fmt.Errorf("%w: %s", ErrNoFreePath, p)
}

// withCounter 在扩展名前插入序号：a/b.jpg → a/b_1.jpg
func withCounter(p string, n int) string {
	ext := path.Ext(p)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(p, ext), n, ext)
}
