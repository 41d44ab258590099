package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// maxRenameAttempts 同名文件存在时的最大改名次数
const maxRenameAttempts = 100

// LocalStore 本地磁盘存储
type LocalStore struct {
	root    string
	baseURL string
}

// NewLocalStore 创建本地存储，root 不存在时自动创建
func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("解析存储目录失败: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}
	return &LocalStore{root: abs, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Root 返回存储根目录（用于静态文件服务）
func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) Save(_ context.Context, p string, r io.Reader, _ int64, _ string) (string, error) {
	cleaned, err := cleanPath(p)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(s.abs(cleaned)), 0o755); err != nil {
		return "", fmt.Errorf("创建目录失败: %w", err)
	}

	// O_EXCL 保证不会覆盖已有文件
	actual := cleaned
	for i := 1; ; i++ {
		f, err := os.OpenFile(s.abs(actual), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			if _, err := io.Copy(f, r); err != nil {
				f.Close()
				_ = os.Remove(s.abs(actual))
				return "", fmt.Errorf("写入文件失败: %w", err)
			}
			if err := f.Close(); err != nil {
				return "", fmt.Errorf("关闭文件失败: %w", err)
			}
			return actual, nil
		}
		if !errors.Is(err, fs.ErrExist) || i > maxRenameAttempts {
			return "", fmt.Errorf("创建文件失败: %w", err)
		}
		actual = withCounter(cleaned, i)
	}
}

func (s *LocalStore) URL(p string) string {
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/" + strings.Join(segments, "/")
}

func (s *LocalStore) Open(_ context.Context, p string) (io.ReadCloser, error) {
	cleaned, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(s.abs(cleaned))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *LocalStore) Exists(_ context.Context, p string) (bool, error) {
	cleaned, err := cleanPath(p)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(s.abs(cleaned))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

func (s *LocalStore) Delete(_ context.Context, p string) error {
	cleaned, err := cleanPath(p)
	if err != nil {
		return err
	}
	if err := os.Remove(s.abs(cleaned)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStore) abs(cleaned string) string {
	return filepath.Join(s.root, filepath.FromSlash(cleaned))
}
