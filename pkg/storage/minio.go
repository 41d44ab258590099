package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	minioSDK "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"intake-forms/backend/config"
)

// MinioStore MinIO / S3 兼容对象存储
type MinioStore struct {
	client    *minioSDK.Client
	bucket    string
	publicURL string
}

// NewMinioStore 连接 MinIO 并确保 bucket 存在
func NewMinioStore(ctx context.Context, cfg *config.MinioStorageConfig, logger *zap.Logger) (*MinioStore, error) {
	client, err := minioSDK.New(cfg.Endpoint, &minioSDK.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("连接 MinIO 失败: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("检查 bucket 失败: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minioSDK.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建 bucket 失败: %w", err)
		}
		logger.Info("已创建 bucket", zap.String("bucket", cfg.Bucket))
	}

	publicURL := strings.TrimRight(cfg.PublicURL, "/")
	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}

	logger.Info("MinIO 连接成功", zap.String("endpoint", cfg.Endpoint), zap.String("bucket", cfg.Bucket))
	return &MinioStore{client: client, bucket: cfg.Bucket, publicURL: publicURL}, nil
}

func (s *MinioStore) Save(ctx context.Context, p string, r io.Reader, size int64, contentType string) (string, error) {
	cleaned, err := cleanPath(p)
	if err != nil {
		return "", err
	}

	// 对象存储没有 O_EXCL，先探测再写入；并发下的同名覆盖由调用方的唯一路径约定避免
	actual, err := freePath(ctx, cleaned, s.Exists)
	if err != nil {
		return "", err
	}

	if size <= 0 {
		size = -1
	}
	_, err = s.client.PutObject(ctx, s.bucket, actual, r, size, minioSDK.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("上传对象失败: %w", err)
	}
	return actual, nil
}

func (s *MinioStore) URL(p string) string {
	return s.publicURL + "/" + p
}

func (s *MinioStore) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	cleaned, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	// GetObject 是惰性的，Stat 用于提前暴露不存在错误
	if _, err := s.client.StatObject(ctx, s.bucket, cleaned, minioSDK.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.client.GetObject(ctx, s.bucket, cleaned, minioSDK.GetObjectOptions{})
}

func (s *MinioStore) Exists(ctx context.Context, p string) (bool, error) {
	cleaned, err := cleanPath(p)
	if err != nil {
		return false, err
	}
	_, err = s.client.StatObject(ctx, s.bucket, cleaned, minioSDK.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *MinioStore) Delete(ctx context.Context, p string) error {
	cleaned, err := cleanPath(p)
	if err != nil {
		return err
	}
	return s.client.RemoveObject(ctx, s.bucket, cleaned, minioSDK.RemoveObjectOptions{})
}

func isNoSuchKey(err error) bool {
	var resp minioSDK.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
	}
	return false
}
