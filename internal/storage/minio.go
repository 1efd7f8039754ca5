package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/aihub/knowledge-go/internal/logger"
	"go.uber.org/zap"
)

// DocumentStore 原始文档对象存储。
// 分块与向量是派生数据，原件保留在对象存储以便重新处理。
type DocumentStore struct {
	client  *minio.Client
	bucket  string
	enabled bool
}

// DocumentStoreOptions 对象存储配置
type DocumentStoreOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// NewDocumentStore 创建文档存储；Endpoint为空时返回禁用实例
func NewDocumentStore(opts DocumentStoreOptions) (*DocumentStore, error) {
	if opts.Endpoint == "" {
		return &DocumentStore{enabled: false}, nil
	}
	if opts.Bucket == "" {
		opts.Bucket = "knowledge-files"
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &DocumentStore{
		client:  client,
		bucket:  opts.Bucket,
		enabled: true,
	}, nil
}

// Enabled 是否已配置对象存储
func (s *DocumentStore) Enabled() bool {
	return s.enabled
}

func (s *DocumentStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	logger.Info("bucket created", zap.String("bucket", s.bucket))
	return nil
}

func (s *DocumentStore) objectName(collection, fileName string) string {
	return fmt.Sprintf("%s/%s", collection, fileName)
}

// Upload 上传原始文档
func (s *DocumentStore) Upload(ctx context.Context, collection, fileName string, data []byte, contentType string) error {
	if !s.enabled {
		return nil
	}
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, s.bucket, s.objectName(collection, fileName),
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to upload document %s: %w", fileName, err)
	}
	return nil
}

// Download 下载原始文档
func (s *DocumentStore) Download(ctx context.Context, collection, fileName string) ([]byte, error) {
	if !s.enabled {
		return nil, fmt.Errorf("document store not configured")
	}

	obj, err := s.client.GetObject(ctx, s.bucket, s.objectName(collection, fileName), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to download document %s: %w", fileName, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", fileName, err)
	}
	return data, nil
}

// Delete 删除原始文档
func (s *DocumentStore) Delete(ctx context.Context, collection, fileName string) error {
	if !s.enabled {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, s.objectName(collection, fileName), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", fileName, err)
	}
	return nil
}
