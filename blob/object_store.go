package blob

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/draftwire/draftwire/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// SignedURLExpiry is how long a resolved read URL stays valid.
const SignedURLExpiry = 24 * time.Hour

// ObjectStore is the blob collaborator consumed by the chat log and the
// draft editor. Only resulting reference URLs are ever persisted, never
// raw bytes.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// MinioStore implements ObjectStore for MinIO/S3 compatible storage.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewObjectStore connects to the configured endpoint and ensures the
// bucket exists. It returns nil (and no error) when no endpoint is
// configured, attachments are then unavailable but the core keeps
// running.
func NewObjectStore(cfg *config.Config) (ObjectStore, error) {
	if cfg.BlobConfig.Endpoint == "" {
		return nil, nil
	}
	client, err := minio.New(cfg.BlobConfig.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.BlobConfig.AccessKey, cfg.BlobConfig.SecretKey, ""),
		Secure: cfg.BlobConfig.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init blob client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, cfg.BlobConfig.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.BlobConfig.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	return &MinioStore{client: client, bucket: cfg.BlobConfig.Bucket}, nil
}

// Put uploads an object.
func (m *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// PresignGet generates a pre-signed GET URL valid for SignedURLExpiry.
func (m *MinioStore) PresignGet(ctx context.Context, key string) (string, error) {
	url, err := m.client.PresignedGetObject(ctx, m.bucket, key, SignedURLExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return url.String(), nil
}

// Delete removes an object.
func (m *MinioStore) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
