package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"shelf/internal/errs"
)

// MinioKV is a KV transport that stores each value as one object in a
// MinIO/S3 bucket, keyed by the chunk key. Object stores fit the
// transport contract directly: point get/put/delete with no cheap
// counting.
type MinioKV struct {
	client *minio.Client
	bucket string
}

// MinioConfig carries the connection settings for a MinIO-backed
// transport.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseTLS    bool
}

// NewMinioKV connects to MinIO and ensures the chunk bucket exists.
func NewMinioKV(ctx context.Context, cfg MinioConfig) (*MinioKV, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errs.Unavailable("minio endpoint and bucket must be configured")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, errs.Unavailable("check chunk bucket %q: %v", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create chunk bucket %q: %w", cfg.Bucket, err)
		}
	}

	return &MinioKV{client: client, bucket: cfg.Bucket}, nil
}

func (m *MinioKV) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio get %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		// GetObject defers key lookup to the first read, so absence
		// surfaces here rather than above.
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return nil, errs.NotFound("key %s", key)
		}
		return nil, fmt.Errorf("minio read %s: %w", key, err)
	}
	return data, nil
}

func (m *MinioKV) Put(ctx context.Context, key string, value []byte) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(value), int64(len(value)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("minio put %s: %w", key, err)
	}
	return nil
}

func (m *MinioKV) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio delete %s: %w", key, err)
	}
	return nil
}
