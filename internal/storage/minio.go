package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jjudge-oj/roster/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioBucket keeps snapshots in a MinIO (or any S3-compatible) bucket.
type MinioBucket struct {
	client *minio.Client
	name   string
}

// NewMinioBucket validates cfg and builds a client with static credentials.
func NewMinioBucket(cfg config.MinioConfig) (*MinioBucket, error) {
	var missing []string
	if strings.TrimSpace(cfg.Endpoint) == "" {
		missing = append(missing, "MINIO_ENDPOINT")
	}
	if strings.TrimSpace(cfg.AccessKey) == "" {
		missing = append(missing, "MINIO_ACCESS_KEY")
	}
	if strings.TrimSpace(cfg.SecretKey) == "" {
		missing = append(missing, "MINIO_SECRET_KEY")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		missing = append(missing, "MINIO_BUCKET")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("storage: minio requires %s", strings.Join(missing, ", "))
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: minio client: %w", err)
	}
	return &MinioBucket{client: client, name: cfg.Bucket}, nil
}

func (m *MinioBucket) Prepare(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.name)
	if err != nil || exists {
		return err
	}
	return m.client.MakeBucket(ctx, m.name, minio.MakeBucketOptions{})
}

// Read stats the object first because GetObject defers the request until the
// first read.
func (m *MinioBucket) Read(ctx context.Context, key string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.name, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, notFound(err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, notFound(err)
	}
	if info.Size > MaxObjectSize {
		return nil, ErrTooLarge
	}
	return readLimited(obj)
}

func (m *MinioBucket) Write(ctx context.Context, key string, data []byte) error {
	_, err := m.client.PutObject(ctx, m.name, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:      contentType,
		CacheControl:     cacheControl,
		DisableMultipart: true,
	})
	return err
}

func (m *MinioBucket) Remove(ctx context.Context, key string) error {
	if _, err := m.client.StatObject(ctx, m.name, key, minio.StatObjectOptions{}); err != nil {
		return notFound(err)
	}
	return m.client.RemoveObject(ctx, m.name, key, minio.RemoveObjectOptions{})
}

func (m *MinioBucket) Name() string {
	return m.name
}

// Close is a no-op.
func (m *MinioBucket) Close() error {
	return nil
}

func notFound(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return err
}
