package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/jjudge-oj/roster/config"
	"google.golang.org/api/option"
)

// GCSBucket keeps snapshots in a Google Cloud Storage bucket.
type GCSBucket struct {
	client    *storage.Client
	handle    *storage.BucketHandle
	name      string
	projectID string
}

// NewGCSBucket connects to GCS using cfg.CredentialsFile when set and
// application default credentials otherwise.
func NewGCSBucket(ctx context.Context, cfg config.GCSConfig) (*GCSBucket, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("storage: gcs bucket is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: gcs client: %w", err)
	}

	return &GCSBucket{
		client:    client,
		handle:    client.Bucket(cfg.Bucket),
		name:      cfg.Bucket,
		projectID: cfg.ProjectID,
	}, nil
}

func (g *GCSBucket) Prepare(ctx context.Context) error {
	_, err := g.handle.Attrs(ctx)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, storage.ErrBucketNotExist):
		return err
	case strings.TrimSpace(g.projectID) == "":
		return fmt.Errorf("storage: bucket %q does not exist and GCS_PROJECT_ID is unset", g.name)
	}
	return g.handle.Create(ctx, g.projectID, nil)
}

func (g *GCSBucket) Read(ctx context.Context, key string) ([]byte, error) {
	reader, err := g.handle.Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return readLimited(reader)
}

// Write uploads data in a single request.
func (g *GCSBucket) Write(ctx context.Context, key string, data []byte) error {
	w := g.handle.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = cacheControl
	w.ChunkSize = 0

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (g *GCSBucket) Remove(ctx context.Context, key string) error {
	err := g.handle.Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrNotFound
	}
	return err
}

func (g *GCSBucket) Name() string {
	return g.name
}

func (g *GCSBucket) Close() error {
	return g.client.Close()
}
