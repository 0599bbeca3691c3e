package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jjudge-oj/roster/internal/storage"
)

// ObjectBackend stores each key as an object in a bucket, e.g. MinIO or GCS.
type ObjectBackend struct {
	bucket storage.Bucket
	prefix string
}

// NewObjectBackend stores values as "<prefix><key>.json" objects.
func NewObjectBackend(bucket storage.Bucket, prefix string) *ObjectBackend {
	prefix = strings.TrimLeft(prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &ObjectBackend{bucket: bucket, prefix: prefix}
}

func (o *ObjectBackend) Init(ctx context.Context) error {
	if err := o.bucket.Prepare(ctx); err != nil {
		return fmt.Errorf("kv: prepare bucket %q: %w", o.bucket.Name(), err)
	}
	return nil
}

func (o *ObjectBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := o.bucket.Read(ctx, o.objectKey(key))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	return data, err
}

func (o *ObjectBackend) Set(ctx context.Context, key string, value []byte) error {
	return o.bucket.Write(ctx, o.objectKey(key), value)
}

func (o *ObjectBackend) Delete(ctx context.Context, key string) error {
	err := o.bucket.Remove(ctx, o.objectKey(key))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return nil
}

func (o *ObjectBackend) Close() error {
	return o.bucket.Close()
}

func (o *ObjectBackend) objectKey(key string) string {
	return o.prefix + key + fileSuffix
}
