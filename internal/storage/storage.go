// Package storage uploads user avatars to an object store and builds the
// public URLs they are served from.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/contactsbook/apiserver/config"
)

// ObjectStorage defines the object operations needed for avatars.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
	Bucket() string
	Close() error
}

// New builds the backend selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig) (ObjectStorage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "minio":
		return NewMinioClient(cfg.Minio)
	case "gcs":
		return NewGCSClient(ctx, cfg.GCS)
	case "s3":
		return NewS3Client(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

// AvatarKey is the object key of a user's avatar.
func AvatarKey(username string) string {
	return "avatars/" + username
}

// objectURL joins base, bucket and key into an absolute URL. The key is
// escaped per path segment.
func objectURL(base, bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	base = strings.TrimRight(base, "/")
	if bucket == "" {
		return base + "/" + strings.Join(segments, "/")
	}
	return base + "/" + url.PathEscape(bucket) + "/" + strings.Join(segments, "/")
}
