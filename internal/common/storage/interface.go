package storage

import (
	"context"
	"io"
	"time"
)

// ObjectReader is a readable object stream.
type ObjectReader interface {
	io.Reader
}

// ObjectStat describes a stored object.
type ObjectStat struct {
	SizeBytes   int64
	ETag        string
	ContentType string
}

// ObjectStorage abstracts an S3-compatible object store. Test-case artifacts
// are written here at problem creation and fetched back over HTTP by the
// template engine via presigned URLs.
type ObjectStorage interface {
	// PutObject uploads an object.
	PutObject(ctx context.Context, bucket, objectKey string, reader ObjectReader, sizeBytes int64, contentType string) error

	// GetObject opens an object for reading.
	GetObject(ctx context.Context, bucket, objectKey string) (ObjectReader, error)

	// PresignGet returns a presigned GET URL for an object.
	PresignGet(ctx context.Context, bucket, objectKey string, ttl time.Duration) (string, error)

	// StatObject returns object metadata.
	StatObject(ctx context.Context, bucket, objectKey string) (ObjectStat, error)

	// RemoveObjects deletes the given keys.
	RemoveObjects(ctx context.Context, bucket string, keys []string) error
}
