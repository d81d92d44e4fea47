package minio

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when a key does not exist in the bucket
var ErrObjectNotFound = errors.New("object not found")

// Client defines the object storage operations for originals and thumbnails
type Client interface {
	GetObject(ctx context.Context, objectName string) (io.ReadCloser, error)
	PutObject(ctx context.Context, reader io.Reader, size int64, objectName string, contentType string) error
	// ObjectExists reports whether objectName is present and non-empty
	ObjectExists(ctx context.Context, objectName string) (bool, error)

	// Close closes the MinIO client connection
	Close() error
}
