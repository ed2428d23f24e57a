// Package storage abstracts the S3-compatible object store that holds
// document blobs. Implementations stream request bodies straight through;
// nothing touches local disk.
package storage

import (
	"context"
	"io"
	"time"
)

// PutObjectOptions carries optional upload parameters. Size should be the
// exact byte count when known; -1 lets the backend chunk as it sees fit.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo describes a stored blob.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is the object-store client the service writes document blobs
// through. Blobs are write-once: uploads always use a fresh key and existing
// objects are never rewritten in place.
type Storage interface {
	// Put uploads a blob under the given key.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get streams a blob's content alongside its info.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes a blob. Document soft-deletes keep blobs around; this
	// exists for rolling back a failed upload.
	Delete(ctx context.Context, key string) error
	// PresignGet returns a time-limited download URL usable without credentials.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}
