// Package storage keeps the raw bytes of uploaded files. A key is the file id
// and doubles as the object name in the backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"docqa/internal/config"
)

// ErrInvalidKey is returned for keys that would escape the storage root.
var ErrInvalidKey = errors.New("invalid storage key")

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known; if unknown, set to -1.
// ContentType and Metadata are optional.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about an object in storage.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage stores raw uploaded files. Reads go through the extracted text in the
// document store, so the raw bytes are only ever written and removed.
type Storage interface {
	// Put writes an object under the given key, replacing any previous content.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Delete removes an object by key.
	Delete(ctx context.Context, key string) error
}

// New opens the backend selected by cfg.Backend.
func New(cfg config.StorageConfig) (Storage, error) {
	switch cfg.Backend {
	case config.StorageLocal, "":
		return NewLocal(cfg.UploadDir)
	case config.StorageMinIO:
		return NewMinIO(cfg.MinIO)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
