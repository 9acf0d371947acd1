package output

import (
	"context"
	"io"
)

// ObjectStorage is a source of layer files. Keys are relative to the
// configured bucket, container, base URL or directory and use forward
// slashes.
type ObjectStorage interface {
	// List returns the layer files of the source. Other objects are
	// skipped.
	List(ctx context.Context) ([]StorageObject, error)

	// Download writes the object to the local path dest.
	Download(ctx context.Context, key string, dest string) error

	// GetReader streams the object. The caller closes the reader.
	GetReader(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether the object is present.
	Exists(ctx context.Context, key string) (bool, error)
}

// StorageObject describes one listed layer file.
type StorageObject struct {
	Key          string
	Size         int64
	LastModified int64  // Unix seconds, 0 when the source does not report it
	ETag         string // empty for local and HTTP sources
}

// StorageType selects the ObjectStorage adapter.
type StorageType string

// Storage types accepted in storage.type.
const (
	StorageLocal StorageType = "local"
	StorageS3    StorageType = "s3"
	StorageAzure StorageType = "azure"
	StorageHTTP  StorageType = "http"
)
