package storage

import (
	"context"
	"fmt"
	"strings"
)

// Storage defines the contract for key value backends holding feed snapshots
// and newsletter subscriptions. Implementations must be safe for concurrent use.
type Storage interface {
	// Write stores data with the given key, replacing existing data.
	Write(ctx context.Context, key string, data []byte) error

	// Read retrieves data for the given key.
	// Returns os.ErrNotExist if the key does not exist.
	Read(ctx context.Context, key string) ([]byte, error)

	// List returns keys matching the given prefix, sorted descending (newest first
	// for timestamped keys).
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data for the given key, missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the backend.
	Close() error
}

const (
	TypeFilesystem = "filesystem"
	TypeBlob       = "blob"
)

// SupportedBlobSchemes lists the bucket URL schemes with a registered driver
var SupportedBlobSchemes = []string{"gs://", "s3://", "azblob://", "mem://"}

// Open creates the backend for kind. dir is used by the filesystem backend,
// bucketURL and prefix by the blob backend.
func Open(ctx context.Context, kind, dir, bucketURL, prefix string) (Storage, error) {
	switch kind {
	case TypeBlob:
		if bucketURL == "" {
			return nil, fmt.Errorf("blob bucket URL is required when storage type is %q (supported schemes: %s)", TypeBlob, strings.Join(SupportedBlobSchemes, ", "))
		}
		if !IsValidBlobScheme(bucketURL) {
			return nil, fmt.Errorf("unsupported blob storage URL scheme in %q; supported schemes: %s", bucketURL, strings.Join(SupportedBlobSchemes, ", "))
		}
		return NewBlobStorage(ctx, bucketURL, prefix)
	case TypeFilesystem, "":
		return NewFilesystemStorage(dir)
	default:
		return nil, fmt.Errorf("unknown storage type: %s (supported: %s, %s)", kind, TypeFilesystem, TypeBlob)
	}
}

// IsValidBlobScheme checks if the bucket URL has a supported scheme
func IsValidBlobScheme(bucketURL string) bool {
	for _, scheme := range SupportedBlobSchemes {
		if strings.HasPrefix(bucketURL, scheme) {
			return true
		}
	}
	return false
}

// BlobProvider returns a human-readable provider name from the URL scheme
func BlobProvider(bucketURL string) string {
	switch {
	case strings.HasPrefix(bucketURL, "gs://"):
		return "Google Cloud Storage"
	case strings.HasPrefix(bucketURL, "s3://"):
		return "AWS S3"
	case strings.HasPrefix(bucketURL, "azblob://"):
		return "Azure Blob Storage"
	case strings.HasPrefix(bucketURL, "mem://"):
		return "in-memory"
	default:
		return "unknown"
	}
}
