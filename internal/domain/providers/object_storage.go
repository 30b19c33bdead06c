package providers

import (
	"context"
	"io"
)

// ObjectStorage stores listing image bytes in a bucket
type ObjectStorage interface {
	// Put uploads an object under key
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error

	// Delete removes an object; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error

	// Bucket returns the bucket name objects are stored in
	Bucket() string
}
