package storage

import "context"

// ObjectStorage captures the minimal operations order exports need.
type ObjectStorage interface {
	UploadObject(ctx context.Context, key string, data []byte, contentType string) error
}
