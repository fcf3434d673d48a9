// Package objectstore defines the blob-storage collaborator interface the
// ingestion coordinator depends on, plus an HTTP client for the remote
// storage service and an in-memory implementation for standalone mode and
// tests. Blob storage mechanics live entirely behind this boundary.
package objectstore

import "context"

// Store is the object-store collaborator contract: put/get/delete a blob by
// key. Put returns the public URL of the stored blob.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (url string, err error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
