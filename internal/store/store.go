// Package store persists DocumentRecords in the system-of-record database.
// All writes are keyed upserts on document_id, which is what makes concurrent
// and duplicate deliveries safe without locks or transactions across
// components.
package store

import (
	"context"

	"github.com/rs-vn/document-search-platform/internal/document"
)

// Store is the record-store contract the pipeline components program against.
type Store interface {
	// CreateProcessing inserts the initial PROCESSING stub for a fresh
	// document id.
	CreateProcessing(ctx context.Context, rec document.Record) error
	// Upsert overwrites every field of the record keyed by its document id.
	Upsert(ctx context.Context, rec document.Record) error
	// Get returns the record or pkg/errors.ErrDocumentNotFound.
	Get(ctx context.Context, documentID string) (*document.Record, error)
	// Delete removes the record. Deleting an absent id is not an error.
	Delete(ctx context.Context, documentID string) error
	// List returns records ordered by document id, for paged listing.
	List(ctx context.Context, offset, limit int) ([]document.Record, error)
	// ListCompleted pages through COMPLETED records by document id, for
	// index reconciliation. Pass "" to start from the beginning.
	ListCompleted(ctx context.Context, afterID string, limit int) ([]document.Record, error)
}
