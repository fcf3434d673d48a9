// Package coordinator drives the ingestion flow: accept an upload, store
// the blob, create the PROCESSING record, and hand off to the extraction
// collaborator over the event bus. The caller gets an answer as soon as the
// blob and record are durable; everything downstream is asynchronous.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/rs-vn/document-search-platform/internal/bus"
	"github.com/rs-vn/document-search-platform/internal/document"
	"github.com/rs-vn/document-search-platform/internal/indexwriter"
	"github.com/rs-vn/document-search-platform/internal/objectstore"
	"github.com/rs-vn/document-search-platform/internal/store"
	apperrors "github.com/rs-vn/document-search-platform/pkg/errors"
	"github.com/rs-vn/document-search-platform/pkg/logger"
	"github.com/rs-vn/document-search-platform/pkg/metrics"
)

// UploadInput is one file received from a client.
type UploadInput struct {
	FileName string
	MimeType string
	Data     []byte
}

// UploadResult is the immediate answer to an upload: the assigned id and
// where the file lives. Status is always PROCESSING at this point.
type UploadResult struct {
	DocumentID string `json:"documentId"`
	FileURL    string `json:"fileUrl"`
	Status     string `json:"status"`
}

// StatusResult reports the processing state of one document. Document is
// set only once processing has completed.
type StatusResult struct {
	DocumentID string           `json:"documentId"`
	Status     string           `json:"status"`
	Document   *document.Record `json:"document,omitempty"`
}

// Coordinator orchestrates uploads and document lifecycle operations.
type Coordinator struct {
	store     store.Store
	objects   objectstore.Store
	publisher bus.Publisher
	writer    *indexwriter.Writer
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a Coordinator. publisher must be bound to the file-uploaded
// topic.
func New(st store.Store, objects objectstore.Store, publisher bus.Publisher, writer *indexwriter.Writer, m *metrics.Metrics, log *slog.Logger) *Coordinator {
	return &Coordinator{
		store:     st,
		objects:   objects,
		publisher: publisher,
		writer:    writer,
		metrics:   m,
		logger:    log.With("component", "coordinator"),
	}
}

// Upload stores the file, creates the PROCESSING record, and announces the
// upload on the bus. Blob or record failures abort the upload; a publish
// failure does not, since reconciliation and re-extraction can recover it.
func (c *Coordinator) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	if len(in.Data) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidInput, 400, "uploaded file is empty")
	}
	documentID := uuid.NewString()
	key := documentID + filepath.Ext(in.FileName)
	log := logger.WithDocument(c.logger, documentID)

	fileURL, err := c.objects.Put(ctx, key, in.Data, in.MimeType)
	if err != nil {
		c.metrics.UploadsTotal.WithLabelValues("storage_error").Inc()
		return nil, fmt.Errorf("store blob %s: %w", key, err)
	}

	rec := document.Record{
		DocumentID:   documentID,
		DocumentName: in.FileName,
		FileLink:     fileURL,
		Status:       document.StatusProcessing,
	}
	if err := c.store.CreateProcessing(ctx, rec); err != nil {
		c.metrics.UploadsTotal.WithLabelValues("store_error").Inc()
		return nil, fmt.Errorf("create record %s: %w", documentID, err)
	}

	event := document.UploadedEvent{
		DocumentID: documentID,
		FileName:   in.FileName,
		FileURL:    fileURL,
		MimeType:   in.MimeType,
		UploadTime: time.Now().UTC().Format(time.RFC3339),
	}
	if err := c.publisher.Publish(ctx, documentID, event); err != nil {
		c.metrics.UploadsTotal.WithLabelValues("publish_error").Inc()
		log.Error("publish upload event failed, document stays PROCESSING", "error", err)
	} else {
		c.metrics.UploadsTotal.WithLabelValues("accepted").Inc()
	}

	log.Info("upload accepted", "file_name", in.FileName, "file_url", fileURL)
	return &UploadResult{
		DocumentID: documentID,
		FileURL:    fileURL,
		Status:     document.StatusProcessing,
	}, nil
}

// Status returns the processing state of a document. Extraction can lag
// the upload answer by an arbitrary amount, so an id the store has not
// seen yet reads as still processing rather than as an error. The record
// itself is included once processing has completed.
func (c *Coordinator) Status(ctx context.Context, documentID string) (*StatusResult, error) {
	rec, err := c.store.Get(ctx, documentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrDocumentNotFound) {
			return &StatusResult{DocumentID: documentID, Status: "processing"}, nil
		}
		return nil, err
	}
	res := &StatusResult{DocumentID: rec.DocumentID, Status: "processing"}
	if rec.Status == document.StatusCompleted {
		res.Status = "completed"
		res.Document = rec
	}
	return res, nil
}

// Get returns the full record for a document.
func (c *Coordinator) Get(ctx context.Context, documentID string) (*document.Record, error) {
	return c.store.Get(ctx, documentID)
}

// List returns a page of records ordered by document id.
func (c *Coordinator) List(ctx context.Context, page, size int) ([]document.Record, error) {
	if page < 0 || size <= 0 {
		return []document.Record{}, nil
	}
	return c.store.List(ctx, page*size, size)
}

// Delete removes the record, its index entry, and its blob. The record
// delete is authoritative; a blob delete failure only leaves an orphaned
// file and is logged, not returned.
func (c *Coordinator) Delete(ctx context.Context, documentID string) error {
	rec, err := c.store.Get(ctx, documentID)
	if err != nil {
		return err
	}
	if err := c.store.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("delete record %s: %w", documentID, err)
	}
	c.writer.Remove(ctx, documentID)

	key := documentID + filepath.Ext(rec.DocumentName)
	if err := c.objects.Delete(ctx, key); err != nil {
		logger.WithDocument(c.logger, documentID).Warn("blob delete failed, leaving orphan", "key", key, "error", err)
	}
	return nil
}
