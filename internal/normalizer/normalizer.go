// Package normalizer consumes text-extraction events and turns them into
// COMPLETED, searchable document records. The handler is idempotent:
// processing the same event twice produces the same record and index entry,
// which is what makes at-least-once delivery safe.
package normalizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rs-vn/document-search-platform/internal/document"
	"github.com/rs-vn/document-search-platform/internal/indexwriter"
	"github.com/rs-vn/document-search-platform/internal/store"
	apperrors "github.com/rs-vn/document-search-platform/pkg/errors"
	"github.com/rs-vn/document-search-platform/pkg/logger"
	"github.com/rs-vn/document-search-platform/pkg/metrics"
)

// Normalizer maps extraction events onto stored records and the search
// index.
type Normalizer struct {
	store   store.Store
	writer  *indexwriter.Writer
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Normalizer.
func New(st store.Store, writer *indexwriter.Writer, m *metrics.Metrics, log *slog.Logger) *Normalizer {
	return &Normalizer{
		store:   st,
		writer:  writer,
		metrics: m,
		logger:  log.With("component", "normalizer"),
	}
}

// HandleExtracted processes one file-text-extracted event. A returned error
// signals the bus to redeliver; events that stay unprocessable end up on the
// dead-letter topic.
func (n *Normalizer) HandleExtracted(ctx context.Context, key, value []byte) error {
	var event document.ExtractedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		n.metrics.NormalizationsTotal.WithLabelValues("invalid_event").Inc()
		return fmt.Errorf("%w: decode extracted event: %v", apperrors.ErrInvalidEvent, err)
	}
	if err := event.Validate(); err != nil {
		n.metrics.NormalizationsTotal.WithLabelValues("invalid_event").Inc()
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidEvent, err)
	}

	log := logger.WithDocument(n.logger, event.DocumentID)

	rec, err := n.store.Get(ctx, event.DocumentID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrDocumentNotFound) {
			n.metrics.NormalizationsTotal.WithLabelValues("store_error").Inc()
			return fmt.Errorf("load record %s: %w", event.DocumentID, err)
		}
		// Extraction can outrun the upload path's insert. Start from an
		// empty record so the event is never lost.
		rec = &document.Record{DocumentID: event.DocumentID}
		log.Warn("no stored record for extraction event, creating one")
	}

	title := document.CleanTitle(event.Title)
	issueDate := document.ParseIssueDate(event.IssueDate)
	if event.IssueDate != "" && issueDate == nil {
		log.Warn("unparsable issue date, storing without it", "issue_date", event.IssueDate)
	}

	rec.DocumentNumber = event.DocumentNumber
	rec.Title = title
	rec.Content = event.Content
	rec.DocumentType = event.DocumentType
	rec.IssuingAgency = event.IssuingAgency
	rec.Signer = event.Signer
	rec.IssueDate = issueDate
	if event.FileURL != "" {
		rec.FileLink = event.FileURL
	}
	rec.SearchText = document.BuildSearchText(event.DocumentType, event.DocumentNumber, issueDate, title)
	rec.Status = document.StatusCompleted

	if err := n.store.Upsert(ctx, *rec); err != nil {
		n.metrics.NormalizationsTotal.WithLabelValues("store_error").Inc()
		return fmt.Errorf("persist record %s: %w", event.DocumentID, err)
	}

	// The store is the source of truth; a failed index write is repaired by
	// the next reconcile pass, so it must not fail the event.
	if err := n.writer.Write(ctx, *rec); err != nil {
		n.metrics.NormalizationsTotal.WithLabelValues("index_error").Inc()
		log.Error("index write failed, record stored", "error", err)
		return nil
	}

	n.metrics.NormalizationsTotal.WithLabelValues("completed").Inc()
	log.Info("document normalized", "status", rec.Status)
	return nil
}
