// Package indexwriter owns all writes into the search index: per-document
// writes from the ingestion pipeline and bulk reconciliation from the
// record store, which is the source of truth the index can always be
// rebuilt from.
package indexwriter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rs-vn/document-search-platform/internal/document"
	"github.com/rs-vn/document-search-platform/internal/index"
	"github.com/rs-vn/document-search-platform/internal/store"
	"github.com/rs-vn/document-search-platform/pkg/config"
	apperrors "github.com/rs-vn/document-search-platform/pkg/errors"
	"github.com/rs-vn/document-search-platform/pkg/metrics"
	"github.com/rs-vn/document-search-platform/pkg/resilience"
)

// Invalidator drops cached query results after the index changes.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// Writer applies document records to the search index with retries.
type Writer struct {
	index       *index.Index
	store       store.Store
	cfg         config.IndexConfig
	metrics     *metrics.Metrics
	logger      *slog.Logger
	invalidator Invalidator
}

// New creates a Writer. invalidator may be nil when no query cache is
// configured.
func New(idx *index.Index, st store.Store, cfg config.IndexConfig, m *metrics.Metrics, logger *slog.Logger, invalidator Invalidator) *Writer {
	return &Writer{
		index:       idx,
		store:       st,
		cfg:         cfg,
		metrics:     m,
		logger:      logger.With("component", "indexwriter"),
		invalidator: invalidator,
	}
}

// Write indexes one record, retrying transient failures, and invalidates
// the query cache on success.
func (w *Writer) Write(ctx context.Context, rec document.Record) error {
	doc := index.IndexedDocument{
		Record:      rec,
		Suggestions: document.SuggestionInputs(rec.Title, rec.DocumentNumber, rec.DocumentType),
	}
	err := resilience.Retry(ctx, "index-write",
		resilience.FixedRetryConfig(w.cfg.WriteMaxAttempts, w.cfg.WriteRetryDelay),
		func() error {
			return w.index.Upsert(doc)
		})
	if err != nil {
		w.metrics.IndexWritesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: %v", apperrors.ErrIndexUnavailable, err)
	}
	w.metrics.IndexWritesTotal.WithLabelValues("ok").Inc()
	w.metrics.IndexedDocuments.Set(float64(w.index.Count()))
	w.invalidate(ctx)
	return nil
}

// Remove deletes a document from the index. Removing an unknown id is a
// no-op.
func (w *Writer) Remove(ctx context.Context, documentID string) {
	w.index.Delete(documentID)
	w.metrics.IndexedDocuments.Set(float64(w.index.Count()))
	w.invalidate(ctx)
}

// Reconcile walks every COMPLETED record in the store and indexes it. It is
// called at startup to rebuild the index and periodically afterwards to
// repair drift from missed or failed writes.
func (w *Writer) Reconcile(ctx context.Context) error {
	batch := w.cfg.ReconcileBatch
	if batch <= 0 {
		batch = 500
	}
	start := time.Now()
	indexed := 0
	afterID := ""
	for {
		records, err := w.store.ListCompleted(ctx, afterID, batch)
		if err != nil {
			w.metrics.ReconcilesTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("list completed records after %q: %w", afterID, err)
		}
		for _, rec := range records {
			doc := index.IndexedDocument{
				Record:      rec,
				Suggestions: document.SuggestionInputs(rec.Title, rec.DocumentNumber, rec.DocumentType),
			}
			if err := w.index.Upsert(doc); err != nil {
				w.logger.Warn("skipping record during reconcile", "document_id", rec.DocumentID, "error", err)
				continue
			}
			indexed++
		}
		if len(records) < batch {
			break
		}
		afterID = records[len(records)-1].DocumentID
	}
	w.metrics.ReconcilesTotal.WithLabelValues("ok").Inc()
	w.metrics.IndexedDocuments.Set(float64(w.index.Count()))
	w.invalidate(ctx)
	w.logger.Info("reconcile complete", "indexed", indexed, "duration", time.Since(start))
	return nil
}

// Run reconciles on the configured interval until ctx is cancelled.
func (w *Writer) Run(ctx context.Context) {
	interval := w.cfg.ReconcileInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Reconcile(ctx); err != nil {
				w.logger.Error("periodic reconcile failed", "error", err)
			}
		}
	}
}

func (w *Writer) invalidate(ctx context.Context) {
	if w.invalidator != nil {
		w.invalidator.Invalidate(ctx)
	}
}
