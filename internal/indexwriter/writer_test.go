package indexwriter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/rs-vn/document-search-platform/internal/document"
	"github.com/rs-vn/document-search-platform/internal/index"
	"github.com/rs-vn/document-search-platform/internal/store"
	"github.com/rs-vn/document-search-platform/pkg/config"
	apperrors "github.com/rs-vn/document-search-platform/pkg/errors"
	"github.com/rs-vn/document-search-platform/pkg/metrics"
)

type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) Invalidate(ctx context.Context) { c.calls++ }

func newTestWriter(t *testing.T, st store.Store, inv Invalidator) (*Writer, *index.Index) {
	t.Helper()
	idx := index.New()
	cfg := config.IndexConfig{
		WriteMaxAttempts: 1,
		WriteRetryDelay:  time.Millisecond,
		ReconcileBatch:   2,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(idx, st, cfg, metrics.NewUnregistered(), logger, inv), idx
}

func completedRecord(id, title string) document.Record {
	return document.Record{
		DocumentID:     id,
		DocumentNumber: "12/QĐ",
		Title:          title,
		DocumentType:   "Quyết định",
		SearchText:     title,
		Status:         document.StatusCompleted,
	}
}

func TestWriteIndexesRecord(t *testing.T) {
	inv := &countingInvalidator{}
	w, idx := newTestWriter(t, store.NewMemory(), inv)

	if err := w.Write(context.Background(), completedRecord("doc-1", "Phê duyệt kế hoạch")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := idx.Count(); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}
	if results := idx.Search("kế hoạch", 0, 10); len(results) != 1 {
		t.Errorf("indexed document not searchable")
	}
	if inv.calls != 1 {
		t.Errorf("cache invalidated %d times, want 1", inv.calls)
	}
	// Suggestion inputs are derived from the record.
	if opts := idx.Complete("Phê duyệt", 10); len(opts) == 0 {
		t.Errorf("no completion options for indexed title")
	}
}

func TestWriteInvalidRecord(t *testing.T) {
	w, _ := newTestWriter(t, store.NewMemory(), nil)

	err := w.Write(context.Background(), document.Record{})
	if err == nil {
		t.Fatal("expected error for record without id")
	}
	if !errors.Is(err, apperrors.ErrIndexUnavailable) {
		t.Errorf("error %v does not wrap ErrIndexUnavailable", err)
	}
}

func TestRemove(t *testing.T) {
	inv := &countingInvalidator{}
	w, idx := newTestWriter(t, store.NewMemory(), inv)

	if err := w.Write(context.Background(), completedRecord("doc-1", "Phê duyệt kế hoạch")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	w.Remove(context.Background(), "doc-1")
	if got := idx.Count(); got != 0 {
		t.Errorf("Count() = %d, want 0", got)
	}
	if inv.calls != 2 {
		t.Errorf("cache invalidated %d times, want 2", inv.calls)
	}
}

func TestReconcileRebuildsFromStore(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	// Five completed records force multiple reconcile batches of two.
	for i := 0; i < 5; i++ {
		rec := completedRecord(fmt.Sprintf("doc-%d", i), "Nghị quyết hội đồng")
		if err := st.Upsert(ctx, rec); err != nil {
			t.Fatalf("seed store: %v", err)
		}
	}
	pending := document.Record{DocumentID: "doc-pending", Title: "Chưa xử lý", Status: document.StatusProcessing}
	if err := st.Upsert(ctx, pending); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	w, idx := newTestWriter(t, st, nil)
	if err := w.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if got := idx.Count(); got != 5 {
		t.Errorf("Count() = %d, want 5 (PROCESSING records must not be indexed)", got)
	}
}
