package normalizer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/rs-vn/document-search-platform/internal/document"
	"github.com/rs-vn/document-search-platform/internal/index"
	"github.com/rs-vn/document-search-platform/internal/indexwriter"
	"github.com/rs-vn/document-search-platform/internal/store"
	"github.com/rs-vn/document-search-platform/pkg/config"
	apperrors "github.com/rs-vn/document-search-platform/pkg/errors"
	"github.com/rs-vn/document-search-platform/pkg/metrics"
)

func newTestNormalizer(t *testing.T, st store.Store) (*Normalizer, *index.Index) {
	t.Helper()
	idx := index.New()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.IndexConfig{WriteMaxAttempts: 1, WriteRetryDelay: time.Millisecond}
	writer := indexwriter.New(idx, st, cfg, metrics.NewUnregistered(), log, nil)
	return New(st, writer, metrics.NewUnregistered(), log), idx
}

func encode(t *testing.T, event document.ExtractedEvent) []byte {
	t.Helper()
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return data
}

func TestHandleExtractedCompletesRecord(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	if err := st.CreateProcessing(ctx, document.Record{
		DocumentID:   "doc-1",
		DocumentName: "quyet-dinh.pdf",
		FileLink:     "http://files/doc-1.pdf",
	}); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	n, idx := newTestNormalizer(t, st)

	event := document.ExtractedEvent{
		DocumentID:     "doc-1",
		DocumentNumber: "12/QĐ",
		Title:          "V/v Phê duyệt kế hoạch",
		Content:        "Nội dung quyết định",
		DocumentType:   "Quyết định",
		IssuingAgency:  "UBND Tỉnh",
		Signer:         "Nguyễn Văn A",
		IssueDate:      "2024-03-15",
		Status:         document.StatusCompleted,
		FileURL:        "http://files/doc-1.pdf",
	}
	if err := n.HandleExtracted(ctx, []byte("doc-1"), encode(t, event)); err != nil {
		t.Fatalf("HandleExtracted: %v", err)
	}

	rec, err := st.Get(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Status != document.StatusCompleted {
		t.Errorf("status = %q, want %q", rec.Status, document.StatusCompleted)
	}
	if rec.Title != "Phê duyệt kế hoạch" {
		t.Errorf("title = %q, subject prefix not stripped", rec.Title)
	}
	want := "Quyết định 12/QĐ năm 2024 về Phê duyệt kế hoạch"
	if rec.SearchText != want {
		t.Errorf("searchText = %q, want %q", rec.SearchText, want)
	}
	if rec.IssueDate == nil {
		t.Error("issueDate not parsed")
	}
	if rec.DocumentName != "quyet-dinh.pdf" {
		t.Errorf("documentName = %q, upload metadata lost", rec.DocumentName)
	}
	if results := idx.Search("kế hoạch", 0, 10); len(results) != 1 {
		t.Errorf("normalized document not searchable")
	}
}

func TestHandleExtractedIdempotent(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	n, idx := newTestNormalizer(t, st)

	event := document.ExtractedEvent{
		DocumentID:     "doc-1",
		DocumentNumber: "45/CV",
		Title:          "Thông báo nghỉ lễ",
		DocumentType:   "Công văn",
	}
	payload := encode(t, event)
	if err := n.HandleExtracted(ctx, []byte("doc-1"), payload); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	first, err := st.Get(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := n.HandleExtracted(ctx, []byte("doc-1"), payload); err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	second, err := st.Get(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if *first != *second {
		t.Errorf("redelivery changed the record:\nfirst  %+v\nsecond %+v", first, second)
	}
	if got := idx.Count(); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}
}

func TestHandleExtractedInvalidEvents(t *testing.T) {
	n, _ := newTestNormalizer(t, store.NewMemory())
	ctx := context.Background()

	tests := []struct {
		name    string
		payload []byte
	}{
		{"malformed json", []byte("{not json")},
		{"missing documentId", encode(t, document.ExtractedEvent{Title: "Thông báo"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := n.HandleExtracted(ctx, nil, tt.payload)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, apperrors.ErrInvalidEvent) {
				t.Errorf("error %v does not wrap ErrInvalidEvent", err)
			}
		})
	}
}

func TestHandleExtractedUnparsableDate(t *testing.T) {
	st := store.NewMemory()
	n, _ := newTestNormalizer(t, st)
	ctx := context.Background()

	event := document.ExtractedEvent{
		DocumentID: "doc-1",
		Title:      "Thông báo nghỉ lễ",
		IssueDate:  "15/03/2024",
	}
	if err := n.HandleExtracted(ctx, []byte("doc-1"), encode(t, event)); err != nil {
		t.Fatalf("HandleExtracted: %v", err)
	}
	rec, err := st.Get(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.IssueDate != nil {
		t.Errorf("issueDate = %v, want nil for unparsable input", rec.IssueDate)
	}
	if rec.Status != document.StatusCompleted {
		t.Errorf("status = %q, a bad date must not block completion", rec.Status)
	}
}

func TestHandleExtractedWithoutStoredRecord(t *testing.T) {
	st := store.NewMemory()
	n, _ := newTestNormalizer(t, st)
	ctx := context.Background()

	event := document.ExtractedEvent{DocumentID: "doc-orphan", Title: "Báo cáo quý"}
	if err := n.HandleExtracted(ctx, []byte("doc-orphan"), encode(t, event)); err != nil {
		t.Fatalf("HandleExtracted: %v", err)
	}
	rec, err := st.Get(ctx, "doc-orphan")
	if err != nil {
		t.Fatalf("record was not created: %v", err)
	}
	if rec.Title != "Báo cáo quý" {
		t.Errorf("title = %q", rec.Title)
	}
}

type failingStore struct {
	store.Store
	upsertErr error
}

func (f *failingStore) Upsert(ctx context.Context, rec document.Record) error {
	return f.upsertErr
}

func TestHandleExtractedStoreFailure(t *testing.T) {
	st := &failingStore{Store: store.NewMemory(), upsertErr: errors.New("connection reset")}
	n, idx := newTestNormalizer(t, st)
	ctx := context.Background()

	event := document.ExtractedEvent{DocumentID: "doc-1", Title: "Thông báo"}
	if err := n.HandleExtracted(ctx, []byte("doc-1"), encode(t, event)); err == nil {
		t.Fatal("expected error when the store is down")
	}
	if got := idx.Count(); got != 0 {
		t.Errorf("index written despite store failure")
	}
}
