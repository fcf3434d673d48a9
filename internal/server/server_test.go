package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs-vn/document-search-platform/internal/coordinator"
	"github.com/rs-vn/document-search-platform/internal/document"
	"github.com/rs-vn/document-search-platform/internal/index"
	"github.com/rs-vn/document-search-platform/internal/indexwriter"
	"github.com/rs-vn/document-search-platform/internal/objectstore"
	"github.com/rs-vn/document-search-platform/internal/query"
	"github.com/rs-vn/document-search-platform/internal/store"
	"github.com/rs-vn/document-search-platform/pkg/config"
	"github.com/rs-vn/document-search-platform/pkg/health"
	"github.com/rs-vn/document-search-platform/pkg/metrics"
)

type nopPublisher struct{}

func (nopPublisher) Publish(ctx context.Context, key string, payload any) error { return nil }

type testServer struct {
	server *Server
	store  *store.MemoryStore
	writer *indexwriter.Writer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st := store.NewMemory()
	idx := index.New()
	m := metrics.NewUnregistered()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	writer := indexwriter.New(idx, st,
		config.IndexConfig{WriteMaxAttempts: 1, WriteRetryDelay: time.Millisecond},
		m, log, nil)
	coord := coordinator.New(st, objectstore.NewMemory(), nopPublisher{}, writer, m, log)
	searchCfg := config.SearchConfig{DefaultPageSize: 6, MaxPageSize: 100, DefaultSuggestLimit: 6, MaxSuggestLimit: 20}
	engine := query.New(idx, nil, time.Minute, searchCfg, m, log)

	checker := health.NewChecker()
	srv := New(coord, engine, checker,
		config.ServerConfig{Port: 0, MaxUploadBytes: 1 << 20, RequestTimeout: 5 * time.Second},
		searchCfg, m, log)
	return &testServer{server: srv, store: st, writer: writer}
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func (ts *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) indexCompleted(t *testing.T, id, number, title string) {
	t.Helper()
	rec := document.Record{
		DocumentID:     id,
		DocumentNumber: number,
		Title:          title,
		DocumentType:   "Quyết định",
		SearchText:     title,
		Status:         document.StatusCompleted,
		FileLink:       "http://files/" + id + ".pdf",
	}
	if err := ts.store.Upsert(context.Background(), rec); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	if err := ts.writer.Write(context.Background(), rec); err != nil {
		t.Fatalf("seed index: %v", err)
	}
}

func TestUploadEndpoint(t *testing.T) {
	ts := newTestServer(t)
	body, contentType := multipartBody(t, "file", "quyet-dinh.pdf", []byte("%PDF-1.4"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := ts.do(t, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202; body %s", rr.Code, rr.Body)
	}
	var result coordinator.UploadResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.DocumentID == "" || result.Status != document.StatusProcessing {
		t.Errorf("unexpected result %+v", result)
	}

	statusReq := httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+result.DocumentID+"/status", nil)
	statusRR := ts.do(t, statusReq)
	if statusRR.Code != http.StatusOK {
		t.Fatalf("status endpoint = %d", statusRR.Code)
	}
	var status coordinator.StatusResult
	if err := json.Unmarshal(statusRR.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Status != "processing" {
		t.Errorf("status = %q, want processing", status.Status)
	}
}

func TestUploadMissingFileField(t *testing.T) {
	ts := newTestServer(t)
	body, contentType := multipartBody(t, "attachment", "a.pdf", []byte("x"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	if rr := ts.do(t, req); rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.indexCompleted(t, "doc-1", "12/QĐ", "Phê duyệt kế hoạch")
	ts.indexCompleted(t, "doc-2", "45/CV", "Thông báo nghỉ lễ")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/search?keyword=k%E1%BA%BF+ho%E1%BA%A1ch", nil)
	rr := ts.do(t, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var results []document.Record
	if err := json.Unmarshal(rr.Body.Bytes(), &results); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if len(results) != 1 || results[0].DocumentID != "doc-1" {
		t.Errorf("got %+v, want doc-1", results)
	}
}

func TestSearchEndpointEmptyKeyword(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/documents/search", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var results []document.Record
	if err := json.Unmarshal(rr.Body.Bytes(), &results); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("empty keyword returned %d results", len(results))
	}
}

func TestSuggestEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.indexCompleted(t, "doc-1", "12/QĐ", "Quyết định phê duyệt")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/suggest?query=Quy%E1%BA%BFt", nil)
	rr := ts.do(t, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var options []index.Suggestion
	if err := json.Unmarshal(rr.Body.Bytes(), &options); err != nil {
		t.Fatalf("decode options: %v", err)
	}
	if len(options) == 0 {
		t.Error("no suggestions returned")
	}
}

func TestGetEndpointNotFound(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/documents/missing", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestListEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.indexCompleted(t, "doc-1", "12/QĐ", "Phê duyệt kế hoạch")
	ts.indexCompleted(t, "doc-2", "45/CV", "Thông báo nghỉ lễ")

	rr := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/documents?page=0&size=1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var records []document.Record
	if err := json.Unmarshal(rr.Body.Bytes(), &records); err != nil {
		t.Fatalf("decode records: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("got %d records, want 1", len(records))
	}
}

func TestDownloadEndpointRedirects(t *testing.T) {
	ts := newTestServer(t)
	ts.indexCompleted(t, "doc-1", "12/QĐ", "Phê duyệt kế hoạch")

	rr := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/documents/doc-1/download", nil))
	if rr.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "http://files/doc-1.pdf" {
		t.Errorf("Location = %q", loc)
	}
}

func TestDeleteEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.indexCompleted(t, "doc-1", "12/QĐ", "Phê duyệt kế hoạch")

	rr := ts.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/documents/doc-1", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
	rr = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/documents/doc-1", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("status after delete = %d, want 404", rr.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)
	if rr := ts.do(t, httptest.NewRequest(http.MethodGet, "/health/live", nil)); rr.Code != http.StatusOK {
		t.Errorf("live = %d", rr.Code)
	}
	if rr := ts.do(t, httptest.NewRequest(http.MethodGet, "/health/ready", nil)); rr.Code != http.StatusOK {
		t.Errorf("ready = %d", rr.Code)
	}
}
