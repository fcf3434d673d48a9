//go:build e2e

// Package e2e exercises a running document service over HTTP: upload,
// status, search, suggest, and delete.
//
// Prerequisites: the server running (standalone mode is enough), reachable
// at E2E_BASE_URL (default http://localhost:8080).
//
// Run with:
//
//	go test -v -tags=e2e -timeout=120s ./test/e2e/...
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"testing"
	"time"
)

func baseURL() string {
	if v := os.Getenv("E2E_BASE_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

func newClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func requireService(t *testing.T, client *http.Client) {
	t.Helper()
	resp, err := client.Get(baseURL() + "/health/live")
	if err != nil {
		t.Skipf("service unavailable at %s: %v", baseURL(), err)
	}
	resp.Body.Close()
}

func TestHealthProbes(t *testing.T) {
	client := newClient()
	requireService(t, client)

	for _, path := range []string{"/health/live", "/health/ready"} {
		t.Run(path, func(t *testing.T) {
			resp, err := client.Get(baseURL() + path)
			if err != nil {
				t.Fatalf("GET %s: %v", path, err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				t.Errorf("expected 200, got %d: %s", resp.StatusCode, body)
			}
		})
	}
}

func TestDocumentLifecycle(t *testing.T) {
	client := newClient()
	requireService(t, client)

	// Upload.
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "e2e-test.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	fmt.Fprintf(part, "văn bản kiểm tra tự động %d", time.Now().UnixNano())
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, baseURL()+"/api/v1/documents/upload", &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("upload status = %d: %s", resp.StatusCode, body)
	}
	var uploaded struct {
		DocumentID string `json:"documentId"`
		FileURL    string `json:"fileUrl"`
		Status     string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	if uploaded.DocumentID == "" || uploaded.Status != "PROCESSING" {
		t.Fatalf("unexpected upload response %+v", uploaded)
	}

	// Status is visible immediately. Without an extraction collaborator the
	// document stays PROCESSING, which is fine here.
	statusResp, err := client.Get(baseURL() + "/api/v1/documents/" + uploaded.DocumentID + "/status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	defer statusResp.Body.Close()
	if statusResp.StatusCode != http.StatusOK {
		t.Fatalf("status endpoint = %d", statusResp.StatusCode)
	}
	var status struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(statusResp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Status != "processing" && status.Status != "completed" {
		t.Errorf("status = %q", status.Status)
	}

	// Search and suggest answer even when the new document is not yet
	// indexed.
	for _, path := range []string{
		"/api/v1/documents/search?keyword=ki%E1%BB%83m+tra",
		"/api/v1/documents/suggest?query=v%C4%83n",
	} {
		queryResp, err := client.Get(baseURL() + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		if queryResp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d", path, queryResp.StatusCode)
		}
		queryResp.Body.Close()
	}

	// Delete, then the record is gone.
	delReq, err := http.NewRequest(http.MethodDelete, baseURL()+"/api/v1/documents/"+uploaded.DocumentID, nil)
	if err != nil {
		t.Fatalf("new delete request: %v", err)
	}
	delResp, err := client.Do(delReq)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", delResp.StatusCode)
	}

	getResp, err := client.Get(baseURL() + "/api/v1/documents/" + uploaded.DocumentID)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	getResp.Body.Close()
	if getResp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", getResp.StatusCode)
	}
}
