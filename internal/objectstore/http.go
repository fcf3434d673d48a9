package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/rs-vn/document-search-platform/pkg/config"
	apperrors "github.com/rs-vn/document-search-platform/pkg/errors"
	"github.com/rs-vn/document-search-platform/pkg/resilience"
)

// HTTPStore talks to the remote storage service. Calls run under a request
// timeout and a circuit breaker so a dead storage backend fails fast instead
// of tying up upload handlers.
type HTTPStore struct {
	baseURL string
	client  *http.Client
	breaker *resilience.CircuitBreaker
	cfg     config.StorageConfig
	logger  *slog.Logger
}

// NewHTTP creates an HTTPStore for the configured storage service.
func NewHTTP(cfg config.StorageConfig) *HTTPStore {
	return &HTTPStore{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		breaker: resilience.NewCircuitBreaker("object-store", resilience.CircuitBreakerConfig{}),
		cfg:     cfg,
		logger:  slog.Default().With("component", "object-store"),
	}
}

type uploadResponse struct {
	FileURL string `json:"fileUrl"`
}

func (s *HTTPStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	var fileURL string
	err := s.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, s.cfg.RequestTimeout, "object-store put", func(ctx context.Context) error {
			url, err := s.put(ctx, key, data, contentType)
			if err != nil {
				return err
			}
			fileURL = url
			return nil
		})
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
	}
	return fileURL, nil
}

func (s *HTTPStore) put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", key)
	if err != nil {
		return "", fmt.Errorf("building multipart body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("writing multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/files/upload", &body)
	if err != nil {
		return "", fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Blob-Content-Type", contentType)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading blob %s: %w", key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("storage service returned %d for blob %s", resp.StatusCode, key)
	}
	var parsed uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding upload response: %w", err)
	}
	if parsed.FileURL == "" {
		return "", fmt.Errorf("storage service returned no fileUrl for blob %s", key)
	}
	return parsed.FileURL, nil
}

func (s *HTTPStore) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, s.cfg.RequestTimeout, "object-store get", func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/files/"+key, nil)
			if err != nil {
				return err
			}
			resp, err := s.client.Do(req)
			if err != nil {
				return fmt.Errorf("fetching blob %s: %w", key, err)
			}
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusNotFound {
				return apperrors.ErrDocumentNotFound
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("storage service returned %d for blob %s", resp.StatusCode, key)
			}
			data, err = io.ReadAll(resp.Body)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *HTTPStore) Delete(ctx context.Context, key string) error {
	return s.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, s.cfg.RequestTimeout, "object-store delete", func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.baseURL+"/api/files/"+key, nil)
			if err != nil {
				return err
			}
			resp, err := s.client.Do(req)
			if err != nil {
				return fmt.Errorf("deleting blob %s: %w", key, err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
				return fmt.Errorf("storage service returned %d for blob %s", resp.StatusCode, key)
			}
			return nil
		})
	})
}
