package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/rs-vn/document-search-platform/internal/coordinator"
	apperrors "github.com/rs-vn/document-search-platform/pkg/errors"
	"github.com/rs-vn/document-search-platform/pkg/logger"
	"github.com/rs-vn/document-search-platform/pkg/middleware"
)

// handleUpload accepts a multipart upload under the "file" field and
// answers immediately with the assigned id; extraction and indexing happen
// asynchronously.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, r, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusRequestEntityTooLarge,
				"file exceeds %d bytes", maxErr.Limit))
			return
		}
		s.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "missing file field"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "unreadable file"))
		return
	}

	result, err := s.coordinator.Upload(r.Context(), coordinator.UploadInput{
		FileName: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Data:     data,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, result)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("keyword")
	page := queryInt(r, "page", 0)
	size := queryInt(r, "size", 0)
	results := s.query.Search(r.Context(), keyword, page, size)
	s.writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("query")
	limit := queryInt(r, "limit", 0)
	options := s.query.Suggest(r.Context(), prefix, limit)
	s.writeJSON(w, http.StatusOK, options)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 0)
	size := queryInt(r, "size", s.searchCfg.DefaultPageSize)
	if s.searchCfg.MaxPageSize > 0 && size > s.searchCfg.MaxPageSize {
		size = s.searchCfg.MaxPageSize
	}
	records, err := s.coordinator.List(r.Context(), page, size)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.coordinator.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.coordinator.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	rec, err := s.coordinator.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if rec.FileLink == "" {
		s.writeError(w, r, apperrors.New(apperrors.ErrDocumentNotFound, http.StatusNotFound, "document has no stored file"))
		return
	}
	http.Redirect(w, r, rec.FileLink, http.StatusFound)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.coordinator.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("encoding response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
	}
	body := map[string]string{"error": errorMessage(err)}
	if id := middleware.GetRequestID(r.Context()); id != "" {
		body["requestId"] = id
	}
	s.writeJSON(w, status, body)
}

// errorMessage keeps internal detail out of 5xx responses.
func errorMessage(err error) string {
	if apperrors.HTTPStatusCode(err) >= http.StatusInternalServerError {
		return "internal error"
	}
	return err.Error()
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
