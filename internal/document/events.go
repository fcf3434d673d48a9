package document

import (
	"fmt"
	"strings"
)

// Bus topics carrying ingestion events. Events are keyed by documentId, so
// delivery order is guaranteed per document within a consumer group.
const (
	TopicFileUploaded  = "file-uploaded"
	TopicTextExtracted = "file-text-extracted"
)

// UploadedEvent is published on TopicFileUploaded after a blob has been
// stored and the PROCESSING record created.
type UploadedEvent struct {
	DocumentID string `json:"documentId"`
	FileName   string `json:"fileName"`
	FileURL    string `json:"fileUrl"`
	MimeType   string `json:"mimeType"`
	UploadTime string `json:"uploadTime"`
}

// Validate checks the event carries the fields the extraction collaborator
// needs. Malformed events are rejected rather than defaulted.
func (e UploadedEvent) Validate() error {
	if strings.TrimSpace(e.DocumentID) == "" {
		return fmt.Errorf("uploaded event: missing documentId")
	}
	if strings.TrimSpace(e.FileURL) == "" {
		return fmt.Errorf("uploaded event: missing fileUrl for document %s", e.DocumentID)
	}
	return nil
}

// ExtractedEvent is consumed from TopicTextExtracted. IssueDate is an ISO
// date string and optional; any other malformed field is recoverable and
// handled by the normalizer, but a missing documentId makes the event
// unroutable and it is rejected.
type ExtractedEvent struct {
	DocumentID     string `json:"documentId"`
	DocumentNumber string `json:"documentNumber"`
	Title          string `json:"title"`
	Content        string `json:"content"`
	DocumentType   string `json:"documentType"`
	IssuingAgency  string `json:"issuingAgency"`
	Signer         string `json:"signer"`
	IssueDate      string `json:"issueDate,omitempty"`
	Status         string `json:"status"`
	FileURL        string `json:"fileUrl"`
}

// Validate rejects events that cannot be keyed to a record.
func (e ExtractedEvent) Validate() error {
	if strings.TrimSpace(e.DocumentID) == "" {
		return fmt.Errorf("extracted event: missing documentId")
	}
	return nil
}
