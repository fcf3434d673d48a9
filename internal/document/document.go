// Package document defines the canonical DocumentRecord, the event schemas
// exchanged over the bus, and the normalization rules that derive the search
// and suggestion fields.
package document

import (
	"strconv"
	"strings"
	"time"
)

// Record statuses. A record is created in StatusProcessing at upload time and
// moves to StatusCompleted once normalization has populated every field.
const (
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
)

// subjectPrefix marks the subject line in official correspondence and must
// not appear in the indexed title.
const subjectPrefix = "V/v"

// Record is the canonical, searchable unit. DocumentID is assigned once at
// upload and never regenerated; every later write is a keyed upsert on it.
type Record struct {
	DocumentID     string `json:"documentId"`
	DocumentNumber string `json:"documentNumber,omitempty"`
	DocumentName   string `json:"documentName,omitempty"`
	Title          string `json:"title,omitempty"`
	Content        string `json:"content,omitempty"`
	DocumentType   string `json:"documentType,omitempty"`
	IssuingAgency  string `json:"issuingAgency,omitempty"`
	Signer         string `json:"signer,omitempty"`
	IssueDate      *Date  `json:"issueDate,omitempty"`
	Status         string `json:"status"`
	FileLink       string `json:"fileLink,omitempty"`
	SearchText     string `json:"searchText,omitempty"`
}

// Date is a calendar date serialised as an ISO "2006-01-02" string.
type Date struct {
	time.Time
}

// NewDate builds a Date from year, month, and day.
func NewDate(year int, month time.Month, day int) *Date {
	return &Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format("2006-01-02") + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// ParseIssueDate parses an ISO date string from an extraction payload. It
// returns nil for an empty or unparsable value: a bad date must never abort
// normalization.
func ParseIssueDate(s string) *Date {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &Date{Time: t}
}

// CleanTitle strips the leading "V/v" subject marker and surrounding
// whitespace from an extracted title.
func CleanTitle(title string) string {
	if strings.HasPrefix(title, subjectPrefix) {
		return strings.TrimSpace(title[len(subjectPrefix):])
	}
	return title
}

// BuildSearchText derives the secondary ranked field and suggestion-query
// target: "{type} {number} năm {year} về {title}". The year is empty when the
// issue date is unknown.
func BuildSearchText(documentType, documentNumber string, issueDate *Date, title string) string {
	year := ""
	if issueDate != nil {
		year = strconv.Itoa(issueDate.Year())
	}
	return documentType + " " + documentNumber + " năm " + year + " về " + title
}

// SuggestionInputs derives the set of completion inputs for a record: title,
// document number, document type, and the title+number pair. Empty members
// are omitted and duplicates removed, preserving first-seen order.
func SuggestionInputs(title, documentNumber, documentType string) []string {
	candidates := []string{title, documentNumber, documentType}
	if title != "" && documentNumber != "" {
		candidates = append(candidates, title+" "+documentNumber)
	}
	seen := make(map[string]struct{}, len(candidates))
	inputs := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		inputs = append(inputs, c)
	}
	return inputs
}
