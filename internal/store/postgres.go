package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs-vn/document-search-platform/internal/document"
	apperrors "github.com/rs-vn/document-search-platform/pkg/errors"
	"github.com/rs-vn/document-search-platform/pkg/postgres"
)

// PostgresStore implements Store on top of PostgreSQL. The schema lives in
// db/schema.sql.
type PostgresStore struct {
	db *postgres.Client
}

// NewPostgres creates a PostgresStore.
func NewPostgres(db *postgres.Client) *PostgresStore {
	return &PostgresStore{db: db}
}

const recordColumns = `document_id, document_number, document_name, title, content,
	document_type, issuing_agency, signer, issue_date, status, file_link, search_text`

func (s *PostgresStore) CreateProcessing(ctx context.Context, rec document.Record) error {
	_, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO documents (document_id, document_name, file_link, status, updated_at)
		 VALUES ($1, $2, $3, $4, NOW())`,
		rec.DocumentID, rec.DocumentName, rec.FileLink, document.StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("inserting processing record %s: %w", rec.DocumentID, err)
	}
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, rec document.Record) error {
	_, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO documents (`+recordColumns+`, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		 ON CONFLICT (document_id) DO UPDATE SET
			document_number = EXCLUDED.document_number,
			document_name   = EXCLUDED.document_name,
			title           = EXCLUDED.title,
			content         = EXCLUDED.content,
			document_type   = EXCLUDED.document_type,
			issuing_agency  = EXCLUDED.issuing_agency,
			signer          = EXCLUDED.signer,
			issue_date      = EXCLUDED.issue_date,
			status          = EXCLUDED.status,
			file_link       = EXCLUDED.file_link,
			search_text     = EXCLUDED.search_text,
			updated_at      = NOW()`,
		rec.DocumentID, rec.DocumentNumber, rec.DocumentName, rec.Title, rec.Content,
		rec.DocumentType, rec.IssuingAgency, rec.Signer, nullableDate(rec.IssueDate),
		rec.Status, rec.FileLink, rec.SearchText,
	)
	if err != nil {
		return fmt.Errorf("upserting record %s: %w", rec.DocumentID, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, documentID string) (*document.Record, error) {
	row := s.db.DB.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM documents WHERE document_id = $1`, documentID)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying record %s: %w", documentID, err)
	}
	return rec, nil
}

func (s *PostgresStore) Delete(ctx context.Context, documentID string) error {
	_, err := s.db.DB.ExecContext(ctx,
		`DELETE FROM documents WHERE document_id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("deleting record %s: %w", documentID, err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, offset, limit int) ([]document.Record, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM documents ORDER BY document_id OFFSET $1 LIMIT $2`,
		offset, limit)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *PostgresStore) ListCompleted(ctx context.Context, afterID string, limit int) ([]document.Record, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM documents
		 WHERE status = $1 AND document_id > $2
		 ORDER BY document_id LIMIT $3`,
		document.StatusCompleted, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing completed records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*document.Record, error) {
	var rec document.Record
	var number, name, title, content, dtype, agency, signer, fileLink, searchText sql.NullString
	var issueDate sql.NullTime
	err := row.Scan(
		&rec.DocumentID, &number, &name, &title, &content,
		&dtype, &agency, &signer, &issueDate, &rec.Status, &fileLink, &searchText,
	)
	if err != nil {
		return nil, err
	}
	rec.DocumentNumber = number.String
	rec.DocumentName = name.String
	rec.Title = title.String
	rec.Content = content.String
	rec.DocumentType = dtype.String
	rec.IssuingAgency = agency.String
	rec.Signer = signer.String
	rec.FileLink = fileLink.String
	rec.SearchText = searchText.String
	if issueDate.Valid {
		rec.IssueDate = &document.Date{Time: issueDate.Time}
	}
	return &rec, nil
}

func collectRecords(rows *sql.Rows) ([]document.Record, error) {
	records := make([]document.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return records, nil
}

func nullableDate(d *document.Date) sql.NullTime {
	if d == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: d.Time, Valid: true}
}
