package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/verdicta-io/verdicta/internal/config"
	"github.com/verdicta-io/verdicta/internal/core"
	"github.com/verdicta-io/verdicta/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

var _ core.Store = (*DatabaseClient)(nil)
var _ core.CaseStore = (*DatabaseClient)(nil)

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db, cfg.EmbedDim); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Documents

func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	const q = `
		INSERT INTO documents
			(id, case_id, file_name, file_path, file_size, mime_type, ocr_status, content_hash, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, now()), COALESCE($10, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		doc.ID, doc.CaseID, doc.FileName, doc.FilePath, doc.FileSize, doc.MimeType,
		doc.OCRStatus, doc.ContentHash, nullTime(doc.CreatedAt), nullTime(doc.UpdatedAt))
	return err
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	const q = `
		SELECT id, case_id, file_name, file_path, file_size, mime_type,
		       page_count, ocr_status, ocr_error, content_hash, processed_at, created_at, updated_at
		FROM documents
		WHERE id = $1
	`
	return c.scanDocument(c.db.QueryRowContext(ctx, q, id))
}

func (c *DatabaseClient) ListPendingDocuments(ctx context.Context) ([]models.Document, error) {
	const q = `
		SELECT id, case_id, file_name, file_path, file_size, mime_type,
		       page_count, ocr_status, ocr_error, content_hash, processed_at, created_at, updated_at
		FROM documents
		WHERE ocr_status = $1
		ORDER BY created_at ASC
	`
	rows, err := c.db.QueryContext(ctx, q, models.StatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		d, err := scanDocumentRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) SetDocumentStatus(ctx context.Context, id, status string, ocrError *string) error {
	const q = `
		UPDATE documents
		SET ocr_status = $2, ocr_error = $3, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, status, ocrError)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (c *DatabaseClient) FinishDocument(ctx context.Context, id string, pageCount int, status string, ocrError *string, processedAt time.Time) error {
	const q = `
		UPDATE documents
		SET page_count = $2, ocr_status = $3, ocr_error = $4, processed_at = $5, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, pageCount, status, ocrError, processedAt)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (c *DatabaseClient) ResetDocument(ctx context.Context, id string) error {
	const q = `
		UPDATE documents
		SET ocr_status = $2, ocr_error = NULL, page_count = NULL, processed_at = NULL, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, models.StatusPending)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// Page content

func (c *DatabaseClient) InsertPageContent(ctx context.Context, page *models.PageContent) error {
	if page == nil {
		return errors.New("nil page")
	}
	const q = `
		INSERT INTO page_content
			(document_id, case_id, page_number, raw_text, cleaned_text, word_count,
			 language, ocr_engine, ocr_confidence, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11, now()))
	`
	var emb any
	if page.Embedding != nil {
		emb = pgvector.NewVector(page.Embedding)
	}
	_, err := c.db.ExecContext(ctx, q,
		page.DocumentID, page.CaseID, page.PageNumber, page.RawText, page.CleanedText,
		page.WordCount, page.Language, page.OCREngine, page.OCRConfidence, emb,
		nullTime(page.CreatedAt))
	return err
}

func (c *DatabaseClient) PageExists(ctx context.Context, documentID string, pageNumber int) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM page_content WHERE document_id = $1 AND page_number = $2)`
	var exists bool
	if err := c.db.QueryRowContext(ctx, q, documentID, pageNumber).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (c *DatabaseClient) CountPages(ctx context.Context, documentID string) (int, error) {
	const q = `SELECT COUNT(*) FROM page_content WHERE document_id = $1`
	var n int
	if err := c.db.QueryRowContext(ctx, q, documentID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (c *DatabaseClient) DeletePagesByDocument(ctx context.Context, documentID string) error {
	const q = `DELETE FROM page_content WHERE document_id = $1`
	_, err := c.db.ExecContext(ctx, q, documentID)
	return err
}

// Search

// SearchLexical ranks pages with Postgres full-text search. ts_rank scores
// are on the lexical scale, not comparable to cosine similarity.
func (c *DatabaseClient) SearchLexical(ctx context.Context, query string, limit int) ([]core.PageHit, error) {
	const q = `
		SELECT document_id, case_id, page_number, cleaned_text,
		       ts_rank(text_search, plainto_tsquery('english', $1)) AS score
		FROM page_content
		WHERE text_search @@ plainto_tsquery('english', $1)
		ORDER BY score DESC
		LIMIT $2
	`
	rows, err := c.db.QueryContext(ctx, q, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHits(rows)
}

// SearchSemantic ranks pages by cosine similarity to the query vector.
// Pages without an embedding never surface here.
func (c *DatabaseClient) SearchSemantic(ctx context.Context, queryVec []float32, limit int) ([]core.PageHit, error) {
	const q = `
		SELECT document_id, case_id, page_number, cleaned_text,
		       1 - (embedding <=> $1) AS score
		FROM page_content
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2
	`
	vec := pgvector.NewVector(queryVec)
	rows, err := c.db.QueryContext(ctx, q, vec, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHits(rows)
}

// Cases

func (c *DatabaseClient) GetCaseMetadata(ctx context.Context, caseID string) (*models.CaseMetadata, error) {
	const q = `
		SELECT case_number, appellant, respondent, filing_date, decision_date,
		       outcome, chairperson, board_members, tax_amount
		FROM cases
		WHERE id = $1
	`
	var (
		m       models.CaseMetadata
		filing  sql.NullTime
		decided sql.NullTime
		members []byte
	)
	err := c.db.QueryRowContext(ctx, q, caseID).Scan(
		&m.CaseNumber, &m.Appellant, &m.Respondent, &filing, &decided,
		&m.Outcome, &m.Chairperson, &members, &m.TaxAmount,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("case %s: %w", caseID, core.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if filing.Valid {
		m.FilingDate = &filing.Time
	}
	if decided.Valid {
		m.DecisionDate = &decided.Time
	}
	if len(members) > 0 {
		if err := json.Unmarshal(members, &m.BoardMembers); err != nil {
			return nil, fmt.Errorf("decode board_members: %w", err)
		}
	}
	return &m, nil
}

// scan helpers

type rowScanner interface {
	Scan(dest ...any) error
}

func (c *DatabaseClient) scanDocument(row *sql.Row) (*models.Document, error) {
	d, err := scanDocumentRow(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document: %w", core.ErrNotFound)
	}
	return d, err
}

func scanDocumentRow(row rowScanner) (*models.Document, error) {
	var (
		d         models.Document
		pageCount sql.NullInt64
		ocrError  sql.NullString
		processed sql.NullTime
	)
	err := row.Scan(
		&d.ID, &d.CaseID, &d.FileName, &d.FilePath, &d.FileSize, &d.MimeType,
		&pageCount, &d.OCRStatus, &ocrError, &d.ContentHash, &processed, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if pageCount.Valid {
		n := int(pageCount.Int64)
		d.PageCount = &n
	}
	if ocrError.Valid {
		d.OCRError = &ocrError.String
	}
	if processed.Valid {
		d.ProcessedAt = &processed.Time
	}
	return &d, nil
}

func scanHits(rows *sql.Rows) ([]core.PageHit, error) {
	var out []core.PageHit
	for rows.Next() {
		var h core.PageHit
		if err := rows.Scan(&h.DocumentID, &h.CaseID, &h.PageNumber, &h.CleanedText, &h.Score); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
