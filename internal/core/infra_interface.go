package core

import (
	"context"
	"time"

	"github.com/verdicta-io/verdicta/internal/models"
)

// PageHit is one page row returned by a store-side ranking query.
type PageHit struct {
	DocumentID  string
	CaseID      string
	PageNumber  int
	CleanedText string
	Score       float64
}

// Store defines all persistence operations the pipeline and search engine
// need. It abstracts Postgres/pgvector so higher layers never depend on a
// specific DB.
type Store interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	ListPendingDocuments(ctx context.Context) ([]models.Document, error)

	// SetDocumentStatus moves a document through the state machine. A nil
	// ocrError clears any previous error.
	SetDocumentStatus(ctx context.Context, id, status string, ocrError *string) error
	// FinishDocument records the terminal state of a run together with the
	// page count and processing timestamp, in one write.
	FinishDocument(ctx context.Context, id string, pageCount int, status string, ocrError *string, processedAt time.Time) error
	// ResetDocument returns a document to PENDING, clearing page count,
	// error and processed timestamp. Used by reprocess.
	ResetDocument(ctx context.Context, id string) error

	InsertPageContent(ctx context.Context, page *models.PageContent) error
	PageExists(ctx context.Context, documentID string, pageNumber int) (bool, error)
	CountPages(ctx context.Context, documentID string) (int, error)
	DeletePagesByDocument(ctx context.Context, documentID string) error

	// SearchLexical ranks pages by the store's native full-text relevance.
	// Only rows with non-zero relevance are returned.
	SearchLexical(ctx context.Context, query string, limit int) ([]PageHit, error)
	// SearchSemantic ranks pages with a non-null embedding by cosine
	// similarity (1 - cosine distance) to the query vector.
	SearchSemantic(ctx context.Context, queryVec []float32, limit int) ([]PageHit, error)

	Close() error
}

// CaseStore is the boundary to the external case-management system. Search
// results join page identifiers against it at query time; this core never
// owns or mutates case data.
type CaseStore interface {
	GetCaseMetadata(ctx context.Context, caseID string) (*models.CaseMetadata, error)
}

// FileStore abstracts storage of original files (S3 in production, local
// disk in tests). Keys are opaque; Document.FilePath holds them.
type FileStore interface {
	Save(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Fetch(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
