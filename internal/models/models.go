package models

import (
	"time"
)

// Document processing statuses. A document starts PENDING and moves through
// PROCESSING into exactly one terminal state per run.
const (
	StatusPending      = "PENDING"
	StatusProcessing   = "PROCESSING"
	StatusCompleted    = "COMPLETED"
	StatusFailed       = "FAILED"
	StatusManualReview = "MANUAL_REVIEW"
)

// Job statuses for the in-memory ingestion queue.
const (
	JobWaiting   = "waiting"
	JobActive    = "active"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// Search match types.
const (
	MatchFullText = "full-text"
	MatchSemantic = "semantic"
	MatchHybrid   = "hybrid"
)

// Document represents one source PDF belonging to a case.
type Document struct {
	ID          string     `db:"id" json:"id"`
	CaseID      string     `db:"case_id" json:"case_id"`
	FileName    string     `db:"file_name" json:"file_name"`
	FilePath    string     `db:"file_path" json:"file_path"` // storage key (S3 or local)
	FileSize    int64      `db:"file_size" json:"file_size"`
	MimeType    string     `db:"mime_type" json:"mime_type"`
	PageCount   *int       `db:"page_count" json:"page_count"` // nil until extraction finishes
	OCRStatus   string     `db:"ocr_status" json:"ocr_status"`
	OCRError    *string    `db:"ocr_error" json:"ocr_error,omitempty"`
	ContentHash string     `db:"content_hash" json:"content_hash"`
	ProcessedAt *time.Time `db:"processed_at" json:"processed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// PageContent is one extracted page. Unique per (DocumentID, PageNumber).
type PageContent struct {
	DocumentID    string    `db:"document_id" json:"document_id"`
	CaseID        string    `db:"case_id" json:"case_id"`
	PageNumber    int       `db:"page_number" json:"page_number"` // 1-based
	RawText       string    `db:"raw_text" json:"raw_text"`
	CleanedText   string    `db:"cleaned_text" json:"cleaned_text"`
	WordCount     int       `db:"word_count" json:"word_count"`
	Language      string    `db:"language" json:"language"`
	OCREngine     string    `db:"ocr_engine" json:"ocr_engine"` // "embedded", "gemini-vision" or "docconv"
	OCRConfidence *float64  `db:"ocr_confidence" json:"ocr_confidence,omitempty"`
	Embedding     []float32 `db:"embedding" json:"-"` // nil when the page was too short or embedding failed
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// ExtractionSummary mirrors the document's final extraction outcome onto a job.
type ExtractionSummary struct {
	Status         string `json:"status"`
	PageCount      int    `json:"page_count"`
	ProcessedPages int    `json:"processed_pages"`
	FailedPages    int    `json:"failed_pages"`
}

// Job is an ephemeral, in-memory unit of queued work. Never persisted;
// a process restart loses queue history.
type Job struct {
	ID          string             `json:"id"`
	DocumentID  string             `json:"document_id"`
	CaseID      string             `json:"case_id"`
	FileName    string             `json:"file_name"`
	Status      string             `json:"status"`
	Progress    int                `json:"progress"` // 0-100
	CreatedAt   time.Time          `json:"created_at"`
	StartedAt   *time.Time         `json:"started_at,omitempty"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
	Result      *ExtractionSummary `json:"result,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// CaseMetadata is owning-case context fetched from the case store at query time.
type CaseMetadata struct {
	CaseNumber   string     `db:"case_number" json:"case_number"`
	Appellant    string     `db:"appellant" json:"appellant"`
	Respondent   string     `db:"respondent" json:"respondent"`
	FilingDate   *time.Time `db:"filing_date" json:"filing_date,omitempty"`
	DecisionDate *time.Time `db:"decision_date" json:"decision_date,omitempty"`
	Outcome      string     `db:"outcome" json:"outcome"`
	Chairperson  string     `db:"chairperson" json:"chairperson"`
	BoardMembers []string   `db:"board_members" json:"board_members,omitempty"`
	TaxAmount    float64    `db:"tax_amount" json:"tax_amount"`
}

// SearchResult is one ranked page hit. Transient; never stored.
type SearchResult struct {
	DocumentID string        `json:"document_id"`
	CaseID     string        `json:"case_id"`
	PageNumber int           `json:"page_number"`
	Content    string        `json:"content"` // snippet
	Score      float64       `json:"score"`
	MatchType  string        `json:"match_type"`
	Case       *CaseMetadata `json:"case,omitempty"`
}

// SearchResponse wraps a ranked result list with bookkeeping for callers.
type SearchResponse struct {
	Results         []SearchResult `json:"results"`
	TotalResults    int            `json:"total_results"`
	ExecutionTimeMs int64          `json:"execution_time_ms"`
}

// DocumentStatus is the polling view of a document's ingestion state.
type DocumentStatus struct {
	DocumentID     string `json:"document_id"`
	Status         string `json:"status"`
	PageCount      *int   `json:"page_count"`
	ProcessedPages int    `json:"processed_pages"`
	Error          string `json:"error,omitempty"`
}
