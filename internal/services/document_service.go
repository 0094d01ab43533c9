package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/verdicta-io/verdicta/internal/core"
	"github.com/verdicta-io/verdicta/internal/core/pipeline"
	"github.com/verdicta-io/verdicta/internal/core/queue"
	"github.com/verdicta-io/verdicta/internal/models"
)

// DocumentService is the entry point for callers of the core: it registers
// files, schedules and reschedules ingestion, and answers status polls.
type DocumentService struct {
	db      core.Store
	storage core.FileStore
	queue   queue.Queue
	pipe    *pipeline.Pipeline
}

func NewDocumentService(db core.Store, storage core.FileStore, q queue.Queue, pipe *pipeline.Pipeline) *DocumentService {
	return &DocumentService{db: db, storage: storage, queue: q, pipe: pipe}
}

// Register stores the original file and creates a PENDING document row.
// Ingestion is scheduled separately via Enqueue.
func (s *DocumentService) Register(ctx context.Context, caseID, filename, mimeType string, data []byte) (*models.Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty file")
	}
	docID := uuid.NewString()
	key := s.objectKey(caseID, docID, filename)

	storedPath, err := s.storage.Save(ctx, key, data, mimeType)
	if err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}
	_ = storedPath // the key is the canonical reference; the URL is informational

	hash := sha256.Sum256(data)
	doc := &models.Document{
		ID:          docID,
		CaseID:      caseID,
		FileName:    filename,
		FilePath:    key,
		FileSize:    int64(len(data)),
		MimeType:    mimeType,
		OCRStatus:   models.StatusPending,
		ContentHash: hex.EncodeToString(hash[:]),
	}
	if err := s.db.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	return doc, nil
}

// Enqueue schedules ingestion for one document.
func (s *DocumentService) Enqueue(ctx context.Context, documentID string) (*models.Job, error) {
	return s.queue.Enqueue(ctx, documentID)
}

// EnqueuePending schedules every PENDING document and reports how many jobs
// were created. Stands in for external cron wiring.
func (s *DocumentService) EnqueuePending(ctx context.Context) (int, error) {
	docs, err := s.db.ListPendingDocuments(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending: %w", err)
	}
	var n int
	for _, d := range docs {
		if _, err := s.queue.Enqueue(ctx, d.ID); err != nil {
			return n, fmt.Errorf("enqueue %s: %w", d.ID, err)
		}
		n++
	}
	return n, nil
}

// Reprocess is the destructive retry: page rows are deleted, the document
// returns to PENDING and a fresh ingestion job is queued. It is rejected
// while a job is still waiting or active for the document; deleting page
// rows under a live run would let that run finish with a page count that no
// longer matches the stored rows, with no re-run scheduled.
func (s *DocumentService) Reprocess(ctx context.Context, documentID string) (*models.Job, error) {
	if s.queue.HasPending(documentID) {
		return nil, fmt.Errorf("document %s: %w", documentID, core.ErrJobActive)
	}
	if err := s.pipe.Reset(ctx, documentID); err != nil {
		return nil, err
	}
	return s.queue.Enqueue(ctx, documentID)
}

// Status answers a poll with the state machine position, page counts and any
// captured extraction error.
func (s *DocumentService) Status(ctx context.Context, documentID string) (*models.DocumentStatus, error) {
	doc, err := s.db.GetDocumentByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	processed, err := s.db.CountPages(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("count pages: %w", err)
	}
	st := &models.DocumentStatus{
		DocumentID:     doc.ID,
		Status:         doc.OCRStatus,
		PageCount:      doc.PageCount,
		ProcessedPages: processed,
	}
	if doc.OCRError != nil {
		st.Error = *doc.OCRError
	}
	return st, nil
}

// objectKey creates a consistent storage key layout.
func (s *DocumentService) objectKey(caseID, docID, filename string) string {
	filename = strings.TrimSpace(filename)
	filename = strings.ReplaceAll(filename, " ", "_")
	return path.Join("cases", caseID, "documents", docID, filename)
}
