package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/verdicta-io/verdicta/internal/core"
	"github.com/verdicta-io/verdicta/internal/core/embed"
	"github.com/verdicta-io/verdicta/internal/models"
)

// Pipeline drives one document through extraction, embedding and persistence,
// and owns the document status state machine:
//
//	PENDING -> PROCESSING -> {COMPLETED, FAILED, MANUAL_REVIEW}
type Pipeline struct {
	store     core.Store
	files     core.FileStore
	extractor core.PageExtractor
	embedder  *embed.Generator
}

func New(store core.Store, files core.FileStore, extractor core.PageExtractor, embedder *embed.Generator) *Pipeline {
	return &Pipeline{store: store, files: files, extractor: extractor, embedder: embedder}
}

// ProcessDocument runs the full ingestion for one document. Extraction-time
// errors are captured into the document's status and error field; the only
// errors returned to the caller are unknown ids and infrastructure failures
// that prevent the state machine from being updated at all.
//
// progress, when non-nil, receives coarse percentages for job observability.
func (p *Pipeline) ProcessDocument(ctx context.Context, documentID string, progress func(int)) (*models.ExtractionSummary, error) {
	report := func(pct int) {
		if progress != nil {
			progress(pct)
		}
	}

	doc, err := p.store.GetDocumentByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", documentID, err)
	}

	// Entering PROCESSING clears any previous error.
	if err := p.store.SetDocumentStatus(ctx, documentID, models.StatusProcessing, nil); err != nil {
		return nil, fmt.Errorf("mark processing: %w", err)
	}
	report(5)

	data, err := p.files.Fetch(ctx, doc.FilePath)
	if err != nil {
		return p.finishFailed(ctx, documentID, 0, fmt.Sprintf("fetch file %s: %v", doc.FilePath, err))
	}
	report(10)

	pages, err := p.extractor.Extract(ctx, data, doc.MimeType)
	if err != nil {
		// File-level failure: no pages were produced.
		return p.finishFailed(ctx, documentID, 0, fmt.Sprintf("extraction failed: %v", err))
	}
	report(40)

	var processed, failed int
	for i, page := range pages {
		if page.Failed {
			failed++
		} else if err := p.processPage(ctx, doc, page); err != nil {
			log.Printf("pipeline: document %s page %d: %v", documentID, page.Number, err)
			failed++
		} else {
			processed++
		}
		report(40 + (i+1)*55/len(pages))
	}

	summary := &models.ExtractionSummary{
		PageCount:      len(pages),
		ProcessedPages: processed,
		FailedPages:    failed,
	}

	// Terminal transition, evaluated after attempting every page.
	var errMsg *string
	switch {
	case failed == 0:
		summary.Status = models.StatusCompleted
	case processed == 0:
		summary.Status = models.StatusFailed
		msg := fmt.Sprintf("all %d pages failed extraction", len(pages))
		errMsg = &msg
	default:
		summary.Status = models.StatusManualReview
		msg := fmt.Sprintf("%d of %d pages failed extraction, manual review required", failed, len(pages))
		errMsg = &msg
	}

	if err := p.store.FinishDocument(ctx, documentID, len(pages), summary.Status, errMsg, time.Now()); err != nil {
		return nil, fmt.Errorf("finish document: %w", err)
	}
	report(100)
	return summary, nil
}

// processPage persists one successfully extracted page. A pre-existing row is
// an idempotent no-op so a resumed run never duplicates pages. Embedding is
// best-effort: a failure is logged and the page is saved without a vector.
func (p *Pipeline) processPage(ctx context.Context, doc *models.Document, page core.Page) error {
	exists, err := p.store.PageExists(ctx, doc.ID, page.Number)
	if err != nil {
		return fmt.Errorf("page exists check: %w", err)
	}
	if exists {
		return nil
	}

	var vector []float32
	if p.embedder != nil && p.embedder.ShouldEmbed(page.CleanedText) {
		vector, err = p.embedder.Embed(ctx, page.CleanedText)
		if err != nil {
			log.Printf("pipeline: embedding page %d of document %s failed (page kept): %v", page.Number, doc.ID, err)
			vector = nil
		}
	}

	row := &models.PageContent{
		DocumentID:  doc.ID,
		CaseID:      doc.CaseID,
		PageNumber:  page.Number,
		RawText:     page.RawText,
		CleanedText: page.CleanedText,
		WordCount:   page.WordCount,
		Language:    "en",
		OCREngine:   page.Source,
		Embedding:   vector,
	}
	if err := p.store.InsertPageContent(ctx, row); err != nil {
		return fmt.Errorf("insert page: %w", err)
	}
	return nil
}

// Reset prepares a document for reprocessing: all page rows are deleted and
// the document returns to PENDING with page count, error and processed
// timestamp cleared. This is the only supported retry path.
func (p *Pipeline) Reset(ctx context.Context, documentID string) error {
	if _, err := p.store.GetDocumentByID(ctx, documentID); err != nil {
		return fmt.Errorf("load document %s: %w", documentID, err)
	}
	if err := p.store.DeletePagesByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete pages: %w", err)
	}
	if err := p.store.ResetDocument(ctx, documentID); err != nil {
		return fmt.Errorf("reset document: %w", err)
	}
	return nil
}

func (p *Pipeline) finishFailed(ctx context.Context, documentID string, pageCount int, msg string) (*models.ExtractionSummary, error) {
	if err := p.store.FinishDocument(ctx, documentID, pageCount, models.StatusFailed, &msg, time.Now()); err != nil {
		return nil, fmt.Errorf("finish document: %w", err)
	}
	return &models.ExtractionSummary{
		Status:    models.StatusFailed,
		PageCount: pageCount,
	}, nil
}
