// Package coretest provides in-memory test doubles for the persistence
// boundary so pipeline, queue and search tests run without a database.
package coretest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/verdicta-io/verdicta/internal/core"
	"github.com/verdicta-io/verdicta/internal/models"
)

// MemStore implements core.Store and core.CaseStore over maps. Lexical search
// approximates the database's full-text ranking with a term-frequency score;
// semantic search is brute-force cosine over stored embeddings.
type MemStore struct {
	mu    sync.Mutex
	Docs  map[string]*models.Document
	Pages map[string]*models.PageContent // key: documentID:pageNumber
	Cases map[string]*models.CaseMetadata
}

var _ core.Store = (*MemStore)(nil)
var _ core.CaseStore = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		Docs:  make(map[string]*models.Document),
		Pages: make(map[string]*models.PageContent),
		Cases: make(map[string]*models.CaseMetadata),
	}
}

func pageKey(documentID string, pageNumber int) string {
	return fmt.Sprintf("%s:%d", documentID, pageNumber)
}

func (s *MemStore) CreateDocument(ctx context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *doc
	s.Docs[doc.ID] = &cp
	return nil
}

func (s *MemStore) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.Docs[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, core.ErrNotFound)
	}
	cp := *doc
	return &cp, nil
}

func (s *MemStore) ListPendingDocuments(ctx context.Context) ([]models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Document
	for _, d := range s.Docs {
		if d.OCRStatus == models.StatusPending {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemStore) SetDocumentStatus(ctx context.Context, id, status string, ocrError *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.Docs[id]
	if !ok {
		return fmt.Errorf("document %s: %w", id, core.ErrNotFound)
	}
	doc.OCRStatus = status
	doc.OCRError = ocrError
	return nil
}

func (s *MemStore) FinishDocument(ctx context.Context, id string, pageCount int, status string, ocrError *string, processedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.Docs[id]
	if !ok {
		return fmt.Errorf("document %s: %w", id, core.ErrNotFound)
	}
	pc := pageCount
	doc.PageCount = &pc
	doc.OCRStatus = status
	doc.OCRError = ocrError
	doc.ProcessedAt = &processedAt
	return nil
}

func (s *MemStore) ResetDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.Docs[id]
	if !ok {
		return fmt.Errorf("document %s: %w", id, core.ErrNotFound)
	}
	doc.OCRStatus = models.StatusPending
	doc.OCRError = nil
	doc.PageCount = nil
	doc.ProcessedAt = nil
	return nil
}

func (s *MemStore) InsertPageContent(ctx context.Context, page *models.PageContent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pageKey(page.DocumentID, page.PageNumber)
	if _, exists := s.Pages[key]; exists {
		return fmt.Errorf("duplicate page %s", key)
	}
	cp := *page
	s.Pages[key] = &cp
	return nil
}

func (s *MemStore) PageExists(ctx context.Context, documentID string, pageNumber int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.Pages[pageKey(documentID, pageNumber)]
	return ok, nil
}

func (s *MemStore) CountPages(ctx context.Context, documentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for _, p := range s.Pages {
		if p.DocumentID == documentID {
			n++
		}
	}
	return n, nil
}

func (s *MemStore) DeletePagesByDocument(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, p := range s.Pages {
		if p.DocumentID == documentID {
			delete(s.Pages, k)
		}
	}
	return nil
}

func (s *MemStore) SearchLexical(ctx context.Context, query string, limit int) ([]core.PageHit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	terms := strings.Fields(strings.ToLower(query))
	var hits []core.PageHit
	for _, p := range s.Pages {
		lower := strings.ToLower(p.CleanedText)
		var score float64
		for _, t := range terms {
			score += float64(strings.Count(lower, t))
		}
		if score > 0 {
			hits = append(hits, core.PageHit{
				DocumentID:  p.DocumentID,
				CaseID:      p.CaseID,
				PageNumber:  p.PageNumber,
				CleanedText: p.CleanedText,
				Score:       score,
			})
		}
	}
	sortHits(hits)
	return truncateHits(hits, limit), nil
}

func (s *MemStore) SearchSemantic(ctx context.Context, queryVec []float32, limit int) ([]core.PageHit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var hits []core.PageHit
	for _, p := range s.Pages {
		if p.Embedding == nil {
			continue
		}
		hits = append(hits, core.PageHit{
			DocumentID:  p.DocumentID,
			CaseID:      p.CaseID,
			PageNumber:  p.PageNumber,
			CleanedText: p.CleanedText,
			Score:       cosine(queryVec, p.Embedding),
		})
	}
	sortHits(hits)
	return truncateHits(hits, limit), nil
}

func (s *MemStore) GetCaseMetadata(ctx context.Context, caseID string) (*models.CaseMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.Cases[caseID]
	if !ok {
		return nil, fmt.Errorf("case %s: %w", caseID, core.ErrNotFound)
	}
	cp := *m
	return &cp, nil
}

func (s *MemStore) Close() error { return nil }

func sortHits(hits []core.PageHit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].DocumentID != hits[j].DocumentID {
			return hits[i].DocumentID < hits[j].DocumentID
		}
		return hits[i].PageNumber < hits[j].PageNumber
	})
}

func truncateHits(hits []core.PageHit, limit int) []core.PageHit {
	if limit > 0 && len(hits) > limit {
		return hits[:limit]
	}
	return hits
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
