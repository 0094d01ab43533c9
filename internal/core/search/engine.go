package search

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/verdicta-io/verdicta/internal/core"
	"github.com/verdicta-io/verdicta/internal/core/embed"
	"github.com/verdicta-io/verdicta/internal/models"
)

const defaultLimit = 20

// Options tune one search call. Nil weights fall back to the engine defaults;
// the two weights need not sum to 1.
type Options struct {
	Mode           string // models.MatchFullText, MatchSemantic or MatchHybrid
	Limit          int
	LexicalWeight  *float64
	SemanticWeight *float64
}

// Engine executes lexical, semantic and hybrid queries over the page store
// and annotates results with owning-case metadata. It reads concurrently with
// the ingestion writer; no coordination is needed beyond the store's own
// transaction isolation.
type Engine struct {
	store    core.Store
	cases    core.CaseStore
	embedder *embed.Generator

	lexicalWeight  float64
	semanticWeight float64
}

func NewEngine(store core.Store, cases core.CaseStore, embedder *embed.Generator, lexicalWeight, semanticWeight float64) *Engine {
	if lexicalWeight == 0 && semanticWeight == 0 {
		lexicalWeight, semanticWeight = 0.5, 0.5
	}
	return &Engine{
		store:          store,
		cases:          cases,
		embedder:       embedder,
		lexicalWeight:  lexicalWeight,
		semanticWeight: semanticWeight,
	}
}

// Search runs one query and returns ranked, snippeted, enriched results.
// Search errors propagate synchronously; a query that cannot be embedded
// fails the whole semantic/hybrid call.
func (e *Engine) Search(ctx context.Context, query string, opts Options) (*models.SearchResponse, error) {
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	started := time.Now()

	var (
		results []models.SearchResult
		err     error
	)
	switch opts.Mode {
	case models.MatchFullText, "":
		results, err = e.lexical(ctx, query, limit)
	case models.MatchSemantic:
		results, err = e.semantic(ctx, query, limit)
	case models.MatchHybrid:
		results, err = e.hybrid(ctx, query, limit, opts)
	default:
		return nil, fmt.Errorf("unknown search mode %q", opts.Mode)
	}
	if err != nil {
		return nil, err
	}

	e.enrich(ctx, results)

	return &models.SearchResponse{
		Results:         results,
		TotalResults:    len(results),
		ExecutionTimeMs: time.Since(started).Milliseconds(),
	}, nil
}

func (e *Engine) lexical(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	hits, err := e.store.SearchLexical(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	return toResults(hits, query, models.MatchFullText), nil
}

func (e *Engine) semantic(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	vec, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	hits, err := e.store.SearchSemantic(ctx, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	return toResults(hits, query, models.MatchSemantic), nil
}

// hybrid outer-joins the two candidate sets keyed by page identity. A page
// returned by only one method keeps a zero score for the other side; dropping
// single-method pages would lose most useful hybrid hits.
func (e *Engine) hybrid(ctx context.Context, query string, limit int, opts Options) ([]models.SearchResult, error) {
	wLex, wSem := e.lexicalWeight, e.semanticWeight
	if opts.LexicalWeight != nil {
		wLex = *opts.LexicalWeight
	}
	if opts.SemanticWeight != nil {
		wSem = *opts.SemanticWeight
	}

	vec, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	lexHits, err := e.store.SearchLexical(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical candidates: %w", err)
	}
	semHits, err := e.store.SearchSemantic(ctx, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("semantic candidates: %w", err)
	}

	type fused struct {
		hit      core.PageHit
		lexScore float64
		semScore float64
		order    int // first-seen order, keeps the sort deterministic on ties
	}
	merged := make(map[string]*fused, len(lexHits)+len(semHits))
	key := func(h core.PageHit) string {
		return fmt.Sprintf("%s:%d", h.DocumentID, h.PageNumber)
	}
	for _, h := range lexHits {
		merged[key(h)] = &fused{hit: h, lexScore: h.Score, order: len(merged)}
	}
	for _, h := range semHits {
		if f, ok := merged[key(h)]; ok {
			f.semScore = h.Score
		} else {
			merged[key(h)] = &fused{hit: h, semScore: h.Score, order: len(merged)}
		}
	}

	ranked := make([]*fused, 0, len(merged))
	for _, f := range merged {
		ranked = append(ranked, f)
	}
	sort.Slice(ranked, func(i, j int) bool {
		si := wLex*ranked[i].lexScore + wSem*ranked[i].semScore
		sj := wLex*ranked[j].lexScore + wSem*ranked[j].semScore
		if si != sj {
			return si > sj
		}
		return ranked[i].order < ranked[j].order
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	out := make([]models.SearchResult, 0, len(ranked))
	for _, f := range ranked {
		out = append(out, models.SearchResult{
			DocumentID: f.hit.DocumentID,
			CaseID:     f.hit.CaseID,
			PageNumber: f.hit.PageNumber,
			Content:    BuildSnippet(f.hit.CleanedText, query, snippetMaxLen),
			Score:      wLex*f.lexScore + wSem*f.semScore,
			MatchType:  models.MatchHybrid,
		})
	}
	return out, nil
}

func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if e.embedder == nil {
		return nil, fmt.Errorf("no embedder configured: %w", core.ErrQueryEmbedding)
	}
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %v: %w", err, core.ErrQueryEmbedding)
	}
	return vec, nil
}

// enrich attaches case metadata from the external case store. A lookup
// failure leaves the result without metadata rather than failing the search.
func (e *Engine) enrich(ctx context.Context, results []models.SearchResult) {
	if e.cases == nil {
		return
	}
	seen := make(map[string]*models.CaseMetadata)
	for i := range results {
		caseID := results[i].CaseID
		meta, ok := seen[caseID]
		if !ok {
			var err error
			meta, err = e.cases.GetCaseMetadata(ctx, caseID)
			if err != nil {
				log.Printf("search: case metadata for %s unavailable: %v", caseID, err)
				meta = nil
			}
			seen[caseID] = meta
		}
		results[i].Case = meta
	}
}

func toResults(hits []core.PageHit, query, matchType string) []models.SearchResult {
	out := make([]models.SearchResult, 0, len(hits))
	for _, h := range hits {
		out = append(out, models.SearchResult{
			DocumentID: h.DocumentID,
			CaseID:     h.CaseID,
			PageNumber: h.PageNumber,
			Content:    BuildSnippet(h.CleanedText, query, snippetMaxLen),
			Score:      h.Score,
			MatchType:  matchType,
		})
	}
	return out
}
