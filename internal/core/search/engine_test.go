package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/verdicta-io/verdicta/internal/core"
	"github.com/verdicta-io/verdicta/internal/core/coretest"
	"github.com/verdicta-io/verdicta/internal/core/embed"
	"github.com/verdicta-io/verdicta/internal/models"
)

// queryProvider embeds every input to the same fixed direction so semantic
// scores depend only on the stored page vectors.
type queryProvider struct {
	err error
}

func (p *queryProvider) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if p.err != nil {
		return nil, p.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func addPage(store *coretest.MemStore, docID string, page int, text string, vec []float32) {
	key := fmt.Sprintf("%s:%d", docID, page)
	store.Pages[key] = &models.PageContent{
		DocumentID:  docID,
		CaseID:      "case-1",
		PageNumber:  page,
		CleanedText: text,
		Embedding:   vec,
	}
}

// seedCorpus builds three pages with known lexical and semantic behavior for
// the query "customs excise":
//
//	doc-both   : matches both methods (3 term hits, vector aligned with query)
//	doc-lex    : lexical only (2 term hits, no embedding)
//	doc-sem    : semantic only (no query terms, vector at cos 0.8)
func seedCorpus(store *coretest.MemStore) {
	addPage(store, "doc-both", 1,
		"the customs and excise department assessed customs duty on the goods",
		[]float32{1, 0, 0})
	addPage(store, "doc-lex", 1,
		"customs officers seized the customs declaration forms",
		nil)
	addPage(store, "doc-sem", 1,
		"import levies were applied to the consignment at the border",
		[]float32{0.8, 0.6, 0})
	store.Cases["case-1"] = &models.CaseMetadata{
		CaseNumber: "TAT/2024/015",
		Appellant:  "Acme Importers Ltd",
		Respondent: "Commissioner of Domestic Taxes",
		Outcome:    "allowed",
	}
}

func newTestEngine(store *coretest.MemStore, provider core.EmbeddingProvider, wLex, wSem float64) *Engine {
	gen := embed.NewGenerator(provider, 3, 2000, 1)
	return NewEngine(store, store, gen, wLex, wSem)
}

func resultIDs(results []models.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.DocumentID
	}
	return out
}

func TestSearchEmptyQuery(t *testing.T) {
	e := newTestEngine(coretest.NewMemStore(), &queryProvider{}, 0.5, 0.5)
	if _, err := e.Search(context.Background(), "", Options{}); err == nil {
		t.Error("empty query must be rejected")
	}
}

func TestSearchUnknownMode(t *testing.T) {
	e := newTestEngine(coretest.NewMemStore(), &queryProvider{}, 0.5, 0.5)
	_, err := e.Search(context.Background(), "customs", Options{Mode: "fuzzy"})
	if err == nil || !strings.Contains(err.Error(), "unknown search mode") {
		t.Errorf("got %v", err)
	}
}

func TestLexicalSearch(t *testing.T) {
	store := coretest.NewMemStore()
	seedCorpus(store)
	e := newTestEngine(store, &queryProvider{}, 0.5, 0.5)

	resp, err := e.Search(context.Background(), "customs excise", Options{Mode: models.MatchFullText})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := resultIDs(resp.Results)
	want := []string{"doc-both", "doc-lex"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("results = %v, want %v", got, want)
	}
	for _, r := range resp.Results {
		if r.MatchType != models.MatchFullText {
			t.Errorf("match type = %q, want full-text", r.MatchType)
		}
		if r.Score <= 0 {
			t.Errorf("%s score = %g, want > 0", r.DocumentID, r.Score)
		}
		if !strings.Contains(strings.ToLower(r.Content), "customs") {
			t.Errorf("%s snippet %q lacks a query term", r.DocumentID, r.Content)
		}
	}
	if resp.TotalResults != 2 {
		t.Errorf("total = %d, want 2", resp.TotalResults)
	}
}

func TestSemanticSearchSkipsUnembeddedPages(t *testing.T) {
	store := coretest.NewMemStore()
	seedCorpus(store)
	e := newTestEngine(store, &queryProvider{}, 0.5, 0.5)

	resp, err := e.Search(context.Background(), "customs excise", Options{Mode: models.MatchSemantic})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := resultIDs(resp.Results)
	want := []string{"doc-both", "doc-sem"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("results = %v, want %v", got, want)
	}
	if resp.Results[0].Score <= resp.Results[1].Score {
		t.Errorf("scores not descending: %g then %g", resp.Results[0].Score, resp.Results[1].Score)
	}
}

func TestHybridOuterJoinUnion(t *testing.T) {
	store := coretest.NewMemStore()
	seedCorpus(store)
	e := newTestEngine(store, &queryProvider{}, 0.5, 0.5)

	resp, err := e.Search(context.Background(), "customs excise", Options{Mode: models.MatchHybrid})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// All three pages appear: single-method pages keep a zero score for the
	// side that missed them instead of being dropped.
	if len(resp.Results) != 3 {
		t.Fatalf("got %d results, want 3: %v", len(resp.Results), resultIDs(resp.Results))
	}
	if resp.Results[0].DocumentID != "doc-both" {
		t.Errorf("top result = %s, want doc-both", resp.Results[0].DocumentID)
	}
	for _, r := range resp.Results {
		if r.MatchType != models.MatchHybrid {
			t.Errorf("match type = %q, want hybrid", r.MatchType)
		}
		if r.Score <= 0 {
			t.Errorf("%s fused score = %g, want > 0", r.DocumentID, r.Score)
		}
	}
}

func TestHybridPureLexicalWeights(t *testing.T) {
	store := coretest.NewMemStore()
	seedCorpus(store)
	e := newTestEngine(store, &queryProvider{}, 0.5, 0.5)

	one, zero := 1.0, 0.0
	resp, err := e.Search(context.Background(), "customs excise", Options{
		Mode:           models.MatchHybrid,
		LexicalWeight:  &one,
		SemanticWeight: &zero,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := resultIDs(resp.Results)
	// With all weight on lexical, the lexical ranking leads; doc-sem trails
	// with score zero but is still present.
	if got[0] != "doc-both" || got[1] != "doc-lex" || got[2] != "doc-sem" {
		t.Errorf("results = %v, want lexical ordering with doc-sem last", got)
	}
	if resp.Results[2].Score != 0 {
		t.Errorf("doc-sem score = %g, want 0 under pure lexical weights", resp.Results[2].Score)
	}
}

func TestHybridPureSemanticWeights(t *testing.T) {
	store := coretest.NewMemStore()
	seedCorpus(store)
	e := newTestEngine(store, &queryProvider{}, 0.5, 0.5)

	one, zero := 1.0, 0.0
	resp, err := e.Search(context.Background(), "customs excise", Options{
		Mode:           models.MatchHybrid,
		LexicalWeight:  &zero,
		SemanticWeight: &one,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := resultIDs(resp.Results)
	if got[0] != "doc-both" || got[1] != "doc-sem" {
		t.Errorf("results = %v, want semantic ordering on top", got)
	}
}

func TestHybridRespectsLimit(t *testing.T) {
	store := coretest.NewMemStore()
	seedCorpus(store)
	e := newTestEngine(store, &queryProvider{}, 0.5, 0.5)

	resp, err := e.Search(context.Background(), "customs excise", Options{Mode: models.MatchHybrid, Limit: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].DocumentID != "doc-both" {
		t.Errorf("results = %v, want only doc-both", resultIDs(resp.Results))
	}
}

func TestQueryEmbeddingFailure(t *testing.T) {
	store := coretest.NewMemStore()
	seedCorpus(store)
	e := newTestEngine(store, &queryProvider{err: errors.New("model down")}, 0.5, 0.5)

	for _, mode := range []string{models.MatchSemantic, models.MatchHybrid} {
		_, err := e.Search(context.Background(), "customs", Options{Mode: mode})
		if !errors.Is(err, core.ErrQueryEmbedding) {
			t.Errorf("mode %s: got %v, want ErrQueryEmbedding", mode, err)
		}
	}
	// Lexical search never touches the embedder.
	if _, err := e.Search(context.Background(), "customs", Options{Mode: models.MatchFullText}); err != nil {
		t.Errorf("lexical search failed: %v", err)
	}
}

func TestEnrichmentAttachesCaseMetadata(t *testing.T) {
	store := coretest.NewMemStore()
	seedCorpus(store)
	e := newTestEngine(store, &queryProvider{}, 0.5, 0.5)

	resp, err := e.Search(context.Background(), "customs excise", Options{Mode: models.MatchHybrid})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, r := range resp.Results {
		if r.Case == nil {
			t.Fatalf("%s result missing case metadata", r.DocumentID)
		}
		if r.Case.CaseNumber != "TAT/2024/015" {
			t.Errorf("case number = %q", r.Case.CaseNumber)
		}
	}
}

func TestEnrichmentSurvivesMissingCase(t *testing.T) {
	store := coretest.NewMemStore()
	seedCorpus(store)
	delete(store.Cases, "case-1")
	e := newTestEngine(store, &queryProvider{}, 0.5, 0.5)

	resp, err := e.Search(context.Background(), "customs excise", Options{Mode: models.MatchFullText})
	if err != nil {
		t.Fatalf("search must not fail on missing case metadata: %v", err)
	}
	for _, r := range resp.Results {
		if r.Case != nil {
			t.Errorf("%s carries metadata for a deleted case", r.DocumentID)
		}
	}
}

func TestDefaultModeIsFullText(t *testing.T) {
	store := coretest.NewMemStore()
	seedCorpus(store)
	e := newTestEngine(store, &queryProvider{}, 0.5, 0.5)

	resp, err := e.Search(context.Background(), "customs", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, r := range resp.Results {
		if r.MatchType != models.MatchFullText {
			t.Errorf("match type = %q, want full-text default", r.MatchType)
		}
	}
}
