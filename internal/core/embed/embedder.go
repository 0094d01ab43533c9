package embed

import (
	"context"
	"fmt"
	"math"

	"github.com/verdicta-io/verdicta/internal/core"
)

// Generator wraps an opaque embedding model with the policy the rest of the
// system relies on: input truncation, L2-normalized output of a fixed
// dimension, and chunking/similarity utilities.
type Generator struct {
	provider      core.EmbeddingProvider
	dim           int
	maxEmbedChars int // ~2000 chars approximates the 512-token model window
	minEmbedLen   int
}

func NewGenerator(provider core.EmbeddingProvider, dim, maxEmbedChars, minEmbedLen int) *Generator {
	if maxEmbedChars <= 0 {
		maxEmbedChars = 2000
	}
	if minEmbedLen <= 0 {
		minEmbedLen = 50
	}
	return &Generator{provider: provider, dim: dim, maxEmbedChars: maxEmbedChars, minEmbedLen: minEmbedLen}
}

// Dimension returns the fixed vector dimension D.
func (g *Generator) Dimension() int { return g.dim }

// ShouldEmbed reports whether the text is long enough to be worth embedding.
// Very short pages are cheap noise that would pollute vector search.
func (g *Generator) ShouldEmbed(text string) bool {
	return len(text) >= g.minEmbedLen
}

// Embed converts text into one normalized vector. Empty text and a missing
// provider are errors; long text is truncated, not rejected.
func (g *Generator) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch is the batch equivalent of Embed and produces identical
// per-item results; batching is a performance optimization only.
func (g *Generator) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if g.provider == nil {
		return nil, fmt.Errorf("embedding model not ready: %w", core.ErrEmbedding)
	}
	prepared := make([]string, len(texts))
	for i, t := range texts {
		if t == "" {
			return nil, fmt.Errorf("item %d: %w", i, core.ErrEmptyText)
		}
		prepared[i] = Truncate(t, g.maxEmbedChars)
	}

	vecs, err := g.provider.EmbedTexts(ctx, prepared)
	if err != nil {
		return nil, fmt.Errorf("embed batch: %v: %w", err, core.ErrEmbedding)
	}
	if len(vecs) != len(prepared) {
		return nil, fmt.Errorf("embed batch size mismatch: got %d want %d: %w", len(vecs), len(prepared), core.ErrEmbedding)
	}
	for i := range vecs {
		if g.dim > 0 && len(vecs[i]) != g.dim {
			return nil, fmt.Errorf("item %d: got dimension %d want %d: %w", i, len(vecs[i]), g.dim, core.ErrEmbedding)
		}
		Normalize(vecs[i])
	}
	return vecs, nil
}

// CosineSimilarity computes similarity over equal-length vectors.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("got %d and %d: %w", len(a), len(b), core.ErrDimensionMismatch)
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

// Normalize scales a vector to unit L2 length in place.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}

// Truncate cuts text to at most max bytes without splitting a rune.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut]
}

// ChunkText produces overlapping substrings for chunked embedding of long
// documents. overlap must be strictly less than maxChunkSize so every step
// makes forward progress.
func ChunkText(text string, maxChunkSize, overlap int) ([]string, error) {
	if maxChunkSize <= 0 {
		return nil, fmt.Errorf("maxChunkSize must be positive, got %d", maxChunkSize)
	}
	if overlap < 0 || overlap >= maxChunkSize {
		return nil, fmt.Errorf("overlap %d must be in [0, %d)", overlap, maxChunkSize)
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}

	var chunks []string
	step := maxChunkSize - overlap
	for start := 0; start < len(runes); start += step {
		end := start + maxChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}
