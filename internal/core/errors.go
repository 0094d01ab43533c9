package core

import "errors"

// Error taxonomy for the ingestion and search paths. Callers classify with
// errors.Is; messages carry the specifics.
var (
	// ErrNotFound signals an unknown document, job or case id.
	ErrNotFound = errors.New("not found")

	// ErrJobActive rejects a reprocess while an ingestion job is still
	// waiting or running for the document; resetting page rows under a
	// live run would corrupt its page accounting.
	ErrJobActive = errors.New("ingestion job already scheduled")

	// ErrFileOpen is fatal to a whole document: the file could not be
	// opened or parsed at all, so no pages are produced.
	ErrFileOpen = errors.New("file open failed")

	// ErrPageExtraction is page-scoped; it counts toward the
	// MANUAL_REVIEW/FAILED decision but never aborts the run.
	ErrPageExtraction = errors.New("page extraction failed")

	// ErrEmbedding marks a best-effort embedding failure. The page is still
	// saved with a null embedding.
	ErrEmbedding = errors.New("embedding failed")

	// ErrQueryEmbedding is fatal to a semantic or hybrid search call.
	ErrQueryEmbedding = errors.New("query embedding failed")

	// ErrEmptyText rejects embedding of empty input.
	ErrEmptyText = errors.New("text is empty")

	// ErrDimensionMismatch rejects similarity over unequal-length vectors.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
