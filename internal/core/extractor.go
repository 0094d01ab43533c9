package core

import "context"

// Page is one extracted page produced by a PageExtractor.
type Page struct {
	Number      int // 1-based
	RawText     string
	CleanedText string
	WordCount   int
	Source      string // "embedded", "gemini-vision", "docconv"
	Failed      bool   // extraction failed for this page; text fields are empty
}

// PageExtractor turns an original file into ordered per-page text. An error
// return means the file itself could not be opened or parsed (ErrFileOpen);
// per-page failures are reported through Page.Failed instead.
type PageExtractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) ([]Page, error)
}
