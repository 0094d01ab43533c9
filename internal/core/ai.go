package core

import "context"

// EmbeddingProvider is the opaque text-to-vector capability. Implementations
// must be safe for concurrent use; the loaded model is shared by the
// ingestion and search paths.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// OCRProvider is the opaque image-to-text capability used for scanned pages.
// format is the image file type as extracted from the PDF ("png", "jpg", ...).
type OCRProvider interface {
	Recognize(ctx context.Context, image []byte, format string) (string, error)
}
