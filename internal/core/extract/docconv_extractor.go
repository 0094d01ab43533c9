package extract

import (
	"bytes"
	"context"
	"fmt"

	"code.sajari.com/docconv"

	"github.com/verdicta-io/verdicta/internal/core"
)

// extractFallback handles non-PDF uploads (docx, rtf, html) through docconv.
// These formats have no page structure we can trust, so the whole document
// becomes a single logical page.
func (e *Extractor) extractFallback(ctx context.Context, data []byte, mimeType string) ([]core.Page, error) {
	res, err := docconv.Convert(bytes.NewReader(data), mimeType, false)
	if err != nil {
		return nil, fmt.Errorf("docconv %s: %v: %w", mimeType, err, core.ErrFileOpen)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if res.Body == "" {
		return nil, fmt.Errorf("docconv %s: empty body: %w", mimeType, core.ErrFileOpen)
	}
	return []core.Page{makePage(1, res.Body, SourceDocconv)}, nil
}
