package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/verdicta-io/verdicta/internal/core"
)

const ocrPrompt = `Transcribe all text visible in this scanned document page.
Preserve the reading order. Output only the transcribed text with no preamble,
no commentary and no markdown fences. If the page contains no readable text,
output an empty response.`

// GeminiOCR recognizes scanned page images with a Gemini vision model.
type GeminiOCR struct {
	client    *genai.Client
	modelName string
}

var _ core.OCRProvider = (*GeminiOCR)(nil)

func NewGeminiOCR(ctx context.Context, apiKey, modelName string) (*GeminiOCR, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiOCR{client: cl, modelName: modelName}, nil
}

func (g *GeminiOCR) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// Recognize transcribes one page image. format is the image file type as it
// came out of the PDF ("png", "jpg", ...).
func (g *GeminiOCR) Recognize(ctx context.Context, image []byte, format string) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("empty image")
	}
	if format == "" {
		format = "png"
	}

	m := g.client.GenerativeModel(g.modelName)
	resp, err := m.GenerateContent(ctx, genai.ImageData(format, image), genai.Text(ocrPrompt))
	if err != nil {
		return "", fmt.Errorf("gemini ocr: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}
