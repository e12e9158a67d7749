// Package tesseract provides a local OCR Scanner backed by Tesseract.
package tesseract

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
	"github.com/zombor/receipt-bot/internal/scanning"
)

// Engine implements scanning.Scanner using the gosseract client
type Engine struct {
	clientFactory func() *gosseract.Client
	languages     []string
}

// New constructs a Tesseract-backed Scanner. Languages default to English;
// Indian receipts often need "eng+hin" style combinations, passed as separate
// entries.
func New(languages ...string) *Engine {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Engine{clientFactory: gosseract.NewClient, languages: languages}
}

// ReadLines recognizes text in a single image
func (e *Engine) ReadLines(ctx context.Context, imageData []byte, contentType string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", scanning.ErrUpstreamUnavailable, err)
	}

	pngData, err := scanning.NormalizeImage(imageData, contentType)
	if err != nil {
		return nil, err
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetLanguage(e.languages...); err != nil {
		return nil, fmt.Errorf("set languages: %w", err)
	}
	// psm 4: a single column of text of variable sizes, which suits receipts
	if err := c.SetPageSegMode(gosseract.PSM_SINGLE_COLUMN); err != nil {
		return nil, fmt.Errorf("set page segmentation: %w", err)
	}
	if err := c.SetImageFromBytes(pngData); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return nil, fmt.Errorf("%w: recognize text: %v", scanning.ErrUpstreamUnavailable, err)
	}
	return scanning.SplitLines(text)
}

// Close is a no-op; a client is created per call
func (e *Engine) Close() error {
	return nil
}
