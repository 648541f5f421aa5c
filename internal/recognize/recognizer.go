// Package recognize adapts an external OCR capability. The pipeline does
// not interpret recognized text; it passes text and confidence through
// unchanged.
package recognize

import (
	"context"

	"docverify/internal/entity"
)

// Result is raw recognizer output: the page text plus per-region
// confidence estimates keyed by byte offsets into Text.
type Result struct {
	Text    string
	Regions []entity.Region
}

// Recognizer runs optical character recognition over one page image.
type Recognizer interface {
	Recognize(ctx context.Context, imagePath string) (Result, error)
}
