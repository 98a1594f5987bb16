/**
 * Tesseract OCR
 *
 * Offline OCR for scanned labels and for PDFs without a usable text layer.
 * Each page gets its own gosseract client; clients are not shared between
 * concurrent jobs.
 */

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract runs OCR through libtesseract
type Tesseract struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// TesseractConfig holds Tesseract configuration
type TesseractConfig struct {
	// Languages in tesseract notation, e.g. "por+eng"
	Languages string
}

// NewTesseract creates a new Tesseract engine
func NewTesseract(cfg *TesseractConfig) *Tesseract {
	langs := ParseLanguages(cfg.Languages)
	if len(langs) == 0 {
		langs = []string{"por", "eng"}
	}
	return &Tesseract{
		languages:     langs,
		clientFactory: gosseract.NewClient,
	}
}

// Languages returns the configured recognition languages
func (t *Tesseract) Languages() []string {
	return t.languages
}

// Recognize performs OCR on a single page image
func (t *Tesseract) Recognize(ctx context.Context, img image.Image) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	startTime := time.Now()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode page image: %w", err)
	}

	client := t.clientFactory()
	defer client.Close()

	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	if err := client.SetLanguage(t.languages...); err != nil {
		return nil, fmt.Errorf("failed to set languages %v: %w", t.languages, err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("tesseract OCR failed: %w", err)
	}

	confidence, ok := wordConfidence(client)
	if !ok {
		confidence = estimateConfidence(text)
	}

	return &Result{
		Text:       text,
		Confidence: confidence,
		Engine:     "tesseract",
		Duration:   time.Since(startTime),
	}, nil
}

// wordConfidence averages the per-word confidence tesseract reports
func wordConfidence(client *gosseract.Client) (float64, bool) {
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0, false
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence / 100.0
	}
	return sum / float64(len(boxes)), true
}

// estimateConfidence scores text quality when word boxes are unavailable
func estimateConfidence(text string) float64 {
	confidence := 0.5

	if len(text) > 1000 {
		confidence += 0.1
	}
	if len(strings.Fields(text)) > 100 {
		confidence += 0.1
	}

	alphaCount := 0
	for _, r := range text {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			alphaCount++
		}
	}
	if len(text) > 0 {
		alphaRatio := float64(alphaCount) / float64(len(text))
		if alphaRatio > 0.5 && alphaRatio < 0.9 {
			confidence += 0.1
		}
	}

	if confidence > 0.85 {
		confidence = 0.85
	}
	return confidence
}
