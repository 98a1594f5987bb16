/**
 * OCR types - shared data structures for OCR operations
 *
 * The pipeline only needs page text; confidence and timing are kept for the
 * run log.
 */

package ocr

import (
	"context"
	"image"
	"strings"
	"time"
)

// Engine recognises the text of a page image
type Engine interface {
	Recognize(ctx context.Context, img image.Image) (*Result, error)
}

// Result represents the result of OCR on one page
type Result struct {
	Text       string
	Confidence float64
	Engine     string
	Duration   time.Duration
}

// ParseLanguages splits a tesseract language spec such as "por+eng"
func ParseLanguages(spec string) []string {
	var langs []string
	for _, lang := range strings.FieldsFunc(spec, func(r rune) bool { return r == '+' || r == ',' || r == ' ' }) {
		langs = append(langs, lang)
	}
	return langs
}
