/**
 * Document sources
 *
 * A Document exposes per-page text and page imagery for one input file. Three
 * sources exist: PDFs (text layer + embedded images via pdfcpu), single raster
 * images (imagery only, text comes from OCR) and plain text files (one page
 * per form-feed block, no imagery).
 */

package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
)

// Kind identifies the source format of a document
type Kind string

const (
	KindPDF   Kind = "pdf"
	KindImage Kind = "image"
	KindText  Kind = "text"
)

var (
	// ErrUnsupportedFormat is returned when the input is none of the known kinds
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrNoImage is returned by Image when a page carries no imagery
	ErrNoImage = errors.New("page has no image")
	// ErrPageRange is returned for page indexes outside the document
	ErrPageRange = errors.New("page index out of range")
)

// Document is an opened input file. Page indexes are zero-based.
type Document interface {
	Kind() Kind
	PageCount() int
	// Text returns the embedded text of a page; empty when the page has none
	Text(ctx context.Context, index int) (string, error)
	// Image returns the page artwork, or ErrNoImage
	Image(ctx context.Context, index int) (image.Image, error)
	Close() error
}

// Open reads the file at path and opens it according to its content
func Open(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return OpenBytes(data, filepath.Base(path))
}

// OpenBytes opens an in-memory document. The name is only used for the
// extension fallback of text files.
func OpenBytes(data []byte, name string) (Document, error) {
	kind, err := DetectKind(data, name)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindPDF:
		return openPDF(data)
	case KindImage:
		return openImage(data)
	default:
		return openText(data), nil
	}
}

// DetectKind classifies input from its magic bytes, falling back to the
// file extension for plain text
func DetectKind(data []byte, name string) (Kind, error) {
	if mime := detectMimeTypeFromMagicBytes(data); mime != "" {
		if mime == "application/pdf" {
			return KindPDF, nil
		}
		if strings.HasPrefix(mime, "image/") {
			return KindImage, nil
		}
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, mime)
	}

	if strings.EqualFold(filepath.Ext(name), ".txt") {
		return KindText, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
}

// detectMimeTypeFromMagicBytes detects file type from magic bytes (file signatures)
func detectMimeTypeFromMagicBytes(data []byte) string {
	if len(data) < 4 {
		return ""
	}

	switch {
	case bytes.HasPrefix(data, []byte("%PDF")):
		return "application/pdf"
	case len(data) >= 8 && bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}):
		return "image/png"
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return "image/jpeg"
	case bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a")):
		return "image/gif"
	case len(data) > 12 && bytes.HasPrefix(data, []byte("RIFF")) && string(data[8:12]) == "WEBP":
		return "image/webp"
	case bytes.HasPrefix(data, []byte{0x49, 0x49, 0x2A, 0x00}) || bytes.HasPrefix(data, []byte{0x4D, 0x4D, 0x00, 0x2A}):
		return "image/tiff"
	case bytes.HasPrefix(data, []byte("BM")):
		return "image/bmp"
	case bytes.HasPrefix(data, []byte{0x50, 0x4B, 0x03, 0x04}):
		return "application/zip"
	}
	return ""
}

func checkRange(index, count int) error {
	if index < 0 || index >= count {
		return fmt.Errorf("%w: %d of %d", ErrPageRange, index, count)
	}
	return nil
}
