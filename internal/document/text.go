package document

import (
	"context"
	"image"
	"strings"
)

// pageSeparator splits a plain text input into pages
const pageSeparator = "\f"

// textDocument is a plain text input, mostly used for fixtures and demos
type textDocument struct {
	pages []string
}

func openText(data []byte) *textDocument {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return &textDocument{pages: strings.Split(text, pageSeparator)}
}

func (d *textDocument) Kind() Kind     { return KindText }
func (d *textDocument) PageCount() int { return len(d.pages) }
func (d *textDocument) Close() error   { return nil }

func (d *textDocument) Text(ctx context.Context, index int) (string, error) {
	if err := checkRange(index, len(d.pages)); err != nil {
		return "", err
	}
	return d.pages[index], nil
}

func (d *textDocument) Image(ctx context.Context, index int) (image.Image, error) {
	if err := checkRange(index, len(d.pages)); err != nil {
		return nil, err
	}
	return nil, ErrNoImage
}
