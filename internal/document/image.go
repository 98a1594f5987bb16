package document

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// imageDocument is a single raster page without a text layer
type imageDocument struct {
	img image.Image
}

func openImage(data []byte) (*imageDocument, error) {
	img, err := decodeImage(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return &imageDocument{img: img}, nil
}

// decodeImage decodes any registered raster format
func decodeImage(r io.Reader) (image.Image, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("empty %s image", format)
	}
	return img, nil
}

func (d *imageDocument) Kind() Kind     { return KindImage }
func (d *imageDocument) PageCount() int { return 1 }
func (d *imageDocument) Close() error   { return nil }

func (d *imageDocument) Text(ctx context.Context, index int) (string, error) {
	return "", checkRange(index, 1)
}

func (d *imageDocument) Image(ctx context.Context, index int) (image.Image, error) {
	if err := checkRange(index, 1); err != nil {
		return nil, err
	}
	return d.img, nil
}
