package barcode

import (
	"errors"
	"image"
	"image/draw"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
)

// Decoder reads barcode symbols off a page image
type Decoder interface {
	Decode(img image.Image) ([]string, error)
}

// ZXingDecoder reads Code128 symbols. A page often carries several barcodes,
// so the image is scanned whole, band by band and rotated a quarter turn.
type ZXingDecoder struct {
	// Bands is the number of horizontal strips scanned separately
	Bands int
}

// NewZXingDecoder creates a new decoder
func NewZXingDecoder() *ZXingDecoder {
	return &ZXingDecoder{Bands: 4}
}

var errNoSymbol = errors.New("no barcode found")

// Decode returns the distinct symbol texts found, in discovery order.
// An image without symbols yields an empty result and no error.
func (d *ZXingDecoder) Decode(img image.Image) ([]string, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, nil
	}

	candidates := []image.Image{img}
	candidates = append(candidates, bands(img, d.Bands)...)
	candidates = append(candidates, Rotate90(img))

	seen := make(map[string]bool)
	var texts []string
	var lastErr error
	for _, candidate := range candidates {
		text, err := decodeOne(candidate)
		if err != nil {
			if !errors.Is(err, errNoSymbol) {
				lastErr = err
			}
			continue
		}
		if !seen[text] {
			seen[text] = true
			texts = append(texts, text)
		}
	}
	if len(texts) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return texts, nil
}

func decodeOne(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", err
	}
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	result, err := oned.NewCode128Reader().Decode(bmp, hints)
	if err != nil {
		return "", errNoSymbol
	}
	return result.GetText(), nil
}

// bands splits img into n horizontal strips
func bands(img image.Image, n int) []image.Image {
	b := img.Bounds()
	if n < 2 || b.Dy() < n {
		return nil
	}
	out := make([]image.Image, 0, n)
	step := b.Dy() / n
	for i := 0; i < n; i++ {
		top := b.Min.Y + i*step
		bottom := top + step
		if i == n-1 {
			bottom = b.Max.Y
		}
		strip := image.NewRGBA(image.Rect(0, 0, b.Dx(), bottom-top))
		draw.Draw(strip, strip.Bounds(), img, image.Point{X: b.Min.X, Y: top}, draw.Src)
		out = append(out, strip)
	}
	return out
}
