package composer

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// fonts holds the parsed typefaces. Parsed fonts are shared; faces are not.
type fonts struct {
	regular *opentype.Font
	bold    *opentype.Font
}

var (
	sharedFonts     *fonts
	sharedFontsErr  error
	sharedFontsOnce sync.Once
)

// loadFonts parses the embedded Go fonts once per process
func loadFonts() (*fonts, error) {
	sharedFontsOnce.Do(func() {
		regular, err := opentype.Parse(goregular.TTF)
		if err != nil {
			sharedFontsErr = fmt.Errorf("parse regular font: %w", err)
			return
		}
		bold, err := opentype.Parse(gobold.TTF)
		if err != nil {
			sharedFontsErr = fmt.Errorf("parse bold font: %w", err)
			return
		}
		sharedFonts = &fonts{regular: regular, bold: bold}
	})
	return sharedFonts, sharedFontsErr
}

type faceKey struct {
	bold bool
	size float64
}

// faceCache creates sized faces for one plan or render call
type faceCache struct {
	fonts *fonts
	dpi   float64
	faces map[faceKey]font.Face
}

func (f *fonts) at(dpi float64) *faceCache {
	return &faceCache{fonts: f, dpi: dpi, faces: make(map[faceKey]font.Face)}
}

// face returns a face of size points. At 72 dpi one pixel is one point.
func (c *faceCache) face(bold bool, size float64) (font.Face, error) {
	key := faceKey{bold: bold, size: size}
	if f, ok := c.faces[key]; ok {
		return f, nil
	}
	src := c.fonts.regular
	if bold {
		src = c.fonts.bold
	}
	f, err := opentype.NewFace(src, &opentype.FaceOptions{
		Size:    size,
		DPI:     c.dpi,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create face: %w", err)
	}
	c.faces[key] = f
	return f, nil
}

// measure returns the advance of text in the cache's units
func (c *faceCache) measure(text string, bold bool, size float64) float64 {
	f, err := c.face(bold, size)
	if err != nil {
		return float64(len([]rune(text))) * size * 0.55 * c.dpi / 72
	}
	return float64(font.MeasureString(f, text)) / 64
}

func (c *faceCache) close() {
	for _, f := range c.faces {
		f.Close()
	}
}
