package composer

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// ErrNoPages is returned when asked to write a document without pages
var ErrNoPages = errors.New("no pages to write")

// WritePDF packs page rasters into an A4 PDF, one image per page
func WritePDF(w io.Writer, pages []image.Image) error {
	if len(pages) == 0 {
		return ErrNoPages
	}

	readers := make([]io.Reader, 0, len(pages))
	for i, page := range pages {
		var buf bytes.Buffer
		if err := png.Encode(&buf, page); err != nil {
			return fmt.Errorf("encode page %d: %w", i+1, err)
		}
		readers = append(readers, &buf)
	}

	imp := pdfcpu.DefaultImportConfig()
	imp.PageDim = &types.Dim{Width: PageWidth, Height: PageHeight}
	imp.PageSize = "A4"
	imp.Pos = types.Full

	conf := model.NewDefaultConfiguration()
	if err := api.ImportImages(nil, w, readers, imp, conf); err != nil {
		return fmt.Errorf("pdfcpu import images: %w", err)
	}
	return nil
}
