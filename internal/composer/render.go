package composer

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

var (
	headerFill   = color.RGBA{R: 211, G: 211, B: 211, A: 255}
	shadedFill   = color.RGBA{R: 173, G: 216, B: 230, A: 255}
	gridColor    = color.Black
	textColor    = image.Black
	defaultDPI   = 150.0
	maxRenderDPI = 600.0
)

type align int

const (
	alignLeft align = iota
	alignCenter
)

// pageCanvas draws plan geometry onto a raster page
type pageCanvas struct {
	dst   *image.RGBA
	scale float64
	faces *faceCache
}

// Render rasterizes every planned page at dpi
func (c *Composer) Render(plan *OutputPlan, dpi float64) ([]image.Image, error) {
	if dpi <= 0 {
		dpi = defaultDPI
	}
	if dpi > maxRenderDPI {
		return nil, fmt.Errorf("render dpi %v exceeds %v", dpi, maxRenderDPI)
	}
	fs, err := loadFonts()
	if err != nil {
		return nil, err
	}
	faces := fs.at(dpi)
	defer faces.close()

	out := make([]image.Image, 0, len(plan.Pages))
	for i := range plan.Pages {
		page, err := renderPage(&plan.Pages[i], dpi, faces)
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", i+1, err)
		}
		out = append(out, page)
	}
	return out, nil
}

func renderPage(p *PagePlan, dpi float64, faces *faceCache) (*image.RGBA, error) {
	scale := dpi / 72
	pc := &pageCanvas{
		dst:   image.NewRGBA(image.Rect(0, 0, px(PageWidth, scale), px(PageHeight, scale))),
		scale: scale,
		faces: faces,
	}
	draw.Draw(pc.dst, pc.dst.Bounds(), image.White, image.Point{}, draw.Src)

	if p.Artwork != nil {
		draw.CatmullRom.Scale(pc.dst, pc.rect(p.ArtworkRect), p.Artwork, p.Artwork.Bounds(), draw.Over, nil)
	}

	for _, line := range p.Header {
		face, err := faces.face(line.Bold, line.Size)
		if err != nil {
			return nil, err
		}
		pc.text(face, line.Text, headerX, line.Baseline)
	}

	if len(p.Table.Rows) > 0 {
		if err := pc.table(p.Table); err != nil {
			return nil, err
		}
	}

	// drawn last so the strip stays on top of the artwork
	if p.Barcode != nil {
		draw.NearestNeighbor.Scale(pc.dst, pc.rect(p.BarcodeRect), p.Barcode, p.Barcode.Bounds(), draw.Src, nil)
	}
	return pc.dst, nil
}

func (pc *pageCanvas) table(seg TableSegment) error {
	bodyFace, err := pc.faces.face(false, bodyFontSize)
	if err != nil {
		return err
	}
	headFace, err := pc.faces.face(true, headerFontSize)
	if err != nil {
		return err
	}

	top := seg.Top
	rows := append([]Row{seg.Header}, seg.Rows...)
	for i, row := range rows {
		fill := color.Color(color.White)
		face := bodyFace
		size := bodyFontSize
		switch {
		case row.Header:
			fill, face, size = headerFill, headFace, headerFontSize
		case i%2 == 0:
			fill = shadedFill
		}

		x := seg.X
		for col, width := range seg.Widths {
			cell := Rect{X: x, Y: top, W: width, H: row.Height}
			pc.fill(cell, fill)

			a := alignCenter
			if col == 1 && !row.Header {
				a = alignLeft
			}
			for k, line := range row.Cells[col] {
				baseline := top + cellPadding + float64(k)*lineHeight + size*0.8
				pc.alignedText(face, line, cell, a, baseline)
			}
			pc.stroke(cell)
			x += width
		}
		top += row.Height
	}
	return nil
}

func (pc *pageCanvas) alignedText(face font.Face, text string, cell Rect, a align, baseline float64) {
	x := cell.X + cellPadding
	if a == alignCenter {
		width := float64(font.MeasureString(face, text)) / 64 / pc.scale
		x = cell.X + (cell.W-width)/2
	}
	pc.text(face, text, x, baseline)
}

// text draws a string with its baseline at (x, baseline) in points
func (pc *pageCanvas) text(face font.Face, s string, x, baseline float64) {
	d := &font.Drawer{
		Dst:  pc.dst,
		Src:  textColor,
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.Int26_6(math.Round(x * pc.scale * 64)),
			Y: fixed.Int26_6(math.Round(baseline * pc.scale * 64)),
		},
	}
	d.DrawString(s)
}

func (pc *pageCanvas) fill(r Rect, c color.Color) {
	draw.Draw(pc.dst, pc.rect(r), image.NewUniform(c), image.Point{}, draw.Src)
}

// stroke outlines r with a one point line
func (pc *pageCanvas) stroke(r Rect) {
	w := max(1, int(math.Round(pc.scale)))
	b := pc.rect(r)
	src := image.NewUniform(gridColor)
	draw.Draw(pc.dst, image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+w), src, image.Point{}, draw.Src)
	draw.Draw(pc.dst, image.Rect(b.Min.X, b.Max.Y-w, b.Max.X, b.Max.Y), src, image.Point{}, draw.Src)
	draw.Draw(pc.dst, image.Rect(b.Min.X, b.Min.Y, b.Min.X+w, b.Max.Y), src, image.Point{}, draw.Src)
	draw.Draw(pc.dst, image.Rect(b.Max.X-w, b.Min.Y, b.Max.X, b.Max.Y), src, image.Point{}, draw.Src)
}

func (pc *pageCanvas) rect(r Rect) image.Rectangle {
	return image.Rect(px(r.X, pc.scale), px(r.Y, pc.scale), px(r.Right(), pc.scale), px(r.Bottom(), pc.scale))
}

func px(v, scale float64) int {
	return int(math.Round(v * scale))
}
