/**
 * Output page layout
 *
 * All geometry is in PDF points on an A4 page with the origin at the top-left
 * corner. Rendering scales points to pixels at the requested DPI.
 */

package composer

// A4 page size in points
const (
	PageWidth  = 595.0
	PageHeight = 842.0
)

const (
	marginX = 20.0

	// artwork occupies the upper part of the first page of a group
	artworkTop         = 30.0
	artworkWidthRatio  = 0.95
	artworkHeightRatio = 0.70

	// vertical barcode strip in the top-right corner
	barcodeWidth  = 120.0
	barcodeHeight = 300.0
	barcodeMargin = 10.0

	bottomMargin    = 50.0
	tableGap        = 10.0
	continuationTop = 40.0

	cellPadding     = 6.0
	lineHeight      = 12.0
	headerRowHeight = 24.0
	bodyFontSize    = 10.0
	headerFontSize  = 12.0

	// text-only header block
	headerX         = 40.0
	headerTitleY    = 50.0
	headerTitleSize = 14.0
	headerLineSize  = 12.0
	headerTitleGap  = 20.0
	headerStep      = 16.0
)

// columnRatios split the content width into identifier, description and quantity
var columnRatios = [3]float64{0.25, 0.65, 0.10}

// tableHeader is the first row of every table segment
var tableHeader = [3]string{"CÓDIGO/TRACKING", "PRODUTO/CONTEÚDO", "QTD"}

// Rect is an axis-aligned box in points
type Rect struct {
	X, Y, W, H float64
}

// Bottom returns the y coordinate of the lower edge
func (r Rect) Bottom() float64 { return r.Y + r.H }

// Right returns the x coordinate of the right edge
func (r Rect) Right() float64 { return r.X + r.W }

// artworkBox is the area reserved for label artwork
func artworkBox() Rect {
	w := PageWidth * artworkWidthRatio
	return Rect{X: (PageWidth - w) / 2, Y: artworkTop, W: w, H: PageHeight * artworkHeightRatio}
}

// barcodeBox is the area reserved for the rotated barcode
func barcodeBox() Rect {
	return Rect{X: PageWidth - barcodeWidth - barcodeMargin, Y: barcodeMargin, W: barcodeWidth, H: barcodeHeight}
}

// fit scales a w×h source into box keeping its aspect ratio, centered
func fit(w, h int, box Rect) Rect {
	if w <= 0 || h <= 0 {
		return Rect{X: box.X, Y: box.Y}
	}
	scale := min(box.W/float64(w), box.H/float64(h))
	fw, fh := float64(w)*scale, float64(h)*scale
	return Rect{
		X: box.X + (box.W-fw)/2,
		Y: box.Y + (box.H-fh)/2,
		W: fw,
		H: fh,
	}
}

// columnWidths returns the table column widths for the content area
func columnWidths() []float64 {
	content := PageWidth - 2*marginX
	widths := make([]float64, len(columnRatios))
	for i, r := range columnRatios {
		widths[i] = content * r
	}
	return widths
}

// tableLimit is the lowest y a table row may reach
func tableLimit() float64 {
	return PageHeight - bottomMargin
}
