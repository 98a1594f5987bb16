package composer

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/adverant/nexus/labelcompose-worker/internal/barcode"
	"github.com/adverant/nexus/labelcompose-worker/internal/document"
	"github.com/adverant/nexus/labelcompose-worker/internal/shipment"
)

// ArtworkSource provides the imagery of source pages
type ArtworkSource interface {
	Image(ctx context.Context, index int) (image.Image, error)
}

// HeaderLine is a line of the text block drawn when a page has no artwork
type HeaderLine struct {
	Text     string
	Bold     bool
	Size     float64
	Baseline float64
}

// PagePlan is the draw list of one output page
type PagePlan struct {
	Ordinal      int
	Tracking     shipment.TrackingCode
	Continuation bool

	Artwork     image.Image
	ArtworkRect Rect

	Header []HeaderLine

	Barcode     image.Image
	BarcodeRect Rect

	Table TableSegment
}

// OutputPlan lists the output pages in order. Consecutive pages with the same
// ordinal form the page group of one shipment.
type OutputPlan struct {
	Pages []PagePlan
}

// Groups returns the number of pages of every page group, in order
func (p *OutputPlan) Groups() []int {
	var groups []int
	for i, page := range p.Pages {
		if i == 0 || page.Ordinal != p.Pages[i-1].Ordinal {
			groups = append(groups, 0)
		}
		groups[len(groups)-1]++
	}
	return groups
}

// Plan lays out one page group per shipment. Shipments without line items get
// no page. Artwork and barcode failures degrade the page instead of failing.
func (c *Composer) Plan(ctx context.Context, shipments []shipment.Shipment, pages []shipment.Page, artwork ArtworkSource, renderer barcode.Renderer) (*OutputPlan, error) {
	fs, err := loadFonts()
	if err != nil {
		return nil, err
	}
	faces := fs.at(72)
	defer faces.close()

	pool := artworkPool(pages)
	plan := &OutputPlan{}
	slot := 0

	for _, s := range shipments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(s.Items) == 0 {
			continue
		}

		first := PagePlan{Ordinal: s.Ordinal, Tracking: s.Tracking}
		if slot < len(pool) {
			first.Artwork = c.loadArtwork(ctx, artwork, pool[slot], s.Tracking)
		}
		slot++

		tableTop := 0.0
		if first.Artwork != nil {
			b := first.Artwork.Bounds()
			first.ArtworkRect = fit(b.Dx(), b.Dy(), artworkBox())
			tableTop = first.ArtworkRect.Bottom() + tableGap
		} else {
			first.Header = textHeader(s)
			tableTop = first.Header[len(first.Header)-1].Baseline + tableGap*2
		}

		if img := c.renderBarcode(renderer, s); img != nil {
			b := img.Bounds()
			first.Barcode = img
			first.BarcodeRect = fit(b.Dx(), b.Dy(), barcodeBox())
		}

		rows := itemRows(s, columnWidths(), faces.measure)
		segments := paginate(rows, tableTop, continuationTop+headerStep)
		for i, seg := range segments {
			if i == 0 {
				first.Table = seg
				plan.Pages = append(plan.Pages, first)
				continue
			}
			plan.Pages = append(plan.Pages, PagePlan{
				Ordinal:      s.Ordinal,
				Tracking:     s.Tracking,
				Continuation: true,
				Header: []HeaderLine{{
					Text:     fmt.Sprintf("Tracking: %s (continuação)", s.Tracking),
					Bold:     true,
					Size:     headerLineSize,
					Baseline: continuationTop,
				}},
				Table: seg,
			})
		}
	}

	c.logger.Debug("Output planned", "shipments", len(shipments), "pages", len(plan.Pages), "artwork_pages", len(pool))
	return plan, nil
}

// artworkPool lists the pages eligible as label artwork, in page order
func artworkPool(pages []shipment.Page) []int {
	var pool []int
	for _, p := range pages {
		if p.Role != shipment.RoleFiscalSummary {
			pool = append(pool, p.Index)
		}
	}
	return pool
}

func (c *Composer) loadArtwork(ctx context.Context, src ArtworkSource, index int, tracking shipment.TrackingCode) image.Image {
	if src == nil {
		return nil
	}
	img, err := src.Image(ctx, index)
	if err != nil {
		if errors.Is(err, document.ErrNoImage) {
			c.logger.Debug("Page has no artwork", "page", index+1, "tracking", tracking)
		} else {
			c.logger.Warn("Failed to load artwork, using text-only page", "page", index+1, "tracking", tracking, "error", err)
		}
		return nil
	}
	if img == nil || img.Bounds().Empty() {
		return nil
	}
	return img
}

func (c *Composer) renderBarcode(renderer barcode.Renderer, s shipment.Shipment) image.Image {
	if renderer == nil || s.BarcodePayload == "" {
		return nil
	}
	img, err := renderer.Render(s.BarcodePayload)
	if err != nil {
		c.logger.Warn("Failed to render barcode, omitting it", "tracking", s.Tracking, "error", err)
		return nil
	}
	return barcode.Rotate90(img)
}

// textHeader is the block drawn in place of missing artwork
func textHeader(s shipment.Shipment) []HeaderLine {
	lines := []HeaderLine{
		{Text: "ETIQUETA COMPOSTA", Bold: true, Size: headerTitleSize, Baseline: headerTitleY},
		{Text: fmt.Sprintf("Tracking: %s", s.Tracking), Size: headerLineSize},
	}
	if s.Recipient != "" {
		lines = append(lines, HeaderLine{Text: fmt.Sprintf("Destinatário: %s", s.Recipient), Size: headerLineSize})
	}
	if s.FiscalKey != "" {
		lines = append(lines, HeaderLine{Text: fmt.Sprintf("Chave de Acesso: %s", s.FiscalKey), Size: headerLineSize})
	}
	baseline := headerTitleY + headerTitleGap
	for i := 1; i < len(lines); i++ {
		lines[i].Baseline = baseline
		baseline += headerStep
	}
	return lines
}
