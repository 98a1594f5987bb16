/**
 * Document composer
 *
 * Turns assembled shipments into the output document: one page group per
 * shipment with its label artwork, a vertical barcode of its access key and
 * a table of its contents. Composition runs in three steps (plan, render,
 * write) so layouts can be inspected without rasterizing.
 */

package composer

import (
	"context"
	"fmt"
	"io"

	"github.com/adverant/nexus/labelcompose-worker/internal/barcode"
	"github.com/adverant/nexus/labelcompose-worker/internal/logging"
	"github.com/adverant/nexus/labelcompose-worker/internal/shipment"
)

// Config holds composer configuration
type Config struct {
	// DPI is the raster resolution of output pages
	DPI float64
}

// Composer lays out and writes output documents
type Composer struct {
	dpi    float64
	logger *logging.Logger
}

// New creates a new composer
func New(cfg *Config, logger *logging.Logger) *Composer {
	dpi := defaultDPI
	if cfg != nil && cfg.DPI > 0 {
		dpi = cfg.DPI
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Composer{dpi: dpi, logger: logger}
}

// Compose plans, renders and writes the output document to w
func (c *Composer) Compose(ctx context.Context, w io.Writer, shipments []shipment.Shipment, pages []shipment.Page, artwork ArtworkSource, renderer barcode.Renderer) (*OutputPlan, error) {
	plan, err := c.Plan(ctx, shipments, pages, artwork, renderer)
	if err != nil {
		return nil, fmt.Errorf("plan output: %w", err)
	}
	rasters, err := c.Render(plan, c.dpi)
	if err != nil {
		return nil, err
	}
	if err := WritePDF(w, rasters); err != nil {
		return nil, err
	}
	c.logger.Info("Output document written", "pages", len(plan.Pages), "groups", len(plan.Groups()), "dpi", c.dpi)
	return plan, nil
}
