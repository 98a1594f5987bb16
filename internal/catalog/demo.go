package catalog

import (
	"context"

	"github.com/adverant/nexus/labelcompose-worker/internal/shipment"
)

const demoTitle = "Sandália Papete Brilho Luxo Em Eva Com Strass Leve Biaritz"

// Demo returns the built-in sample catalog used by the demo command
func Demo() Map {
	m, _ := NewMap(map[string][]shipment.LineItem{
		"AM997753439BR": {
			{SKU: "ZX2225_2", Title: demoTitle, Quantity: 1, Color: "Preto", Size: "39 BR"},
		},
		"AM996944264BR": {
			{SKU: "ZX2225_2", Title: demoTitle, Quantity: 1, Color: "Nude", Size: "38 BR"},
			{SKU: "ZX2225_2", Title: demoTitle, Quantity: 1, Color: "Branco", Size: "39 BR"},
			{SKU: "ZX2225_2", Title: demoTitle, Quantity: 1, Color: "Preto", Size: "39 BR"},
		},
	})
	return m
}

// DemoSource always yields the demo catalog
type DemoSource struct{}

// Snapshot returns Demo()
func (DemoSource) Snapshot(ctx context.Context) (Map, error) {
	return Demo(), nil
}
