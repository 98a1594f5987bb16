/**
 * Product catalog
 *
 * Maps tracking codes to the line items registered for them. A run receives a
 * read-only Lookup; changing the catalog means building a new Map.
 */

package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/adverant/nexus/labelcompose-worker/internal/shipment"
)

// Lookup resolves the registered line items of a tracking code
type Lookup interface {
	Items(code shipment.TrackingCode) ([]shipment.LineItem, bool)
}

// Source produces a catalog snapshot for one run
type Source interface {
	Snapshot(ctx context.Context) (Map, error)
}

// Map is an immutable catalog snapshot
type Map struct {
	entries map[shipment.TrackingCode][]shipment.LineItem
}

// NewMap builds a snapshot from raw entries. Tracking codes are validated and
// quantities normalized; the input is copied.
func NewMap(entries map[string][]shipment.LineItem) (Map, error) {
	m := Map{entries: make(map[shipment.TrackingCode][]shipment.LineItem, len(entries))}
	for raw, items := range entries {
		code, err := shipment.ParseTrackingCode(raw)
		if err != nil {
			return Map{}, fmt.Errorf("catalog entry: %w", err)
		}
		m.entries[code] = normalizeItems(items)
	}
	return m, nil
}

// Items returns a copy of the items registered for code
func (m Map) Items(code shipment.TrackingCode) ([]shipment.LineItem, bool) {
	items, ok := m.entries[code]
	if !ok {
		return nil, false
	}
	return append([]shipment.LineItem(nil), items...), true
}

// Len returns the number of tracking codes in the catalog
func (m Map) Len() int {
	return len(m.entries)
}

// Codes returns the catalogued tracking codes in sorted order
func (m Map) Codes() []shipment.TrackingCode {
	codes := make([]shipment.TrackingCode, 0, len(m.entries))
	for code := range m.entries {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// Merge returns a new Map holding m overridden by other, entry by entry
func (m Map) Merge(other Map) Map {
	out := Map{entries: make(map[shipment.TrackingCode][]shipment.LineItem, len(m.entries)+len(other.entries))}
	for code, items := range m.entries {
		out.entries[code] = items
	}
	for code, items := range other.entries {
		out.entries[code] = items
	}
	return out
}

// Entries returns a copy of the catalog keyed by tracking code string
func (m Map) Entries() map[string][]shipment.LineItem {
	out := make(map[string][]shipment.LineItem, len(m.entries))
	for code, items := range m.entries {
		out[string(code)] = append([]shipment.LineItem(nil), items...)
	}
	return out
}

func normalizeItems(items []shipment.LineItem) []shipment.LineItem {
	out := make([]shipment.LineItem, len(items))
	for i, item := range items {
		out[i] = item.Normalize()
	}
	return out
}
