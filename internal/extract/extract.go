/**
 * Entity extraction
 *
 * Pulls tracking codes, fiscal keys, recipient candidates and inline line items
 * out of loosely structured page text. Everything is positional: the order in
 * which entities first appear is what later stages pair on.
 */

package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/adverant/nexus/labelcompose-worker/internal/shipment"
)

const (
	// skuLookahead is how many lines after a SKU marker may describe the item
	skuLookahead = 5
	// recipientWindow is how many lines after a recipient hint may hold the name
	recipientWindow = 3
)

var digitRun = regexp.MustCompile(`\d+`)

// TrackingCodes returns every tracking code across pages, deduplicated in first-seen order
func TrackingCodes(pages []shipment.Page) []shipment.TrackingCode {
	seen := make(map[shipment.TrackingCode]bool)
	codes := []shipment.TrackingCode{}
	for _, page := range pages {
		for _, match := range trackingPattern.FindAllString(page.Text, -1) {
			code := shipment.TrackingCode(match)
			if seen[code] {
				continue
			}
			seen[code] = true
			codes = append(codes, code)
		}
	}
	return codes
}

// FiscalKeys returns the standalone 44-digit runs of text in order of appearance.
// Spaces are removed first because keys are usually printed in groups of four;
// other separators are kept, so a dotted key is not a run.
func FiscalKeys(text string) []shipment.FiscalKey {
	compact := strings.ReplaceAll(text, " ", "")
	var keys []shipment.FiscalKey
	for _, run := range digitRun.FindAllString(compact, -1) {
		if key, err := shipment.ParseFiscalKey(run); err == nil {
			keys = append(keys, key)
		}
	}
	return keys
}

// FirstFiscalKey returns the first standalone 44-digit run of text
func FirstFiscalKey(text string) (shipment.FiscalKey, bool) {
	keys := FiscalKeys(text)
	if len(keys) == 0 {
		return "", false
	}
	return keys[0], true
}

// RecipientNames returns the name candidates found after recipient hints in text
func RecipientNames(text string) []string {
	lines := strings.Split(text, "\n")
	var names []string
	for idx, line := range lines {
		if _, ok := RecipientHintDetector.Detect(line); !ok {
			continue
		}
		end := min(idx+1+recipientWindow, len(lines))
		for _, w := range lines[idx+1 : end] {
			if frag, ok := RecipientNameDetector.Detect(w); ok {
				names = append(names, frag.Value)
			}
		}
	}
	return names
}

// RecipientCandidates returns the recipient candidates of every page, page by page
func RecipientCandidates(pages []shipment.Page) []shipment.RecipientCandidate {
	var candidates []shipment.RecipientCandidate
	for _, page := range pages {
		for _, name := range RecipientNames(page.Text) {
			candidates = append(candidates, shipment.RecipientCandidate{Page: page.Index, Name: name})
		}
	}
	return candidates
}

// LineItems extracts inline products for documents that have no catalog entry.
// Every SKU marker belongs to the most recent known tracking code above it.
func LineItems(pages []shipment.Page, codes []shipment.TrackingCode) map[shipment.TrackingCode][]shipment.LineItem {
	result := make(map[shipment.TrackingCode][]shipment.LineItem, len(codes))
	known := make(map[shipment.TrackingCode]bool, len(codes))
	for _, code := range codes {
		result[code] = []shipment.LineItem{}
		known[code] = true
	}

	lines := strings.Split(JoinText(pages), "\n")
	var current shipment.TrackingCode

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if frag, ok := TrackingDetector.Detect(line); ok {
			if code := shipment.TrackingCode(frag.Value); known[code] {
				current = code
			}
			continue
		}

		if current == "" {
			continue
		}

		frag, ok := SKUDetector.Detect(line)
		if !ok {
			continue
		}

		end := min(i+1+skuLookahead, len(lines))
		result[current] = append(result[current], scanItem(frag.Value, lines[i+1:end]))
	}

	return result
}

// scanItem builds a line item from the lines following its SKU marker
func scanItem(sku string, window []string) shipment.LineItem {
	item := shipment.LineItem{SKU: sku, Quantity: 1}

	for _, raw := range window {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if trackingPattern.MatchString(line) || skuMarker.MatchString(line) {
			break
		}

		if item.Title == "" {
			if frag, ok := TitleDetector.Detect(line); ok {
				item.Title = frag.Value
			}
		}

		for _, d := range itemFieldDetectors {
			frag, ok := d.Detect(line)
			if !ok {
				continue
			}
			switch frag.Kind {
			case FragmentQuantity:
				item.Quantity = frag.Number
			case FragmentColor:
				item.Color = frag.Value
			case FragmentSize:
				item.Size = frag.Value
			}
		}
	}

	if item.Title == "" {
		item.Title = fmt.Sprintf("Produto %s", sku)
	}
	return item.Normalize()
}

// JoinText concatenates page texts with newlines
func JoinText(pages []shipment.Page) string {
	texts := make([]string, len(pages))
	for i, page := range pages {
		texts[i] = page.Text
	}
	return strings.Join(texts, "\n")
}
