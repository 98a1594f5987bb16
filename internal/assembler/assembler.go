/**
 * Shipment assembly
 *
 * Joins the independently discovered sequences of a document (tracking codes,
 * barcode payloads, line items) into shipments. The document format carries
 * no explicit cross-reference, so codes and payloads are paired by position.
 */

package assembler

import (
	"errors"

	"github.com/adverant/nexus/labelcompose-worker/internal/barcode"
	"github.com/adverant/nexus/labelcompose-worker/internal/catalog"
	"github.com/adverant/nexus/labelcompose-worker/internal/classifier"
	"github.com/adverant/nexus/labelcompose-worker/internal/logging"
	"github.com/adverant/nexus/labelcompose-worker/internal/shipment"
)

// Pairer assigns payloads to tracking codes. The result has one entry per
// code; an empty string means no payload.
type Pairer interface {
	Pair(codes []shipment.TrackingCode, payloads []string) []string
}

// OrdinalPairer gives the i-th code the i-th payload. Codes beyond the
// payload count get none.
type OrdinalPairer struct{}

// Pair implements Pairer
func (OrdinalPairer) Pair(codes []shipment.TrackingCode, payloads []string) []string {
	out := make([]string, len(codes))
	for i := range codes {
		if i < len(payloads) {
			out[i] = payloads[i]
		}
	}
	return out
}

// Input is everything the assembler needs for one document
type Input struct {
	Codes          []shipment.TrackingCode
	Classification classifier.Result
	Catalog        catalog.Lookup
	// Extracted holds inline line items per code
	Extracted map[shipment.TrackingCode][]shipment.LineItem
	// DecodedSymbols are barcode texts read off the page images, in page order
	DecodedSymbols []string
}

// Assembler builds shipments
type Assembler struct {
	pairer Pairer
	logger *logging.Logger
}

// New creates a new assembler. A nil pairer selects OrdinalPairer.
func New(pairer Pairer, logger *logging.Logger) *Assembler {
	if pairer == nil {
		pairer = OrdinalPairer{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Assembler{pairer: pairer, logger: logger}
}

// Payloads returns the validated barcode payload candidates of a fiscal
// document in discovery order; nil for other documents
func (a *Assembler) Payloads(in Input) []string {
	if !in.Classification.IsFiscal {
		return nil
	}
	return a.payloadCandidates(in)
}

// Assemble resolves the shipments of a document in tracking-code order.
// Codes without any line item produce no shipment.
func (a *Assembler) Assemble(in Input) []shipment.Shipment {
	shipments, _ := a.AssembleWithPayloads(in)
	return shipments
}

// AssembleWithPayloads is Assemble that also returns the payload candidates
// it paired, as Payloads would list them
func (a *Assembler) AssembleWithPayloads(in Input) ([]shipment.Shipment, []string) {
	payloads := a.Payloads(in)
	paired := a.pairer.Pair(in.Codes, payloads)
	if len(payloads) > 0 && len(payloads) < len(in.Codes) {
		a.logger.Warn("Fewer barcode payloads than tracking codes",
			"payloads", len(payloads),
			"codes", len(in.Codes))
	}

	shipments := make([]shipment.Shipment, 0, len(in.Codes))
	for i, code := range in.Codes {
		items := a.itemsFor(code, in)
		if len(items) == 0 {
			a.logger.Debug("Dropping tracking code without line items", "tracking", code)
			continue
		}

		s := shipment.Shipment{
			Ordinal:  i,
			Tracking: code,
			Items:    items,
		}
		if i < len(paired) && paired[i] != "" {
			s.FiscalKey = shipment.FiscalKey(paired[i])
			s.BarcodePayload = paired[i]
		}
		shipments = append(shipments, s)
	}

	attachRecipient(shipments, in.Classification)
	return shipments, payloads
}

// itemsFor prefers the catalog for fiscal documents and for catalogued codes.
// A code catalogued with no items counts as not catalogued.
func (a *Assembler) itemsFor(code shipment.TrackingCode, in Input) []shipment.LineItem {
	if in.Catalog != nil {
		if items, ok := in.Catalog.Items(code); ok && len(items) > 0 {
			return normalize(items)
		}
	}
	if in.Classification.IsFiscal {
		return nil
	}
	return normalize(in.Extracted[code])
}

// payloadCandidates lists the textual key first, then the decoded symbols
// that are access keys, without duplicates
func (a *Assembler) payloadCandidates(in Input) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(raw, origin string) {
		payload, err := barcode.ValidatePayload(raw)
		if err != nil {
			if errors.Is(err, barcode.ErrMalformedPayload) && origin == "symbol" {
				a.logger.Debug("Ignoring decoded symbol", "symbol", raw, "error", err)
			}
			return
		}
		if seen[payload] {
			return
		}
		seen[payload] = true
		out = append(out, payload)
	}

	if in.Classification.FiscalKey != "" {
		add(string(in.Classification.FiscalKey), "text")
	}
	for _, symbol := range in.DecodedSymbols {
		add(symbol, "symbol")
	}
	return out
}

// attachRecipient gives the document recipient to the shipment holding the
// classifier's key, or to the first shipment
func attachRecipient(shipments []shipment.Shipment, c classifier.Result) {
	if c.Recipient == "" || len(shipments) == 0 {
		return
	}
	if c.FiscalKey != "" {
		for i := range shipments {
			if shipments[i].FiscalKey == c.FiscalKey {
				shipments[i].Recipient = c.Recipient
				return
			}
		}
	}
	shipments[0].Recipient = c.Recipient
}

func normalize(items []shipment.LineItem) []shipment.LineItem {
	out := make([]shipment.LineItem, 0, len(items))
	for _, item := range items {
		out = append(out, item.Normalize())
	}
	return out
}
