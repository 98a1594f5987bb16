/**
 * Shipment domain types
 *
 * Value objects shared by the extraction, assembly and composition stages.
 * Nothing here is persisted; a Shipment lives for one processing run.
 */

package shipment

import (
	"fmt"
	"regexp"
)

// Role is the document role a page plays
type Role int

const (
	RoleUnclassified Role = iota
	RoleFiscalSummary
	RoleShippingLabel
)

// String returns the role name used in logs
func (r Role) String() string {
	switch r {
	case RoleFiscalSummary:
		return "FISCAL_SUMMARY"
	case RoleShippingLabel:
		return "SHIPPING_LABEL"
	default:
		return "UNCLASSIFIED"
	}
}

// Page is one unit of source content. Imagery is owned by the document handle.
type Page struct {
	Index int
	Text  string
	Role  Role
}

// TrackingCode is a carrier shipment identifier: 2 letters, 9 digits, 2 letters
type TrackingCode string

// FiscalKey is the 44-digit access key of a DANFE
type FiscalKey string

var (
	trackingCodeRe = regexp.MustCompile(`^[A-Z]{2}\d{9}[A-Z]{2}$`)
	fiscalKeyRe    = regexp.MustCompile(`^\d{44}$`)
)

// ParseTrackingCode validates s as a tracking code
func ParseTrackingCode(s string) (TrackingCode, error) {
	if !trackingCodeRe.MatchString(s) {
		return "", fmt.Errorf("invalid tracking code: %q", s)
	}
	return TrackingCode(s), nil
}

// ParseFiscalKey validates s as a fiscal access key
func ParseFiscalKey(s string) (FiscalKey, error) {
	if !fiscalKeyRe.MatchString(s) {
		return "", fmt.Errorf("invalid fiscal key: %q", s)
	}
	return FiscalKey(s), nil
}

// RecipientCandidate is a name found near a recipient label
type RecipientCandidate struct {
	Page int
	Name string
}

// LineItem is one product entry of a shipment.
// The JSON shape matches the catalog records: {sku, titulo, qtd, cor, tamanho}.
type LineItem struct {
	SKU      string `json:"sku" yaml:"sku"`
	Title    string `json:"titulo" yaml:"titulo"`
	Quantity int    `json:"qtd" yaml:"qtd"`
	Color    string `json:"cor,omitempty" yaml:"cor,omitempty"`
	Size     string `json:"tamanho,omitempty" yaml:"tamanho,omitempty"`
}

// Normalize returns a copy with a positive quantity
func (li LineItem) Normalize() LineItem {
	if li.Quantity <= 0 {
		li.Quantity = 1
	}
	return li
}

// Shipment is one resolved tracking code with everything attached to it
type Shipment struct {
	// Ordinal is the position of Tracking among all discovered codes
	Ordinal        int
	Tracking       TrackingCode
	FiscalKey      FiscalKey
	Recipient      string
	Items          []LineItem
	BarcodePayload string
}

// TrackingInfo is the per-shipment breakdown reported to callers
type TrackingInfo struct {
	Tracking TrackingCode `json:"tracking"`
	Produtos []LineItem   `json:"produtos"`
}
