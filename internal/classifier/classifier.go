/**
 * Page classifier
 *
 * Decides whether a document is a fiscal (DANFE) bundle and which pages are
 * fiscal summaries rather than shipping labels. The decision is document-level;
 * page roles only drive artwork selection in the composer.
 */

package classifier

import (
	"regexp"
	"strings"

	"github.com/adverant/nexus/labelcompose-worker/internal/extract"
	"github.com/adverant/nexus/labelcompose-worker/internal/shipment"
)

var (
	accessKeyLabel = regexp.MustCompile(`(?i)CHAVE\s+DE\s+ACESSO`)
	danfeMarker    = regexp.MustCompile(`(?i)\bDANFE\b`)
)

// fiscalSummaryKeywords mark a page as a DANFE summary rather than a label
var fiscalSummaryKeywords = []string{"DANFE", "DOCUMENTO AUXILIAR", "NOTA FISCAL ELETRÔNICA"}

// Result is the document-level classification
type Result struct {
	IsFiscal  bool
	Recipient string
	FiscalKey shipment.FiscalKey
}

// Classify inspects every page and reports whether the document is fiscal,
// together with the recipient name and the textual access key when found.
func Classify(pages []shipment.Page) Result {
	candidates := extract.RecipientCandidates(pages)

	if len(candidates) >= 2 {
		if text, ok := pageText(pages, candidates[1].Page); ok {
			key, hasKey := extract.FirstFiscalKey(text)
			if hasKey || accessKeyLabel.MatchString(text) {
				return Result{IsFiscal: true, Recipient: candidates[0].Name, FiscalKey: key}
			}
		}
	}

	joined := extract.JoinText(pages)
	if !danfeMarker.MatchString(joined) {
		return Result{}
	}
	key, ok := extract.FirstFiscalKey(joined)
	if !ok {
		return Result{}
	}

	result := Result{IsFiscal: true, FiscalKey: key}
	if names := extract.RecipientNames(joined); len(names) > 0 {
		result.Recipient = names[0]
	}
	return result
}

// LabelRoles assigns a role to every unclassified page. Pages that already
// carry a role keep it.
func LabelRoles(pages []shipment.Page) {
	for i := range pages {
		if pages[i].Role != shipment.RoleUnclassified {
			continue
		}
		if IsFiscalSummary(pages[i].Text) {
			pages[i].Role = shipment.RoleFiscalSummary
		} else {
			pages[i].Role = shipment.RoleShippingLabel
		}
	}
}

// IsFiscalSummary reports whether text reads like a DANFE summary page
func IsFiscalSummary(text string) bool {
	upper := strings.ToUpper(text)
	for _, kw := range fiscalSummaryKeywords {
		if strings.Contains(upper, kw) {
			return true
		}
	}
	return false
}

func pageText(pages []shipment.Page, index int) (string, bool) {
	for _, page := range pages {
		if page.Index == index {
			return page.Text, true
		}
	}
	return "", false
}
