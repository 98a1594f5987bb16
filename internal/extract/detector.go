/**
 * Line detectors
 *
 * Each detector inspects a single line of page text and reports the structured
 * fragment it recognises. The scanners in this package compose them; none of
 * them knows about windows or cursors.
 */

package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// FragmentKind identifies what a detector found
type FragmentKind int

const (
	FragmentTracking FragmentKind = iota
	FragmentSKU
	FragmentTitle
	FragmentQuantity
	FragmentColor
	FragmentSize
	FragmentRecipientHint
	FragmentRecipientName
)

// Fragment is a recognised piece of a line
type Fragment struct {
	Kind   FragmentKind
	Value  string
	Number int
}

// Detector recognises one kind of fragment on a line
type Detector interface {
	Detect(line string) (Fragment, bool)
}

// DetectorFunc adapts a function to the Detector interface
type DetectorFunc func(line string) (Fragment, bool)

// Detect calls f(line)
func (f DetectorFunc) Detect(line string) (Fragment, bool) { return f(line) }

// regexDetector reports the first capture group (or the whole match) of re
type regexDetector struct {
	kind FragmentKind
	re   *regexp.Regexp
}

func (d regexDetector) Detect(line string) (Fragment, bool) {
	m := d.re.FindStringSubmatch(line)
	if m == nil {
		return Fragment{}, false
	}
	value := m[0]
	if len(m) > 1 {
		value = m[1]
	}
	return Fragment{Kind: d.kind, Value: strings.TrimSpace(value)}, true
}

var (
	trackingPattern  = regexp.MustCompile(`[A-Z]{2}\d{9}[A-Z]{2}`)
	skuPattern       = regexp.MustCompile(`(?i)SKU:\s*([A-Z0-9_]+)`)
	skuMarker        = regexp.MustCompile(`(?i)SKU:`)
	quantityPattern  = regexp.MustCompile(`(?i)Quantidade:\s*(\d+)`)
	colorPattern     = regexp.MustCompile(`(?i)Cor:\s*(.+)$`)
	sizePattern      = regexp.MustCompile(`(?i)Tamanho:\s*(.+)$`)
	attributeKeyword = regexp.MustCompile(`(?i)(quantidade:|cor:|tamanho:|venda:|pack)`)
	digitPattern     = regexp.MustCompile(`\d`)

	recipientHints = []*regexp.Regexp{
		regexp.MustCompile(`(?i)DESTINAT[ÁA]RIO`),
		regexp.MustCompile(`(?i)\bDEST\.\b`),
		regexp.MustCompile(`(?i)\bNOME DO DESTINAT[ÁA]RIO\b`),
	}
)

const (
	minTitleRunes     = 11
	minRecipientRunes = 3
	maxRecipientRunes = 120
)

var (
	// TrackingDetector finds the first tracking code on a line
	TrackingDetector Detector = regexDetector{kind: FragmentTracking, re: trackingPattern}

	// SKUDetector finds a "SKU: <code>" marker
	SKUDetector Detector = regexDetector{kind: FragmentSKU, re: skuPattern}

	// ColorDetector finds a "Cor: <value>" field
	ColorDetector Detector = regexDetector{kind: FragmentColor, re: colorPattern}

	// SizeDetector finds a "Tamanho: <value>" field
	SizeDetector Detector = regexDetector{kind: FragmentSize, re: sizePattern}

	// QuantityDetector finds a "Quantidade: <n>" field
	QuantityDetector Detector = DetectorFunc(func(line string) (Fragment, bool) {
		m := quantityPattern.FindStringSubmatch(line)
		if m == nil {
			return Fragment{}, false
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return Fragment{}, false
		}
		return Fragment{Kind: FragmentQuantity, Value: m[1], Number: n}, true
	})

	// TitleDetector accepts a sufficiently long line carrying no attribute keyword
	TitleDetector Detector = DetectorFunc(func(line string) (Fragment, bool) {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) < minTitleRunes || attributeKeyword.MatchString(line) {
			return Fragment{}, false
		}
		return Fragment{Kind: FragmentTitle, Value: line}, true
	})

	// RecipientHintDetector matches a recipient label line
	RecipientHintDetector Detector = DetectorFunc(func(line string) (Fragment, bool) {
		for _, hint := range recipientHints {
			if hint.MatchString(line) {
				return Fragment{Kind: FragmentRecipientHint, Value: strings.TrimSpace(line)}, true
			}
		}
		return Fragment{}, false
	})

	// RecipientNameDetector accepts a digit-free line of plausible name length
	RecipientNameDetector Detector = DetectorFunc(func(line string) (Fragment, bool) {
		if digitPattern.MatchString(line) {
			return Fragment{}, false
		}
		name := strings.TrimSpace(line)
		n := utf8.RuneCountInString(name)
		if n < minRecipientRunes || n > maxRecipientRunes {
			return Fragment{}, false
		}
		return Fragment{Kind: FragmentRecipientName, Value: name}, true
	})
)

// itemFieldDetectors fill the attributes of a line item inside the SKU window
var itemFieldDetectors = []Detector{QuantityDetector, ColorDetector, SizeDetector}
