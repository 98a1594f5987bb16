package composer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/adverant/nexus/labelcompose-worker/internal/shipment"
)

// Row is one table row: wrapped lines per cell and the resulting height
type Row struct {
	Cells  [3][]string
	Height float64
	Header bool
}

// TableSegment is the part of a shipment's table drawn on one page
type TableSegment struct {
	X      float64
	Top    float64
	Widths []float64
	Header Row
	Rows   []Row
}

// Height returns the total height of the segment including its header
func (t TableSegment) Height() float64 {
	h := t.Header.Height
	for _, r := range t.Rows {
		h += r.Height
	}
	return h
}

// measurer reports the width of text in points
type measurer func(text string, bold bool, size float64) float64

// headerRow builds the distinct first row
func headerRow() Row {
	var r Row
	for i, label := range tableHeader {
		r.Cells[i] = []string{label}
	}
	r.Header = true
	r.Height = headerRowHeight
	return r
}

// itemRows builds one row per line item of s
func itemRows(s shipment.Shipment, widths []float64, measure measurer) []Row {
	rows := make([]Row, 0, len(s.Items))
	for _, item := range s.Items {
		var r Row
		r.Cells[0] = wrap(string(s.Tracking), cellWidth(widths[0]), measure)
		r.Cells[1] = describe(item, cellWidth(widths[1]), measure)
		r.Cells[2] = []string{strconv.Itoa(item.Quantity)}

		lines := max(len(r.Cells[0]), len(r.Cells[1]), len(r.Cells[2]))
		r.Height = float64(lines)*lineHeight + 2*cellPadding
		rows = append(rows, r)
	}
	return rows
}

// describe renders the description block of an item: title then attributes
func describe(item shipment.LineItem, width float64, measure measurer) []string {
	var lines []string
	lines = append(lines, wrap(item.Title, width, measure)...)
	if item.SKU != "" && item.SKU != "-" && item.SKU != "N/A" {
		lines = append(lines, wrap(fmt.Sprintf("SKU: %s", item.SKU), width, measure)...)
	}
	if item.Color != "" {
		lines = append(lines, wrap(fmt.Sprintf("Cor: %s", item.Color), width, measure)...)
	}
	if item.Size != "" {
		lines = append(lines, wrap(fmt.Sprintf("Tamanho: %s", item.Size), width, measure)...)
	}
	return lines
}

func cellWidth(column float64) float64 {
	return column - 2*cellPadding
}

// wrap breaks text into lines no wider than width, splitting on spaces and
// inside words that are wider than a line on their own
func wrap(text string, width float64, measure measurer) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	fits := func(s string) bool { return measure(s, false, bodyFontSize) <= width }

	var lines []string
	current := ""
	for _, word := range words {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if fits(candidate) {
			current = candidate
			continue
		}
		if current != "" {
			lines = append(lines, current)
			current = ""
		}
		for !fits(word) {
			head, tail := splitWord(word, fits)
			lines = append(lines, head)
			word = tail
		}
		current = word
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

// splitWord returns the longest fitting prefix of word (at least one rune)
func splitWord(word string, fits func(string) bool) (string, string) {
	runes := []rune(word)
	n := 1
	for n < len(runes) && fits(string(runes[:n+1])) {
		n++
	}
	return string(runes[:n]), string(runes[n:])
}

// paginate cuts rows into segments. The first segment starts at firstTop,
// the following ones at nextTop. Every continuation segment repeats the
// header and holds at least one row; the first one is empty when not even
// one row fits under the artwork.
func paginate(rows []Row, firstTop, nextTop float64) []TableSegment {
	widths := columnWidths()
	header := headerRow()
	newSegment := func(top float64) TableSegment {
		return TableSegment{X: marginX, Top: top, Widths: widths, Header: header}
	}

	segments := []TableSegment{newSegment(firstTop)}
	cursor := firstTop + header.Height
	for _, r := range rows {
		seg := &segments[len(segments)-1]
		first := len(segments) == 1
		if cursor+r.Height > tableLimit() && (len(seg.Rows) > 0 || first) {
			segments = append(segments, newSegment(nextTop))
			seg = &segments[len(segments)-1]
			cursor = nextTop + header.Height
		}
		seg.Rows = append(seg.Rows, r)
		cursor += r.Height
	}
	return segments
}
