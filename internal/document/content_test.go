package document

import (
	"strings"
	"testing"
)

func TestTextFromContent(t *testing.T) {
	tests := []struct {
		name   string
		stream string
		want   string
	}{
		{
			name:   "positioning operators",
			stream: "BT\n/F1 12 Tf\n72 720 Td\n(Pedido AM996944264BR) Tj\n0 -14 Td\n(SKU: ZX_1) Tj\nT*\n[(Sand) 20 (\\341lia) -250 (Papete)] TJ\nET",
			want:   "Pedido AM996944264BR\nSKU: ZX_1\nSandália Papete",
		},
		{
			name:   "text matrix lines",
			stream: "BT 1 0 0 1 10 700 Tm (A) Tj 1 0 0 1 50 700 Tm (B) Tj 1 0 0 1 10 680 Tm (C) Tj ET",
			want:   "A B\nC",
		},
		{
			name:   "hex string and quote operator",
			stream: "BT <414D> Tj (DANFE) ' ET",
			want:   "AM\nDANFE",
		},
		{
			name:   "nested parentheses and escapes",
			stream: "BT (Cor: \\(Preto\\) (fosco)) Tj ET",
			want:   "Cor: (Preto) (fosco)",
		},
		{
			name:   "inline image skipped",
			stream: "q BI /W 2 /H 1 /BPC 8 /CS /G ID \xff\xfeEI\x01 EI Q BT (X) Tj ET",
			want:   "X",
		},
		{
			name:   "comments and graphics ignored",
			stream: "% header\n0 0 1 rg 10 10 100 100 re f\nBT (Tamanho: 39) Tj ET",
			want:   "Tamanho: 39",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := textFromContent([]byte(tt.stream)); got != tt.want {
				t.Errorf("textFromContent() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeTextUTF16(t *testing.T) {
	raw := []byte{0xFE, 0xFF, 0x00, 'J', 0x00, 0xE3, 0x00, 'o'}
	if got := decodeText(raw); got != "Jão" {
		t.Errorf("decodeText() = %q", got)
	}
}

func TestTextFromContentWithForms(t *testing.T) {
	forms := map[string]string{
		"Label": "BT /F1 10 Tf 0 700 Td (Rastreamento: AM997753439BR) Tj ET /Inner Do",
		"Inner": "BT (Destinatario: Joao Silva) Tj ET",
		"Loop":  "BT (loop) Tj ET /Loop Do",
	}
	var resolve formResolver
	resolve = func(name string) ([]byte, formResolver, bool) {
		content, ok := forms[name]
		if !ok {
			return nil, nil, false
		}
		return []byte(content), resolve, true
	}

	page := "BT (Header) Tj ET q 1 0 0 1 0 0 cm /Label Do Q /Missing Do"
	got := textFromContentWithForms([]byte(page), resolve)
	want := "Header\nRastreamento: AM997753439BR\nDestinatario: Joao Silva"
	if got != want {
		t.Fatalf("textFromContentWithForms() = %q, want %q", got, want)
	}

	if got := textFromContent([]byte(page)); got != "Header" {
		t.Errorf("without resolver = %q, want only the page text", got)
	}

	loop := textFromContentWithForms([]byte("/Loop Do"), resolve)
	if n := strings.Count(loop, "loop"); n != maxFormDepth {
		t.Errorf("self-referencing form painted %d times, want %d", n, maxFormDepth)
	}
}
