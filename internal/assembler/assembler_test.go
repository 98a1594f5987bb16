package assembler

import (
	"bytes"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/adverant/nexus/labelcompose-worker/internal/catalog"
	"github.com/adverant/nexus/labelcompose-worker/internal/classifier"
	"github.com/adverant/nexus/labelcompose-worker/internal/logging"
	"github.com/adverant/nexus/labelcompose-worker/internal/shipment"
)

const (
	keyA = "11111111111111111111111111111111111111111111"
	keyB = "22222222222222222222222222222222222222222222"
	keyC = "33333333333333333333333333333333333333333333"
)

var codes = []shipment.TrackingCode{"AA000000001BR", "AA000000002BR", "AA000000003BR"}

func item(sku string) shipment.LineItem {
	return shipment.LineItem{SKU: sku, Title: "Produto " + sku, Quantity: 1}
}

func fullCatalog(t *testing.T) catalog.Map {
	t.Helper()
	m, err := catalog.NewMap(map[string][]shipment.LineItem{
		string(codes[0]): {item("A")},
		string(codes[1]): {item("B")},
		string(codes[2]): {item("C")},
	})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestOrdinalPairer(t *testing.T) {
	got := OrdinalPairer{}.Pair(codes, []string{keyA, keyB})
	want := []string{keyA, keyB, ""}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Pair() = %v, want %v", got, want)
	}
	if got := (OrdinalPairer{}).Pair(nil, []string{keyA}); len(got) != 0 {
		t.Fatalf("Pair(nil) = %v", got)
	}
}

func TestAssemble_OrdinalKeys(t *testing.T) {
	a := New(nil, nil)
	out := a.Assemble(Input{
		Codes:          codes,
		Classification: classifier.Result{IsFiscal: true, Recipient: "João Silva", FiscalKey: keyA},
		Catalog:        fullCatalog(t),
		DecodedSymbols: []string{keyA, "AA000000001BR", "2222 2222 2222 2222 2222 2222 2222 2222 2222 2222 2222"},
	})

	if len(out) != 3 {
		t.Fatalf("got %d shipments", len(out))
	}
	wantKeys := []shipment.FiscalKey{keyA, keyB, ""}
	for i, s := range out {
		if s.Ordinal != i || s.Tracking != codes[i] {
			t.Errorf("shipment %d = %s/%d", i, s.Tracking, s.Ordinal)
		}
		if s.FiscalKey != wantKeys[i] || s.BarcodePayload != string(wantKeys[i]) {
			t.Errorf("shipment %d key = %q payload = %q, want %q", i, s.FiscalKey, s.BarcodePayload, wantKeys[i])
		}
	}
	if out[0].Recipient != "João Silva" || out[1].Recipient != "" {
		t.Errorf("recipient attached to wrong shipment: %q / %q", out[0].Recipient, out[1].Recipient)
	}
}

func TestAssemble_RecipientFollowsTextKey(t *testing.T) {
	a := New(nil, nil)
	out := a.Assemble(Input{
		Codes:          codes[:2],
		Classification: classifier.Result{IsFiscal: true, Recipient: "Maria Souza"},
		Catalog:        fullCatalog(t),
		DecodedSymbols: []string{keyB, keyC},
	})
	if out[0].FiscalKey != keyB || out[1].FiscalKey != keyC {
		t.Fatalf("keys = %q, %q", out[0].FiscalKey, out[1].FiscalKey)
	}
	if out[0].Recipient != "Maria Souza" {
		t.Errorf("recipient = %q, want first shipment", out[0].Recipient)
	}

	out = a.Assemble(Input{
		Codes:          codes[:2],
		Classification: classifier.Result{IsFiscal: true, Recipient: "Maria Souza", FiscalKey: keyC},
		Catalog:        fullCatalog(t),
		DecodedSymbols: []string{keyB},
	})
	if out[0].FiscalKey != keyC || out[1].FiscalKey != keyB {
		t.Fatalf("text key must come first: %q, %q", out[0].FiscalKey, out[1].FiscalKey)
	}
	if out[0].Recipient != "Maria Souza" || out[1].Recipient != "" {
		t.Errorf("recipients = %q / %q", out[0].Recipient, out[1].Recipient)
	}
}

func TestAssemble_DropsEmptyShipmentsAfterPairing(t *testing.T) {
	m, err := catalog.NewMap(map[string][]shipment.LineItem{
		string(codes[0]): {item("A")},
		string(codes[2]): {item("C")},
	})
	if err != nil {
		t.Fatal(err)
	}
	out := New(nil, nil).Assemble(Input{
		Codes:          codes,
		Classification: classifier.Result{IsFiscal: true},
		Catalog:        m,
		DecodedSymbols: []string{keyA, keyB, keyC},
	})
	if len(out) != 2 {
		t.Fatalf("got %d shipments, want 2", len(out))
	}
	if out[1].Tracking != codes[2] || out[1].Ordinal != 2 || out[1].FiscalKey != keyC {
		t.Errorf("third code lost its ordinal key: %+v", out[1])
	}
}

func TestAssemble_CatalogPolicy(t *testing.T) {
	m, err := catalog.NewMap(map[string][]shipment.LineItem{
		string(codes[0]): {item("CAT")},
	})
	if err != nil {
		t.Fatal(err)
	}
	extracted := map[shipment.TrackingCode][]shipment.LineItem{
		codes[0]: {item("TXT0")},
		codes[1]: {{SKU: "TXT1", Title: "Inline", Quantity: 0}},
	}

	out := New(nil, nil).Assemble(Input{
		Codes:     codes[:2],
		Catalog:   m,
		Extracted: extracted,
	})
	if len(out) != 2 {
		t.Fatalf("got %d shipments", len(out))
	}
	if out[0].Items[0].SKU != "CAT" {
		t.Errorf("catalogued code used %q", out[0].Items[0].SKU)
	}
	if out[1].Items[0].SKU != "TXT1" || out[1].Items[0].Quantity != 1 {
		t.Errorf("uncatalogued code items = %+v", out[1].Items)
	}
	if out[0].BarcodePayload != "" {
		t.Error("non-fiscal document received a payload")
	}

	fiscal := New(nil, nil).Assemble(Input{
		Codes:          codes[:2],
		Classification: classifier.Result{IsFiscal: true},
		Catalog:        m,
		Extracted:      extracted,
	})
	if len(fiscal) != 1 || fiscal[0].Tracking != codes[0] {
		t.Fatalf("fiscal document must only use the catalog: %+v", fiscal)
	}
}

func TestAssemble_EmptyCatalogEntryFallsBackToExtraction(t *testing.T) {
	m, err := catalog.NewMap(map[string][]shipment.LineItem{
		string(codes[0]): {},
	})
	if err != nil {
		t.Fatal(err)
	}
	extracted := map[shipment.TrackingCode][]shipment.LineItem{
		codes[0]: {item("X")},
	}

	out := New(nil, nil).Assemble(Input{
		Codes:     codes[:1],
		Catalog:   m,
		Extracted: extracted,
	})
	if len(out) != 1 || out[0].Items[0].SKU != "X" {
		t.Fatalf("empty catalog entry must fall back to extracted items: %+v", out)
	}

	fiscal := New(nil, nil).Assemble(Input{
		Codes:          codes[:1],
		Classification: classifier.Result{IsFiscal: true},
		Catalog:        m,
		Extracted:      extracted,
	})
	if len(fiscal) != 0 {
		t.Fatalf("fiscal document with an empty catalog entry = %+v, want none", fiscal)
	}
}

func TestAssembleWithPayloads_ValidatesSymbolsOnce(t *testing.T) {
	var buf bytes.Buffer
	a := New(nil, logging.NewLoggerTo(&buf, "test", slog.LevelDebug))
	in := Input{
		Codes:          codes[:2],
		Classification: classifier.Result{IsFiscal: true, FiscalKey: keyA},
		Catalog:        fullCatalog(t),
		DecodedSymbols: []string{"12345", keyB},
	}

	out, payloads := a.AssembleWithPayloads(in)
	if !reflect.DeepEqual(payloads, []string{keyA, keyB}) {
		t.Fatalf("payloads = %v", payloads)
	}
	if len(out) != 2 || out[1].BarcodePayload != keyB {
		t.Fatalf("shipments = %+v", out)
	}
	if n := strings.Count(buf.String(), "Ignoring decoded symbol"); n != 1 {
		t.Fatalf("malformed symbol logged %d times, want 1", n)
	}
}

func TestAssemble_NoCodes(t *testing.T) {
	out := New(nil, nil).Assemble(Input{Classification: classifier.Result{IsFiscal: true, FiscalKey: keyA}})
	if out == nil || len(out) != 0 {
		t.Fatalf("Assemble() = %#v, want empty", out)
	}
}

type reversePairer struct{}

func (reversePairer) Pair(codes []shipment.TrackingCode, payloads []string) []string {
	out := make([]string, len(codes))
	for i := range codes {
		if j := len(payloads) - 1 - i; j >= 0 {
			out[i] = payloads[j]
		}
	}
	return out
}

func TestAssemble_CustomPairer(t *testing.T) {
	out := New(reversePairer{}, nil).Assemble(Input{
		Codes:          codes[:2],
		Classification: classifier.Result{IsFiscal: true},
		Catalog:        fullCatalog(t),
		DecodedSymbols: []string{keyA, keyB},
	})
	if out[0].FiscalKey != keyB || out[1].FiscalKey != keyA {
		t.Fatalf("custom pairer ignored: %q, %q", out[0].FiscalKey, out[1].FiscalKey)
	}
}

func TestPayloads(t *testing.T) {
	a := New(nil, nil)
	in := Input{
		Codes:          codes,
		Classification: classifier.Result{IsFiscal: true, FiscalKey: keyB},
		DecodedSymbols: []string{"1111 1111 1111 1111 1111 1111 1111 1111 1111 1111 1111", keyB, "AM996944264BR"},
	}
	if got := a.Payloads(in); !reflect.DeepEqual(got, []string{keyB, keyA}) {
		t.Fatalf("Payloads() = %v", got)
	}
	in.Classification.IsFiscal = false
	if got := a.Payloads(in); got != nil {
		t.Fatalf("Payloads() for non-fiscal = %v", got)
	}
}
