package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adverant/nexus/labelcompose-worker/internal/catalog"
	processingerrors "github.com/adverant/nexus/labelcompose-worker/internal/errors"
	"github.com/adverant/nexus/labelcompose-worker/internal/ocr"
	"github.com/adverant/nexus/labelcompose-worker/internal/shipment"
)

const testKey = "35240612345678000190550010000012341000012345"

type fakeOCR struct {
	text  string
	err   error
	calls int
}

func (f *fakeOCR) Recognize(ctx context.Context, img image.Image) (*ocr.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &ocr.Result{Text: f.text, Confidence: 0.9, Engine: "fake"}, nil
}

func newProcessor(t *testing.T, cfg *ProcessorConfig) *DocumentProcessor {
	t.Helper()
	if cfg == nil {
		cfg = &ProcessorConfig{}
	}
	cfg.RenderDPI = 72
	p, err := NewDocumentProcessor(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func assertPDF(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatalf("output %s is not a PDF", path)
	}
}

func TestProcessDocument_DemoText(t *testing.T) {
	p := newProcessor(t, nil)
	out := filepath.Join(t.TempDir(), "out", "demo_processado.pdf")

	res, err := p.ProcessDocument(context.Background(), &ProcessRequest{
		JobID:      "job-1",
		Filename:   DemoFilename,
		FileBuffer: []byte(DemoText),
		OutputPath: out,
		Catalog:    catalog.Demo(),
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(res.TrackingCodes) != 2 || res.TrackingCodes[0] != "AM997753439BR" || res.TrackingCodes[1] != "AM996944264BR" {
		t.Fatalf("tracking codes = %v", res.TrackingCodes)
	}
	if res.TrackingCode == nil || *res.TrackingCode != "AM997753439BR" {
		t.Errorf("primary tracking code = %v", res.TrackingCode)
	}
	if res.IsDanfe || res.ChaveAcesso != nil || res.BarcodeBase64 != nil {
		t.Errorf("plain text demo classified as fiscal: %+v", res)
	}
	if len(res.Produtos) != 4 || len(res.TrackingInfo) != 2 {
		t.Errorf("produtos = %d, tracking_info = %d", len(res.Produtos), len(res.TrackingInfo))
	}
	if res.TrackingInfo[1].Tracking != "AM996944264BR" || len(res.TrackingInfo[1].Produtos) != 3 {
		t.Errorf("second shipment = %+v", res.TrackingInfo[1])
	}
	if res.SaidaPDF != out || res.OutputPages != 2 {
		t.Errorf("saida_pdf = %q, pages = %d", res.SaidaPDF, res.OutputPages)
	}
	assertPDF(t, out)
}

func TestProcessDocument_FiscalText(t *testing.T) {
	danfe := strings.Join([]string{
		"DANFE",
		"DOCUMENTO AUXILIAR DA NOTA FISCAL ELETRÔNICA",
		"CHAVE DE ACESSO",
		"3524 0612 3456 7800 0190 5500 1000 0012 3410 0001 2345",
		"DESTINATÁRIO",
		"João Silva",
	}, "\n")
	label := "Etiqueta de envio\nAM996944264BR"
	path := writeFile(t, "nota.txt", []byte(danfe+"\f"+label))
	out := filepath.Join(t.TempDir(), "nota.pdf")

	res, err := newProcessor(t, nil).ProcessDocument(context.Background(), &ProcessRequest{
		JobID:      "job-2",
		InputPath:  path,
		OutputPath: out,
		Catalog:    catalog.Demo(),
	})
	if err != nil {
		t.Fatal(err)
	}

	if !res.IsDanfe {
		t.Fatal("expected fiscal document")
	}
	if res.Arquivo != "nota.txt" {
		t.Errorf("arquivo = %q", res.Arquivo)
	}
	if res.ChaveAcesso == nil || *res.ChaveAcesso != testKey {
		t.Errorf("chave_acesso = %v", res.ChaveAcesso)
	}
	if res.Destinatario == nil || *res.Destinatario != "João Silva" {
		t.Errorf("destinatario = %v", res.Destinatario)
	}
	if res.BarcodeBase64 == nil || *res.BarcodeBase64 == "" {
		t.Error("missing primary barcode")
	}
	if len(res.Shipments) != 1 {
		t.Fatalf("shipments = %+v", res.Shipments)
	}
	s := res.Shipments[0]
	if s.FiscalKey != testKey || s.BarcodePayload != testKey || s.Recipient != "João Silva" || len(s.Items) != 3 {
		t.Errorf("shipment = %+v", s)
	}
	assertPDF(t, out)
}

func TestProcessDocument_NoTrackingCodes(t *testing.T) {
	out := filepath.Join(t.TempDir(), "none.pdf")
	res, err := newProcessor(t, nil).ProcessDocument(context.Background(), &ProcessRequest{
		Filename:   "vazio.txt",
		FileBuffer: []byte("nenhum codigo por aqui"),
		OutputPath: out,
		Catalog:    catalog.Demo(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.TrackingCodes) != 0 || res.TrackingCode != nil || res.SaidaPDF != "" {
		t.Fatalf("result = %+v", res)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("output written for a document without shipments")
	}

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"tracking_codes":[]`, `"produtos":[]`, `"tracking_info":[]`, `"tracking_code":null`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("json %s lacks %s", data, key)
		}
	}
}

func TestProcessDocument_ImageUsesOCR(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 40, 60))); err != nil {
		t.Fatal(err)
	}
	path := writeFile(t, "etiqueta.png", buf.Bytes())
	engine := &fakeOCR{text: "AM996944264BR\nSKU: AB_1\nCamiseta Básica Algodão\nQuantidade: 2"}
	out := filepath.Join(t.TempDir(), "etiqueta.pdf")

	res, err := newProcessor(t, &ProcessorConfig{OCR: engine}).ProcessDocument(context.Background(), &ProcessRequest{
		InputPath:  path,
		OutputPath: out,
		Catalog:    catalog.Map{},
	})
	if err != nil {
		t.Fatal(err)
	}
	if engine.calls != 1 || res.TextSource != "ocr" {
		t.Errorf("ocr calls = %d, source = %s", engine.calls, res.TextSource)
	}
	want := shipment.LineItem{SKU: "AB_1", Title: "Camiseta Básica Algodão", Quantity: 2}
	if len(res.Produtos) != 1 || res.Produtos[0] != want {
		t.Fatalf("produtos = %+v", res.Produtos)
	}
	assertPDF(t, out)
}

func TestProcessDocument_Errors(t *testing.T) {
	var img bytes.Buffer
	if err := png.Encode(&img, image.NewGray(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		cfg  *ProcessorConfig
		req  *ProcessRequest
		code processingerrors.ErrorCode
	}{
		{
			name: "missing file",
			req:  &ProcessRequest{InputPath: filepath.Join(t.TempDir(), "missing.pdf")},
			code: processingerrors.ErrorSourceReadFailed,
		},
		{
			name: "too large",
			cfg:  &ProcessorConfig{MaxFileSize: 8},
			req:  &ProcessRequest{Filename: "big.txt", FileBuffer: []byte(DemoText)},
			code: processingerrors.ErrorSourceReadFailed,
		},
		{
			name: "unsupported",
			req:  &ProcessRequest{Filename: "pacote.zip", FileBuffer: []byte("PK\x03\x04rest")},
			code: processingerrors.ErrorUnsupportedFormat,
		},
		{
			name: "ocr failure",
			cfg:  &ProcessorConfig{OCR: &fakeOCR{err: errors.New("engine down")}},
			req:  &ProcessRequest{Filename: "scan.png", FileBuffer: img.Bytes()},
			code: processingerrors.ErrorOCRFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newProcessor(t, tt.cfg).ProcessDocument(context.Background(), tt.req)
			code, ok := processingerrors.CodeOf(err)
			if !ok || code != tt.code {
				t.Fatalf("error = %v, want code %s", err, tt.code)
			}
			if !processingerrors.IsTerminal(err) {
				t.Error("expected a terminal error")
			}
		})
	}
}

func TestProcessDocument_ComposeFailure(t *testing.T) {
	blocker := writeFile(t, "blocker", []byte("x"))
	_, err := newProcessor(t, nil).ProcessDocument(context.Background(), &ProcessRequest{
		Filename:   DemoFilename,
		FileBuffer: []byte(DemoText),
		OutputPath: filepath.Join(blocker, "out.pdf"),
		Catalog:    catalog.Demo(),
	})
	if code, _ := processingerrors.CodeOf(err); code != processingerrors.ErrorComposeFailed {
		t.Fatalf("error = %v, want compose failure", err)
	}
}

func TestProcessDocument_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newProcessor(t, nil).ProcessDocument(ctx, &ProcessRequest{
		Filename:   DemoFilename,
		FileBuffer: []byte(DemoText),
		Catalog:    catalog.Demo(),
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}
