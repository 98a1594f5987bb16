/**
 * Document Processor for the labelcompose worker
 *
 * Orchestrates one shipping document from input to composed output:
 * - text layer extraction with an OCR fallback and an OCR retry pass
 * - page roles and fiscal document classification
 * - barcode symbol decoding for access keys
 * - shipment assembly against the product catalog
 * - composition of the output PDF
 */

package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adverant/nexus/labelcompose-worker/internal/assembler"
	"github.com/adverant/nexus/labelcompose-worker/internal/barcode"
	"github.com/adverant/nexus/labelcompose-worker/internal/catalog"
	"github.com/adverant/nexus/labelcompose-worker/internal/classifier"
	"github.com/adverant/nexus/labelcompose-worker/internal/composer"
	"github.com/adverant/nexus/labelcompose-worker/internal/document"
	processingerrors "github.com/adverant/nexus/labelcompose-worker/internal/errors"
	"github.com/adverant/nexus/labelcompose-worker/internal/extract"
	"github.com/adverant/nexus/labelcompose-worker/internal/logging"
	"github.com/adverant/nexus/labelcompose-worker/internal/ocr"
	"github.com/adverant/nexus/labelcompose-worker/internal/shipment"
)

// DefaultMaxFileSize mirrors the upload limit of the web front end
const DefaultMaxFileSize = 16 * 1024 * 1024

// DocumentProcessorInterface defines the interface for document processing
type DocumentProcessorInterface interface {
	ProcessDocument(ctx context.Context, req *ProcessRequest) (*ProcessResult, error)
}

// ProcessorConfig holds processor configuration
type ProcessorConfig struct {
	MaxFileSize int64
	RenderDPI   float64

	// OCR is optional; without it image inputs yield no text
	OCR      ocr.Engine
	Decoder  barcode.Decoder
	Renderer barcode.Renderer
	Pairer   assembler.Pairer
	Logger   *logging.Logger
}

// ProcessRequest represents a document processing request
type ProcessRequest struct {
	JobID      string
	Filename   string
	InputPath  string
	FileBuffer []byte
	// OutputPath receives the composed PDF; empty skips composition
	OutputPath string
	Catalog    catalog.Lookup
}

// ProcessResult is the summary of one processed document
type ProcessResult struct {
	Arquivo       string                  `json:"arquivo"`
	TrackingCodes []shipment.TrackingCode `json:"tracking_codes"`
	TrackingCode  *shipment.TrackingCode  `json:"tracking_code"`
	IsDanfe       bool                    `json:"is_danfe"`
	Destinatario  *string                 `json:"destinatario"`
	ChaveAcesso   *string                 `json:"chave_acesso"`
	BarcodeBase64 *string                 `json:"barcode_base64"`
	Produtos      []shipment.LineItem     `json:"produtos"`
	TrackingInfo  []shipment.TrackingInfo `json:"tracking_info"`
	SaidaPDF      string                  `json:"saida_pdf"`

	Shipments        []shipment.Shipment `json:"-"`
	PageCount        int                 `json:"-"`
	OutputPages      int                 `json:"-"`
	TextSource       string              `json:"-"`
	ProcessingTimeMs int64               `json:"-"`
}

// DocumentProcessor handles document processing
type DocumentProcessor struct {
	config    *ProcessorConfig
	ocr       ocr.Engine
	decoder   barcode.Decoder
	renderer  barcode.Renderer
	assembler *assembler.Assembler
	composer  *composer.Composer
	logger    *logging.Logger
}

// NewDocumentProcessor creates a new document processor
func NewDocumentProcessor(cfg *ProcessorConfig) (*DocumentProcessor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.MaxFileSize < 0 {
		return nil, fmt.Errorf("max file size must not be negative")
	}
	if cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	renderer := cfg.Renderer
	if renderer == nil {
		renderer = barcode.NewCode128Renderer()
	}
	decoder := cfg.Decoder
	if decoder == nil {
		decoder = barcode.NewZXingDecoder()
	}
	if cfg.OCR == nil {
		logger.Warn("OCR engine not configured, image pages will yield no text")
	}

	return &DocumentProcessor{
		config:    cfg,
		ocr:       cfg.OCR,
		decoder:   decoder,
		renderer:  renderer,
		assembler: assembler.New(cfg.Pairer, logger.With("stage", "assemble")),
		composer:  composer.New(&composer.Config{DPI: cfg.RenderDPI}, logger.With("stage", "compose")),
		logger:    logger,
	}, nil
}

// ProcessDocument processes a document through the complete pipeline
func (p *DocumentProcessor) ProcessDocument(ctx context.Context, req *ProcessRequest) (*ProcessResult, error) {
	start := time.Now()
	log := p.logger.With("job_id", req.JobID)

	name := req.Filename
	if name == "" {
		name = filepath.Base(req.InputPath)
	}

	// Step 1: Load and open the source document
	data, err := p.loadFile(req)
	if err != nil {
		return nil, err
	}
	log.Info("Processing document", "file", name, "bytes", len(data))

	doc, err := document.OpenBytes(data, name)
	if err != nil {
		if errors.Is(err, document.ErrUnsupportedFormat) {
			return nil, processingerrors.NewUnsupportedFormatError(req.JobID, name, err)
		}
		return nil, processingerrors.NewSourceReadError(req.JobID, name, err)
	}
	defer doc.Close()

	// Step 2: Page texts, falling back to OCR of the whole document
	pages, err := readPages(ctx, doc)
	if err != nil {
		return nil, processingerrors.NewSourceReadError(req.JobID, name, err)
	}
	textSource := "text_layer"
	if allEmpty(pages) {
		textSource = "ocr"
		if err := p.recognizePages(ctx, req.JobID, doc, pages, false); err != nil {
			return nil, err
		}
	}

	// Step 3: Tracking codes, with an OCR retry pass for PDFs
	codes := extract.TrackingCodes(pages)
	if len(codes) == 0 && textSource == "text_layer" && doc.Kind() == document.KindPDF && p.ocr != nil {
		log.Info("No tracking code in text layer, retrying with OCR")
		if err := p.recognizePages(ctx, req.JobID, doc, pages, true); err != nil {
			log.Warn("OCR retry pass failed", "error", err)
		} else {
			textSource = "text_layer+ocr"
			codes = extract.TrackingCodes(pages)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Step 4: Roles and classification
	classifier.LabelRoles(pages)
	cls := classifier.Classify(pages)
	log.Info("Document classified",
		"pages", len(pages),
		"tracking_codes", len(codes),
		"fiscal", cls.IsFiscal,
		"text_source", textSource)

	var symbols []string
	if cls.IsFiscal {
		symbols = p.decodeSymbols(ctx, doc, log)
	}

	// Step 5: Assembly
	in := assembler.Input{
		Codes:          codes,
		Classification: cls,
		Catalog:        req.Catalog,
		Extracted:      extract.LineItems(pages, codes),
		DecodedSymbols: symbols,
	}
	shipments, payloads := p.assembler.AssembleWithPayloads(in)

	result := &ProcessResult{
		Arquivo:       name,
		TrackingCodes: codes,
		IsDanfe:       cls.IsFiscal,
		Produtos:      []shipment.LineItem{},
		TrackingInfo:  []shipment.TrackingInfo{},
		Shipments:     shipments,
		PageCount:     len(pages),
		TextSource:    textSource,
	}
	if len(codes) > 0 {
		result.TrackingCode = &codes[0]
	}
	if cls.Recipient != "" {
		result.Destinatario = stringPtr(cls.Recipient)
	}
	if cls.FiscalKey != "" {
		result.ChaveAcesso = stringPtr(string(cls.FiscalKey))
	}
	for _, s := range shipments {
		result.Produtos = append(result.Produtos, s.Items...)
		result.TrackingInfo = append(result.TrackingInfo, shipment.TrackingInfo{Tracking: s.Tracking, Produtos: s.Items})
	}

	// Step 6: Primary barcode image, the first payload candidate
	if len(payloads) > 0 {
		if encoded, err := p.primaryBarcode(payloads[0]); err != nil {
			log.Warn("Failed to render primary barcode", "error", err)
		} else {
			result.BarcodeBase64 = &encoded
		}
	}

	// Step 7: Composition
	if req.OutputPath != "" && len(shipments) > 0 {
		pagesWritten, err := p.writeOutput(ctx, req, shipments, pages, doc)
		if err != nil {
			return nil, err
		}
		result.SaidaPDF = req.OutputPath
		result.OutputPages = pagesWritten
	} else if len(shipments) == 0 {
		log.Info("No shipment with line items, output document skipped")
	}

	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	log.Info("Processing pipeline complete",
		"shipments", len(shipments),
		"output", result.SaidaPDF,
		"duration_ms", result.ProcessingTimeMs)

	return result, nil
}

// loadFile reads the request buffer or the input file within the size limit
func (p *DocumentProcessor) loadFile(req *ProcessRequest) ([]byte, error) {
	if len(req.FileBuffer) > 0 {
		if int64(len(req.FileBuffer)) > p.config.MaxFileSize {
			return nil, processingerrors.NewSourceReadError(req.JobID, req.Filename, sizeError(int64(len(req.FileBuffer)), p.config.MaxFileSize))
		}
		return req.FileBuffer, nil
	}
	if req.InputPath == "" {
		return nil, processingerrors.NewSourceReadError(req.JobID, "", fmt.Errorf("no file source provided (buffer or path)"))
	}

	info, err := os.Stat(req.InputPath)
	if err != nil {
		return nil, processingerrors.NewSourceReadError(req.JobID, req.InputPath, err)
	}
	if info.IsDir() {
		return nil, processingerrors.NewSourceReadError(req.JobID, req.InputPath, fmt.Errorf("input is a directory"))
	}
	if info.Size() > p.config.MaxFileSize {
		return nil, processingerrors.NewSourceReadError(req.JobID, req.InputPath, sizeError(info.Size(), p.config.MaxFileSize))
	}

	data, err := os.ReadFile(req.InputPath)
	if err != nil {
		return nil, processingerrors.NewSourceReadError(req.JobID, req.InputPath, err)
	}
	return data, nil
}

func sizeError(size, limit int64) error {
	return fmt.Errorf("file size %d exceeds limit of %d bytes", size, limit)
}

// readPages collects the embedded text of every page
func readPages(ctx context.Context, doc document.Document) ([]shipment.Page, error) {
	pages := make([]shipment.Page, doc.PageCount())
	for i := range pages {
		text, err := doc.Text(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		pages[i] = shipment.Page{Index: i, Text: text}
	}
	return pages, nil
}

func allEmpty(pages []shipment.Page) bool {
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			return false
		}
	}
	return true
}

// recognizePages runs OCR over every page image. With merge set, recognized
// text is appended to the existing page text instead of replacing it.
func (p *DocumentProcessor) recognizePages(ctx context.Context, jobID string, doc document.Document, pages []shipment.Page, merge bool) error {
	if p.ocr == nil {
		return nil
	}
	for i := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		img, err := doc.Image(ctx, pages[i].Index)
		if errors.Is(err, document.ErrNoImage) {
			continue
		}
		if err != nil {
			return processingerrors.NewOCRFailedError(jobID, pages[i].Index, err)
		}

		res, err := p.ocr.Recognize(ctx, img)
		if err != nil {
			return processingerrors.NewOCRFailedError(jobID, pages[i].Index, err)
		}
		p.logger.Debug("Page recognized",
			"page", pages[i].Index+1,
			"engine", res.Engine,
			"confidence", res.Confidence,
			"duration_ms", res.Duration.Milliseconds())

		if merge && pages[i].Text != "" {
			pages[i].Text = pages[i].Text + "\n" + res.Text
		} else {
			pages[i].Text = res.Text
		}
	}
	return nil
}

// decodeSymbols reads barcode symbols off every page image in page order
func (p *DocumentProcessor) decodeSymbols(ctx context.Context, doc document.Document, log *logging.Logger) []string {
	var symbols []string
	for i := 0; i < doc.PageCount(); i++ {
		img, err := doc.Image(ctx, i)
		if err != nil {
			if !errors.Is(err, document.ErrNoImage) {
				log.Debug("Skipping page for barcode decoding", "page", i+1, "error", err)
			}
			continue
		}
		found, err := p.decoder.Decode(img)
		if err != nil {
			log.Debug("No barcode decoded", "page", i+1, "error", err)
			continue
		}
		symbols = append(symbols, found...)
	}
	return symbols
}

func (p *DocumentProcessor) primaryBarcode(payload string) (string, error) {
	img, err := p.renderer.Render(payload)
	if err != nil {
		return "", err
	}
	return barcode.PNGBase64(img)
}

// writeOutput composes the output PDF at the request output path. A partial
// file is removed when composition fails.
func (p *DocumentProcessor) writeOutput(ctx context.Context, req *ProcessRequest, shipments []shipment.Shipment, pages []shipment.Page, doc document.Document) (int, error) {
	if dir := filepath.Dir(req.OutputPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, processingerrors.NewComposeFailedError(req.JobID, req.OutputPath, err)
		}
	}
	f, err := os.Create(req.OutputPath)
	if err != nil {
		return 0, processingerrors.NewComposeFailedError(req.JobID, req.OutputPath, err)
	}

	plan, err := p.composer.Compose(ctx, f, shipments, pages, doc, p.renderer)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(req.OutputPath)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, processingerrors.NewComposeFailedError(req.JobID, req.OutputPath, err)
	}
	return len(plan.Pages), nil
}

func stringPtr(s string) *string {
	return &s
}
