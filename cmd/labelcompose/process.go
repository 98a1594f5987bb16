package main

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/adverant/nexus/labelcompose-worker/internal/catalog"
	"github.com/adverant/nexus/labelcompose-worker/internal/ocr"
	"github.com/adverant/nexus/labelcompose-worker/internal/processor"
)

// maxParallelInputs bounds the documents processed at once by one invocation
const maxParallelInputs = 4

func runProcess(ctx context.Context, env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("process", flag.ContinueOnError)
	out := fs.String("o", "", "output PDF (single input only)")
	catalogFile := fs.String("catalog", "", "catalog file overriding CATALOG_SOURCE")
	outDir := fs.String("outdir", env.cfg.OutputDir, "directory for composed PDFs")
	if err := fs.Parse(args); err != nil {
		return err
	}
	inputs := fs.Args()
	if len(inputs) == 0 {
		return fmt.Errorf("at least one input file is required")
	}
	if *out != "" && len(inputs) > 1 {
		return fmt.Errorf("-o needs exactly one input, got %d", len(inputs))
	}

	snapshot, err := env.catalogSnapshot(ctx, *catalogFile)
	if err != nil {
		return err
	}
	proc, err := env.processor()
	if err != nil {
		return err
	}

	results := make([]*processor.ProcessResult, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelInputs)
	for i, input := range inputs {
		output := *out
		if output == "" {
			output = outputPath(*outDir, input)
		}
		g.Go(func() error {
			result, err := proc.ProcessDocument(gctx, &processor.ProcessRequest{
				Filename:   filepath.Base(input),
				InputPath:  input,
				OutputPath: output,
				Catalog:    snapshot,
			})
			if err != nil {
				return fmt.Errorf("%s: %w", input, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if len(results) == 1 {
		return printJSON(results[0])
	}
	return printJSON(results)
}

func runDemo(ctx context.Context, env *cliEnv, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("demo takes no arguments")
	}
	proc, err := env.processor()
	if err != nil {
		return err
	}
	result, err := proc.ProcessDocument(ctx, &processor.ProcessRequest{
		Filename:   processor.DemoFilename,
		FileBuffer: []byte(processor.DemoText),
		OutputPath: filepath.Join(env.cfg.OutputDir, "demo_processado.pdf"),
		Catalog:    catalog.Demo(),
	})
	if err != nil {
		return err
	}
	return printJSON(result)
}

func (e *cliEnv) processor() (*processor.DocumentProcessor, error) {
	return processor.NewDocumentProcessor(&processor.ProcessorConfig{
		MaxFileSize: e.cfg.MaxFileSize,
		RenderDPI:   float64(e.cfg.RenderDPI),
		OCR:         ocr.NewTesseract(&ocr.TesseractConfig{Languages: ocr.ParseLanguages(e.cfg.OCRLanguages)}),
		Logger:      e.logger.With("component", "processor"),
	})
}

// catalogSnapshot reads the catalog once for the whole invocation. A file
// given on the command line wins over CATALOG_SOURCE.
func (e *cliEnv) catalogSnapshot(ctx context.Context, file string) (catalog.Map, error) {
	if file != "" {
		return catalog.LoadFile(file)
	}

	var store *catalog.RedisStore
	if e.cfg.CatalogSource == catalog.SourceRedis {
		client, err := e.redisClient(ctx)
		if err != nil {
			return catalog.Map{}, err
		}
		defer client.Close()
		store = catalog.NewRedisStore(client, e.cfg.CatalogRedisKey)
	}

	source, err := catalog.NewSource(e.cfg.CatalogSource, e.cfg.CatalogFile, store)
	if err != nil {
		return catalog.Map{}, err
	}
	return source.Snapshot(ctx)
}

// outputPath names the composed PDF of input inside dir
func outputPath(dir, input string) string {
	base := filepath.Base(input)
	return filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base))+"_processado.pdf")
}

