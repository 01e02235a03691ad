package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/PabloZV/ml-document-system/internal/common"
	"github.com/PabloZV/ml-document-system/internal/embedding"
	"github.com/PabloZV/ml-document-system/internal/entities"
	"github.com/PabloZV/ml-document-system/internal/entity"
	"github.com/PabloZV/ml-document-system/internal/ingest"
	"github.com/PabloZV/ml-document-system/internal/ocr"
	"github.com/PabloZV/ml-document-system/internal/pipeline"
	"github.com/PabloZV/ml-document-system/internal/repository"
	"github.com/PabloZV/ml-document-system/internal/sink"
	"github.com/PabloZV/ml-document-system/internal/vectorstore"
)

// printError prints to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		path         = flag.String("path", "", "dataset directory (default: DATA_DIR from config)")
		limit        = flag.Int("limit", 0, "maximum number of documents to process (0 = all)")
		category     = flag.String("category", "", "process only this category subfolder")
		skipExisting = flag.Bool("skip-existing", false, "skip files already processed successfully")
		watch        = flag.Bool("watch", false, "keep running and process files as they appear")
		xlsxOut      = flag.String("xlsx", "", "also write an XLSX workbook to this path")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	cfg, err := common.LoadConfig()
	if err != nil {
		printError("Error: loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	root := *path
	if root == "" {
		root = cfg.Pipeline.DataDir
	}
	if *category != "" {
		root = filepath.Join(root, *category)
	}
	if st, err := os.Stat(root); err != nil || !st.IsDir() {
		printError("Error: dataset path does not exist: %s\n", root)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := repository.Open(cfg.Catalog.Path)
	if err != nil {
		printError("Error: opening catalog: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()
	catalog := repository.NewCatalog(db, logger)

	extractor := ocr.NewExtractor(ocr.Config{
		Tesseract:           cfg.OCR.Tesseract,
		Lang:                cfg.OCR.Lang,
		PSM:                 cfg.OCR.PSM,
		OEM:                 cfg.OCR.OEM,
		TessdataDir:         cfg.OCR.TessdataDir,
		EnableTSVConfidence: cfg.OCR.EnableTSVConfidence,
		Timeout:             cfg.OCR.Timeout,
	}, logger)

	var ner *entities.NERClient
	if cfg.NER.BaseURL != "" {
		ner = entities.NewNERClient(entities.NERConfig{
			BaseURL:        cfg.NER.BaseURL,
			Timeout:        cfg.NER.Timeout,
			ScoreThreshold: cfg.NER.ScoreThreshold,
			MaxChars:       cfg.NER.MaxChars,
		}, logger)
	}
	extractorEnt := entities.NewFallbackExtractor(ner, entities.DefaultPatterns, logger)

	embedder, err := embedding.NewClient(embedding.Config{
		BaseURL:    cfg.Embedder.BaseURL,
		APIKey:     cfg.Embedder.APIKey,
		Model:      cfg.Embedder.Model,
		Timeout:    cfg.Embedder.Timeout,
		MaxRetries: cfg.Embedder.MaxRetries,
	}, logger)
	if err != nil {
		printError("Error: embedding client: %v\n", err)
		os.Exit(1)
	}

	store := vectorstore.NewQdrant(vectorstore.QdrantConfig{
		URL:        cfg.VectorStore.URL,
		APIKey:     cfg.VectorStore.APIKey,
		Collection: cfg.VectorStore.Collection,
		Timeout:    cfg.VectorStore.Timeout,
	}, logger)

	snk := sink.New(cfg.Output.Dir, logger)

	p, err := pipeline.New(pipeline.Config{
		MinTextLength:   cfg.Pipeline.MinTextLength,
		StatsSampleSize: cfg.Pipeline.StatsSampleSize,
	}, extractor, extractorEnt, embedder, store, snk, catalog, logger)
	if err != nil {
		printError("Error: building pipeline: %v\n", err)
		os.Exit(1)
	}

	files, err := ingest.ListDocumentFiles(root, nil, *limit)
	if err != nil {
		printError("Error: scanning %s: %v\n", root, err)
		os.Exit(1)
	}
	if *skipExisting {
		files = filterProcessed(ctx, catalog, files, logger)
	}

	fmt.Printf("Found %d documents to process in %s\n", len(files), root)

	if len(files) > 0 {
		docs, err := p.ProcessDocuments(ctx, files)
		if err != nil {
			printError("Error: batch failed: %v\n", err)
			os.Exit(1)
		}
		for _, d := range docs {
			fmt.Printf("processed: %s (type: %s)\n", d.Filename, d.Category)
		}
		fmt.Printf("Processing complete: %d of %d succeeded\n", len(docs), len(files))

		if *xlsxOut != "" {
			if err := writeXLSX(snk, docs, *xlsxOut); err != nil {
				printError("Error: writing workbook: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Workbook written to %s\n", *xlsxOut)
		}
	}

	if stats, err := p.Stats(ctx); err == nil {
		fmt.Printf("Documents in store: %d, categories: %v\n", stats.TotalDocuments, stats.Categories)
	} else {
		logger.Warn("could not retrieve stats", "error", err)
	}

	if *watch {
		runWatch(ctx, p, catalog, root, *skipExisting, logger)
	}
}

func filterProcessed(ctx context.Context, catalog *repository.Catalog, files []string, logger *slog.Logger) []string {
	kept := files[:0]
	for _, f := range files {
		done, err := catalog.HasSucceeded(ctx, f)
		if err != nil {
			logger.Warn("catalog lookup failed, keeping file", "path", f, "error", err)
			done = false
		}
		if done {
			fmt.Printf("skipping existing: %s\n", filepath.Base(f))
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

func writeXLSX(snk *sink.Sink, docs []entity.Document, path string) error {
	data, err := snk.ExportXLSX(docs)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
