package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/PabloZV/ml-document-system/internal/common"
	"github.com/PabloZV/ml-document-system/internal/embedding"
	"github.com/PabloZV/ml-document-system/internal/entities"
	"github.com/PabloZV/ml-document-system/internal/ocr"
	"github.com/PabloZV/ml-document-system/internal/pipeline"
	"github.com/PabloZV/ml-document-system/internal/repository"
	"github.com/PabloZV/ml-document-system/internal/server"
	"github.com/PabloZV/ml-document-system/internal/vectorstore"
)

func main() {
	// Logger
	zlog, _ := zap.NewProduction()
	defer func() {
		_ = zlog.Sync()
	}()
	log := zlog.Sugar()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := common.LoadConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Catalog is best-effort: the API works without it, stats just lose
	// their fallback.
	var catalog *repository.Catalog
	db, err := repository.Open(cfg.Catalog.Path)
	if err != nil {
		log.Warnf("catalog unavailable: %v", err)
	} else {
		defer func() {
			_ = db.Close()
		}()
		catalog = repository.NewCatalog(db, logger)
	}

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
	} else {
		log.Info("NER_SERVICE_URL not set, entity extraction is regex-only")
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
		log.Fatalf("embedding client: %v", err)
	}

	store := vectorstore.NewQdrant(vectorstore.QdrantConfig{
		URL:        cfg.VectorStore.URL,
		APIKey:     cfg.VectorStore.APIKey,
		Collection: cfg.VectorStore.Collection,
		Timeout:    cfg.VectorStore.Timeout,
	}, logger)

	// One long-lived pipeline shared by all requests. The server does not
	// write flat-file sinks; those belong to batch runs.
	p, err := pipeline.New(pipeline.Config{
		MinTextLength:   cfg.Pipeline.MinTextLength,
		StatsSampleSize: cfg.Pipeline.StatsSampleSize,
	}, extractor, extractorEnt, embedder, store, nil, catalog, logger)
	if err != nil {
		log.Fatalf("building pipeline: %v", err)
	}

	app := server.New(p, catalog, logger).App(cfg.Server)

	go func() {
		log.Infof("HTTP serving on %s", cfg.Server.Addr)
		if err := app.Listen(cfg.Server.Addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Errorf("shutdown: %v", err)
	}
}
