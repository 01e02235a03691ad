package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/PabloZV/ml-document-system/internal/classify"
	"github.com/PabloZV/ml-document-system/internal/common"
	"github.com/PabloZV/ml-document-system/internal/ocr"
)

// runocr is a debugging tool: OCR one image, clean the text, classify it,
// and print the result without touching any backend.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "runocr <image-path>")
		os.Exit(2)
	}
	path := os.Args[1]

	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("loading config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	extractor := ocr.NewExtractor(ocr.Config{
		Tesseract:           cfg.OCR.Tesseract,
		Lang:                cfg.OCR.Lang,
		PSM:                 cfg.OCR.PSM,
		OEM:                 cfg.OCR.OEM,
		TessdataDir:         cfg.OCR.TessdataDir,
		EnableTSVConfidence: cfg.OCR.EnableTSVConfidence,
		Timeout:             cfg.OCR.Timeout,
	}, logger)

	start := time.Now()
	res := extractor.Extract(ctx, path)
	text := ocr.Clean(res.Text)
	category := classify.Classify(path, text)

	logger.Info("OCR complete",
		"path", path,
		"chars", len(text),
		"confidence", res.Confidence,
		"category", string(category),
		"duration_ms", time.Since(start).Milliseconds())

	fmt.Println(text)
}
