package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PabloZV/ml-document-system/internal/ingest"
	"github.com/PabloZV/ml-document-system/internal/pipeline"
	"github.com/PabloZV/ml-document-system/internal/repository"
)

// runWatch blocks, processing files as they land under root, until
// interrupted. Files already handled by the initial batch pass are skipped
// through the catalog when --skip-existing is on.
func runWatch(ctx context.Context, p *pipeline.Pipeline, catalog *repository.Catalog,
	root string, skipExisting bool, logger *slog.Logger) {

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:    []string{root},
		Debounce: 500 * time.Millisecond,
		Logger:   logger,
	})
	if err != nil {
		printError("Error: starting watcher: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Watching %s for new documents...\n", root)
	for {
		select {
		case <-ctx.Done():
			fmt.Println("stopped.")
			return
		case err, ok := <-errs:
			if ok {
				logger.Error("watch error", "error", err)
			}
		case path, ok := <-events:
			if !ok {
				return
			}
			if skipExisting {
				if done, err := catalog.HasSucceeded(ctx, path); err == nil && done {
					continue
				}
			}
			doc, err := p.ProcessSingleDocument(ctx, path)
			if err != nil {
				logger.Warn("watch processing failed", "path", path, "error", err)
				continue
			}
			fmt.Printf("processed: %s (type: %s)\n", doc.Document.Filename, doc.Document.Category)
		}
	}
}
