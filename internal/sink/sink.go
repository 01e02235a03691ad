// Package sink writes batch results to flat files. Both outputs are full
// overwrites per run, not appends.
package sink

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/PabloZV/ml-document-system/internal/entity"
)

const (
	resultsFile = "results.json"
	summaryFile = "summary.csv"
)

type Sink struct {
	dir    string
	logger *slog.Logger
}

func New(dir string, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	if dir == "" {
		dir = "./output"
	}
	return &Sink{dir: dir, logger: logger}
}

// Save writes the batch as a JSON array (full fidelity) and a flattened CSV
// summary with one row per document.
func (s *Sink) Save(documents []entity.Document) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	if err := s.saveJSON(documents); err != nil {
		return err
	}
	if err := s.saveCSV(documents); err != nil {
		return err
	}

	s.logger.Info("results saved", "dir", s.dir, "documents", len(documents))
	return nil
}

func (s *Sink) saveJSON(documents []entity.Document) error {
	data, err := json.MarshalIndent(documents, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	path := filepath.Join(s.dir, resultsFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (s *Sink) saveCSV(documents []entity.Document) error {
	path := filepath.Join(s.dir, summaryFile)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	_ = w.Write([]string{"filename", "category", "word_count", "entity_count", "timestamp"})
	for _, doc := range documents {
		_ = w.Write([]string{
			doc.Filename,
			doc.Category,
			strconv.Itoa(doc.WordCount),
			strconv.Itoa(doc.EntityKindCount()),
			doc.Timestamp.Format(time.RFC3339),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
