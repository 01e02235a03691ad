package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/PabloZV/ml-document-system/constants"
	"github.com/PabloZV/ml-document-system/internal/entity"
)

type Catalog struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewCatalog(db *sql.DB, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{db: db, logger: logger}
}

// RecordSuccess upserts the catalog row for a stored document.
func (c *Catalog) RecordSuccess(ctx context.Context, doc entity.Document) error {
	return c.upsert(ctx, doc.ID, doc.Filename, doc.FilePath, doc.Category,
		doc.WordCount, doc.EntityKindCount(), constants.JobStatusSucceeded, "")
}

// RecordDropped marks a file whose OCR text was below the minimum length.
// The id uses the unknown category because no record was built.
func (c *Catalog) RecordDropped(ctx context.Context, filePath, reason string) error {
	name := filepath.Base(filePath)
	id := string(constants.Unknown) + "_" + name
	return c.upsert(ctx, id, name, filePath, string(constants.Unknown),
		0, 0, constants.JobStatusDropped, reason)
}

// RecordFailed marks a document that was built but could not be stored.
func (c *Catalog) RecordFailed(ctx context.Context, doc entity.Document, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return c.upsert(ctx, doc.ID, doc.Filename, doc.FilePath, doc.Category,
		doc.WordCount, doc.EntityKindCount(), constants.JobStatusFailed, msg)
}

func (c *Catalog) upsert(ctx context.Context, id, filename, filePath, category string,
	wordCount, entityCount int, status constants.JobStatus, errMsg string) error {

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO documents (id, filename, file_path, category, word_count, entity_count, status, error, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULLIF(?, ''), ?)
		ON CONFLICT(id) DO UPDATE SET
			filename     = excluded.filename,
			file_path    = excluded.file_path,
			category     = excluded.category,
			word_count   = excluded.word_count,
			entity_count = excluded.entity_count,
			status       = excluded.status,
			error        = excluded.error,
			processed_at = excluded.processed_at
	`, id, filename, filePath, category, wordCount, entityCount, string(status), errMsg,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("catalog upsert %s: %w", id, err)
	}
	return nil
}

// HasSucceeded reports whether a file was already processed successfully,
// matched by source path. Used by --skip-existing.
func (c *Catalog) HasSucceeded(ctx context.Context, filePath string) (bool, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM documents WHERE file_path = ? AND status = ?
	`, filePath, string(constants.JobStatusSucceeded)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("catalog lookup %s: %w", filePath, err)
	}
	return n > 0, nil
}

// Count returns the number of successfully processed documents.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM documents WHERE status = ?
	`, string(constants.JobStatusSucceeded)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("catalog count: %w", err)
	}
	return n, nil
}

// CategoryHistogram returns category counts over successful documents.
func (c *Catalog) CategoryHistogram(ctx context.Context) (map[string]int, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT category, COUNT(1) FROM documents
		WHERE status = ?
		GROUP BY category
	`, string(constants.JobStatusSucceeded))
	if err != nil {
		return nil, fmt.Errorf("catalog histogram: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	hist := make(map[string]int)
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("catalog histogram scan: %w", err)
		}
		hist[category] = n
	}
	return hist, rows.Err()
}
