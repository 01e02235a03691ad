package server

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/PabloZV/ml-document-system/constants"
	"github.com/PabloZV/ml-document-system/internal/entities"
	"github.com/PabloZV/ml-document-system/internal/pipeline"
)

const defaultSearchLimit = 5

// handleProcess accepts a multipart upload (field "file"), runs the full
// pipeline on it and reports the classification, entities and confidence.
func (s *Server) handleProcess(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "No file uploaded",
			"Please upload a document file")
	}
	if fh.Size > constants.MaxFileSize || !constants.IsAllowedExt(filepath.Ext(fh.Filename)) {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid file",
			"File must be a JPG/JPEG image and less than 10MB")
	}

	tmp, err := os.CreateTemp("", "upload-*"+filepath.Ext(fh.Filename))
	if err != nil {
		s.logger.Error("temp file create failed", "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Internal server error",
			"An error occurred while processing the document")
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if err := c.SaveFile(fh, tmpPath); err != nil {
		s.logger.Error("upload save failed", "filename", fh.Filename, "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Internal server error",
			"An error occurred while processing the document")
	}

	doc, err := s.pipeline.ProcessSingleDocument(c.Context(), tmpPath)
	if err != nil {
		if errors.Is(err, pipeline.ErrInsufficientText) {
			return errorJSON(c, fiber.StatusUnprocessableEntity, "Processing failed",
				"Could not extract meaningful text from the document")
		}
		s.logger.Error("processing failed", "filename", fh.Filename, "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "Internal server error",
			"An error occurred while processing the document")
	}

	return c.JSON(fiber.Map{
		"success":            true,
		"document_type":      doc.Document.Category,
		"confidence":         doc.Confidence,
		"extracted_entities": fullEntityMap(doc.Document.Entities),
		"metadata": fiber.Map{
			"filename":                 fh.Filename,
			"word_count":               doc.Document.WordCount,
			"processing_time_seconds":  round2(doc.Duration.Seconds()),
			"timestamp":                doc.Document.Timestamp.Format(time.RFC3339),
			"ocr_method":               "tesseract",
			"classification_method":    "rule_based",
			"entity_extraction_method": extractionMethod(doc.Source),
		},
		"text_preview": preview(doc.Document.Text),
	})
}

// handleSearch runs a semantic query. Missing q is the only client error;
// backend trouble surfaces as an empty result list.
func (s *Server) handleSearch(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return errorJSON(c, fiber.StatusBadRequest, "Missing query",
			`Please provide a search query using the "q" parameter`)
	}
	limit := defaultSearchLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	results := s.pipeline.Search(c.Context(), query, limit)
	return c.JSON(fiber.Map{
		"query":   query,
		"results": results,
		"count":   len(results),
	})
}

// handleStats always answers 200. When the vector store is unreachable the
// catalog supplies the counts, and when that fails too the payload is an
// explicit zero with a status note.
func (s *Server) handleStats(c *fiber.Ctx) error {
	stats, err := s.pipeline.Stats(c.Context())
	if err == nil {
		return c.JSON(stats)
	}
	s.logger.Warn("vector store stats failed", "error", err)

	if s.catalog != nil {
		total, cerr := s.catalog.Count(c.Context())
		if cerr == nil {
			hist, herr := s.catalog.CategoryHistogram(c.Context())
			if herr == nil {
				return c.JSON(fiber.Map{
					"total_documents": total,
					"categories":      hist,
					"sample_size":     total,
					"status":          "served from processing catalog",
				})
			}
		}
	}

	return c.JSON(fiber.Map{
		"total_documents": 0,
		"categories":      fiber.Map{},
		"status":          "Database temporarily offline",
	})
}

// fullEntityMap pads the extraction to the full set of NER kinds so the
// response shape is stable regardless of which extractor produced it.
func fullEntityMap(got map[string][]string) map[string][]string {
	out := make(map[string][]string, len(entities.NERKinds))
	for _, kind := range entities.NERKinds {
		if vs, ok := got[kind]; ok && vs != nil {
			out[kind] = vs
		} else {
			out[kind] = []string{}
		}
	}
	return out
}

func extractionMethod(src entities.Source) string {
	if src == entities.SourceNER {
		return "bert_ner"
	}
	return "regex_fallback"
}

func preview(text string) string {
	if len(text) <= 200 {
		return text
	}
	return text[:200] + "..."
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
