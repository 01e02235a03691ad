// Package pipeline orchestrates the processing chain: OCR, text cleaning,
// classification, entity extraction, embedding and storage. It owns the
// drop decision for low-text scans and the degraded behavior of search and
// stats when backends misbehave.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/PabloZV/ml-document-system/constants"
	"github.com/PabloZV/ml-document-system/internal/classify"
	"github.com/PabloZV/ml-document-system/internal/embedding"
	"github.com/PabloZV/ml-document-system/internal/entities"
	"github.com/PabloZV/ml-document-system/internal/entity"
	"github.com/PabloZV/ml-document-system/internal/ocr"
	"github.com/PabloZV/ml-document-system/internal/repository"
	"github.com/PabloZV/ml-document-system/internal/sink"
	"github.com/PabloZV/ml-document-system/internal/vectorstore"
)

// ErrInsufficientText marks a scan whose cleaned OCR output was too short to
// index. It is a drop, not a failure; the HTTP layer maps it to 422.
var ErrInsufficientText = errors.New("insufficient text extracted")

const snippetLength = 200

type Config struct {
	MinTextLength   int // below this the document is dropped
	DefaultTopK     int
	StatsSampleSize int
}

type Pipeline struct {
	cfg       Config
	extractor *ocr.Extractor
	entities  entities.Extractor
	embedder  embedding.Embedder
	store     vectorstore.Store
	sink      *sink.Sink
	catalog   *repository.Catalog // optional
	logger    *slog.Logger

	ensureOnce sync.Once
	ensureErr  error
}

// New wires the pipeline. sink and catalog may be nil; everything else is
// required.
func New(cfg Config, extractor *ocr.Extractor, ents entities.Extractor,
	embedder embedding.Embedder, store vectorstore.Store,
	snk *sink.Sink, catalog *repository.Catalog, logger *slog.Logger) (*Pipeline, error) {

	if logger == nil {
		logger = slog.Default()
	}
	if extractor == nil || ents == nil || embedder == nil || store == nil {
		return nil, errors.New("pipeline: missing component")
	}
	if cfg.MinTextLength <= 0 {
		cfg.MinTextLength = 10
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 5
	}
	if cfg.StatsSampleSize <= 0 {
		cfg.StatsSampleSize = 100
	}
	return &Pipeline{
		cfg:       cfg,
		extractor: extractor,
		entities:  ents,
		embedder:  embedder,
		store:     store,
		sink:      snk,
		catalog:   catalog,
		logger:    logger,
	}, nil
}

// ProcessedDocument is the full outcome of one file, including what the
// HTTP layer reports back to the caller.
type ProcessedDocument struct {
	Document   entity.Document
	Source     entities.Source
	Confidence float64
	Duration   time.Duration
}

// ProcessSingleDocument runs the full chain for one file and stores the
// result. A scan with under-threshold text returns ErrInsufficientText.
func (p *Pipeline) ProcessSingleDocument(ctx context.Context, path string) (ProcessedDocument, error) {
	doc, err := p.buildDocument(ctx, path)
	if err != nil {
		if errors.Is(err, ErrInsufficientText) && p.catalog != nil {
			if cerr := p.catalog.RecordDropped(ctx, path, err.Error()); cerr != nil {
				p.logger.Warn("catalog record failed", "path", path, "error", cerr)
			}
		}
		return ProcessedDocument{}, err
	}

	if err := p.storeDocuments(ctx, []entity.Document{doc.Document}); err != nil {
		if p.catalog != nil {
			if cerr := p.catalog.RecordFailed(ctx, doc.Document, err); cerr != nil {
				p.logger.Warn("catalog record failed", "id", doc.Document.ID, "error", cerr)
			}
		}
		return ProcessedDocument{}, err
	}
	p.recordSuccess(ctx, doc.Document)
	return doc, nil
}

// ProcessDocuments runs the chain over a batch. Files that drop or fail are
// logged and skipped; the survivors are embedded and stored in one pass and
// written to the flat-file sinks. An all-drop batch returns an empty slice
// and no error.
func (p *Pipeline) ProcessDocuments(ctx context.Context, paths []string) ([]entity.Document, error) {
	var docs []entity.Document
	for _, path := range paths {
		doc, err := p.buildDocument(ctx, path)
		if err != nil {
			if errors.Is(err, ErrInsufficientText) {
				p.logger.Info("document dropped", "path", path)
				if p.catalog != nil {
					if cerr := p.catalog.RecordDropped(ctx, path, err.Error()); cerr != nil {
						p.logger.Warn("catalog record failed", "path", path, "error", cerr)
					}
				}
			} else {
				p.logger.Error("document failed", "path", path, "error", err)
			}
			continue
		}
		docs = append(docs, doc.Document)
	}
	if len(docs) == 0 {
		return nil, nil
	}

	if err := p.storeDocuments(ctx, docs); err != nil {
		for _, d := range docs {
			if p.catalog != nil {
				if cerr := p.catalog.RecordFailed(ctx, d, err); cerr != nil {
					p.logger.Warn("catalog record failed", "id", d.ID, "error", cerr)
				}
			}
		}
		return nil, err
	}
	for _, d := range docs {
		p.recordSuccess(ctx, d)
	}

	if p.sink != nil {
		if err := p.sink.Save(docs); err != nil {
			p.logger.Error("sink write failed", "error", err)
			return docs, err
		}
	}
	return docs, nil
}

func (p *Pipeline) buildDocument(ctx context.Context, path string) (ProcessedDocument, error) {
	start := time.Now()

	res := p.extractor.Extract(ctx, path)
	text := ocr.Clean(res.Text)
	if len(text) < p.cfg.MinTextLength {
		return ProcessedDocument{}, fmt.Errorf("%w: %q has %d chars after cleaning", ErrInsufficientText, path, len(text))
	}

	category := classify.Classify(path, text)

	extraction, err := p.entities.Extract(ctx, text, string(category))
	if err != nil {
		// The fallback extractor never errors; a custom one might.
		p.logger.Warn("entity extraction failed, continuing without entities", "path", path, "error", err)
		extraction = entities.Extraction{Source: entities.SourceRegex, Kinds: map[string][]string{}}
	}

	doc := entity.NewDocument(path, string(category), text, extraction.Kinds)
	return ProcessedDocument{
		Document:   doc,
		Source:     extraction.Source,
		Confidence: ScoreConfidence(text, extraction.ValueCount(), category),
		Duration:   time.Since(start),
	}, nil
}

func (p *Pipeline) storeDocuments(ctx context.Context, docs []entity.Document) error {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding batch of %d: %w", len(docs), err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	// The collection needs the vector dimension, which is only known after
	// the first successful embedding call.
	p.ensureOnce.Do(func() {
		p.ensureErr = p.store.EnsureCollection(ctx, len(vectors[0]))
	})
	if p.ensureErr != nil {
		return fmt.Errorf("ensuring collection: %w", p.ensureErr)
	}

	ids := make([]string, len(docs))
	metas := make([]vectorstore.Metadata, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
		metas[i] = vectorstore.Metadata{
			Category:  d.Category,
			Filename:  d.Filename,
			WordCount: d.WordCount,
			Entities:  marshalEntities(d.Entities, p.logger),
		}
	}
	if err := p.store.Upsert(ctx, ids, texts, vectors, metas); err != nil {
		return fmt.Errorf("storing batch of %d: %w", len(docs), err)
	}
	return nil
}

func (p *Pipeline) recordSuccess(ctx context.Context, d entity.Document) {
	if p.catalog == nil {
		return
	}
	if err := p.catalog.RecordSuccess(ctx, d); err != nil {
		p.logger.Warn("catalog record failed", "id", d.ID, "error", err)
	}
}

// SearchHit is one ranked search result. Snippet is a bounded preview, never
// the full stored text.
type SearchHit struct {
	ID        string  `json:"id"`
	Score     float64 `json:"score"`
	Snippet   string  `json:"snippet"`
	Category  string  `json:"category"`
	Filename  string  `json:"filename"`
	WordCount int     `json:"word_count"`
}

// Search embeds the query and returns the nearest stored documents. Backend
// failures degrade to an empty result set; search never errors.
func (p *Pipeline) Search(ctx context.Context, query string, topK int) []SearchHit {
	if topK <= 0 {
		topK = p.cfg.DefaultTopK
	}
	vectors, err := p.embedder.Embed(ctx, []string{query})
	if err != nil || len(vectors) != 1 {
		p.logger.Warn("query embedding failed", "error", err)
		return []SearchHit{}
	}
	results, err := p.store.Query(ctx, vectors[0], topK)
	if err != nil {
		p.logger.Warn("vector search failed", "error", err)
		return []SearchHit{}
	}

	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, SearchHit{
			ID:        r.ID,
			Score:     float64(r.Similarity),
			Snippet:   snippet(r.Text),
			Category:  r.Metadata.Category,
			Filename:  r.Metadata.Filename,
			WordCount: r.Metadata.WordCount,
		})
	}
	return hits
}

// Stats summarizes the stored corpus. The category histogram is computed
// over a bounded sample rather than the whole collection.
type Stats struct {
	TotalDocuments int            `json:"total_documents"`
	Categories     map[string]int `json:"categories"`
	SampleSize     int            `json:"sample_size"`
}

func (p *Pipeline) Stats(ctx context.Context) (Stats, error) {
	total, err := p.store.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("counting documents: %w", err)
	}
	stats := Stats{TotalDocuments: total, Categories: map[string]int{}}
	if total == 0 {
		return stats, nil
	}

	metas, err := p.store.Scroll(ctx, p.cfg.StatsSampleSize)
	if err != nil {
		return Stats{}, fmt.Errorf("sampling documents: %w", err)
	}
	for _, m := range metas {
		cat := m.Category
		if cat == "" {
			cat = string(constants.Unknown)
		}
		stats.Categories[cat]++
	}
	stats.SampleSize = len(metas)
	return stats, nil
}

func snippet(text string) string {
	if len(text) <= snippetLength {
		return text
	}
	return text[:snippetLength] + "..."
}

func marshalEntities(kinds map[string][]string, logger *slog.Logger) string {
	data, err := json.Marshal(kinds)
	if err != nil {
		logger.Warn("entity payload marshal failed", "error", err)
		return "{}"
	}
	return string(data)
}
