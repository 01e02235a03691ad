package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PabloZV/ml-document-system/constants"
	"github.com/PabloZV/ml-document-system/internal/entities"
	"github.com/PabloZV/ml-document-system/internal/ocr"
	"github.com/PabloZV/ml-document-system/internal/repository"
	"github.com/PabloZV/ml-document-system/internal/sink"
	"github.com/PabloZV/ml-document-system/internal/vectorstore"
)

// pathRunner fakes tesseract: output keyed by image path basename.
type pathRunner struct {
	texts map[string]string // basename -> OCR output
}

func (r *pathRunner) Run(_ context.Context, _ string, args ...string) ([]byte, []byte, error) {
	base := filepath.Base(args[0])
	text, ok := r.texts[base]
	if !ok {
		return nil, []byte("open file failed"), errors.New("tesseract failure")
	}
	return []byte(text), nil, nil
}

// fakeEmbedder returns a constant-dimension vector derived from text length.
type fakeEmbedder struct {
	fail bool
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.fail {
		return nil, errors.New("embedding service down")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return 3 }

func writeImages(t *testing.T, names ...string) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, len(names))
	for i, n := range names {
		p := filepath.Join(dir, n)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("jpeg bytes"), 0o644); err != nil {
			t.Fatal(err)
		}
		paths[i] = p
	}
	return dir, paths
}

func newTestPipeline(t *testing.T, runner *pathRunner, emb *fakeEmbedder, withSink bool) (*Pipeline, *vectorstore.Memory, string, *repository.Catalog) {
	t.Helper()

	extractor := ocr.NewExtractor(ocr.Config{Runner: runner}, nil)
	ents := entities.NewFallbackExtractor(nil, nil, nil)
	store := vectorstore.NewMemory()

	outDir := t.TempDir()
	var snk *sink.Sink
	if withSink {
		snk = sink.New(outDir, nil)
	}

	db, err := repository.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	catalog := repository.NewCatalog(db, nil)

	p, err := New(Config{}, extractor, ents, emb, store, snk, catalog, nil)
	if err != nil {
		t.Fatal(err)
	}
	return p, store, outDir, catalog
}

func TestProcessDocumentsBatchSkipsFailures(t *testing.T) {
	ctx := context.Background()
	runner := &pathRunner{texts: map[string]string{
		"a.jpg": "Invoice 4521 payment due, contact jane@example.com for $1,250.00",
		"b.jpg": "Memorandum subject: quarterly planning meeting notes",
		// c.jpg missing: OCR fails, text degrades to empty
	}}
	p, store, outDir, catalog := newTestPipeline(t, runner, &fakeEmbedder{}, true)

	_, paths := writeImages(t, "a.jpg", "b.jpg", "c.jpg")
	docs, err := p.ProcessDocuments(ctx, paths)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("store count = %d, want 2", n)
	}

	// sinks contain exactly the survivors
	f, err := os.Open(filepath.Join(outDir, "summary.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = f.Close()
	}()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Errorf("csv rows = %d, want header + 2", len(rows))
	}

	// drop is recorded, successes too
	cn, err := catalog.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if cn != 2 {
		t.Errorf("catalog success count = %d, want 2", cn)
	}
}

func TestProcessDocumentsAllDropped(t *testing.T) {
	ctx := context.Background()
	runner := &pathRunner{texts: map[string]string{}} // every OCR call fails
	p, store, _, _ := newTestPipeline(t, runner, &fakeEmbedder{}, true)

	_, paths := writeImages(t, "a.jpg", "b.jpg")
	docs, err := p.ProcessDocuments(ctx, paths)
	if err != nil {
		t.Fatalf("all-drop batch must not error: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("got %d documents, want 0", len(docs))
	}
	if n, _ := store.Count(ctx); n != 0 {
		t.Errorf("store count = %d, want 0 (storage skipped)", n)
	}
}

func TestProcessSingleDocument(t *testing.T) {
	ctx := context.Background()
	runner := &pathRunner{texts: map[string]string{
		"img001.jpg": "Invoice 4521 total $1,250.00 payable to jane@example.com",
	}}
	p, store, _, _ := newTestPipeline(t, runner, &fakeEmbedder{}, false)

	_, paths := writeImages(t, filepath.Join("invoice", "img001.jpg"))
	got, err := p.ProcessSingleDocument(ctx, paths[0])
	if err != nil {
		t.Fatal(err)
	}

	if got.Document.ID != "invoice_img001.jpg" {
		t.Errorf("id = %q, want invoice_img001.jpg", got.Document.ID)
	}
	if got.Document.Category != string(constants.Invoice) {
		t.Errorf("category = %q", got.Document.Category)
	}
	if got.Source != entities.SourceRegex {
		t.Errorf("source = %q", got.Source)
	}
	if got.Confidence < 0.5 || got.Confidence > 0.95 {
		t.Errorf("confidence = %v, outside [0.5, 0.95]", got.Confidence)
	}
	if len(got.Document.Entities["email"]) == 0 {
		t.Errorf("entities = %v, want extracted email", got.Document.Entities)
	}

	if n, _ := store.Count(ctx); n != 1 {
		t.Errorf("store count = %d, want 1", n)
	}
}

func TestProcessSingleDocumentInsufficientText(t *testing.T) {
	ctx := context.Background()
	runner := &pathRunner{texts: map[string]string{
		"blank.jpg": "ab\ncd\n", // cleans to empty
	}}
	p, _, _, catalog := newTestPipeline(t, runner, &fakeEmbedder{}, false)

	_, paths := writeImages(t, "blank.jpg")
	_, err := p.ProcessSingleDocument(ctx, paths[0])
	if !errors.Is(err, ErrInsufficientText) {
		t.Fatalf("err = %v, want ErrInsufficientText", err)
	}

	done, err := catalog.HasSucceeded(ctx, paths[0])
	if err != nil {
		t.Fatal(err)
	}
	if done {
		t.Error("dropped document must not be recorded as success")
	}
}

func TestProcessSingleDocumentStorageFailure(t *testing.T) {
	ctx := context.Background()
	runner := &pathRunner{texts: map[string]string{
		"img.jpg": "Invoice 4521 total $1,250.00 for services rendered",
	}}
	p, _, _, _ := newTestPipeline(t, runner, &fakeEmbedder{fail: true}, false)

	_, paths := writeImages(t, "img.jpg")
	if _, err := p.ProcessSingleDocument(ctx, paths[0]); err == nil {
		t.Fatal("expected storage failure to propagate")
	}
}

func TestReprocessingOverwrites(t *testing.T) {
	ctx := context.Background()
	runner := &pathRunner{texts: map[string]string{
		"img001.jpg": "Invoice 4521 total $1,250.00 for consulting work",
	}}
	p, store, _, _ := newTestPipeline(t, runner, &fakeEmbedder{}, false)

	_, paths := writeImages(t, filepath.Join("invoice", "img001.jpg"))
	for i := 0; i < 2; i++ {
		if _, err := p.ProcessSingleDocument(ctx, paths[0]); err != nil {
			t.Fatal(err)
		}
	}
	if n, _ := store.Count(ctx); n != 1 {
		t.Errorf("store count = %d, want 1 after reprocessing the same file", n)
	}
}

func TestSearchSwallowsBackendErrors(t *testing.T) {
	runner := &pathRunner{texts: map[string]string{}}
	p, _, _, _ := newTestPipeline(t, runner, &fakeEmbedder{fail: true}, false)

	got := p.Search(context.Background(), "any query", 5)
	if got == nil || len(got) != 0 {
		t.Errorf("search must degrade to empty results, got %v", got)
	}
}

func TestSearchSnippets(t *testing.T) {
	ctx := context.Background()
	long := "Invoice 4521 " + strings.Repeat("detail ", 50)
	runner := &pathRunner{texts: map[string]string{"a.jpg": long}}
	p, _, _, _ := newTestPipeline(t, runner, &fakeEmbedder{}, false)

	_, paths := writeImages(t, "a.jpg")
	if _, err := p.ProcessSingleDocument(ctx, paths[0]); err != nil {
		t.Fatal(err)
	}

	hits := p.Search(ctx, "invoice details", 5)
	if len(hits) != 1 {
		t.Fatalf("hits = %d, want 1", len(hits))
	}
	if len(hits[0].Snippet) != 203 || !strings.HasSuffix(hits[0].Snippet, "...") {
		t.Errorf("snippet len = %d, want 200 chars plus ellipsis", len(hits[0].Snippet))
	}
}

func TestStatsEmptyStore(t *testing.T) {
	runner := &pathRunner{texts: map[string]string{}}
	p, _, _, _ := newTestPipeline(t, runner, &fakeEmbedder{}, false)

	stats, err := p.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalDocuments != 0 || len(stats.Categories) != 0 {
		t.Errorf("stats = %+v, want zeros", stats)
	}
}

func TestStatsHistogram(t *testing.T) {
	ctx := context.Background()
	runner := &pathRunner{texts: map[string]string{
		"a.jpg": "Invoice 4521 payment due now, total $990.00",
		"b.jpg": "Memorandum subject: all-hands meeting rescheduled",
	}}
	p, _, _, _ := newTestPipeline(t, runner, &fakeEmbedder{}, false)

	_, paths := writeImages(t, filepath.Join("invoice", "a.jpg"), filepath.Join("memo", "b.jpg"))
	if _, err := p.ProcessDocuments(ctx, paths); err != nil {
		t.Fatal(err)
	}

	stats, err := p.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalDocuments != 2 {
		t.Errorf("total = %d, want 2", stats.TotalDocuments)
	}
	if stats.Categories["invoice"] != 1 || stats.Categories["memo"] != 1 {
		t.Errorf("categories = %v", stats.Categories)
	}
}
