package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/PabloZV/ml-document-system/internal/common"
	"github.com/PabloZV/ml-document-system/internal/entities"
	"github.com/PabloZV/ml-document-system/internal/ocr"
	"github.com/PabloZV/ml-document-system/internal/pipeline"
	"github.com/PabloZV/ml-document-system/internal/vectorstore"
)

type fixedRunner struct {
	text string
	err  error
}

func (r *fixedRunner) Run(context.Context, string, ...string) ([]byte, []byte, error) {
	if r.err != nil {
		return nil, []byte("ocr error"), r.err
	}
	return []byte(r.text), nil, nil
}

type unitEmbedder struct {
	fail bool
}

func (u *unitEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if u.fail {
		return nil, errors.New("embedder offline")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (u *unitEmbedder) Dimension() int { return 2 }

func testApp(t *testing.T, runner ocr.Runner, emb *unitEmbedder) (*fiber.App, *vectorstore.Memory) {
	t.Helper()

	extractor := ocr.NewExtractor(ocr.Config{Runner: runner}, nil)
	ents := entities.NewFallbackExtractor(nil, nil, nil)
	store := vectorstore.NewMemory()

	p, err := pipeline.New(pipeline.Config{}, extractor, ents, emb, store, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	app := New(p, nil, nil).App(common.ServerConfig{CORSOrigins: "*", BodyLimit: 12 << 20})
	return app, store
}

func multipartUpload(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, w.FormDataContentType()
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("invalid JSON %q: %v", raw, err)
	}
	return body
}

func TestProcessEndpoint(t *testing.T) {
	app, store := testApp(t,
		&fixedRunner{text: "Invoice 4521 total $1,250.00 payable to jane@example.com"},
		&unitEmbedder{})

	buf, contentType := multipartUpload(t, "file", "scan.jpg", []byte("jpeg bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/process/", buf)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)

	if body["success"] != true {
		t.Errorf("success = %v", body["success"])
	}
	if body["document_type"] != "invoice" {
		t.Errorf("document_type = %v", body["document_type"])
	}
	conf, _ := body["confidence"].(float64)
	if conf < 0.5 || conf > 0.95 {
		t.Errorf("confidence = %v", conf)
	}

	ents, _ := body["extracted_entities"].(map[string]any)
	if len(ents) != 8 {
		t.Errorf("extracted_entities has %d kinds, want 8: %v", len(ents), ents)
	}
	for kind, vs := range ents {
		if vs == nil {
			t.Errorf("kind %q is null, want empty list", kind)
		}
	}

	meta, _ := body["metadata"].(map[string]any)
	if meta["ocr_method"] != "tesseract" || meta["classification_method"] != "rule_based" {
		t.Errorf("metadata = %v", meta)
	}
	if meta["entity_extraction_method"] != "regex_fallback" {
		t.Errorf("entity_extraction_method = %v", meta["entity_extraction_method"])
	}

	n, err := store.Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("store count = %d, want 1", n)
	}
}

func TestProcessEndpointValidation(t *testing.T) {
	app, _ := testApp(t, &fixedRunner{text: "whatever"}, &unitEmbedder{})

	t.Run("missing file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/process/", nil)
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
		body := decodeBody(t, resp)
		if body["error"] == nil || body["message"] == nil {
			t.Errorf("error body = %v, want error and message fields", body)
		}
	})

	t.Run("wrong extension", func(t *testing.T) {
		buf, contentType := multipartUpload(t, "file", "doc.pdf", []byte("pdf bytes"))
		req := httptest.NewRequest(http.MethodPost, "/api/process/", buf)
		req.Header.Set("Content-Type", contentType)
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})
}

func TestProcessEndpointInsufficientText(t *testing.T) {
	app, _ := testApp(t, &fixedRunner{err: errors.New("unreadable")}, &unitEmbedder{})

	buf, contentType := multipartUpload(t, "file", "blank.jpg", []byte("jpeg bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/process/", buf)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
}

func TestSearchEndpoint(t *testing.T) {
	app, _ := testApp(t,
		&fixedRunner{text: "Invoice 4521 total $1,250.00 payable to jane@example.com"},
		&unitEmbedder{})

	// seed one document through the upload endpoint
	buf, contentType := multipartUpload(t, "file", "scan.jpg", []byte("jpeg bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/process/", buf)
	req.Header.Set("Content-Type", contentType)
	if _, err := app.Test(req, -1); err != nil {
		t.Fatal(err)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/search/?q=invoice", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["query"] != "invoice" {
		t.Errorf("query = %v", body["query"])
	}
	results, _ := body["results"].([]any)
	if len(results) != 1 {
		t.Fatalf("results = %v", body["results"])
	}
	hit, _ := results[0].(map[string]any)
	if hit["category"] != "invoice" {
		t.Errorf("unexpected hit: %v", hit)
	}
	if hit["snippet"] == "" {
		t.Error("expected a non-empty snippet")
	}
}

func TestSearchEndpointMissingQuery(t *testing.T) {
	app, _ := testApp(t, &fixedRunner{text: "x"}, &unitEmbedder{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/search/", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSearchEndpointDegradesToEmpty(t *testing.T) {
	app, _ := testApp(t, &fixedRunner{text: "x"}, &unitEmbedder{fail: true})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/search/?q=anything", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 even when backends fail", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["count"] != float64(0) {
		t.Errorf("count = %v, want 0", body["count"])
	}
}

func TestStatsEndpointEmpty(t *testing.T) {
	app, _ := testApp(t, &fixedRunner{text: "x"}, &unitEmbedder{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/stats/", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["total_documents"] != float64(0) {
		t.Errorf("total_documents = %v, want 0", body["total_documents"])
	}
}
