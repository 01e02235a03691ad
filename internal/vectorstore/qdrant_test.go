package vectorstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestQdrantEnsureCollection(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"result": true, "status": "ok"})
	}))
	defer srv.Close()

	q := NewQdrant(QdrantConfig{URL: srv.URL, Collection: "documents"}, nil)
	if err := q.EnsureCollection(context.Background(), 384); err != nil {
		t.Fatal(err)
	}
	if gotMethod != http.MethodPut || gotPath != "/collections/documents" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
	vectors, _ := gotBody["vectors"].(map[string]any)
	if vectors["size"] != float64(384) || vectors["distance"] != "Cosine" {
		t.Errorf("vectors config = %v", vectors)
	}
}

func TestQdrantUpsertMapsIDs(t *testing.T) {
	var gotBody struct {
		Points []struct {
			ID      string         `json:"id"`
			Payload map[string]any `json:"payload"`
		} `json:"points"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/documents/points" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("wait") != "true" {
			t.Error("expected wait=true")
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	}))
	defer srv.Close()

	q := NewQdrant(QdrantConfig{URL: srv.URL, Collection: "documents"}, nil)
	err := q.Upsert(context.Background(),
		[]string{"invoice_img001.jpg"},
		[]string{"invoice text"},
		[][]float32{{1, 2, 3}},
		[]Metadata{{Category: "invoice", Filename: "img001.jpg", WordCount: 2, Entities: "{}"}},
	)
	if err != nil {
		t.Fatal(err)
	}
	if len(gotBody.Points) != 1 {
		t.Fatalf("points = %d, want 1", len(gotBody.Points))
	}
	p := gotBody.Points[0]
	if _, err := uuid.Parse(p.ID); err != nil {
		t.Errorf("point id %q is not a UUID: %v", p.ID, err)
	}
	if p.Payload["doc_id"] != "invoice_img001.jpg" {
		t.Errorf("doc_id = %v", p.Payload["doc_id"])
	}

	// same document id must map to the same point id so re-ingestion
	// overwrites instead of duplicating
	first := p.ID
	if err := q.Upsert(context.Background(), []string{"invoice_img001.jpg"}, []string{"x"},
		[][]float32{{1}}, []Metadata{{}}); err != nil {
		t.Fatal(err)
	}
	if gotBody.Points[0].ID != first {
		t.Errorf("point id changed across upserts: %s vs %s", first, gotBody.Points[0].ID)
	}
}

func TestQdrantQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/documents/points/search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["with_payload"] != true {
			t.Error("expected with_payload")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				{
					"id":    "9d3c1b2a-0000-5000-8000-000000000001",
					"score": 0.87,
					"payload": map[string]any{
						"doc_id":     "invoice_img001.jpg",
						"text":       "invoice body",
						"category":   "invoice",
						"filename":   "img001.jpg",
						"word_count": 42,
						"entities":   `{"amount":["$5.00"]}`,
					},
				},
			},
		})
	}))
	defer srv.Close()

	q := NewQdrant(QdrantConfig{URL: srv.URL, Collection: "documents"}, nil)
	got, err := q.Query(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("results = %d, want 1", len(got))
	}
	r := got[0]
	if r.ID != "invoice_img001.jpg" || r.Text != "invoice body" {
		t.Errorf("unexpected result: %+v", r)
	}
	if r.Similarity < 0.86 || r.Similarity > 0.88 {
		t.Errorf("similarity = %v", r.Similarity)
	}
	if r.Metadata.Category != "invoice" || r.Metadata.WordCount != 42 {
		t.Errorf("metadata = %+v", r.Metadata)
	}
}

func TestQdrantCountAndScroll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/collections/documents/points/count":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"result": map[string]any{"count": 7},
			})
		case "/collections/documents/points/scroll":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"result": map[string]any{
					"points": []map[string]any{
						{"payload": map[string]any{"category": "invoice"}},
						{"payload": map[string]any{"category": "memo"}},
					},
				},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	q := NewQdrant(QdrantConfig{URL: srv.URL, Collection: "documents"}, nil)
	n, err := q.Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 7 {
		t.Errorf("count = %d, want 7", n)
	}

	metas, err := q.Scroll(context.Background(), 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(metas) != 2 || metas[0].Category != "invoice" || metas[1].Category != "memo" {
		t.Errorf("metas = %+v", metas)
	}
}

func TestQdrantErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"status":{"error":"wrong shape"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	q := NewQdrant(QdrantConfig{URL: srv.URL}, nil)
	if err := q.EnsureCollection(context.Background(), 3); err == nil {
		t.Error("expected error for non-2xx status")
	}
	if _, err := q.Count(context.Background()); err == nil {
		t.Error("expected error for non-2xx status")
	}
}
