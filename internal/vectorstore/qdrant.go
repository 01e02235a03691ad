package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// document ids like "invoice_img001.jpg" are not valid Qdrant point ids
// (Qdrant accepts UUIDs or unsigned integers), so each id is mapped to a
// deterministic UUIDv5 and the original kept in the payload. Determinism
// preserves the silent-upsert contract.
var pointNamespace = uuid.MustParse("8c9d6f3a-52e1-45c2-9f0e-1b6a7d2a9c41")

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// Qdrant is a minimal REST client to Qdrant. Collections are created with
// cosine distance, so the reported score is already a similarity.
type Qdrant struct {
	cfg    QdrantConfig
	client *http.Client
	logger *slog.Logger
}

func NewQdrant(cfg QdrantConfig, logger *slog.Logger) *Qdrant {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Collection == "" {
		cfg.Collection = "documents"
	}
	return &Qdrant{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// EnsureCollection creates the collection if missing. Qdrant answers 200 for
// an existing collection with the same schema, which makes this idempotent.
func (q *Qdrant) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("qdrant: invalid dimension")
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return q.do(ctx, http.MethodPut, q.collectionURL(""), body, nil)
}

func (q *Qdrant) Upsert(ctx context.Context, ids []string, texts []string, vectors [][]float32, metas []Metadata) error {
	if len(ids) != len(texts) || len(ids) != len(vectors) || len(ids) != len(metas) {
		return errors.New("qdrant: ids, texts, vectors and metadata length mismatch")
	}
	points := make([]map[string]any, len(ids))
	for i := range ids {
		points[i] = map[string]any{
			"id":     uuid.NewSHA1(pointNamespace, []byte(ids[i])).String(),
			"vector": vectors[i],
			"payload": map[string]any{
				"doc_id":     ids[i],
				"text":       texts[i],
				"category":   metas[i].Category,
				"filename":   metas[i].Filename,
				"word_count": metas[i].WordCount,
				"entities":   metas[i].Entities,
			},
		}
	}
	body := map[string]any{"points": points}
	return q.do(ctx, http.MethodPut, q.collectionURL("/points?wait=true"), body, nil)
}

func (q *Qdrant) Query(ctx context.Context, vector []float32, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float32        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := q.do(ctx, http.MethodPost, q.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, err
	}
	results := make([]SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		sr := SearchResult{Similarity: r.Score}
		sr.ID, _ = r.Payload["doc_id"].(string)
		sr.Text, _ = r.Payload["text"].(string)
		sr.Metadata = payloadMetadata(r.Payload)
		results = append(results, sr)
	}
	return results, nil
}

func (q *Qdrant) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := q.do(ctx, http.MethodPost, q.collectionURL("/points/count"), map[string]any{"exact": true}, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (q *Qdrant) Scroll(ctx context.Context, limit int) ([]Metadata, error) {
	if limit <= 0 {
		limit = 100
	}
	req := map[string]any{
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
	}
	var resp struct {
		Result struct {
			Points []struct {
				Payload map[string]any `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}
	if err := q.do(ctx, http.MethodPost, q.collectionURL("/points/scroll"), req, &resp); err != nil {
		return nil, err
	}
	metas := make([]Metadata, 0, len(resp.Result.Points))
	for _, p := range resp.Result.Points {
		metas = append(metas, payloadMetadata(p.Payload))
	}
	return metas, nil
}

func payloadMetadata(payload map[string]any) Metadata {
	var m Metadata
	m.Category, _ = payload["category"].(string)
	m.Filename, _ = payload["filename"].(string)
	m.Entities, _ = payload["entities"].(string)
	if wc, ok := payload["word_count"].(float64); ok {
		m.WordCount = int(wc)
	}
	return m
}

func (q *Qdrant) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", q.cfg.URL, q.cfg.Collection, suffix)
}

func (q *Qdrant) do(ctx context.Context, method, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("qdrant: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("qdrant: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.cfg.APIKey != "" {
		req.Header.Set("api-key", q.cfg.APIKey)
	}
	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant: %s %s: %w", method, url, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		q.logger.Error("qdrant request failed",
			"method", method, "url", url,
			"status", resp.StatusCode, "body", string(snippet))
		return fmt.Errorf("qdrant: %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("qdrant: decode response: %w", err)
		}
	}
	return nil
}
