package vectorstore

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
)

type memoryPoint struct {
	id     string
	text   string
	vector []float32
	meta   Metadata
}

// Memory is a brute-force cosine-similarity store. It backs tests and local
// runs without a Qdrant instance; the map keyed by document id gives the
// same silent-upsert semantics as the real store.
type Memory struct {
	mu        sync.RWMutex
	dimension int
	points    map[string]memoryPoint
}

func NewMemory() *Memory {
	return &Memory{points: make(map[string]memoryPoint)}
}

func (m *Memory) EnsureCollection(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("memory: invalid dimension")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dimension != 0 && m.dimension != dimension {
		return errors.New("memory: dimension mismatch with existing collection")
	}
	m.dimension = dimension
	return nil
}

func (m *Memory) Upsert(_ context.Context, ids []string, texts []string, vectors [][]float32, metas []Metadata) error {
	if len(ids) != len(texts) || len(ids) != len(vectors) || len(ids) != len(metas) {
		return errors.New("memory: ids, texts, vectors and metadata length mismatch")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range ids {
		if m.dimension != 0 && len(vectors[i]) != m.dimension {
			return errors.New("memory: vector dimension mismatch")
		}
		m.points[ids[i]] = memoryPoint{
			id:     ids[i],
			text:   texts[i],
			vector: vectors[i],
			meta:   metas[i],
		}
	}
	return nil
}

func (m *Memory) Query(_ context.Context, vector []float32, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]SearchResult, 0, len(m.points))
	for _, p := range m.points {
		results = append(results, SearchResult{
			ID:         p.id,
			Text:       p.text,
			Similarity: cosine(vector, p.vector),
			Metadata:   p.meta,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ID < results[j].ID
	})
	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.points), nil
}

func (m *Memory) Scroll(_ context.Context, limit int) ([]Metadata, error) {
	if limit <= 0 {
		limit = 100
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.points))
	for id := range m.points {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if limit < len(ids) {
		ids = ids[:limit]
	}
	metas := make([]Metadata, 0, len(ids))
	for _, id := range ids {
		metas = append(metas, m.points[id].meta)
	}
	return metas, nil
}

func cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
