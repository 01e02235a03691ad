// Package vectorstore wraps the persistent vector database. Callers get
// upsert-by-id and nearest-neighbor search; the distance metric underneath is
// the store's business and only the ordering of similarities is promised.
package vectorstore

import "context"

// Metadata is the scalar payload stored alongside each vector. The store
// accepts only flat values, so the entity map is JSON-serialized into a
// string at this boundary and nowhere else.
type Metadata struct {
	Category  string `json:"category"`
	Filename  string `json:"filename"`
	WordCount int    `json:"word_count"`
	Entities  string `json:"entities"`
}

// SearchResult is one ranked match. Similarity is normalized so that higher
// means more similar; do not assume a particular metric.
type SearchResult struct {
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	Similarity float32  `json:"similarity"`
	Metadata   Metadata `json:"metadata"`
}

// Store persists document vectors and supports similarity search.
type Store interface {
	// EnsureCollection is idempotent: get-existing-or-create-new.
	EnsureCollection(ctx context.Context, dimension int) error
	// Upsert writes a batch; an existing ID is silently overwritten.
	Upsert(ctx context.Context, ids []string, texts []string, vectors [][]float32, metas []Metadata) error
	// Query returns up to topK matches ranked by similarity.
	Query(ctx context.Context, vector []float32, topK int) ([]SearchResult, error)
	// Count returns the total number of stored documents.
	Count(ctx context.Context) (int, error)
	// Scroll returns the metadata of up to limit stored documents.
	Scroll(ctx context.Context, limit int) ([]Metadata, error)
}
