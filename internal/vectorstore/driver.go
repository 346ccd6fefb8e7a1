// Package vectorstore provides the C2 vector store abstraction: a single
// shared table holding (id, content, metadata, embedding) rows, isolated
// per tenant by a project_id predicate carried in every call, with k-NN
// search and deletion. Drivers: embedded (in-memory, zero-config default),
// pgvector (production), qdrant (alternate, demonstrating the driver
// boundary is table-shape agnostic).
package vectorstore

import "context"

// Document is a single embeddable unit: a FileDocument or QAPair row
// projected down to what the vector index needs.
type Document struct {
	ID           string
	ProjectID    string
	CollectionID string
	Content      string
	Metadata     map[string]any
	Embedding    []float32
}

// ScoredDocument pairs a Document with a cosine-similarity score.
type ScoredDocument struct {
	Document Document
	Score    float64
}

// Filter narrows k-NN search to a collection and/or metadata predicates.
type Filter struct {
	CollectionID string
	Metadata     map[string]any
}

// Driver is the C2 vector store interface. Every method takes an explicit
// projectID so tenant isolation cannot be forgotten at a call site even
// though the backing table is shared across all projects.
type Driver interface {
	Kind() string
	// UpsertBatch embeds are pre-computed by the caller (the embedding
	// resolver); this writes them. Each driver writes the batch in one
	// request, so a failure returns an error instead of silently dropping
	// the remaining docs; the error reports the batch size, not which ids
	// failed.
	UpsertBatch(ctx context.Context, projectID string, docs []Document) error
	KNN(ctx context.Context, projectID string, queryVector []float32, k int, filter Filter) ([]ScoredDocument, error)
	Delete(ctx context.Context, projectID string, ids []string) error
	Count(ctx context.Context, projectID string) (int, error)
	HealthCheck(ctx context.Context) error
}
