// Package embedding implements the C1 Embedding Resolver: resolving a
// project's active EmbeddingConfig to a bound Client, and splitting
// oversized batches into provider-safe sub-batches.
package embedding

import "context"

// Client is the per-project embedding binding (spec §4.1).
type Client interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Model() string
	Provider() string
	MaxBatchSize() int
}

// splitBatches divides texts into provider-safe sub-batches (spec §4.1:
// "Implementation splits large input lists into provider-safe sub-batches
// and concatenates").
func splitBatches(texts []string, size int) [][]string {
	if size <= 0 || len(texts) <= size {
		return [][]string{texts}
	}
	var batches [][]string
	for i := 0; i < len(texts); i += size {
		end := i + size
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, texts[i:end])
	}
	return batches
}

// embedInBatches runs embedOne over texts split into provider-safe
// sub-batches and concatenates the results in order.
func embedInBatches(ctx context.Context, texts []string, maxBatch int, embedOne func(context.Context, []string) ([][]float32, error)) ([][]float32, error) {
	batches := splitBatches(texts, maxBatch)
	out := make([][]float32, 0, len(texts))
	for _, batch := range batches {
		vecs, err := embedOne(ctx, batch)
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}
