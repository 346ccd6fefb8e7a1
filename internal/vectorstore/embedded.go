package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// DefaultMaxVectors is the cap for the embedded driver (50K) before it
// nudges callers toward pgvector or qdrant.
const DefaultMaxVectors = 50_000

// EmbeddedStore is a brute-force cosine-similarity driver. Zero-config
// default for development and small deployments.
type EmbeddedStore struct {
	mu         sync.RWMutex
	docs       map[string]Document // key: project:id
	maxVectors int
}

type EmbeddedOption func(*EmbeddedStore)

func WithMaxVectors(max int) EmbeddedOption {
	return func(s *EmbeddedStore) { s.maxVectors = max }
}

func NewEmbeddedStore(opts ...EmbeddedOption) *EmbeddedStore {
	s := &EmbeddedStore{docs: make(map[string]Document), maxVectors: DefaultMaxVectors}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *EmbeddedStore) Kind() string { return "embedded" }

func key(projectID, id string) string { return projectID + ":" + id }

func (s *EmbeddedStore) UpsertBatch(_ context.Context, projectID string, docs []Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	newCount := 0
	for _, d := range docs {
		if _, exists := s.docs[key(projectID, d.ID)]; !exists {
			newCount++
		}
	}
	total := len(s.docs) + newCount
	if total > s.maxVectors {
		return fmt.Errorf("embedded vector store capacity exceeded: %d > %d (use pgvector or qdrant)", total, s.maxVectors)
	}
	if total > int(float64(s.maxVectors)*0.9) {
		log.Warn().Int("count", total).Int("max", s.maxVectors).Msg("embedded vector store nearing capacity")
	}

	for _, d := range docs {
		cp := d
		cp.ProjectID = projectID
		s.docs[key(projectID, cp.ID)] = cp
	}
	return nil
}

func (s *EmbeddedStore) KNN(_ context.Context, projectID string, vector []float32, k int, filter Filter) ([]ScoredDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		doc   Document
		score float64
	}
	var candidates []scored
	for _, d := range s.docs {
		if d.ProjectID != projectID {
			continue
		}
		if filter.CollectionID != "" && d.CollectionID != filter.CollectionID {
			continue
		}
		if !matchesMetadata(d.Metadata, filter.Metadata) {
			continue
		}
		if len(d.Embedding) != len(vector) {
			continue
		}
		candidates = append(candidates, scored{doc: d, score: cosineSimilarity(vector, d.Embedding)})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if k < len(candidates) {
		candidates = candidates[:k]
	}

	out := make([]ScoredDocument, len(candidates))
	for i, c := range candidates {
		out[i] = ScoredDocument{Document: c.doc, Score: c.score}
	}
	return out, nil
}

func matchesMetadata(have, want map[string]any) bool {
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}

func (s *EmbeddedStore) Delete(_ context.Context, projectID string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.docs, key(projectID, id))
	}
	return nil
}

func (s *EmbeddedStore) Count(_ context.Context, projectID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, d := range s.docs {
		if d.ProjectID == projectID {
			n++
		}
	}
	return n, nil
}

func (s *EmbeddedStore) HealthCheck(_ context.Context) error { return nil }

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
