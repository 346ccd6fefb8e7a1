package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/deskwise/deskwise/internal/config"
	"github.com/deskwise/deskwise/internal/embedding"
	"github.com/deskwise/deskwise/internal/store"
	"github.com/deskwise/deskwise/internal/vectorstore"
	"github.com/deskwise/deskwise/pkg/models"
)

// Service runs the three C6 search operations against a project's store,
// embedding resolver, and vector driver.
type Service struct {
	store    store.Store
	resolver *embedding.Resolver
	vectors  vectorstore.Driver
	cfg      config.RetrievalConfig
}

func NewService(s store.Store, resolver *embedding.Resolver, vectors vectorstore.Driver, cfg config.RetrievalConfig) *Service {
	return &Service{store: s, resolver: resolver, vectors: vectors, cfg: cfg}
}

func (s *Service) limitOrDefault(limit int) int {
	if limit <= 0 {
		limit = s.cfg.DefaultSearchLimit
	}
	if s.cfg.MaxSearchLimit > 0 && limit > s.cfg.MaxSearchLimit {
		limit = s.cfg.MaxSearchLimit
	}
	return limit
}

func fetchK(cfg config.RetrievalConfig, limit int) int {
	const defaultFetchTopK = 20
	candidate := cfg.CandidateMultiplier * limit
	if candidate > defaultFetchTopK {
		return candidate
	}
	return defaultFetchTopK
}

// Semantic embeds the query with the project-bound client, runs k-NN on
// the vector store, and joins hits back to their FileDocument rows
// (spec §4.6 "Semantic").
func (s *Service) Semantic(ctx context.Context, req Request) ([]SearchResult, SearchMetadata, error) {
	start := time.Now()
	limit := s.limitOrDefault(req.Limit)

	client, err := s.resolver.Resolve(ctx, req.ProjectID)
	if err != nil {
		return nil, SearchMetadata{}, err
	}
	qvec, err := client.EmbedQuery(ctx, req.Query)
	if err != nil {
		return nil, SearchMetadata{}, fmt.Errorf("embed query: %w", err)
	}

	hits, err := s.vectors.KNN(ctx, req.ProjectID, qvec, fetchK(s.cfg, limit), vectorstore.Filter{
		CollectionID: req.CollectionID,
		Metadata:     req.Filters,
	})
	if err != nil {
		return nil, SearchMetadata{}, fmt.Errorf("knn: %w", err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		doc, err := s.store.GetFileDocument(ctx, req.ProjectID, hit.Document.ID)
		if err != nil {
			continue // defense in depth: vector hit with no matching row under this tenant is dropped, not surfaced
		}
		results = append(results, toSearchResult(doc, hit.Score))
	}

	minScore := req.MinScore
	if minScore == 0 {
		minScore = s.cfg.MinSimilarityScore
	}
	total := len(results)
	results = sortAndLimit(results, minScore, limit)

	return results, SearchMetadata{
		Query: req.Query, TotalResults: total, ReturnedResults: len(results),
		SearchTimeMs: time.Since(start).Milliseconds(), FiltersApplied: req.Filters,
		SearchType: SearchTypeSemantic,
	}, nil
}

// Lexical ranks FileDocument rows by content_tsv relevance (spec §4.6
// "Lexical").
func (s *Service) Lexical(ctx context.Context, req Request) ([]SearchResult, SearchMetadata, error) {
	start := time.Now()
	limit := s.limitOrDefault(req.Limit)

	hits, err := s.store.LexicalSearch(ctx, req.ProjectID, req.Query, store.SearchFilter{
		CollectionID: req.CollectionID,
		Tags:         req.Filters,
	}, fetchK(s.cfg, limit))
	if err != nil {
		return nil, SearchMetadata{}, fmt.Errorf("lexical search: %w", err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		doc := hit.Document
		results = append(results, toSearchResult(&doc, hit.Score))
	}

	total := len(results)
	results = sortAndLimit(results, req.MinScore, limit)

	return results, SearchMetadata{
		Query: req.Query, TotalResults: total, ReturnedResults: len(results),
		SearchTimeMs: time.Since(start).Milliseconds(), FiltersApplied: req.Filters,
		SearchType: SearchTypeLexical,
	}, nil
}

// Hybrid runs semantic and lexical search independently and fuses the two
// rankings via RRF. The vectorstore.Driver abstraction (embedded/pgvector/
// qdrant — see internal/vectorstore) has no server-side fused query
// primitive in any of the grounding examples, so fusion happens here
// rather than in a single round trip; min_score is applied to the fused
// score as a post-filter (spec §4.6 "Hybrid").
func (s *Service) Hybrid(ctx context.Context, req Request) ([]SearchResult, SearchMetadata, error) {
	start := time.Now()
	limit := s.limitOrDefault(req.Limit)
	fk := fetchK(s.cfg, limit)

	semanticReq, lexicalReq := req, req
	semanticReq.Limit, lexicalReq.Limit = fk, fk

	semanticHits, _, err := s.Semantic(ctx, semanticReq)
	if err != nil {
		return nil, SearchMetadata{}, err
	}
	lexicalHits, _, err := s.Lexical(ctx, lexicalReq)
	if err != nil {
		return nil, SearchMetadata{}, err
	}

	fused := rrfFuse(s.cfg.RRFK, semanticHits, lexicalHits)
	total := len(fused)
	results := sortAndLimit(fused, req.MinScore, limit)

	return results, SearchMetadata{
		Query: req.Query, TotalResults: total, ReturnedResults: len(results),
		SearchTimeMs: time.Since(start).Milliseconds(), FiltersApplied: req.Filters,
		SearchType: SearchTypeHybrid,
	}, nil
}

func toSearchResult(doc *models.FileDocument, score float64) SearchResult {
	return SearchResult{
		DocumentID:     doc.ID,
		FileID:         doc.FileID,
		CollectionID:   doc.CollectionID,
		RelevanceScore: score,
		ContentPreview: preview(doc.Content),
		DocumentTitle:  doc.DocumentTitle,
		ContentType:    doc.ContentType,
		ChunkIndex:     doc.ChunkIndex,
		PageNumber:     doc.PageNumber,
		SectionTitle:   doc.SectionTitle,
		Tags:           doc.Tags,
		CreatedAt:      doc.CreatedAt,
	}
}
