package embedding

import (
	"context"
	"sync"

	"github.com/deskwise/deskwise/internal/errs"
	"github.com/deskwise/deskwise/internal/store"
	"github.com/deskwise/deskwise/pkg/models"
)

// Resolver implements `resolve(project_id) → EmbeddingClient` (spec §4.1).
// It must use the active EmbeddingConfig row for the project — there is
// no global fallback — and caches the bound client per project so repeated
// ingestion steps for the same project reuse one HTTP client.
type Resolver struct {
	store store.EmbeddingConfigStore

	mu      sync.RWMutex
	clients map[string]cachedClient
}

type cachedClient struct {
	client    Client
	updatedAt string // config fingerprint: provider+model+baseURL, to invalidate on change
}

func NewResolver(s store.EmbeddingConfigStore) *Resolver {
	return &Resolver{store: s, clients: make(map[string]cachedClient)}
}

// Resolve returns the embedding client bound to the project's active
// EmbeddingConfig. Missing or inactive config is an errs.ConfigMissing.
func (r *Resolver) Resolve(ctx context.Context, projectID string) (Client, error) {
	cfg, err := r.store.GetActiveEmbeddingConfig(ctx, projectID)
	if err != nil {
		return nil, errs.Wrap(errs.ConfigMissing, "no active embedding config for project "+projectID, err)
	}

	fingerprint := string(cfg.Provider) + ":" + cfg.Model + ":" + cfg.BaseURL

	r.mu.RLock()
	cached, ok := r.clients[projectID]
	r.mu.RUnlock()
	if ok && cached.updatedAt == fingerprint {
		return cached.client, nil
	}

	client := buildClient(cfg)

	r.mu.Lock()
	r.clients[projectID] = cachedClient{client: client, updatedAt: fingerprint}
	r.mu.Unlock()

	return client, nil
}

// Invalidate drops a project's cached client, forcing the next Resolve to
// rebuild it (used after UpsertEmbeddingConfig changes the active row).
func (r *Resolver) Invalidate(projectID string) {
	r.mu.Lock()
	delete(r.clients, projectID)
	r.mu.Unlock()
}

func buildClient(cfg *models.EmbeddingConfigRow) Client {
	switch cfg.Provider {
	case models.EmbeddingProviderQwen3:
		return NewQwen3Client(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Dimensions, cfg.BatchSize)
	case models.EmbeddingProviderOpenAICompatible:
		return NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Dimensions, cfg.BatchSize, "openai_compatible")
	default:
		return NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Dimensions, cfg.BatchSize, "openai")
	}
}
