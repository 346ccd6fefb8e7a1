package embedding_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskwise/deskwise/internal/embedding"
	"github.com/deskwise/deskwise/internal/errs"
	"github.com/deskwise/deskwise/internal/store"
	"github.com/deskwise/deskwise/pkg/models"
)

type fakeConfigStore struct {
	configs map[string]*models.EmbeddingConfigRow
}

func (f *fakeConfigStore) GetActiveEmbeddingConfig(ctx context.Context, projectID string) (*models.EmbeddingConfigRow, error) {
	cfg, ok := f.configs[projectID]
	if !ok || !cfg.IsActive {
		return nil, &store.ErrNotFound{Entity: "embedding_config", Key: projectID}
	}
	return cfg, nil
}

func (f *fakeConfigStore) UpsertEmbeddingConfig(ctx context.Context, cfg *models.EmbeddingConfigRow) error {
	f.configs[cfg.ProjectID] = cfg
	return nil
}

func TestResolveMissingConfigIsConfigMissing(t *testing.T) {
	r := embedding.NewResolver(&fakeConfigStore{configs: map[string]*models.EmbeddingConfigRow{}})

	_, err := r.Resolve(context.Background(), "proj-1")
	require.Error(t, err)
	assert.Equal(t, errs.ConfigMissing, errs.KindOf(err))
}

func TestResolveCachesClientPerProject(t *testing.T) {
	fs := &fakeConfigStore{configs: map[string]*models.EmbeddingConfigRow{
		"proj-1": {ProjectID: "proj-1", Provider: models.EmbeddingProviderOpenAI, Model: "text-embedding-3-small", Dimensions: 1536, BatchSize: 100, IsActive: true},
	}}
	r := embedding.NewResolver(fs)

	c1, err := r.Resolve(context.Background(), "proj-1")
	require.NoError(t, err)
	c2, err := r.Resolve(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.Same(t, c1, c2, "repeated resolves for the same project should reuse the cached client")
}

func TestQwen3BatchSizeHardCappedAtTen(t *testing.T) {
	fs := &fakeConfigStore{configs: map[string]*models.EmbeddingConfigRow{
		"proj-1": {ProjectID: "proj-1", Provider: models.EmbeddingProviderQwen3, Model: "text-embedding-v3", Dimensions: 1024, BatchSize: 100, IsActive: true},
	}}
	r := embedding.NewResolver(fs)

	c, err := r.Resolve(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.LessOrEqual(t, c.MaxBatchSize(), 10, "qwen3 must cap batch size at 10 even when configured higher")
}

func TestInvalidateForcesRebuild(t *testing.T) {
	fs := &fakeConfigStore{configs: map[string]*models.EmbeddingConfigRow{
		"proj-1": {ProjectID: "proj-1", Provider: models.EmbeddingProviderOpenAI, Model: "text-embedding-3-small", Dimensions: 1536, BatchSize: 100, IsActive: true},
	}}
	r := embedding.NewResolver(fs)

	c1, err := r.Resolve(context.Background(), "proj-1")
	require.NoError(t, err)

	r.Invalidate("proj-1")
	fs.configs["proj-1"].Model = "text-embedding-3-large"
	fs.configs["proj-1"].Dimensions = 3072

	c2, err := r.Resolve(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.NotSame(t, c1, c2)
	assert.Equal(t, 3072, c2.Dimensions())
}
