package vectorstore

import (
	"context"
	"fmt"

	"github.com/deskwise/deskwise/internal/config"
)

// NewDriver constructs the configured C2 driver. "memory" (the zero-config
// default) needs nothing else; "pgvector" reuses Database.URL; "qdrant"
// needs its own address. One driver instance backs every project — see
// Driver's doc comment for the tenancy model.
func NewDriver(ctx context.Context, cfg *config.Config) (Driver, error) {
	switch cfg.VectorDB.Kind {
	case "", "memory":
		return NewEmbeddedStore(), nil
	case "pgvector":
		if cfg.Database.URL == "" {
			return nil, fmt.Errorf("vectorstore: pgvector requires DATABASE_URL")
		}
		return NewPgvectorStore(ctx, cfg.Database.URL, cfg.Embedding.Dimensions)
	case "qdrant":
		if cfg.VectorDB.QdrantAddr == "" {
			return nil, fmt.Errorf("vectorstore: qdrant requires QDRANT_ADDR")
		}
		return NewQdrantStore(ctx, cfg.VectorDB.QdrantAddr, cfg.Embedding.Dimensions)
	default:
		return nil, fmt.Errorf("vectorstore: unknown kind %q", cfg.VectorDB.Kind)
	}
}
