package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// PgvectorStore implements Driver using PostgreSQL with the pgvector
// extension. A single shared table backs every project; tenant isolation
// comes entirely from the project_id predicate on every query (spec §4.2).
type PgvectorStore struct {
	pool       *pgxpool.Pool
	dimensions int
}

func NewPgvectorStore(ctx context.Context, connURL string, dimensions int) (*PgvectorStore, error) {
	pool, err := pgxpool.New(ctx, connURL)
	if err != nil {
		return nil, fmt.Errorf("pgvector connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgvector ping: %w", err)
	}

	s := &PgvectorStore{pool: pool, dimensions: dimensions}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgvector migrate: %w", err)
	}

	log.Info().Int("dims", dimensions).Msg("pgvector store initialized")
	return s, nil
}

func (s *PgvectorStore) migrate(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;

		CREATE TABLE IF NOT EXISTS vector_documents (
			id            TEXT NOT NULL,
			project_id    TEXT NOT NULL,
			collection_id TEXT NOT NULL DEFAULT '',
			content       TEXT NOT NULL DEFAULT '',
			metadata      JSONB NOT NULL DEFAULT '{}',
			embedding     vector(%d) NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (project_id, id)
		);

		CREATE INDEX IF NOT EXISTS idx_vector_documents_project ON vector_documents (project_id);
		CREATE INDEX IF NOT EXISTS idx_vector_documents_collection ON vector_documents (project_id, collection_id);
	`, s.dimensions)

	_, err := s.pool.Exec(ctx, ddl)
	return err
}

func (s *PgvectorStore) Kind() string { return "pgvector" }

func (s *PgvectorStore) UpsertBatch(ctx context.Context, projectID string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO vector_documents (id, project_id, collection_id, content, metadata, embedding)
		VALUES `)

	args := make([]interface{}, 0, len(docs)*6)
	for i, d := range docs {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i*6 + 1
		sb.WriteString(fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)", base, base+1, base+2, base+3, base+4, base+5))
		metadata, err := json.Marshal(d.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", d.ID, err)
		}
		args = append(args, d.ID, projectID, d.CollectionID, d.Content, metadata, pgvectorArray(d.Embedding))
	}

	sb.WriteString(` ON CONFLICT (project_id, id) DO UPDATE SET
		content = EXCLUDED.content,
		metadata = EXCLUDED.metadata,
		embedding = EXCLUDED.embedding,
		collection_id = EXCLUDED.collection_id`)

	_, err := s.pool.Exec(ctx, sb.String(), args...)
	if err != nil {
		return fmt.Errorf("upsert batch of %d vectors: %w", len(docs), err)
	}
	return nil
}

func (s *PgvectorStore) KNN(ctx context.Context, projectID string, vector []float32, k int, filter Filter) ([]ScoredDocument, error) {
	query := `SELECT id, project_id, collection_id, content, metadata,
		1 - (embedding <=> $1) AS score
		FROM vector_documents
		WHERE project_id = $2`

	args := []interface{}{pgvectorArray(vector), projectID}
	argIdx := 3

	if filter.CollectionID != "" {
		query += fmt.Sprintf(" AND collection_id = $%d", argIdx)
		args = append(args, filter.CollectionID)
		argIdx++
	}
	if len(filter.Metadata) > 0 {
		metadata, err := json.Marshal(filter.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata filter: %w", err)
		}
		query += fmt.Sprintf(" AND metadata @> $%d", argIdx)
		args = append(args, metadata)
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY embedding <=> $1 LIMIT $%d", argIdx)
	args = append(args, k)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}
	defer rows.Close()

	var results []ScoredDocument
	for rows.Next() {
		var d Document
		var metadata []byte
		var score float64
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.CollectionID, &d.Content, &metadata, &score); err != nil {
			return nil, fmt.Errorf("knn scan: %w", err)
		}
		json.Unmarshal(metadata, &d.Metadata)
		results = append(results, ScoredDocument{Document: d, Score: score})
	}
	return results, rows.Err()
}

func (s *PgvectorStore) Delete(ctx context.Context, projectID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, "DELETE FROM vector_documents WHERE project_id = $1 AND id = ANY($2)", projectID, ids)
	return err
}

func (s *PgvectorStore) Count(ctx context.Context, projectID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM vector_documents WHERE project_id = $1", projectID).Scan(&count)
	return count, err
}

func (s *PgvectorStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PgvectorStore) Close() {
	s.pool.Close()
}

// pgvectorArray converts a float32 slice to pgvector's text literal: [1,2,3]
func pgvectorArray(v []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%g", f)
	}
	sb.WriteByte(']')
	return sb.String()
}
