package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/deskwise/deskwise/pkg/models"
)

const collectionsDDL = `
CREATE TABLE IF NOT EXISTS collections (
	id            TEXT PRIMARY KEY,
	project_id    TEXT NOT NULL,
	type          TEXT NOT NULL,
	display_name  TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	metadata      JSONB NOT NULL DEFAULT '{}',
	tags          TEXT[] NOT NULL DEFAULT '{}',
	crawl_config  JSONB NOT NULL DEFAULT '{}',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	deleted_at    TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_collections_project ON collections (project_id) WHERE deleted_at IS NULL;
`

func (s *PostgresStore) ListCollections(ctx context.Context, filter ListFilter) ([]models.Collection, error) {
	query := `SELECT id, project_id, type, display_name, description, metadata, tags, crawl_config, created_at, updated_at, deleted_at
		FROM collections WHERE project_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`
	args := []any{filter.ProjectID}
	query, args = applyPagination(query, args, filter)

	rows, err := s.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var out []models.Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetCollection(ctx context.Context, projectID, id string) (*models.Collection, error) {
	row := s.db(ctx).QueryRow(ctx, `SELECT id, project_id, type, display_name, description, metadata, tags, crawl_config, created_at, updated_at, deleted_at
		FROM collections WHERE project_id = $1 AND id = $2 AND deleted_at IS NULL`, projectID, id)
	c, err := scanCollection(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "collection", Key: id}
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) CreateCollection(ctx context.Context, c *models.Collection) error {
	metadata, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("marshal collection metadata: %w", err)
	}
	crawlConfig, err := json.Marshal(c.CrawlConfig)
	if err != nil {
		return fmt.Errorf("marshal collection crawl_config: %w", err)
	}
	_, err = s.db(ctx).Exec(ctx, `INSERT INTO collections (id, project_id, type, display_name, description, metadata, tags, crawl_config, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		c.ID, c.ProjectID, c.Type, c.DisplayName, c.Description, metadata, c.Tags, crawlConfig, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateCollection(ctx context.Context, c *models.Collection) error {
	metadata, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("marshal collection metadata: %w", err)
	}
	crawlConfig, err := json.Marshal(c.CrawlConfig)
	if err != nil {
		return fmt.Errorf("marshal collection crawl_config: %w", err)
	}
	tag, err := s.db(ctx).Exec(ctx, `UPDATE collections SET display_name=$3, description=$4, metadata=$5, tags=$6, crawl_config=$7, updated_at=$8
		WHERE project_id=$1 AND id=$2 AND deleted_at IS NULL`,
		c.ProjectID, c.ID, c.DisplayName, c.Description, metadata, c.Tags, crawlConfig, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update collection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{Entity: "collection", Key: c.ID}
	}
	return nil
}

func (s *PostgresStore) DeleteCollection(ctx context.Context, projectID, id string) error {
	tag, err := s.db(ctx).Exec(ctx, `UPDATE collections SET deleted_at=NOW() WHERE project_id=$1 AND id=$2 AND deleted_at IS NULL`, projectID, id)
	if err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{Entity: "collection", Key: id}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCollection(row rowScanner) (models.Collection, error) {
	var c models.Collection
	var metadata, crawlConfig []byte
	if err := row.Scan(&c.ID, &c.ProjectID, &c.Type, &c.DisplayName, &c.Description, &metadata, &c.Tags, &crawlConfig, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt); err != nil {
		return c, fmt.Errorf("scan collection: %w", err)
	}
	if err := unmarshalMap(metadata, &c.Metadata); err != nil {
		return c, err
	}
	if err := unmarshalMap(crawlConfig, &c.CrawlConfig); err != nil {
		return c, err
	}
	return c, nil
}

// ── File ─────────────────────────────────────────────────────

const filesDDL = `
CREATE TABLE IF NOT EXISTS files (
	id                 TEXT PRIMARY KEY,
	project_id         TEXT NOT NULL,
	collection_id      TEXT NOT NULL DEFAULT '',
	original_filename  TEXT NOT NULL,
	size               BIGINT NOT NULL DEFAULT 0,
	content_type       TEXT NOT NULL DEFAULT '',
	storage_provider   TEXT NOT NULL DEFAULT '',
	storage_path       TEXT NOT NULL DEFAULT '',
	storage_metadata   JSONB NOT NULL DEFAULT '{}',
	status             TEXT NOT NULL,
	language           TEXT NOT NULL DEFAULT '',
	description        TEXT NOT NULL DEFAULT '',
	tags               TEXT[] NOT NULL DEFAULT '{}',
	document_count     INT NOT NULL DEFAULT 0,
	total_tokens       INT NOT NULL DEFAULT 0,
	error_message      TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	deleted_at         TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_files_project ON files (project_id) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_files_collection ON files (project_id, collection_id) WHERE deleted_at IS NULL;
`

func (s *PostgresStore) ListFiles(ctx context.Context, filter ListFilter, collectionID string) ([]models.File, error) {
	query := `SELECT id, project_id, collection_id, original_filename, size, content_type, storage_provider, storage_path,
		storage_metadata, status, language, description, tags, document_count, total_tokens, error_message, created_at, updated_at, deleted_at
		FROM files WHERE project_id = $1 AND deleted_at IS NULL`
	args := []any{filter.ProjectID}
	if collectionID != "" {
		args = append(args, collectionID)
		query += fmt.Sprintf(" AND collection_id = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	query, args = applyPagination(query, args, filter)

	rows, err := s.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var out []models.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetFile(ctx context.Context, projectID, id string) (*models.File, error) {
	row := s.db(ctx).QueryRow(ctx, `SELECT id, project_id, collection_id, original_filename, size, content_type, storage_provider, storage_path,
		storage_metadata, status, language, description, tags, document_count, total_tokens, error_message, created_at, updated_at, deleted_at
		FROM files WHERE project_id=$1 AND id=$2 AND deleted_at IS NULL`, projectID, id)
	f, err := scanFile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "file", Key: id}
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *PostgresStore) CreateFile(ctx context.Context, f *models.File) error {
	storageMetadata, err := json.Marshal(f.StorageMetadata)
	if err != nil {
		return fmt.Errorf("marshal file storage_metadata: %w", err)
	}
	_, err = s.db(ctx).Exec(ctx, `INSERT INTO files (id, project_id, collection_id, original_filename, size, content_type, storage_provider,
		storage_path, storage_metadata, status, language, description, tags, document_count, total_tokens, error_message, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		f.ID, f.ProjectID, f.CollectionID, f.OriginalFilename, f.Size, f.ContentType, f.StorageProvider, f.StoragePath,
		storageMetadata, f.Status, f.Language, f.Description, f.Tags, f.DocumentCount, f.TotalTokens, f.ErrorMessage, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateFile(ctx context.Context, f *models.File) error {
	storageMetadata, err := json.Marshal(f.StorageMetadata)
	if err != nil {
		return fmt.Errorf("marshal file storage_metadata: %w", err)
	}
	tag, err := s.db(ctx).Exec(ctx, `UPDATE files SET status=$3, language=$4, description=$5, tags=$6, document_count=$7, total_tokens=$8,
		error_message=$9, storage_metadata=$10, updated_at=$11 WHERE project_id=$1 AND id=$2 AND deleted_at IS NULL`,
		f.ProjectID, f.ID, f.Status, f.Language, f.Description, f.Tags, f.DocumentCount, f.TotalTokens, f.ErrorMessage, storageMetadata, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{Entity: "file", Key: f.ID}
	}
	return nil
}

func (s *PostgresStore) DeleteFile(ctx context.Context, projectID, id string) error {
	tag, err := s.db(ctx).Exec(ctx, `UPDATE files SET deleted_at=NOW() WHERE project_id=$1 AND id=$2 AND deleted_at IS NULL`, projectID, id)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{Entity: "file", Key: id}
	}
	return nil
}

func scanFile(row rowScanner) (models.File, error) {
	var f models.File
	var storageMetadata []byte
	if err := row.Scan(&f.ID, &f.ProjectID, &f.CollectionID, &f.OriginalFilename, &f.Size, &f.ContentType, &f.StorageProvider,
		&f.StoragePath, &storageMetadata, &f.Status, &f.Language, &f.Description, &f.Tags, &f.DocumentCount, &f.TotalTokens,
		&f.ErrorMessage, &f.CreatedAt, &f.UpdatedAt, &f.DeletedAt); err != nil {
		return f, fmt.Errorf("scan file: %w", err)
	}
	if err := unmarshalMap(storageMetadata, &f.StorageMetadata); err != nil {
		return f, err
	}
	return f, nil
}

// ── FileDocument ─────────────────────────────────────────────

const fileDocumentsDDL = `
CREATE TABLE IF NOT EXISTS file_documents (
	id                   TEXT PRIMARY KEY,
	project_id           TEXT NOT NULL,
	file_id              TEXT,
	collection_id        TEXT NOT NULL DEFAULT '',
	content              TEXT NOT NULL,
	content_tsv          tsvector GENERATED ALWAYS AS (to_tsvector('english', content)) STORED,
	content_length       INT NOT NULL DEFAULT 0,
	token_count          INT NOT NULL DEFAULT 0,
	chunk_id             TEXT NOT NULL DEFAULT '',
	chunk_index          INT NOT NULL DEFAULT 0,
	section_title        TEXT NOT NULL DEFAULT '',
	page_number          INT NOT NULL DEFAULT 0,
	content_type         TEXT NOT NULL DEFAULT '',
	language             TEXT NOT NULL DEFAULT '',
	confidence_score     DOUBLE PRECISION NOT NULL DEFAULT 0,
	tags                 JSONB NOT NULL DEFAULT '{}',
	embedding_model      TEXT NOT NULL DEFAULT '',
	embedding_dimensions INT NOT NULL DEFAULT 0,
	document_title       TEXT NOT NULL DEFAULT '',
	created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_file_documents_project ON file_documents (project_id);
CREATE INDEX IF NOT EXISTS idx_file_documents_file ON file_documents (project_id, file_id);
CREATE INDEX IF NOT EXISTS idx_file_documents_tsv ON file_documents USING GIN (content_tsv);
`

func (s *PostgresStore) CreateFileDocuments(ctx context.Context, docs []models.FileDocument) error {
	if len(docs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, d := range docs {
		tags, err := json.Marshal(d.Tags)
		if err != nil {
			return fmt.Errorf("marshal file document tags: %w", err)
		}
		batch.Queue(`INSERT INTO file_documents (id, project_id, file_id, collection_id, content, content_length, token_count,
			chunk_id, chunk_index, section_title, page_number, content_type, language, confidence_score, tags, embedding_model,
			embedding_dimensions, document_title, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
			d.ID, d.ProjectID, d.FileID, d.CollectionID, d.Content, d.ContentLength, d.TokenCount, d.ChunkID, d.ChunkIndex, d.SectionTitle,
			d.PageNumber, d.ContentType, d.Language, d.ConfidenceScore, tags, d.EmbeddingModel, d.EmbeddingDimensions, d.DocumentTitle, d.CreatedAt)
	}
	results := s.db(ctx).SendBatch(ctx, batch)
	defer results.Close()
	for range docs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("create file documents: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) GetFileDocument(ctx context.Context, projectID, id string) (*models.FileDocument, error) {
	row := s.db(ctx).QueryRow(ctx, `SELECT id, project_id, file_id, collection_id, content, content_length, token_count, chunk_id, chunk_index,
		section_title, page_number, content_type, language, confidence_score, tags, embedding_model, embedding_dimensions,
		document_title, created_at FROM file_documents WHERE project_id=$1 AND id=$2`, projectID, id)
	d, err := scanFileDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "file_document", Key: id}
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *PostgresStore) ListFileDocumentsByFile(ctx context.Context, projectID, fileID string) ([]models.FileDocument, error) {
	rows, err := s.db(ctx).Query(ctx, `SELECT id, project_id, file_id, collection_id, content, content_length, token_count, chunk_id, chunk_index,
		section_title, page_number, content_type, language, confidence_score, tags, embedding_model, embedding_dimensions,
		document_title, created_at FROM file_documents WHERE project_id=$1 AND file_id=$2 ORDER BY chunk_index ASC`, projectID, fileID)
	if err != nil {
		return nil, fmt.Errorf("list file documents: %w", err)
	}
	defer rows.Close()

	var out []models.FileDocument
	for rows.Next() {
		d, err := scanFileDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteFileDocument(ctx context.Context, projectID, id string) error {
	tag, err := s.db(ctx).Exec(ctx, `DELETE FROM file_documents WHERE project_id=$1 AND id=$2`, projectID, id)
	if err != nil {
		return fmt.Errorf("delete file document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{Entity: "file_document", Key: id}
	}
	return nil
}

// LexicalSearch ranks file_documents by ts_rank_cd against the
// generated content_tsv column, the Postgres-native equivalent of
// MemoryStore's tokenize/lexicalScore pass.
func (s *PostgresStore) LexicalSearch(ctx context.Context, projectID, query string, filter SearchFilter, limit int) ([]ScoredDocument, error) {
	sqlQuery := `SELECT id, project_id, file_id, collection_id, content, content_length, token_count, chunk_id, chunk_index, section_title,
		page_number, content_type, language, confidence_score, tags, embedding_model, embedding_dimensions, document_title, created_at,
		ts_rank_cd(content_tsv, plainto_tsquery('english', $2)) AS score
		FROM file_documents WHERE project_id=$1 AND content_tsv @@ plainto_tsquery('english', $2)`
	args := []any{projectID, query}
	if filter.CollectionID != "" {
		args = append(args, filter.CollectionID)
		sqlQuery += fmt.Sprintf(" AND collection_id = $%d", len(args))
	}
	sqlQuery += " ORDER BY score DESC, created_at DESC"
	if limit > 0 {
		args = append(args, limit)
		sqlQuery += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db(ctx).Query(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	var out []ScoredDocument
	for rows.Next() {
		var d models.FileDocument
		var tags []byte
		var score float64
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.FileID, &d.CollectionID, &d.Content, &d.ContentLength, &d.TokenCount,
			&d.ChunkID, &d.ChunkIndex, &d.SectionTitle, &d.PageNumber, &d.ContentType, &d.Language, &d.ConfidenceScore, &tags,
			&d.EmbeddingModel, &d.EmbeddingDimensions, &d.DocumentTitle, &d.CreatedAt, &score); err != nil {
			return nil, fmt.Errorf("scan lexical search row: %w", err)
		}
		if err := unmarshalMap(tags, &d.Tags); err != nil {
			return nil, err
		}
		out = append(out, ScoredDocument{Document: d, Score: score})
	}
	return out, rows.Err()
}

func scanFileDocument(row rowScanner) (models.FileDocument, error) {
	var d models.FileDocument
	var tags []byte
	if err := row.Scan(&d.ID, &d.ProjectID, &d.FileID, &d.CollectionID, &d.Content, &d.ContentLength, &d.TokenCount, &d.ChunkID, &d.ChunkIndex,
		&d.SectionTitle, &d.PageNumber, &d.ContentType, &d.Language, &d.ConfidenceScore, &tags, &d.EmbeddingModel,
		&d.EmbeddingDimensions, &d.DocumentTitle, &d.CreatedAt); err != nil {
		return d, fmt.Errorf("scan file document: %w", err)
	}
	if err := unmarshalMap(tags, &d.Tags); err != nil {
		return d, err
	}
	return d, nil
}

// ── QAPair ───────────────────────────────────────────────────

const qaPairsDDL = `
CREATE TABLE IF NOT EXISTS qa_pairs (
	id             TEXT PRIMARY KEY,
	project_id     TEXT NOT NULL,
	collection_id  TEXT NOT NULL,
	question       TEXT NOT NULL,
	answer         TEXT NOT NULL,
	question_hash  TEXT NOT NULL,
	category       TEXT NOT NULL DEFAULT '',
	subcategory    TEXT NOT NULL DEFAULT '',
	tags           TEXT[] NOT NULL DEFAULT '{}',
	qa_metadata    JSONB NOT NULL DEFAULT '{}',
	source_type    TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL,
	document_id    TEXT NOT NULL DEFAULT '',
	priority       INT NOT NULL DEFAULT 0,
	error_message  TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	deleted_at     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_qa_pairs_project ON qa_pairs (project_id) WHERE deleted_at IS NULL;
CREATE UNIQUE INDEX IF NOT EXISTS idx_qa_pairs_hash ON qa_pairs (collection_id, question_hash) WHERE deleted_at IS NULL;
`

func (s *PostgresStore) ListQAPairs(ctx context.Context, filter ListFilter, collectionID string) ([]models.QAPair, error) {
	query := `SELECT id, project_id, collection_id, question, answer, question_hash, category, subcategory, tags, qa_metadata,
		source_type, status, document_id, priority, error_message, created_at, updated_at, deleted_at
		FROM qa_pairs WHERE project_id=$1 AND deleted_at IS NULL`
	args := []any{filter.ProjectID}
	if collectionID != "" {
		args = append(args, collectionID)
		query += fmt.Sprintf(" AND collection_id = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	query, args = applyPagination(query, args, filter)

	rows, err := s.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list qa pairs: %w", err)
	}
	defer rows.Close()

	var out []models.QAPair
	for rows.Next() {
		qa, err := scanQAPair(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, qa)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetQAPair(ctx context.Context, projectID, id string) (*models.QAPair, error) {
	row := s.db(ctx).QueryRow(ctx, `SELECT id, project_id, collection_id, question, answer, question_hash, category, subcategory, tags,
		qa_metadata, source_type, status, document_id, priority, error_message, created_at, updated_at, deleted_at
		FROM qa_pairs WHERE project_id=$1 AND id=$2 AND deleted_at IS NULL`, projectID, id)
	qa, err := scanQAPair(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "qa_pair", Key: id}
	}
	if err != nil {
		return nil, err
	}
	return &qa, nil
}

func (s *PostgresStore) GetQAPairByHash(ctx context.Context, collectionID, questionHash string) (*models.QAPair, error) {
	row := s.db(ctx).QueryRow(ctx, `SELECT id, project_id, collection_id, question, answer, question_hash, category, subcategory, tags,
		qa_metadata, source_type, status, document_id, priority, error_message, created_at, updated_at, deleted_at
		FROM qa_pairs WHERE collection_id=$1 AND question_hash=$2 AND deleted_at IS NULL`, collectionID, questionHash)
	qa, err := scanQAPair(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "qa_pair", Key: questionHash}
	}
	if err != nil {
		return nil, err
	}
	return &qa, nil
}

func (s *PostgresStore) CreateQAPair(ctx context.Context, qa *models.QAPair) error {
	metadata, err := json.Marshal(qa.QAMetadata)
	if err != nil {
		return fmt.Errorf("marshal qa_pair qa_metadata: %w", err)
	}
	_, err = s.db(ctx).Exec(ctx, `INSERT INTO qa_pairs (id, project_id, collection_id, question, answer, question_hash, category,
		subcategory, tags, qa_metadata, source_type, status, document_id, priority, error_message, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		qa.ID, qa.ProjectID, qa.CollectionID, qa.Question, qa.Answer, qa.QuestionHash, qa.Category, qa.Subcategory, qa.Tags,
		metadata, qa.SourceType, qa.Status, qa.DocumentID, qa.Priority, qa.ErrorMessage, qa.CreatedAt, qa.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("create qa pair: duplicate question hash: %w", err)
	}
	if err != nil {
		return fmt.Errorf("create qa pair: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateQAPair(ctx context.Context, qa *models.QAPair) error {
	metadata, err := json.Marshal(qa.QAMetadata)
	if err != nil {
		return fmt.Errorf("marshal qa_pair qa_metadata: %w", err)
	}
	tag, err := s.db(ctx).Exec(ctx, `UPDATE qa_pairs SET question=$3, answer=$4, category=$5, subcategory=$6, tags=$7, qa_metadata=$8,
		status=$9, priority=$10, error_message=$11, updated_at=$12 WHERE project_id=$1 AND id=$2 AND deleted_at IS NULL`,
		qa.ProjectID, qa.ID, qa.Question, qa.Answer, qa.Category, qa.Subcategory, qa.Tags, metadata, qa.Status, qa.Priority, qa.ErrorMessage, qa.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update qa pair: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{Entity: "qa_pair", Key: qa.ID}
	}
	return nil
}

func (s *PostgresStore) DeleteQAPair(ctx context.Context, projectID, id string) error {
	tag, err := s.db(ctx).Exec(ctx, `UPDATE qa_pairs SET deleted_at=NOW() WHERE project_id=$1 AND id=$2 AND deleted_at IS NULL`, projectID, id)
	if err != nil {
		return fmt.Errorf("delete qa pair: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{Entity: "qa_pair", Key: id}
	}
	return nil
}

func scanQAPair(row rowScanner) (models.QAPair, error) {
	var qa models.QAPair
	var metadata []byte
	if err := row.Scan(&qa.ID, &qa.ProjectID, &qa.CollectionID, &qa.Question, &qa.Answer, &qa.QuestionHash, &qa.Category,
		&qa.Subcategory, &qa.Tags, &metadata, &qa.SourceType, &qa.Status, &qa.DocumentID, &qa.Priority, &qa.ErrorMessage,
		&qa.CreatedAt, &qa.UpdatedAt, &qa.DeletedAt); err != nil {
		return qa, fmt.Errorf("scan qa pair: %w", err)
	}
	if err := unmarshalMap(metadata, &qa.QAMetadata); err != nil {
		return qa, err
	}
	return qa, nil
}

// ── shared helpers ───────────────────────────────────────────

func applyPagination(query string, args []any, filter ListFilter) (string, []any) {
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}

func unmarshalMap[T any](raw []byte, dest *T) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal jsonb: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
