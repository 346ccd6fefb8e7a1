package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/deskwise/deskwise/pkg/models"
)

const crawlJobsDDL = `
CREATE TABLE IF NOT EXISTS website_crawl_jobs (
	id                TEXT PRIMARY KEY,
	project_id        TEXT NOT NULL,
	collection_id     TEXT NOT NULL,
	start_url         TEXT NOT NULL,
	max_pages         INT NOT NULL DEFAULT 0,
	max_depth         INT NOT NULL DEFAULT 0,
	include_patterns  TEXT[] NOT NULL DEFAULT '{}',
	exclude_patterns  TEXT[] NOT NULL DEFAULT '{}',
	status            TEXT NOT NULL,
	pages_discovered  INT NOT NULL DEFAULT 0,
	pages_crawled     INT NOT NULL DEFAULT 0,
	pages_processed   INT NOT NULL DEFAULT 0,
	pages_failed      INT NOT NULL DEFAULT 0,
	crawl_options     JSONB NOT NULL DEFAULT '{}',
	error_message     TEXT NOT NULL DEFAULT '',
	task_id           TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	deleted_at        TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_crawl_jobs_project ON website_crawl_jobs (project_id);
`

func (s *PostgresStore) GetCrawlJob(ctx context.Context, projectID, id string) (*models.WebsiteCrawlJob, error) {
	row := s.db(ctx).QueryRow(ctx, `SELECT id, project_id, collection_id, start_url, max_pages, max_depth, include_patterns,
		exclude_patterns, status, pages_discovered, pages_crawled, pages_processed, pages_failed, crawl_options, error_message,
		task_id, created_at, updated_at, deleted_at FROM website_crawl_jobs WHERE project_id=$1 AND id=$2`, projectID, id)
	j, err := scanCrawlJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "crawl_job", Key: id}
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *PostgresStore) CreateCrawlJob(ctx context.Context, j *models.WebsiteCrawlJob) error {
	opts, err := json.Marshal(j.CrawlOptions)
	if err != nil {
		return fmt.Errorf("marshal crawl_job crawl_options: %w", err)
	}
	_, err = s.db(ctx).Exec(ctx, `INSERT INTO website_crawl_jobs (id, project_id, collection_id, start_url, max_pages, max_depth,
		include_patterns, exclude_patterns, status, pages_discovered, pages_crawled, pages_processed, pages_failed,
		crawl_options, error_message, task_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		j.ID, j.ProjectID, j.CollectionID, j.StartURL, j.MaxPages, j.MaxDepth, j.IncludePatterns, j.ExcludePatterns, j.Status,
		j.PagesDiscovered, j.PagesCrawled, j.PagesProcessed, j.PagesFailed, opts, j.ErrorMessage, j.TaskID, j.CreatedAt, j.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create crawl job: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateCrawlJob(ctx context.Context, j *models.WebsiteCrawlJob) error {
	opts, err := json.Marshal(j.CrawlOptions)
	if err != nil {
		return fmt.Errorf("marshal crawl_job crawl_options: %w", err)
	}
	tag, err := s.db(ctx).Exec(ctx, `UPDATE website_crawl_jobs SET status=$3, pages_discovered=$4, pages_crawled=$5, pages_processed=$6,
		pages_failed=$7, crawl_options=$8, error_message=$9, task_id=$10, updated_at=$11
		WHERE project_id=$1 AND id=$2`,
		j.ProjectID, j.ID, j.Status, j.PagesDiscovered, j.PagesCrawled, j.PagesProcessed, j.PagesFailed, opts, j.ErrorMessage, j.TaskID, j.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update crawl job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{Entity: "crawl_job", Key: j.ID}
	}
	return nil
}

func scanCrawlJob(row rowScanner) (models.WebsiteCrawlJob, error) {
	var j models.WebsiteCrawlJob
	var opts []byte
	if err := row.Scan(&j.ID, &j.ProjectID, &j.CollectionID, &j.StartURL, &j.MaxPages, &j.MaxDepth, &j.IncludePatterns,
		&j.ExcludePatterns, &j.Status, &j.PagesDiscovered, &j.PagesCrawled, &j.PagesProcessed, &j.PagesFailed, &opts,
		&j.ErrorMessage, &j.TaskID, &j.CreatedAt, &j.UpdatedAt, &j.DeletedAt); err != nil {
		return j, fmt.Errorf("scan crawl job: %w", err)
	}
	if err := unmarshalMap(opts, &j.CrawlOptions); err != nil {
		return j, err
	}
	return j, nil
}

// ── WebsitePage ──────────────────────────────────────────────

const websitePagesDDL = `
CREATE TABLE IF NOT EXISTS website_pages (
	id                TEXT PRIMARY KEY,
	crawl_job_id      TEXT NOT NULL,
	collection_id     TEXT NOT NULL,
	project_id        TEXT NOT NULL,
	file_id           TEXT NOT NULL DEFAULT '',
	url               TEXT NOT NULL,
	url_hash          TEXT NOT NULL,
	title             TEXT NOT NULL DEFAULT '',
	depth             INT NOT NULL DEFAULT 0,
	content_markdown  TEXT NOT NULL DEFAULT '',
	content_length    INT NOT NULL DEFAULT 0,
	content_hash      TEXT NOT NULL DEFAULT '',
	meta_description  TEXT NOT NULL DEFAULT '',
	page_metadata     JSONB NOT NULL DEFAULT '{}',
	status            TEXT NOT NULL,
	http_status_code  INT NOT NULL DEFAULT 0,
	error_message     TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_website_pages_job ON website_pages (crawl_job_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_website_pages_url_hash ON website_pages (crawl_job_id, url_hash);
CREATE INDEX IF NOT EXISTS idx_website_pages_collection ON website_pages (collection_id);
`

func (s *PostgresStore) GetWebsitePage(ctx context.Context, projectID, id string) (*models.WebsitePage, error) {
	row := s.db(ctx).QueryRow(ctx, `SELECT id, crawl_job_id, collection_id, project_id, file_id, url, url_hash, title, depth,
		content_markdown, content_length, content_hash, meta_description, page_metadata, status, http_status_code,
		error_message, created_at, updated_at FROM website_pages WHERE project_id=$1 AND id=$2`, projectID, id)
	p, err := scanWebsitePage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "website_page", Key: id}
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) GetWebsitePageByURLHash(ctx context.Context, crawlJobID, urlHash string) (*models.WebsitePage, error) {
	row := s.db(ctx).QueryRow(ctx, `SELECT id, crawl_job_id, collection_id, project_id, file_id, url, url_hash, title, depth,
		content_markdown, content_length, content_hash, meta_description, page_metadata, status, http_status_code,
		error_message, created_at, updated_at FROM website_pages WHERE crawl_job_id=$1 AND url_hash=$2`, crawlJobID, urlHash)
	p, err := scanWebsitePage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "website_page", Key: urlHash}
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) ListWebsitePagesByCollection(ctx context.Context, collectionID string) ([]models.WebsitePage, error) {
	rows, err := s.db(ctx).Query(ctx, `SELECT id, crawl_job_id, collection_id, project_id, file_id, url, url_hash, title, depth,
		content_markdown, content_length, content_hash, meta_description, page_metadata, status, http_status_code,
		error_message, created_at, updated_at FROM website_pages WHERE collection_id=$1 ORDER BY created_at ASC`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("list website pages: %w", err)
	}
	defer rows.Close()

	var out []models.WebsitePage
	for rows.Next() {
		p, err := scanWebsitePage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateWebsitePage(ctx context.Context, p *models.WebsitePage) error {
	metadata, err := json.Marshal(p.PageMetadata)
	if err != nil {
		return fmt.Errorf("marshal website_page page_metadata: %w", err)
	}
	_, err = s.db(ctx).Exec(ctx, `INSERT INTO website_pages (id, crawl_job_id, collection_id, project_id, file_id, url, url_hash,
		title, depth, content_markdown, content_length, content_hash, meta_description, page_metadata, status,
		http_status_code, error_message, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		p.ID, p.CrawlJobID, p.CollectionID, p.ProjectID, p.FileID, p.URL, p.URLHash, p.Title, p.Depth, p.ContentMarkdown,
		p.ContentLength, p.ContentHash, p.MetaDescription, metadata, p.Status, p.HTTPStatusCode, p.ErrorMessage, p.CreatedAt, p.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("create website page: duplicate url hash for crawl job: %w", err)
	}
	if err != nil {
		return fmt.Errorf("create website page: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateWebsitePage(ctx context.Context, p *models.WebsitePage) error {
	metadata, err := json.Marshal(p.PageMetadata)
	if err != nil {
		return fmt.Errorf("marshal website_page page_metadata: %w", err)
	}
	tag, err := s.db(ctx).Exec(ctx, `UPDATE website_pages SET file_id=$3, title=$4, content_markdown=$5, content_length=$6,
		content_hash=$7, meta_description=$8, page_metadata=$9, status=$10, http_status_code=$11, error_message=$12, updated_at=$13
		WHERE project_id=$1 AND id=$2`,
		p.ProjectID, p.ID, p.FileID, p.Title, p.ContentMarkdown, p.ContentLength, p.ContentHash, p.MetaDescription, metadata,
		p.Status, p.HTTPStatusCode, p.ErrorMessage, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update website page: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{Entity: "website_page", Key: p.ID}
	}
	return nil
}

func scanWebsitePage(row rowScanner) (models.WebsitePage, error) {
	var p models.WebsitePage
	var metadata []byte
	if err := row.Scan(&p.ID, &p.CrawlJobID, &p.CollectionID, &p.ProjectID, &p.FileID, &p.URL, &p.URLHash, &p.Title, &p.Depth,
		&p.ContentMarkdown, &p.ContentLength, &p.ContentHash, &p.MetaDescription, &metadata, &p.Status, &p.HTTPStatusCode,
		&p.ErrorMessage, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return p, fmt.Errorf("scan website page: %w", err)
	}
	if err := unmarshalMap(metadata, &p.PageMetadata); err != nil {
		return p, err
	}
	return p, nil
}

// ── EmbeddingConfig ──────────────────────────────────────────

const embeddingConfigsDDL = `
CREATE TABLE IF NOT EXISTS embedding_configs (
	project_id  TEXT PRIMARY KEY,
	provider    TEXT NOT NULL,
	model       TEXT NOT NULL,
	dimensions  INT NOT NULL,
	batch_size  INT NOT NULL DEFAULT 32,
	api_key     TEXT NOT NULL DEFAULT '',
	base_url    TEXT NOT NULL DEFAULT '',
	is_active   BOOLEAN NOT NULL DEFAULT TRUE
);
`

func (s *PostgresStore) GetActiveEmbeddingConfig(ctx context.Context, projectID string) (*models.EmbeddingConfigRow, error) {
	row := s.db(ctx).QueryRow(ctx, `SELECT project_id, provider, model, dimensions, batch_size, api_key, base_url, is_active
		FROM embedding_configs WHERE project_id=$1 AND is_active=TRUE`, projectID)
	var cfg models.EmbeddingConfigRow
	err := row.Scan(&cfg.ProjectID, &cfg.Provider, &cfg.Model, &cfg.Dimensions, &cfg.BatchSize, &cfg.APIKey, &cfg.BaseURL, &cfg.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "embedding_config", Key: projectID}
	}
	if err != nil {
		return nil, fmt.Errorf("scan embedding config: %w", err)
	}
	return &cfg, nil
}

func (s *PostgresStore) UpsertEmbeddingConfig(ctx context.Context, cfg *models.EmbeddingConfigRow) error {
	_, err := s.db(ctx).Exec(ctx, `INSERT INTO embedding_configs (project_id, provider, model, dimensions, batch_size, api_key, base_url, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (project_id) DO UPDATE SET provider=$2, model=$3, dimensions=$4, batch_size=$5, api_key=$6, base_url=$7, is_active=$8`,
		cfg.ProjectID, cfg.Provider, cfg.Model, cfg.Dimensions, cfg.BatchSize, cfg.APIKey, cfg.BaseURL, cfg.IsActive)
	if err != nil {
		return fmt.Errorf("upsert embedding config: %w", err)
	}
	return nil
}

// ── Platform ─────────────────────────────────────────────────

const platformsDDL = `
CREATE TABLE IF NOT EXISTS platforms (
	id                      TEXT PRIMARY KEY,
	project_id              TEXT NOT NULL,
	type                    TEXT NOT NULL,
	api_key                 TEXT NOT NULL DEFAULT '',
	config                  JSONB NOT NULL DEFAULT '{}',
	is_active               BOOLEAN NOT NULL DEFAULT TRUE,
	ai_mode                 TEXT NOT NULL DEFAULT 'auto',
	agent_ids               TEXT[] NOT NULL DEFAULT '{}',
	logo_path               TEXT NOT NULL DEFAULT '',
	fallback_to_ai_timeout  INT NOT NULL DEFAULT 0,
	created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	deleted_at              TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_platforms_api_key ON platforms (api_key) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_platforms_project ON platforms (project_id) WHERE deleted_at IS NULL;
`

func (s *PostgresStore) GetPlatformByAPIKey(ctx context.Context, apiKey string) (*models.Platform, error) {
	row := s.db(ctx).QueryRow(ctx, `SELECT id, project_id, type, api_key, config, is_active, ai_mode, agent_ids, logo_path,
		fallback_to_ai_timeout, created_at, deleted_at FROM platforms WHERE api_key=$1 AND deleted_at IS NULL`, apiKey)
	p, err := scanPlatform(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "platform", Key: apiKey}
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) GetPlatform(ctx context.Context, projectID, id string) (*models.Platform, error) {
	row := s.db(ctx).QueryRow(ctx, `SELECT id, project_id, type, api_key, config, is_active, ai_mode, agent_ids, logo_path,
		fallback_to_ai_timeout, created_at, deleted_at FROM platforms WHERE project_id=$1 AND id=$2 AND deleted_at IS NULL`, projectID, id)
	p, err := scanPlatform(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "platform", Key: id}
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPlatform(row rowScanner) (models.Platform, error) {
	var p models.Platform
	var config []byte
	if err := row.Scan(&p.ID, &p.ProjectID, &p.Type, &p.APIKey, &config, &p.IsActive, &p.AIMode, &p.AgentIDs, &p.LogoPath,
		&p.FallbackToAITimeout, &p.CreatedAt, &p.DeletedAt); err != nil {
		return p, fmt.Errorf("scan platform: %w", err)
	}
	if err := unmarshalMap(config, &p.Config); err != nil {
		return p, err
	}
	return p, nil
}
