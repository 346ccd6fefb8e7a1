// Package ingestion implements the C3 Document Pipeline and the C5 QA
// Pipeline: for one uploaded file, load → extract → chunk → persist
// chunks → generate embeddings → mark status; for one Q/A pair, the same
// shape minus chunking.
package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/deskwise/deskwise/internal/config"
	"github.com/deskwise/deskwise/internal/embedding"
	"github.com/deskwise/deskwise/internal/errs"
	"github.com/deskwise/deskwise/internal/ingestion/parser"
	"github.com/deskwise/deskwise/internal/store"
	"github.com/deskwise/deskwise/internal/vectorstore"
	"github.com/deskwise/deskwise/pkg/models"
)

// DocumentProcessingError carries the failing pipeline step alongside the
// cause, so callers can tell "extract failed" from "embed failed" without
// string-matching the message (original_source/tgo-rag's
// document_processing_errors.py, supplemented into this expansion).
type DocumentProcessingError struct {
	Step  string
	Cause error
}

func (e *DocumentProcessingError) Error() string {
	return fmt.Sprintf("document processing failed at %s: %v", e.Step, e.Cause)
}

func (e *DocumentProcessingError) Unwrap() error { return e.Cause }

// Pipeline orchestrates the C3/C5 chunk→embed→upsert flow.
type Pipeline struct {
	store     store.Store
	resolver  *embedding.Resolver
	vectors   vectorstore.Driver
	chunkCfg  config.ChunkingConfig
}

func NewPipeline(s store.Store, resolver *embedding.Resolver, vectors vectorstore.Driver, chunkCfg config.ChunkingConfig) *Pipeline {
	return &Pipeline{store: s, resolver: resolver, vectors: vectors, chunkCfg: chunkCfg}
}

// ProcessFile runs the C3 pipeline for one uploaded File: load → extract
// → chunk → persist chunks → embed → mark status (spec §4.3).
func (p *Pipeline) ProcessFile(ctx context.Context, projectID, fileID, localPath string) error {
	f, err := p.store.GetFile(ctx, projectID, fileID)
	if err != nil {
		return err
	}
	if !f.CanTransitionTo(models.FileStatusProcessing) {
		return errs.Newf(errs.Conflict, "file %s cannot transition from %s to processing", fileID, f.Status)
	}

	f.Status = models.FileStatusProcessing
	if err := p.store.UpdateFile(ctx, f); err != nil {
		return err
	}

	text, err := parser.Extract(localPath, f.ContentType)
	if err != nil {
		return p.fail(ctx, f, &DocumentProcessingError{Step: "extract", Cause: err})
	}

	f.Status = models.FileStatusChunking
	if err := p.store.UpdateFile(ctx, f); err != nil {
		return err
	}
	chunks := ChunkText(text, p.chunkCfg.ChunkSize, p.chunkCfg.ChunkOverlap)
	if len(chunks) == 0 {
		return p.fail(ctx, f, &DocumentProcessingError{Step: "chunk", Cause: fmt.Errorf("no chunks produced")})
	}

	docs := make([]models.FileDocument, len(chunks))
	now := time.Now()
	for i, c := range chunks {
		docs[i] = models.FileDocument{
			ID:            uuid.NewString(),
			ProjectID:     projectID,
			FileID:        &f.ID,
			CollectionID:  f.CollectionID,
			Content:       c.Text,
			ContentLength: len(c.Text),
			TokenCount:    EstimateTokenCount(c.Text),
			ChunkID:       fmt.Sprintf("%s_chunk_%d", f.ID, c.Index),
			ChunkIndex:    c.Index,
			ContentType:   "paragraph",
			CreatedAt:     now,
		}
	}
	if err := p.store.CreateFileDocuments(ctx, docs); err != nil {
		return p.fail(ctx, f, &DocumentProcessingError{Step: "persist_chunks", Cause: err})
	}

	f.Status = models.FileStatusEmbedding
	if err := p.store.UpdateFile(ctx, f); err != nil {
		return err
	}
	if err := p.embedAndUpsert(ctx, projectID, docs); err != nil {
		return p.fail(ctx, f, &DocumentProcessingError{Step: "embed", Cause: err})
	}

	totalTokens := 0
	for _, d := range docs {
		totalTokens += d.TokenCount
	}

	f.Status = models.FileStatusCompleted
	f.DocumentCount = len(docs)
	f.TotalTokens = totalTokens
	f.UpdatedAt = time.Now()
	return p.store.UpdateFile(ctx, f)
}

// ProcessQAPair runs the C5 pipeline for one Q/A pair: compose embedding
// content, create document, embed, link — mirrors C3 but skips chunking
// (spec §4.5). The question_hash must already be set by the caller so
// CreateQAPair can enforce the (collection_id, question_hash) uniqueness.
func (p *Pipeline) ProcessQAPair(ctx context.Context, qa *models.QAPair) error {
	qa.Status = models.QAStatusProcessing
	if err := p.store.UpdateQAPair(ctx, qa); err != nil {
		return err
	}

	content := "问题: " + qa.Question + "\n\n答案: " + qa.Answer
	title := qa.Question
	if len(title) > 500 {
		title = title[:500]
	}
	doc := models.FileDocument{
		ID:            uuid.NewString(),
		ProjectID:     qa.ProjectID,
		CollectionID:  qa.CollectionID,
		Content:       content,
		ContentLength: len(content),
		ContentType:   "qa_pair",
		DocumentTitle: title,
		ChunkIndex:    0,
		Tags: map[string]any{
			"qa_pair_id":  qa.ID,
			"source_type": "qa",
			"category":    qa.Category,
			"subcategory": qa.Subcategory,
		},
		CreatedAt: time.Now(),
	}
	if err := p.store.CreateFileDocuments(ctx, []models.FileDocument{doc}); err != nil {
		return p.failQA(ctx, qa, err)
	}

	if err := p.embedAndUpsert(ctx, qa.ProjectID, []models.FileDocument{doc}); err != nil {
		return p.failQA(ctx, qa, err)
	}

	qa.DocumentID = doc.ID
	qa.Status = models.QAStatusProcessed
	qa.UpdatedAt = time.Now()
	return p.store.UpdateQAPair(ctx, qa)
}

func (p *Pipeline) embedAndUpsert(ctx context.Context, projectID string, docs []models.FileDocument) error {
	client, err := p.resolver.Resolve(ctx, projectID)
	if err != nil {
		return err
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := client.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed %d documents: %w", len(docs), err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("embed returned %d vectors for %d documents", len(vectors), len(docs))
	}

	vdocs := make([]vectorstore.Document, len(docs))
	for i, d := range docs {
		vdocs[i] = vectorstore.Document{
			ID:           d.ID,
			ProjectID:    projectID,
			CollectionID: d.CollectionID,
			Content:      d.Content,
			Embedding:    vectors[i],
		}
	}
	if err := p.vectors.UpsertBatch(ctx, projectID, vdocs); err != nil {
		return fmt.Errorf("upsert %d vectors: %w", len(vdocs), err)
	}

	log.Info().Str("project_id", projectID).Int("documents", len(docs)).Msg("ingestion: embedding complete")
	return nil
}

func (p *Pipeline) fail(ctx context.Context, f *models.File, cause error) error {
	f.Status = models.FileStatusFailed
	f.ErrorMessage = cause.Error()
	f.UpdatedAt = time.Now()
	if err := p.store.UpdateFile(ctx, f); err != nil {
		log.Error().Err(err).Str("file_id", f.ID).Msg("ingestion: failed to persist failure status")
	}
	return cause
}

func (p *Pipeline) failQA(ctx context.Context, qa *models.QAPair, cause error) error {
	qa.Status = models.QAStatusFailed
	qa.ErrorMessage = cause.Error()
	qa.UpdatedAt = time.Now()
	if err := p.store.UpdateQAPair(ctx, qa); err != nil {
		log.Error().Err(err).Str("qa_id", qa.ID).Msg("ingestion: failed to persist QA failure status")
	}
	return cause
}
