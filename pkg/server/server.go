// Package server wires every C1-C9 component into one running process:
// store, vector driver, embedding resolver, ingestion pipeline, crawl
// engine, retrieval service, inbox dispatcher, channel fabric adapter,
// assignment engine, and the background worker pool, then mounts the
// §6 HTTP surface on top.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/deskwise/deskwise/internal/api"
	"github.com/deskwise/deskwise/internal/api/handlers"
	"github.com/deskwise/deskwise/internal/assignment"
	"github.com/deskwise/deskwise/internal/channelfabric"
	"github.com/deskwise/deskwise/internal/config"
	"github.com/deskwise/deskwise/internal/crawl"
	"github.com/deskwise/deskwise/internal/embedding"
	"github.com/deskwise/deskwise/internal/inbox"
	"github.com/deskwise/deskwise/internal/ingestion"
	"github.com/deskwise/deskwise/internal/retrieval"
	"github.com/deskwise/deskwise/internal/store"
	"github.com/deskwise/deskwise/internal/vectorstore"
	"github.com/deskwise/deskwise/internal/worker"
)

// Server holds every initialized component plus the background tasks
// that run alongside the HTTP handler.
type Server struct {
	Handler http.Handler
	Store   store.Store
	Config  *config.Config

	Jobs        *worker.Pool
	Maintenance *worker.Maintenance
	Channel     *channelfabric.Adapter

	cancel context.CancelFunc
}

// New loads configuration from the environment and builds a ready Server.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig builds the server from an explicit configuration —
// matching the teacher's two-entrypoint shape (New delegates to
// NewWithConfig) minus the OSS/Pro store-injection split this domain
// doesn't need.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	var dataStore store.Store
	if cfg.Database.URL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		dataStore = pg
		log.Info().Msg("store: postgres initialized")
	} else {
		dataStore = store.NewMemoryStore()
		log.Info().Msg("store: in-memory initialized (zero-config default)")
	}

	vectors, err := vectorstore.NewDriver(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init vector store: %w", err)
	}
	log.Info().Str("kind", vectors.Kind()).Msg("vectorstore: driver initialized")

	resolver := embedding.NewResolver(dataStore)
	pipeline := ingestion.NewPipeline(dataStore, resolver, vectors, cfg.Chunking)
	crawlEngine := crawl.NewEngine(dataStore, pipeline, cfg.Storage.UploadDir)
	retrievalSvc := retrieval.NewService(dataStore, resolver, vectors, cfg.Retrieval)
	dispatcher := inbox.NewDispatcher(dataStore)
	channelAdapter := channelfabric.NewAdapter(dataStore, cfg.ChannelFabric)
	assignmentEngine := assignment.NewEngine(dataStore, channelAdapter, cfg.Assignment, cfg.Routing)

	queue := worker.NewQueue(cfg.Redis, cfg.Worker.QueueKey)
	jobs := worker.NewPool(queue, cfg.Worker.PoolSize)
	jobs.Register(worker.JobTypeProcessDocument, processDocumentHandler(pipeline))
	jobs.Register(worker.JobTypeCrawlPage, crawlPageHandler(crawlEngine))

	maintenance := worker.NewMaintenance(dataStore, cfg.Worker.MaintenanceInterval, cfg.Worker.SoftDeleteRetention)

	h := handlers.New(dataStore, cfg, resolver, pipeline, crawlEngine, retrievalSvc, vectors, dispatcher, assignmentEngine, channelAdapter, jobs)
	router := api.NewRouter(cfg, h)

	runCtx, cancel := context.WithCancel(ctx)
	go jobs.Start(runCtx)
	go maintenance.Start(runCtx)

	return &Server{
		Handler:     router,
		Store:       dataStore,
		Config:      cfg,
		Jobs:        jobs,
		Maintenance: maintenance,
		Channel:     channelAdapter,
		cancel:      cancel,
	}, nil
}

// Shutdown stops the background worker pool and maintenance sweep.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.Channel != nil {
		return s.Channel.Close()
	}
	return nil
}

func processDocumentHandler(pipeline *ingestion.Pipeline) worker.Handler {
	return func(ctx context.Context, payload []byte) error {
		var job struct {
			ProjectID string `json:"project_id"`
			FileID    string `json:"file_id"`
			Path      string `json:"path"`
		}
		if err := json.Unmarshal(payload, &job); err != nil {
			return err
		}
		return pipeline.ProcessFile(ctx, job.ProjectID, job.FileID, job.Path)
	}
}

func crawlPageHandler(engine *crawl.Engine) worker.Handler {
	return func(ctx context.Context, payload []byte) error {
		var job struct {
			ProjectID string `json:"project_id"`
			JobID     string `json:"job_id"`
		}
		if err := json.Unmarshal(payload, &job); err != nil {
			return err
		}
		return engine.RunCrawlJob(ctx, job.ProjectID, job.JobID)
	}
}
