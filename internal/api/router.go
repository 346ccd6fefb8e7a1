package api

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/deskwise/deskwise/internal/api/handlers"
	"github.com/deskwise/deskwise/internal/api/middleware"
	"github.com/deskwise/deskwise/internal/config"
)

const serviceVersion = "0.1.0"

// NewRouter mounts the §6 HTTP surface on top of h: collections, files,
// websites, QA pairs, embedding configs, document search, routing, and
// the platform/WuKongIM webhooks.
func NewRouter(cfg *config.Config, h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Logger)

	corsOrigins := parseCORSOrigins()
	isWildcard := len(corsOrigins) == 1 && corsOrigins[0] == "*"
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Project-Id", "X-Request-Id", "X-API-Key"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: !isWildcard,
		MaxAge:           300,
	}))

	apiKeyAuth := middleware.NewAPIKeyAuth()
	r.Use(apiKeyAuth.Middleware)
	r.Use(middleware.ProjectExtractor)

	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/collections", func(r chi.Router) {
			r.Get("/", h.ListCollections)
			r.Post("/", h.CreateCollection)
			r.Route("/{id}", func(r chi.Router) {
				r.Put("/", h.UpdateCollection)
				r.Delete("/", h.DeleteCollection)
			})
		})

		r.Route("/files", func(r chi.Router) {
			r.Get("/", h.ListFiles)
			r.Post("/", h.UploadFile)
			r.Post("/batch", h.BatchUploadFiles)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetFile)
				r.Delete("/", h.DeleteFile)
				r.Get("/download", h.DownloadFile)
			})
		})

		r.Post("/documents/search", h.SearchDocuments)

		r.Route("/websites", func(r chi.Router) {
			r.Route("/crawl", func(r chi.Router) {
				r.Post("/", h.CreateCrawlJob)
				r.Route("/{job_id}", func(r chi.Router) {
					r.Get("/", h.GetCrawlJob)
					r.Post("/cancel", h.CancelCrawlJob)
					r.Post("/pages", h.AddCrawlPage)
				})
			})
			r.Route("/pages", func(r chi.Router) {
				r.Get("/", h.ListCrawlPages)
				r.Post("/{page_id}/crawl-deeper", h.CrawlDeeper)
			})
		})

		r.Route("/qa-pairs", func(r chi.Router) {
			r.Get("/", h.ListQAPairs)
			r.Post("/", h.CreateQAPair)
			r.Post("/batch", h.BatchCreateQAPairs)
			r.Post("/import", h.ImportQAPairs)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetQAPair)
				r.Put("/", h.UpdateQAPair)
				r.Delete("/", h.DeleteQAPair)
			})
		})

		r.Route("/embedding-configs", func(r chi.Router) {
			r.Post("/batch-sync", h.BatchSyncEmbeddingConfig)
			r.Get("/{project_id}", h.GetEmbeddingConfig)
		})

		r.Route("/routing", func(r chi.Router) {
			r.Post("/transfer", h.TransferToStaff)
			r.Post("/queue/{visitor_id}/cancel", h.CancelQueuedVisitor)
			r.Post("/staff/{staff_id}/assign-next", h.AssignFromQueue)
		})

		r.Route("/platforms", func(r chi.Router) {
			r.Get("/callback/{api_key}", h.PlatformCallback)
			r.Post("/callback/{api_key}", h.PlatformCallback)
		})
	})

	r.Route("/integrations/wukongim", func(r chi.Router) {
		r.Post("/webhook", h.WuKongIMWebhook)
	})

	return r
}

func parseCORSOrigins() []string {
	originsEnv := os.Getenv("DESKWISE_CORS_ORIGINS")
	if originsEnv == "" {
		return []string{"*"}
	}
	var origins []string
	for _, o := range strings.Split(originsEnv, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy", "service": "deskwise"})
}

func versionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"version": serviceVersion, "service": "deskwise"})
}
