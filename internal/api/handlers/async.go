package handlers

import (
	"context"

	"github.com/rs/zerolog/log"
)

// backgroundContext detaches a long-running crawl/ingestion task from the
// originating request's context, which is cancelled as soon as the HTTP
// handler returns.
func backgroundContext() context.Context {
	return context.Background()
}

func logCrawlFailure(projectID, jobID string, err error) {
	log.Error().Err(err).Str("project_id", projectID).Str("crawl_job_id", jobID).Msg("crawl: job failed")
}
