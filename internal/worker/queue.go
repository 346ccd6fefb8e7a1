// Package worker runs the background task pool (§5): a bounded set of
// goroutines draining a job queue, plus a periodic maintenance sweep.
// Grounded on
// _examples/niski84-the-hive/internal/queue/{queue,redis_queue}.go.
package worker

import (
	"context"
	"encoding/json"
	"time"
)

// Job is a unit of background work: a type tag plus an opaque payload.
type Job struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue is the job transport the Pool drains. RedisQueue and
// MemoryQueue both satisfy it so the Pool is transport-agnostic.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	// Dequeue blocks until a job is available or ctx is cancelled.
	Dequeue(ctx context.Context) (Job, error)
}

// Job type tags dispatched by Pool.
const (
	JobTypeCrawlPage      = "crawl_page"
	JobTypeProcessDocument = "process_document"
	JobTypeGenerateQA     = "generate_qa"
)
