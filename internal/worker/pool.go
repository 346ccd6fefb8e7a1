package worker

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/deskwise/deskwise/internal/config"
)

// Handler processes one job's payload. Returning an error only logs; the
// job is not retried (at-most-once, matching the queue's BLPOP/channel
// semantics — neither acks back onto the queue on failure).
type Handler func(ctx context.Context, payload []byte) error

// Pool runs a fixed number of goroutines draining a Queue and dispatching
// each Job by its Type tag to a registered Handler (§5's bounded worker
// pool).
type Pool struct {
	queue    Queue
	handlers map[string]Handler
	mu       sync.RWMutex
	size     int
}

// NewQueue picks RedisQueue when cfg.Addr is set and reachable, otherwise
// falls back to MemoryQueue — the zero-config default.
func NewQueue(cfg config.RedisConfig, key string) Queue {
	if cfg.Addr == "" {
		return NewMemoryQueue(0)
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, DB: cfg.DB})
	q, err := NewRedisQueue(client, key)
	if err != nil {
		logRedisUnavailable(key, err)
		return NewMemoryQueue(0)
	}
	return q
}

// NewPool builds a pool with the given concurrency, draining queue.
func NewPool(queue Queue, size int) *Pool {
	if size <= 0 {
		size = 4
	}
	return &Pool{queue: queue, handlers: make(map[string]Handler), size: size}
}

// Register binds a Handler to a job type tag. Call before Start.
func (p *Pool) Register(jobType string, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[jobType] = h
}

// Enqueue pushes a job onto the underlying queue.
func (p *Pool) Enqueue(ctx context.Context, job Job) error {
	return p.queue.Enqueue(ctx, job)
}

// Start runs p.size worker goroutines until ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.runWorker(ctx, workerID)
		}(i)
	}
	log.Info().Int("pool_size", p.size).Msg("worker: pool started")
	<-ctx.Done()
	wg.Wait()
	log.Info().Msg("worker: pool stopped")
}

func (p *Pool) runWorker(ctx context.Context, workerID int) {
	for {
		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Int("worker_id", workerID).Msg("worker: dequeue failed")
			continue
		}
		p.dispatch(ctx, job)
	}
}

func (p *Pool) dispatch(ctx context.Context, job Job) {
	p.mu.RLock()
	h, ok := p.handlers[job.Type]
	p.mu.RUnlock()
	if !ok {
		log.Warn().Str("job_type", job.Type).Msg("worker: no handler registered, dropping job")
		return
	}
	if err := h(ctx, job.Payload); err != nil {
		log.Warn().Err(err).Str("job_type", job.Type).Msg("worker: job handler failed")
	}
}
