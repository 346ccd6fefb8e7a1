package worker

import "context"

// MemoryQueue is the zero-config fallback queue: a buffered channel
// (1024 slots by default); Enqueue blocks while it is full. Used when
// config.RedisConfig.Addr is empty or Redis is unreachable.
type MemoryQueue struct {
	ch chan Job
}

// NewMemoryQueue creates an in-memory queue with the given buffer size.
func NewMemoryQueue(buffer int) *MemoryQueue {
	if buffer <= 0 {
		buffer = 1024
	}
	return &MemoryQueue{ch: make(chan Job, buffer)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) error {
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (Job, error) {
	select {
	case job := <-q.ch:
		return job, nil
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

var _ Queue = (*MemoryQueue)(nil)
