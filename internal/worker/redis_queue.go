package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisQueue implements Queue on a Redis list via RPUSH/BLPOP, grounded
// on _examples/niski84-the-hive/internal/queue/redis_queue.go.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue builds a Redis-backed queue and verifies connectivity.
func NewRedisQueue(client *redis.Client, key string) (*RedisQueue, error) {
	if key == "" {
		key = "deskwise:jobs"
	}
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("worker: ping redis: %w", err)
	}
	return &RedisQueue{client: client, key: key}, nil
}

func (r *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("worker: marshal job: %w", err)
	}
	if err := r.client.RPush(ctx, r.key, data).Err(); err != nil {
		return fmt.Errorf("worker: rpush: %w", err)
	}
	return nil
}

func (r *RedisQueue) Dequeue(ctx context.Context) (Job, error) {
	type result struct {
		val []string
		err error
	}
	resultChan := make(chan result, 1)
	go func() {
		val, err := r.client.BLPop(ctx, 0, r.key).Result()
		resultChan <- result{val: val, err: err}
	}()

	select {
	case <-ctx.Done():
		return Job{}, ctx.Err()
	case res := <-resultChan:
		if res.err != nil {
			if res.err == redis.Nil {
				return Job{}, ctx.Err()
			}
			return Job{}, fmt.Errorf("worker: blpop: %w", res.err)
		}
		if len(res.val) < 2 {
			return Job{}, fmt.Errorf("worker: unexpected blpop result shape")
		}
		var job Job
		if err := json.Unmarshal([]byte(res.val[1]), &job); err != nil {
			return Job{}, fmt.Errorf("worker: unmarshal job: %w", err)
		}
		return job, nil
	}
}

var _ Queue = (*RedisQueue)(nil)

func logRedisUnavailable(key string, err error) {
	log.Warn().Err(err).Str("key", key).Msg("worker: redis queue unavailable, falling back to in-memory queue")
}
