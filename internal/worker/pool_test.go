package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskwise/deskwise/internal/worker"
)

func TestPoolDispatchesJobToRegisteredHandler(t *testing.T) {
	q := worker.NewMemoryQueue(4)
	pool := worker.NewPool(q, 2)

	var mu sync.Mutex
	var seen []string
	done := make(chan struct{})

	pool.Register(worker.JobTypeGenerateQA, func(ctx context.Context, payload []byte) error {
		mu.Lock()
		seen = append(seen, string(payload))
		mu.Unlock()
		close(done)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	go pool.Start(ctx)

	require.NoError(t, pool.Enqueue(ctx, worker.Job{Type: worker.JobTypeGenerateQA, Payload: []byte(`"collection-1"`)}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked in time")
	}
	cancel()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{`"collection-1"`}, seen)
}

func TestPoolDropsJobWithNoRegisteredHandler(t *testing.T) {
	q := worker.NewMemoryQueue(4)
	pool := worker.NewPool(q, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go pool.Start(ctx)
	defer cancel()

	require.NoError(t, pool.Enqueue(ctx, worker.Job{Type: "unregistered"}))
	time.Sleep(50 * time.Millisecond) // no handler crash, nothing to assert beyond survival
}
