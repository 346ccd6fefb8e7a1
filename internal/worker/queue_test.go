package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskwise/deskwise/internal/worker"
)

func TestMemoryQueueRoundTrips(t *testing.T) {
	q := worker.NewMemoryQueue(4)
	ctx := context.Background()

	job := worker.Job{Type: worker.JobTypeCrawlPage, Payload: []byte(`{"url":"https://example.com"}`), CreatedAt: time.Now()}
	require.NoError(t, q.Enqueue(ctx, job))

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, worker.JobTypeCrawlPage, got.Type)
	assert.JSONEq(t, `{"url":"https://example.com"}`, string(got.Payload))
}

func TestMemoryQueueDequeueRespectsContextCancellation(t *testing.T) {
	q := worker.NewMemoryQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryQueuePreservesFIFOOrder(t *testing.T) {
	q := worker.NewMemoryQueue(4)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, worker.Job{Type: "a"}))
	require.NoError(t, q.Enqueue(ctx, worker.Job{Type: "b"}))

	first, err := q.Dequeue(ctx)
	require.NoError(t, err)
	second, err := q.Dequeue(ctx)
	require.NoError(t, err)

	assert.Equal(t, "a", first.Type)
	assert.Equal(t, "b", second.Type)
}
