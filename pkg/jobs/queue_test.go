package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	q := New[string]("test", func(_ context.Context, job Job[string]) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		assert.Equal(t, "payload", job.Payload)
		assert.Equal(t, 2, job.Attempt)
		return nil
	}, Config{Workers: 1, MaxRetries: 3, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job[string]{ID: "1", Payload: "payload"}))
	require.Eventually(t, func() bool { return calls.Load() == 3 }, time.Second, time.Millisecond)
}

func TestQueueGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	q := New[int]("test", func(context.Context, Job[int]) error {
		calls.Add(1)
		return errors.New("permanent")
	}, Config{Workers: 1, MaxRetries: 1, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job[int]{ID: "1"}))
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(2), calls.Load())
}

func TestQueueEnqueueLifecycle(t *testing.T) {
	block := make(chan struct{})
	q := New[int]("test", func(ctx context.Context, _ Job[int]) error {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	}, Config{Workers: 1, BufferSize: 1})

	assert.ErrorIs(t, q.Enqueue(Job[int]{}), ErrNotStarted)

	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job[int]{ID: "busy"}))
	require.Eventually(t, func() bool { return len(q.jobs) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, q.Enqueue(Job[int]{ID: "buffered"}))
	assert.ErrorIs(t, q.Enqueue(Job[int]{ID: "overflow"}), ErrFull)

	close(block)
	q.Stop()
	assert.ErrorIs(t, q.Enqueue(Job[int]{}), ErrStopped)
}
