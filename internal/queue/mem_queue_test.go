package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemQueue_EnqueueReceiveDelete(t *testing.T) {
	q := NewMemQueue(100 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "job-1"))

	msgs, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "job-1", msgs[0].JobID)
	assert.Equal(t, 1, msgs[0].ReceiveCount)

	require.NoError(t, q.Delete(ctx, msgs[0].ReceiptHandle))

	msgs, err = q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestMemQueue_VisibilityTimeoutRedelivers(t *testing.T) {
	q := NewMemQueue(20 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "job-2"))

	first, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, first, 1)

	time.Sleep(30 * time.Millisecond)

	second, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "job-2", second[0].JobID)
	assert.Equal(t, 2, second[0].ReceiveCount)
}

func TestMemQueue_ChangeVisibilityExtendsHold(t *testing.T) {
	q := NewMemQueue(20 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "job-3"))
	msgs, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	require.NoError(t, q.ChangeVisibility(ctx, msgs[0].ReceiptHandle, 200*time.Millisecond))

	time.Sleep(30 * time.Millisecond)
	again, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, again, "message should still be hidden after visibility was extended")
}

func TestMemQueue_DeleteUnknownHandleErrors(t *testing.T) {
	q := NewMemQueue(time.Second)
	err := q.Delete(context.Background(), "nonexistent")
	require.Error(t, err)
}

func TestMemQueue_ReceiveBlocksUntilWaitTimeElapses(t *testing.T) {
	q := NewMemQueue(time.Second)
	start := time.Now()
	msgs, err := q.Receive(context.Background(), 1, 80*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}
