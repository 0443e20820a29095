package task

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBroker_PublishConsume(t *testing.T) {
	t.Parallel()

	q := NewMemoryBroker(2, nil)
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, Message{ID: "a", Type: "t"}))
	require.NoError(t, q.Publish(ctx, Message{ID: "b", Type: "t"}))
	assert.Equal(t, 2, q.Len())

	err := q.Publish(ctx, Message{ID: "c", Type: "t"})
	assert.ErrorIs(t, err, ErrQueueFull)

	d, err := q.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", d.Message().ID)
	assert.NoError(t, d.Ack(ctx))
}

func TestMemoryBroker_ConsumeHonoursContext(t *testing.T) {
	t.Parallel()

	q := NewMemoryBroker(1, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Consume(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryBroker_Close(t *testing.T) {
	t.Parallel()

	q := NewMemoryBroker(1, nil)
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	assert.ErrorIs(t, q.Publish(context.Background(), Message{ID: "a"}), ErrQueueClosed)

	_, err := q.Consume(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestMemoryResultBackend(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewMemoryResultBackend(time.Hour)
	b.now = func() time.Time { return now }

	_, err := b.GetState(ctx, "missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	require.NoError(t, b.SetState(ctx, StateRecord{TaskID: "t1", State: StateSuccess}))

	rec, err := b.GetState(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, rec.State)
	assert.Equal(t, now, rec.UpdatedAt)

	now = now.Add(time.Hour)
	_, err = b.GetState(ctx, "t1")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestMemoryResultBackend_WriteDuringExpiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewMemoryResultBackend(time.Hour)
	b.now = func() time.Time { return clock }

	require.NoError(t, b.SetState(ctx, StateRecord{TaskID: "t1", State: StatePending}))
	clock = clock.Add(time.Hour)

	// Land a write between the expiry check and the delete.
	written := false
	b.now = func() time.Time {
		if !written {
			written = true
			assert.NoError(t, b.SetState(ctx, StateRecord{TaskID: "t1", State: StateSuccess}))
		}
		return clock
	}

	_, err := b.GetState(ctx, "t1")
	assert.ErrorIs(t, err, ErrTaskNotFound, "the stale read still misses")

	rec, err := b.GetState(ctx, "t1")
	require.NoError(t, err, "the fresh write survives")
	assert.Equal(t, StateSuccess, rec.State)
}

func TestStateKnown(t *testing.T) {
	t.Parallel()

	for _, s := range []State{StatePending, StateStarted, StateSuccess, StateFailure} {
		assert.True(t, s.Known(), s)
	}
	assert.False(t, State("RETRY").Known())
	assert.False(t, State("").Known())
}
