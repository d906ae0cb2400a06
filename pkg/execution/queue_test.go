package execution

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, ch <-chan QueueUpdate) []QueueUpdate {
	t.Helper()
	var updates []QueueUpdate
	for {
		select {
		case u, ok := <-ch:
			if !ok {
				return updates
			}
			updates = append(updates, u)
		case <-time.After(20 * time.Millisecond):
			return updates
		}
	}
}

func TestQueue_EnqueuePublishesPositions(t *testing.T) {
	q := NewQueue()
	id1, id2 := uuid.New(), uuid.New()

	sub1 := q.Enqueue(&Job{ID: id1})
	updates1 := drain(t, sub1)
	require.Len(t, updates1, 1)
	assert.Equal(t, id1, updates1[0].ExecutionID)
	assert.Equal(t, 0, updates1[0].Position)

	sub2 := q.Enqueue(&Job{ID: id2})
	// sub2 observes both entries' current positions.
	updates2 := drain(t, sub2)
	require.Len(t, updates2, 2)
	assert.Equal(t, 0, updates2[0].Position)
	assert.Equal(t, 1, updates2[1].Position)

	// sub1 also observes the republish triggered by the second enqueue.
	more1 := drain(t, sub1)
	require.Len(t, more1, 2)
}

func TestQueue_DequeueFIFOAndRepublish(t *testing.T) {
	q := NewQueue()
	id1, id2, id3 := uuid.New(), uuid.New(), uuid.New()
	q.Enqueue(&Job{ID: id1})
	q.Enqueue(&Job{ID: id2})
	sub3 := q.Enqueue(&Job{ID: id3})
	drain(t, sub3)

	job, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, id1, job.ID)

	updates := drain(t, sub3)
	require.Len(t, updates, 2)
	assert.Equal(t, id2, updates[0].ExecutionID)
	assert.Equal(t, 0, updates[0].Position)
	assert.Equal(t, id3, updates[1].ExecutionID)
	assert.Equal(t, 1, updates[1].Position)
}

func TestQueue_DequeueEmpty(t *testing.T) {
	q := NewQueue()
	_, ok := q.Dequeue()
	assert.False(t, ok)
}

func TestQueue_DequeueLastEntryDoesNotRepublish(t *testing.T) {
	q := NewQueue()
	id1 := uuid.New()
	sub := q.Enqueue(&Job{ID: id1})
	drain(t, sub)

	job, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, id1, job.ID)

	// Queue is now empty; no further broadcast should occur.
	updates := drain(t, sub)
	assert.Empty(t, updates)
}

func TestQueue_Unsubscribe(t *testing.T) {
	q := NewQueue()
	sub := q.Enqueue(&Job{ID: uuid.New()})
	drain(t, sub)
	q.Unsubscribe(sub)
	_, open := <-sub
	assert.False(t, open)
}
