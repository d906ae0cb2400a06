// Package execution implements the control plane: the FIFO queue, the
// single-worker execution manager, the progress tracker and its chunked
// output protocol, and the pipeline runner.
package execution

import (
	"sync"

	"github.com/google/uuid"
)

// QueueUpdate reports an execution's current place in the queue; position 0
// means "will run next".
type QueueUpdate struct {
	ExecutionID uuid.UUID
	Position    int
}

// Job is one unit of queued work: an id and a deferred, once-only handler.
type Job struct {
	ID      uuid.UUID
	Handler func()
}

// Queue is an in-memory FIFO of pending executions that broadcasts position
// updates to every subscriber. It has no persistence: state is lost on
// process restart, by design (spec.md Non-goals).
type Queue struct {
	mu   sync.Mutex
	jobs []*Job

	subsMu sync.Mutex
	subs   []chan QueueUpdate
}

// NewQueue constructs an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue pushes job to the tail and returns a fresh subscription to
// position broadcasts. The new subscriber immediately observes the
// post-enqueue positions, including its own.
func (q *Queue) Enqueue(job *Job) <-chan QueueUpdate {
	ch := make(chan QueueUpdate, 64)
	q.subsMu.Lock()
	q.subs = append(q.subs, ch)
	q.subsMu.Unlock()

	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()

	q.broadcastPositions()
	return ch
}

// Unsubscribe removes a subscription created by Enqueue and closes it. Call
// once the subscriber no longer needs updates (e.g. its execution reached a
// terminal state).
func (q *Queue) Unsubscribe(ch <-chan QueueUpdate) {
	q.subsMu.Lock()
	defer q.subsMu.Unlock()
	for i, s := range q.subs {
		if s == ch {
			q.subs = append(q.subs[:i], q.subs[i+1:]...)
			close(s)
			return
		}
	}
}

// Dequeue pops the head job, if any. If the queue is non-empty afterward,
// positions are republished so every remaining job observes its new index.
func (q *Queue) Dequeue() (*Job, bool) {
	q.mu.Lock()
	if len(q.jobs) == 0 {
		q.mu.Unlock()
		return nil, false
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	hasMore := len(q.jobs) > 0
	q.mu.Unlock()

	if hasMore {
		q.broadcastPositions()
	}
	return job, true
}

// broadcastPositions sends one QueueUpdate per remaining entry, in
// head-to-tail order. Sends are non-blocking: a lagging or inactive
// subscriber silently misses updates, per the documented best-effort
// broadcast semantics — the queue's internal slice remains authoritative.
func (q *Queue) broadcastPositions() {
	q.mu.Lock()
	jobs := make([]*Job, len(q.jobs))
	copy(jobs, q.jobs)
	q.mu.Unlock()

	q.subsMu.Lock()
	subs := make([]chan QueueUpdate, len(q.subs))
	copy(subs, q.subs)
	q.subsMu.Unlock()

	for i, j := range jobs {
		update := QueueUpdate{ExecutionID: j.ID, Position: i}
		for _, s := range subs {
			select {
			case s <- update:
			default:
			}
		}
	}
}
