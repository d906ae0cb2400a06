package execution

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/aqueducts-executor/pkg/protocol"
)

// dequeuePollInterval is the backoff used by the worker loop when the queue
// is empty, mirroring the source's fixed 100ms poll.
const dequeuePollInterval = 100 * time.Millisecond

// HandlerFactory builds the deferred unit of work for a submitted
// execution. It must observe ctx.Done() at its suspension points so
// cancellation can take effect; it must send every outbound frame it
// produces to out and must not close out itself (the manager does that).
type HandlerFactory func(ctx context.Context, id uuid.UUID, out chan<- protocol.Envelope)

// Manager is the single-worker execution scheduler: FIFO queueing via
// Queue, one job running at a time via a binary semaphore, and a
// mutex-guarded map of live cancel funcs keyed by execution id.
//
// Unlike a cancellation-token design, Go's context.CancelFunc closes over
// the job's own context directly: calling Cancel trips the same ctx the
// handler observes, whether the job is still queued or already running.
// This removes the need for the "pre-cancelled token" race handling a
// separate-token design requires — cancelling a queued job simply means the
// worker later spawns a handler whose ctx is already done.
type Manager struct {
	queue *Queue
	sem   chan struct{}
	log   *slog.Logger

	mu     sync.Mutex
	cancel map[uuid.UUID]context.CancelFunc

	wg sync.WaitGroup
}

// NewManager constructs a Manager bound to queue.
func NewManager(queue *Queue, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		queue:  queue,
		sem:    make(chan struct{}, 1),
		log:    log,
		cancel: make(map[uuid.UUID]context.CancelFunc),
	}
}

// Submit allocates an id and cancel func, enqueues the job built from
// factory, and returns the id plus the receive ends of the queue-position
// broadcast and the per-execution output channel.
func (m *Manager) Submit(factory HandlerFactory) (uuid.UUID, <-chan QueueUpdate, <-chan protocol.Envelope) {
	id := protocol.NewExecutionID()
	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	m.cancel[id] = cancel
	m.mu.Unlock()

	out := make(chan protocol.Envelope, 16)
	job := &Job{
		ID: id,
		Handler: func() {
			defer close(out)
			factory(ctx, id, out)
		},
	}
	updates := m.queue.Enqueue(job)
	return id, updates, out
}

// Cancel trips the execution's cancel func and removes it from the map.
// Cancelling an unknown id is a no-op, logged at warn level. Idempotent.
func (m *Manager) Cancel(id uuid.UUID) {
	m.mu.Lock()
	cancel, ok := m.cancel[id]
	if ok {
		delete(m.cancel, id)
	}
	m.mu.Unlock()

	if !ok {
		m.log.Warn("cancel requested for unknown or already-finished execution", "execution_id", id)
		return
	}
	cancel()
}

// Start launches the worker loop in its own goroutine and returns at once;
// the loop runs until ctx is cancelled. Call Wait to block until the loop
// and the in-flight job (if any) have returned.
func (m *Manager) Start(ctx context.Context) {
	m.wg.Add(1)
	go m.run(ctx)
}

// Wait blocks until the worker loop and any spawned job handler return.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case m.sem <- struct{}{}:
		}

		job, ok := m.queue.Dequeue()
		if !ok {
			<-m.sem
			select {
			case <-time.After(dequeuePollInterval):
			case <-ctx.Done():
				return
			}
			continue
		}

		m.wg.Add(1)
		go m.runJob(job)
	}
}

func (m *Manager) runJob(job *Job) {
	defer m.wg.Done()
	defer func() {
		<-m.sem
		m.mu.Lock()
		delete(m.cancel, job.ID)
		m.mu.Unlock()
	}()
	job.Handler()
}
