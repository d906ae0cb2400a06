package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/aqueducts-executor/pkg/execution"
	"github.com/codeready-toolchain/aqueducts-executor/pkg/protocol"
)

// Sender writes one outbound frame to the connection. Implementations must
// be safe for concurrent use: the queue forwarder and the output forwarder
// both call it from their own goroutines.
type Sender func(protocol.Envelope) error

// Handler is one instance per inbound connection. It owns no socket itself
// (that lives in pkg/api, or in pkg/coordination in managed mode); it is
// driven by HandleFrame for every inbound text frame and writes outbound
// frames through send.
type Handler struct {
	manager *execution.Manager
	queue   *execution.Queue
	runner  *execution.Runner
	send    Sender
	log     *slog.Logger

	mu     sync.Mutex
	states map[uuid.UUID]ExecutionState

	wg sync.WaitGroup
}

// NewHandler builds a Handler bound to the shared manager/queue/runner and
// writing outbound frames through send.
func NewHandler(manager *execution.Manager, queue *execution.Queue, runner *execution.Runner, send Sender, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		manager: manager,
		queue:   queue,
		runner:  runner,
		send:    send,
		log:     log,
		states:  make(map[uuid.UUID]ExecutionState),
	}
}

// HandleFrame decodes and dispatches one inbound text frame. A frame that
// fails to decode is logged and dropped; the session continues (spec.md §7.1).
func (h *Handler) HandleFrame(raw []byte) {
	env, err := protocol.Decode(raw)
	if err != nil {
		h.log.Warn("dropping unparseable frame", "error", err)
		return
	}
	switch env.Type {
	case protocol.TypeExecutionRequest:
		h.handleExecutionRequest(*env.Pipeline)
	case protocol.TypeCancelRequest:
		h.handleCancelRequest(*env.ExecutionID)
	default:
		h.log.Warn("dropping frame of unexpected type on this side of the connection", "type", env.Type)
	}
}

func (h *Handler) setState(id uuid.UUID, s ExecutionState) {
	h.mu.Lock()
	h.states[id] = s
	h.mu.Unlock()
}

// State reports the last known lifecycle state of an execution submitted on
// this session, for observability and tests.
func (h *Handler) State(id uuid.UUID) (ExecutionState, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.states[id]
	return s, ok
}

func (h *Handler) handleExecutionRequest(pipeline protocol.Aqueduct) {
	if err := pipeline.Validate(); err != nil {
		id := protocol.NewExecutionID()
		h.setState(id, StateFailed)
		h.mustSend(protocol.ExecutionResponse(id))
		h.mustSend(protocol.ExecutionError(id, fmt.Sprintf("invalid pipeline: %v", err)))
		return
	}

	total := execution.TotalSteps(pipeline)
	id, queueUpdates, out := h.manager.Submit(func(ctx context.Context, id uuid.UUID, out chan<- protocol.Envelope) {
		tracker := execution.NewTracker(id, out, total, h.log)
		err := h.runner.Run(ctx, pipeline, tracker)
		switch {
		case ctx.Err() != nil:
			h.log.Info("execution cancelled", "execution_id", id)
		case err != nil:
			out <- protocol.ExecutionError(id, err.Error())
		default:
			out <- protocol.ExecutionSucceeded(id)
		}
	})
	h.setState(id, StateQueued)

	if !h.mustSend(protocol.ExecutionResponse(id)) {
		return
	}

	h.wg.Add(2)
	go h.forwardQueueUpdates(id, queueUpdates)
	go h.forwardOutput(id, out, queueUpdates)
}

func (h *Handler) handleCancelRequest(id uuid.UUID) {
	h.setState(id, StateCancelling)
	h.manager.Cancel(id)
	h.mustSend(protocol.CancelResponse(id))
}

func (h *Handler) forwardQueueUpdates(id uuid.UUID, updates <-chan execution.QueueUpdate) {
	defer h.wg.Done()
	for u := range updates {
		if u.ExecutionID != id {
			continue
		}
		if !h.mustSend(protocol.QueuePosition(id, u.Position)) {
			return
		}
	}
}

func (h *Handler) forwardOutput(id uuid.UUID, out <-chan protocol.Envelope, updates <-chan execution.QueueUpdate) {
	defer h.wg.Done()
	defer h.queue.Unsubscribe(updates)

	for env := range out {
		switch env.Type {
		case protocol.TypeProgressUpdate:
			if env.Event != nil && env.Event.Kind == protocol.ProgressStarted {
				h.setState(id, StateRunning)
			}
		case protocol.TypeExecutionSucceeded:
			h.setState(id, StateSucceeded)
		case protocol.TypeExecutionError:
			h.setState(id, StateFailed)
		}
		if !h.mustSend(env) {
			return
		}
	}

	if s, ok := h.State(id); ok && s != StateSucceeded && s != StateFailed {
		h.setState(id, StateCancelled)
	}
}

// mustSend writes env and logs (without panicking) on failure, returning
// whether the send succeeded so callers can stop forwarding to a dead peer.
func (h *Handler) mustSend(env protocol.Envelope) bool {
	if err := h.send(env); err != nil {
		h.log.Warn("failed to write outbound frame, connection likely closed", "error", err, "type", env.Type)
		return false
	}
	return true
}

// Close waits for any in-flight forwarder goroutines spawned by this
// handler to exit. Call after the connection's read loop returns.
func (h *Handler) Close() {
	h.wg.Wait()
}
