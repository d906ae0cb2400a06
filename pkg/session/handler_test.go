package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/aqueducts-executor/pkg/engine"
	"github.com/codeready-toolchain/aqueducts-executor/pkg/execution"
	"github.com/codeready-toolchain/aqueducts-executor/pkg/protocol"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []protocol.Envelope
	notify chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{notify: make(chan struct{}, 1024)}
}

func (f *fakeConn) send(env protocol.Envelope) error {
	f.mu.Lock()
	f.frames = append(f.frames, env)
	f.mu.Unlock()
	select {
	case f.notify <- struct{}{}:
	default:
	}
	return nil
}

func (f *fakeConn) snapshot() []protocol.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.Envelope, len(f.frames))
	copy(out, f.frames)
	return out
}

func (f *fakeConn) waitForType(t *testing.T, typ protocol.MessageType, timeout time.Duration) protocol.Envelope {
	t.Helper()
	deadline := time.After(timeout)
	for {
		for _, e := range f.snapshot() {
			if e.Type == typ {
				return e
			}
		}
		select {
		case <-f.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for frame type %q", typ)
		}
	}
}

func newTestHandler(conn *fakeConn) (*Handler, *execution.Manager, context.CancelFunc) {
	q := execution.NewQueue()
	m := execution.NewManager(q, nil)
	r := execution.NewRunner(engine.NewDriverRegistry())
	h := NewHandler(m, q, r, conn.send, nil)
	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	return h, m, cancel
}

func encode(t *testing.T, env protocol.Envelope) []byte {
	t.Helper()
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	return raw
}

func TestHandler_TrivialSuccess(t *testing.T) {
	conn := newFakeConn()
	h, _, cancel := newTestHandler(conn)
	defer cancel()

	pipeline := protocol.Aqueduct{
		Stages: [][]protocol.Stage{{{Name: "s1", Query: "SELECT 1"}}},
	}
	h.HandleFrame(encode(t, protocol.ExecutionRequest(pipeline)))

	conn.waitForType(t, protocol.TypeExecutionSucceeded, time.Second)
	h.Close()

	frames := conn.snapshot()
	require.NotEmpty(t, frames)
	assert.Equal(t, protocol.TypeExecutionResponse, frames[0].Type)
	assert.Equal(t, protocol.TypeExecutionSucceeded, frames[len(frames)-1].Type)
}

func TestHandler_CancelUnknownAlwaysAcks(t *testing.T) {
	conn := newFakeConn()
	h, _, cancel := newTestHandler(conn)
	defer cancel()

	h.HandleFrame(encode(t, protocol.CancelRequest(protocol.NewExecutionID())))
	conn.waitForType(t, protocol.TypeCancelResponse, time.Second)
}

func TestHandler_MalformedFrameDropped(t *testing.T) {
	conn := newFakeConn()
	h, _, cancel := newTestHandler(conn)
	defer cancel()

	h.HandleFrame([]byte(`{not json`))
	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, conn.snapshot())
}

func TestHandler_FIFOUnderLoad(t *testing.T) {
	conn := newFakeConn()
	h, _, cancel := newTestHandler(conn)
	defer cancel()

	pipeline := protocol.Aqueduct{Stages: [][]protocol.Stage{{{Name: "s1", Query: "SELECT 1"}}}}
	for i := 0; i < 5; i++ {
		h.HandleFrame(encode(t, protocol.ExecutionRequest(pipeline)))
	}

	deadline := time.After(2 * time.Second)
	for {
		var succeeded int
		for _, e := range conn.snapshot() {
			if e.Type == protocol.TypeExecutionSucceeded {
				succeeded++
			}
		}
		if succeeded == 5 {
			break
		}
		select {
		case <-conn.notify:
		case <-deadline:
			t.Fatal("timed out waiting for all 5 executions to succeed")
		}
	}

	var responseIDs, succeededIDs []uuid.UUID
	for _, e := range conn.snapshot() {
		switch e.Type {
		case protocol.TypeExecutionResponse:
			responseIDs = append(responseIDs, *e.ExecutionID)
		case protocol.TypeExecutionSucceeded:
			succeededIDs = append(succeededIDs, *e.ExecutionID)
		}
	}
	require.Len(t, succeededIDs, 5)
	assert.Equal(t, responseIDs, succeededIDs, "executions must succeed in submission order")
}
