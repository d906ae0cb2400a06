package coordination

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/aqueducts-executor/pkg/engine"
	"github.com/codeready-toolchain/aqueducts-executor/pkg/execution"
	"github.com/codeready-toolchain/aqueducts-executor/pkg/protocol"
)

func fakeOrchestrator(t *testing.T, onReady chan<- *websocket.Conn) *httptest.Server {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		onReady <- conn
	}))
}

func TestCoordinator_RegistersAndRunsExecution(t *testing.T) {
	ready := make(chan *websocket.Conn, 1)
	srv := fakeOrchestrator(t, ready)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	q := execution.NewQueue()
	m := execution.NewManager(q, nil)
	r := execution.NewRunner(engine.NewDriverRegistry())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	coord := New(Config{OrchestratorURL: wsURL, SharedSecret: "secret", ExecutorID: "exec-1"}, m, q, r, nil)
	go coord.Run(ctx)

	serverConn := <-ready
	defer serverConn.Close()

	_, raw, err := serverConn.ReadMessage()
	require.NoError(t, err)
	env, err := protocol.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, protocol.TypeRegisterExecutor, env.Type)
	require.Equal(t, "exec-1", env.ExecutorID)

	require.NoError(t, serverConn.WriteJSON(protocol.RegistrationResponse(true, "")))

	pipeline := protocol.Aqueduct{Stages: [][]protocol.Stage{{{Name: "s1", Query: "SELECT 1"}}}}
	require.NoError(t, serverConn.WriteJSON(protocol.ExecutionRequest(pipeline)))

	serverConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	sawSucceeded := false
	for i := 0; i < 20 && !sawSucceeded; i++ {
		_, raw, err := serverConn.ReadMessage()
		if err != nil {
			break
		}
		env, err := protocol.Decode(raw)
		if err != nil {
			continue
		}
		if env.Type == protocol.TypeExecutionSucceeded {
			sawSucceeded = true
		}
	}
	require.True(t, sawSucceeded, "expected execution_succeeded from the coordinator")
}
