// Package api serves the standalone-mode HTTP surface: an unauthenticated
// health check and the authenticated WebSocket upgrade endpoint, using
// github.com/gin-gonic/gin for routing exactly as the teacher's HTTP layer
// does, and github.com/gorilla/websocket for the upgrade itself.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/codeready-toolchain/aqueducts-executor/pkg/execution"
)

// Options configures the server.
type Options struct {
	SharedSecret string
}

// Server wraps a gin.Engine serving /api/health and /ws/connect.
type Server struct {
	opts     Options
	manager  *execution.Manager
	queue    *execution.Queue
	runner   *execution.Runner
	log      *slog.Logger
	upgrader websocket.Upgrader
	router   *gin.Engine
}

// NewServer builds the router. Call Handler() to get an http.Handler to
// serve, e.g. via http.Server.
func NewServer(opts Options, manager *execution.Manager, queue *execution.Queue, runner *execution.Runner, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		opts:    opts,
		manager: manager,
		queue:   queue,
		runner:  runner,
		log:     log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	router := gin.New()
	router.Use(gin.Recovery(), securityHeaders())
	router.GET("/api/health", s.handleHealth)
	router.GET("/ws/connect", s.authMiddleware(), s.handleWS)
	s.router = router
	return s
}

// Handler returns the server's http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}
