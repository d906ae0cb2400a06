package api

import (
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/aqueducts-executor/pkg/protocol"
	"github.com/codeready-toolchain/aqueducts-executor/pkg/session"
)

func (s *Server) handleWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var sendMu sync.Mutex
	send := session.Sender(func(env protocol.Envelope) error {
		sendMu.Lock()
		defer sendMu.Unlock()
		return conn.WriteJSON(env)
	})

	handler := session.NewHandler(s.manager, s.queue, s.runner, send, s.log)
	defer handler.Close()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		handler.HandleFrame(raw)
	}
}
