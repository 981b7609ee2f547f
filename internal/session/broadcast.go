package session

import (
	"go.uber.org/zap"

	"codenow/internal/models"
)

// broadcast queues frame for every connection except the one named by except
// (empty means everyone). Caller holds s.mu.
func (s *Session) broadcast(except string, frame models.WSFrame) {
	s.conns.each(func(c *connection) {
		if c.id == except {
			return
		}
		s.deliver(c, frame)
	})
}

// sendTo queues frame for a single connection. Caller holds s.mu.
func (s *Session) sendTo(id string, frame models.WSFrame) {
	if c, ok := s.conns.get(id); ok {
		s.deliver(c, frame)
	}
}

// deliver closes peers that stopped accepting frames; their read loop then
// reports the disconnect and normal cleanup runs.
func (s *Session) deliver(c *connection, frame models.WSFrame) {
	if c.client == nil {
		return
	}
	if !c.client.Send(frame) {
		s.log.Warn("client not accepting frames, closing connection",
			zap.String("connection", c.id),
			zap.String("frame", frame.Type))
		c.client.Close()
	}
}
