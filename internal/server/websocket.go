package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"quiz-live/internal/game"
)

// wsHub fans room events out to the clients attached to each room code.
type wsHub struct {
	mu     sync.Mutex
	groups map[string]map[string]*client
	logger *slog.Logger
}

func newWSHub(logger *slog.Logger) *wsHub {
	return &wsHub{
		groups: make(map[string]map[string]*client),
		logger: logger,
	}
}

func (h *wsHub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[c.code]
	if group == nil {
		group = make(map[string]*client)
		h.groups[c.code] = group
	}
	group[c.id] = c
}

func (h *wsHub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[c.code]
	if group == nil {
		return
	}
	if group[c.id] == c {
		delete(group, c.id)
		c.close()
	}
	if len(group) == 0 {
		delete(h.groups, c.code)
	}
}

func (h *wsHub) count(code string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.groups[code])
}

func (h *wsHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for code, group := range h.groups {
		for _, c := range group {
			c.close()
		}
		delete(h.groups, code)
	}
}

// Broadcast encodes the event once and queues it on every client in the room.
func (h *wsHub) Broadcast(code string, event game.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("encode broadcast failed", "code", code, "type", event.Type, "error", err)
		return
	}
	h.mu.Lock()
	clients := make([]*client, 0, len(h.groups[code]))
	for _, c := range h.groups[code] {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.enqueue(data)
	}
}

func (h *wsHub) Send(code, connectionID string, event game.Event) {
	h.mu.Lock()
	c := h.groups[code][connectionID]
	h.mu.Unlock()
	if c == nil {
		return
	}
	c.sendEvent(event)
}

func (s *Server) handleWebsocket(c *gin.Context) {
	code, ok := bindRoom(c)
	if !ok {
		return
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "code", code, "error", err)
		return
	}
	cl := newClient(uuid.NewString(), code, conn, s.engine, s.logger)
	s.hub.add(cl)
	s.logger.Info("ws connected",
		"code", code,
		"connection_id", cl.id,
		"remote", c.Request.RemoteAddr,
		"connections", s.hub.count(code),
	)
	go cl.writePump()

	ctx := context.Background()
	if _, err := s.engine.Visit(ctx, code, cl.id); err != nil {
		cl.sendError(err)
		s.hub.remove(cl)
		return
	}

	cl.readPump(ctx)

	s.hub.remove(cl)
	if err := s.engine.Disconnect(ctx, code, cl.id); err != nil {
		s.logger.Debug("ws disconnect cleanup", "code", code, "connection_id", cl.id, "error", err)
	}
	s.logger.Info("ws disconnected", "code", code, "connection_id", cl.id)
}
