package hub

import (
	"sync"

	"restaurant-orders/internal/domain"
	"restaurant-orders/internal/logger"
)

// Hub is a pure fan-out relay: it tracks live viewer sessions and pushes
// encoded frames to all of them. It holds no order state.
type Hub struct {
	log *logger.Logger

	mu       sync.Mutex
	sessions map[*Session]struct{}
}

func New(log *logger.Logger) *Hub {
	return &Hub{log: log, sessions: make(map[*Session]struct{})}
}

func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	n := len(h.sessions)
	h.mu.Unlock()
	h.log.Info("session_registered", map[string]any{"session_id": s.ID, "sessions": n})
}

func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	_, ok := h.sessions[s]
	if ok {
		delete(h.sessions, s)
	}
	n := len(h.sessions)
	h.mu.Unlock()
	if ok {
		s.shutdown()
		h.log.Info("session_unregistered", map[string]any{"session_id": s.ID, "sessions": n})
	}
}

// Broadcast encodes ev once and hands it to every session without ever
// blocking: a session whose buffer is full is dropped on the spot.
func (h *Hub) Broadcast(ev domain.Event) {
	frame, err := domain.EncodeFrame(ev)
	if err != nil {
		h.log.Error("broadcast_encode_failed", err, nil)
		return
	}

	h.mu.Lock()
	targets := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	for _, s := range targets {
		if !s.trySend(frame) {
			h.log.Info("session_dropped_slow", map[string]any{"session_id": s.ID})
			h.Unregister(s)
		}
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}
