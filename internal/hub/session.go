package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	sendBuffer   = 32
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = pongTimeout * 9 / 10
)

// Session is one connected viewer socket. Frames are queued on a buffered
// channel and flushed by a single write pump, so the hub never touches the
// socket directly.
type Session struct {
	ID   string
	conn *websocket.Conn
	send chan []byte
	quit chan struct{}
	once sync.Once

	pingEvery time.Duration
	pongWait  time.Duration
}

func NewSession(conn *websocket.Conn) *Session {
	return &Session{
		ID:        uuid.NewString(),
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		quit:      make(chan struct{}),
		pingEvery: pingInterval,
		pongWait:  pongTimeout,
	}
}

// trySend queues a frame without blocking. A false return means the
// session is too slow to keep up; frames for a closing session are
// silently discarded.
func (s *Session) trySend(frame []byte) bool {
	select {
	case <-s.quit:
		return true
	default:
	}
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

func (s *Session) shutdown() {
	s.once.Do(func() {
		close(s.quit)
		if s.conn != nil {
			_ = s.conn.Close()
		}
	})
}

// Run services the socket until it closes; the caller's hub is notified on
// exit. It blocks, so callers start it on the connection's goroutine.
func (s *Session) Run(h *Hub) {
	go s.writePump()
	s.readPump()
	h.Unregister(s)
}

func (s *Session) writePump() {
	ping := time.NewTicker(s.pingEvery)
	defer ping.Stop()
	for {
		select {
		case frame := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ping.C:
			// viewers never send frames; their pongs are what keep the
			// read deadline fresh
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.quit:
			// tell the peer we are done
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// readPump discards inbound frames; viewers only listen. Its job is to
// notice the close handshake and keep pong deadlines fresh.
func (s *Session) readPump() {
	_ = s.conn.SetReadDeadline(time.Now().Add(s.pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
