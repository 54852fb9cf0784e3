package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"restaurant-orders/internal/hub"
	"restaurant-orders/internal/logger"
	"restaurant-orders/internal/repository"
)

// Publisher puts envelopes on the primary queue; the ingestion worker picks
// them up, so HTTP-originated changes ride the exact same pipeline as
// queue-originated ones.
type Publisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

type Server struct {
	repo  repository.Orders
	pub   Publisher
	hub   *hub.Hub
	log   *logger.Logger
	queue string

	upgrader websocket.Upgrader
}

func NewServer(repo repository.Orders, pub Publisher, h *hub.Hub, log *logger.Logger, queue string) *Server {
	return &Server{
		repo:  repo,
		pub:   pub,
		hub:   h,
		log:   log,
		queue: queue,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// viewers connect from other origins (kitchen displays)
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/orders", s.listOrders)
	r.POST("/orders", s.createOrder)
	r.PATCH("/orders/:id", s.updateStatus)
	r.PUT("/orders/:id", s.updateOrder)
	r.GET("/ws", s.serveWS)
	return r
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router()}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// problem writes the shared error shape.
func problem(c *gin.Context, code int, typ, detail string) {
	c.JSON(code, gin.H{
		"type":   typ,
		"title":  http.StatusText(code),
		"status": code,
		"detail": detail,
	})
}
