package viewer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"restaurant-orders/internal/domain"
	"restaurant-orders/internal/logger"
)

type ConnState string

const (
	StateConnected    ConnState = "connected"
	StateReconnecting ConnState = "reconnecting"
)

// wsConn is the socket surface the client uses; *websocket.Conn satisfies it.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

type ClientConfig struct {
	// ServerURL is the HTTP base of the sync service, e.g. http://host:3002.
	ServerURL      string
	ReconnectDelay time.Duration
}

// Client is one viewer: it dials the push socket, resyncs its cache with a
// full order fetch on every (re)connect, and then keeps the cache live by
// applying events. The cache has a single writer, the Run loop, so timer
// expiries are funneled through a channel into the same loop.
type Client struct {
	cfg   ClientConfig
	log   *logger.Logger
	httpc *http.Client
	dial  func(ctx context.Context) (wsConn, error)

	cache   *Cache
	auto    *autoReady
	expired chan string

	mu    sync.Mutex
	state ConnState
}

func NewClient(cfg ClientConfig, log *logger.Logger) *Client {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	c := &Client{
		cfg:     cfg,
		log:     log,
		httpc:   &http.Client{Timeout: 10 * time.Second},
		cache:   NewCache(),
		expired: make(chan string, 16),
		state:   StateReconnecting,
	}
	c.auto = newAutoReady(func(orderID string) {
		select {
		case c.expired <- orderID:
		default:
			// loop busy or gone; the authoritative event will catch up
		}
	})
	wsURL := deriveWSURL(cfg.ServerURL)
	c.dial = func(ctx context.Context) (wsConn, error) {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
	return c
}

func deriveWSURL(httpURL string) string {
	u := httpURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return strings.TrimSuffix(u, "/") + "/ws"
}

func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s ConnState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Run connects and serves events until ctx is canceled. Disconnects are
// not errors: the client marks itself reconnecting, waits the fixed delay
// and dials again, resyncing from scratch each time.
func (c *Client) Run(ctx context.Context) error {
	defer c.auto.StopAll()

	for {
		conn, err := c.dial(ctx)
		if err != nil {
			c.setState(StateReconnecting)
			c.log.Error("ws_connect_failed", err, nil)
			if !sleepCtx(ctx, c.cfg.ReconnectDelay) {
				return nil
			}
			continue
		}

		if err := c.resync(ctx); err != nil {
			_ = conn.Close()
			c.setState(StateReconnecting)
			c.log.Error("resync_failed", err, nil)
			if !sleepCtx(ctx, c.cfg.ReconnectDelay) {
				return nil
			}
			continue
		}

		c.setState(StateConnected)
		c.log.Info("ws_connected", map[string]any{"orders": c.cache.Len()})

		err = c.pump(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}

		c.setState(StateReconnecting)
		c.log.Error("ws_disconnected", err, nil)
		if !sleepCtx(ctx, c.cfg.ReconnectDelay) {
			return nil
		}
	}
}

// resync replaces the whole cache from the order-list endpoint; this is
// what repairs any events missed while offline.
func (c *Client) resync(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimSuffix(c.cfg.ServerURL, "/")+"/orders?status=all", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("fetch orders: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch orders: unexpected status %d", resp.StatusCode)
	}

	var orders []domain.Order
	if err := json.NewDecoder(resp.Body).Decode(&orders); err != nil {
		return fmt.Errorf("decode orders: %w", err)
	}

	c.auto.StopAll()
	c.cache.ReplaceAll(orders)
	for _, o := range c.cache.Orders() {
		c.auto.Observe(o)
	}
	return nil
}

// pump serializes socket frames and countdown expiries into the cache
// until the socket dies or ctx is canceled.
func (c *Client) pump(ctx context.Context, conn wsConn) error {
	frames := make(chan []byte, 32)
	readErr := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			// apply whatever arrived before the socket died
			for {
				select {
				case data := <-frames:
					c.handleFrame(data)
				default:
					return err
				}
			}
		case data := <-frames:
			c.handleFrame(data)
		case id := <-c.expired:
			if c.cache.MarkReadyLocally(id) {
				c.log.Info("order_ready_local", map[string]any{"order_id": id})
			}
		}
	}
}

func (c *Client) handleFrame(data []byte) {
	ev, err := domain.DecodeFrame(data)
	if err != nil {
		c.log.Error("frame_rejected", err, nil)
		return
	}

	if _, ok := ev.(domain.QueueDrained); ok {
		c.log.Debug("queue_empty", nil)
		return
	}

	if !c.cache.Apply(ev) {
		return
	}

	switch e := ev.(type) {
	case domain.OrderCreated:
		c.log.Info("order_added", map[string]any{"order_id": e.Order.ID, "table": e.Order.Table})
		if o, ok := c.cache.Get(e.Order.ID); ok {
			c.auto.Observe(o)
		}
	case domain.StatusChanged:
		c.log.Info("order_status", map[string]any{"order_id": e.OrderID, "status": string(e.NewStatus)})
		if o, ok := c.cache.Get(e.OrderID); ok {
			c.auto.Observe(o)
		}
	case domain.OrderUpdated:
		c.log.Info("order_updated", map[string]any{"order_id": e.Order.ID})
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
