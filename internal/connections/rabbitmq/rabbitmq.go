package rabbitmq

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	VHost    string // default "/"
	UseTLS   bool
	Prefetch int // basic.qos on the managed channel
}

// QueueChannel is the slice of channel behavior the publish paths need.
// *amqp.Channel satisfies it.
type QueueChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Client owns one broker connection and one long-lived channel. Connect is
// idempotent and lazy; the channel doubles as the dead-letter fallback when
// a caller's own channel has died.
type Client struct {
	cfg Config

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	fallback QueueChannel // normally ch; swappable in tests
}

func New(cfg Config) *Client {
	if cfg.VHost == "" {
		cfg.VHost = "/"
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	return &Client{cfg: cfg}
}

// Connect dials the broker and opens the managed channel. Calling it while
// already connected is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.conn != nil && !c.conn.IsClosed() {
		return nil
	}

	scheme := "amqp"
	if c.cfg.UseTLS {
		scheme = "amqps"
	}
	url := fmt.Sprintf("%s://%s:%s@%s:%d/%s",
		scheme, c.cfg.User, c.cfg.Password, c.cfg.Host, c.cfg.Port, c.cfg.VHost)

	var (
		conn *amqp.Connection
		err  error
	)
	if c.cfg.UseTLS {
		conn, err = amqp.DialTLS(url, &tls.Config{MinVersion: tls.VersionTLS12})
	} else {
		conn, err = amqp.Dial(url)
	}
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("amqp channel: %w", err)
	}
	// Bound in-flight deliveries on this channel; this is the backpressure
	// knob for every consumer using it.
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("amqp qos: %w", err)
	}

	c.conn, c.ch, c.fallback = conn, ch, ch
	return nil
}

// Channel returns the managed channel, connecting first if needed.
func (c *Client) Channel(ctx context.Context) (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.connectLocked(ctx); err != nil {
		return nil, err
	}
	return c.ch, nil
}

func (c *Client) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.conn.IsClosed() {
		return fmt.Errorf("rabbitmq connection is closed")
	}
	return nil
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch != nil {
		_ = c.ch.Close()
		c.ch = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// Publish asserts queue durable and publishes body as persistent JSON.
func (c *Client) Publish(ctx context.Context, queue string, body []byte) error {
	ch, err := c.Channel(ctx)
	if err != nil {
		return err
	}
	return publishOn(ctx, ch, queue, body)
}

// PublishToDeadLetter writes body to the dead-letter queue, preferring the
// caller's channel. If that channel's declare or publish fails (commonly
// because the channel died with the consumer), the managed channel is used
// instead so the payload is not lost with it. If both fail the message is
// lost; the caller decides what to log.
func (c *Client) PublishToDeadLetter(ctx context.Context, primary QueueChannel, queue string, body []byte) error {
	if primary != nil {
		if err := publishOn(ctx, primary, queue, body); err == nil {
			return nil
		}
	}
	c.mu.Lock()
	if c.fallback == nil {
		if err := c.connectLocked(ctx); err != nil {
			c.mu.Unlock()
			return fmt.Errorf("dead-letter fallback connect: %w", err)
		}
	}
	fb := c.fallback
	c.mu.Unlock()

	if err := publishOn(ctx, fb, queue, body); err != nil {
		return fmt.Errorf("dead-letter fallback publish: %w", err)
	}
	return nil
}

func publishOn(ctx context.Context, ch QueueChannel, queue string, body []byte) error {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare %s: %w", queue, err)
	}
	return ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}
