package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	amqp "github.com/rabbitmq/amqp091-go"

	"restaurant-orders/internal/connections/rabbitmq"
	"restaurant-orders/internal/domain"
	"restaurant-orders/internal/logger"
	"restaurant-orders/internal/repository"
)

// Broadcaster fans events out to connected viewers.
type Broadcaster interface {
	Broadcast(ev domain.Event)
}

// BrokerClient is the slice of the connection manager the worker uses.
type BrokerClient interface {
	Channel(ctx context.Context) (*amqp.Channel, error)
	PublishToDeadLetter(ctx context.Context, primary rabbitmq.QueueChannel, queue string, body []byte) error
}

// consumeChannel is what handleDelivery needs from the consumer's channel.
// *amqp.Channel satisfies it.
type consumeChannel interface {
	rabbitmq.QueueChannel
	QueueInspect(name string) (amqp.Queue, error)
}

// brokerChannel adds the setup and teardown surface Run needs on top of
// consumeChannel. *amqp.Channel satisfies it.
type brokerChannel interface {
	consumeChannel
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	NotifyClose(c chan *amqp.Error) chan *amqp.Error
	Cancel(consumer string, noWait bool) error
}

type Config struct {
	Queue      string
	DeadLetter string
	Prefetch   int
	Consumer   string // consumer tag
}

// Worker consumes order events from the primary queue, persists them,
// applies status transitions and forwards the result to the hub.
// Deliveries are acknowledged only after the full persist+broadcast chain;
// anything that fails is copied to the dead-letter queue and nacked
// without requeue.
type Worker struct {
	repo     repository.Orders
	mq       BrokerClient
	hub      Broadcaster
	log      *logger.Logger
	validate *validator.Validate
	cfg      Config
}

func NewWorker(repo repository.Orders, mq BrokerClient, hub Broadcaster, log *logger.Logger, cfg Config) *Worker {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "order-sync-worker"
	}
	return &Worker{
		repo:     repo,
		mq:       mq,
		hub:      hub,
		log:      log,
		validate: validator.New(),
		cfg:      cfg,
	}
}

// Run consumes until ctx is canceled. In-flight deliveries are always
// acked or nacked before it returns.
func (w *Worker) Run(ctx context.Context) error {
	ch, err := w.mq.Channel(ctx)
	if err != nil {
		return err
	}
	return w.run(ctx, ch)
}

func (w *Worker) run(ctx context.Context, ch brokerChannel) error {
	if _, err := ch.QueueDeclare(w.cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare %s: %w", w.cfg.Queue, err)
	}
	if err := ch.Qos(w.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}

	closeCh := ch.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		if e := <-closeCh; e != nil {
			w.log.Error("amqp_channel_closed", e, map[string]any{"code": e.Code})
		}
	}()

	msgs, err := ch.Consume(w.cfg.Queue, w.cfg.Consumer, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", w.cfg.Queue, err)
	}

	w.log.Info("worker_started", map[string]any{"queue": w.cfg.Queue, "prefetch": w.cfg.Prefetch})

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.consumeLoop(ctx, ch, msgs)
	}()

	<-ctx.Done()
	w.log.Info("graceful_shutdown", map[string]any{"queue": w.cfg.Queue})
	_ = ch.Cancel(w.cfg.Consumer, false) // stop new deliveries, drain the rest
	<-done
	return nil
}

func (w *Worker) consumeLoop(ctx context.Context, ch consumeChannel, msgs <-chan amqp.Delivery) {
	// shutdown cancels ctx before the drain starts; in-flight deliveries
	// still need a live context or they would all fail into the DLQ
	ctx = context.WithoutCancel(ctx)
	for d := range msgs {
		w.handleDelivery(ctx, ch, d)
	}
}

func (w *Worker) handleDelivery(ctx context.Context, ch consumeChannel, d amqp.Delivery) {
	if err := w.process(ctx, d.Body); err != nil {
		w.log.Error("message_failed", err, map[string]any{"message_id": d.MessageId})
		if dlqErr := w.mq.PublishToDeadLetter(ctx, ch, w.cfg.DeadLetter, d.Body); dlqErr != nil {
			// both channels refused: the payload is lost (known gap)
			w.log.Error("dlq_publish_failed", dlqErr, map[string]any{"message_id": d.MessageId})
		}
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
	w.announceIfDrained(ch)
}

func (w *Worker) process(ctx context.Context, body []byte) error {
	ev, err := domain.DecodeMessage(body)
	if err != nil {
		return err
	}

	switch e := ev.(type) {
	case domain.OrderCreated:
		return w.processCreated(ctx, e.Order)
	case domain.StatusChanged:
		return w.processStatusChanged(ctx, e.OrderID, e.NewStatus)
	default:
		return fmt.Errorf("event %T not expected on queue", ev)
	}
}

func (w *Worker) processCreated(ctx context.Context, o domain.Order) error {
	if o.Status == "" {
		o.Status = domain.StatusPending
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	if err := w.validate.Struct(o); err != nil {
		return fmt.Errorf("invalid order payload: %w", err)
	}
	// Create is a no-op for an existing id, keeping redelivery idempotent.
	if err := w.repo.Create(ctx, o); err != nil {
		return err
	}
	w.hub.Broadcast(domain.OrderCreated{Order: o})
	w.log.Info("order_persisted", map[string]any{"order_id": o.ID, "table": o.Table})
	return nil
}

func (w *Worker) processStatusChanged(ctx context.Context, orderID string, requested domain.Status) error {
	cur, ok, err := w.repo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("order %s not found", orderID)
	}

	next, err := domain.Transition(cur.Status, requested)
	if err != nil {
		w.log.Error("invalid_transition_rejected", err, map[string]any{"order_id": orderID})
		return err
	}

	var (
		prepAt *time.Time
		est    *int
	)
	if next == domain.StatusPreparing {
		now := time.Now().UTC()
		m := domain.EstimatePrepMinutes(cur.Items)
		prepAt, est = &now, &m
	}

	if err := w.repo.UpdateStatus(ctx, cur.ID, next, prepAt, est); err != nil {
		return err
	}

	cur.Status = next
	if prepAt != nil {
		cur.PrepStartedAt = prepAt
		cur.EstimatedPrepMinutes = est
	}
	w.hub.Broadcast(domain.StatusChanged{OrderID: cur.ID, NewStatus: next, Order: cur})
	w.log.Info("status_changed", map[string]any{"order_id": cur.ID, "status": string(next)})
	return nil
}

// announceIfDrained tells viewers when the queue has gone quiet, mirroring
// the "waiting for new orders" signal of the kitchen display.
func (w *Worker) announceIfDrained(ch consumeChannel) {
	q, err := ch.QueueInspect(w.cfg.Queue)
	if err != nil {
		return
	}
	if q.Messages == 0 {
		w.hub.Broadcast(domain.QueueDrained{})
	}
}
