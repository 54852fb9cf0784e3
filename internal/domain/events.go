package domain

import (
	"encoding/json"
	"fmt"
)

// Event is the closed set of notifications flowing from the pipeline to
// connected viewers. Events are transient; missed ones are repaired by a
// full resync, never by replay.
type Event interface{ isEvent() }

type OrderCreated struct{ Order Order }

type StatusChanged struct {
	OrderID   string
	NewStatus Status
	// Order carries a full snapshot so a client that missed the creation
	// event can self-heal.
	Order Order
}

type OrderUpdated struct{ Order Order }

// QueueDrained signals that the ingestion queue has no ready messages.
// Informational only, carries no order payload.
type QueueDrained struct{}

func (OrderCreated) isEvent()  {}
func (StatusChanged) isEvent() {}
func (OrderUpdated) isEvent()  {}
func (QueueDrained) isEvent()  {}

// Queue envelope discriminants.
const (
	msgOrderCreated  = "order_created"
	msgStatusChanged = "status_changed"
)

type envelope struct {
	Type      string `json:"type"`
	Order     *Order `json:"order,omitempty"`
	OrderID   string `json:"order_id,omitempty"`
	NewStatus string `json:"new_status,omitempty"`
}

// EncodeMessage serializes an event into the broker envelope. Only events
// that travel over the queue are encodable.
func EncodeMessage(ev Event) ([]byte, error) {
	switch e := ev.(type) {
	case OrderCreated:
		return json.Marshal(envelope{Type: msgOrderCreated, Order: &e.Order})
	case StatusChanged:
		return json.Marshal(envelope{Type: msgStatusChanged, OrderID: e.OrderID, NewStatus: string(e.NewStatus)})
	default:
		return nil, fmt.Errorf("event %T does not travel over the queue", ev)
	}
}

// DecodeMessage parses a broker envelope into an event. Unknown
// discriminants are rejected, never silently dropped.
func DecodeMessage(body []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("malformed message: %w", err)
	}
	switch env.Type {
	case msgOrderCreated:
		if env.Order == nil {
			return nil, fmt.Errorf("order_created without order payload")
		}
		return OrderCreated{Order: *env.Order}, nil
	case msgStatusChanged:
		if env.OrderID == "" {
			return nil, fmt.Errorf("status_changed without order_id")
		}
		st, err := ParseStatus(env.NewStatus)
		if err != nil {
			return nil, err
		}
		return StatusChanged{OrderID: env.OrderID, NewStatus: st}, nil
	case "":
		return nil, fmt.Errorf("message missing type discriminant")
	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}
}

// WebSocket frame types pushed to viewers.
const (
	FrameOrderNew      = "ORDER_NEW"
	FrameStatusChanged = "ORDER_STATUS_CHANGED"
	FrameOrderUpdated  = "ORDER_UPDATED"
	FrameQueueEmpty    = "QUEUE_EMPTY"
)

type Frame struct {
	Type   string `json:"type"`
	Order  *Order `json:"order,omitempty"`
	ID     string `json:"id,omitempty"`
	Status string `json:"status,omitempty"`
}

// EncodeFrame serializes an event into the server->client push frame.
func EncodeFrame(ev Event) ([]byte, error) {
	switch e := ev.(type) {
	case OrderCreated:
		return json.Marshal(Frame{Type: FrameOrderNew, Order: &e.Order})
	case StatusChanged:
		return json.Marshal(Frame{Type: FrameStatusChanged, ID: e.OrderID, Status: string(e.NewStatus), Order: &e.Order})
	case OrderUpdated:
		return json.Marshal(Frame{Type: FrameOrderUpdated, Order: &e.Order})
	case QueueDrained:
		return json.Marshal(Frame{Type: FrameQueueEmpty})
	default:
		return nil, fmt.Errorf("unknown event %T", ev)
	}
}

// DecodeFrame parses a push frame back into an event on the viewer side.
func DecodeFrame(data []byte) (Event, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	switch f.Type {
	case FrameOrderNew:
		if f.Order == nil {
			return nil, fmt.Errorf("%s frame without order", FrameOrderNew)
		}
		return OrderCreated{Order: *f.Order}, nil
	case FrameStatusChanged:
		st, err := ParseStatus(f.Status)
		if err != nil {
			return nil, err
		}
		ev := StatusChanged{OrderID: f.ID, NewStatus: st}
		if f.Order != nil {
			ev.Order = *f.Order
		}
		return ev, nil
	case FrameOrderUpdated:
		if f.Order == nil {
			return nil, fmt.Errorf("%s frame without order", FrameOrderUpdated)
		}
		return OrderUpdated{Order: *f.Order}, nil
	case FrameQueueEmpty:
		return QueueDrained{}, nil
	default:
		return nil, fmt.Errorf("unknown frame type %q", f.Type)
	}
}
