package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"restaurant-orders/internal/domain"
	"restaurant-orders/internal/hub"
	"restaurant-orders/internal/logger"
	"restaurant-orders/internal/repository"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeRepo struct {
	mu     sync.Mutex
	orders map[string]domain.Order
}

func newFakeRepo(seed ...domain.Order) *fakeRepo {
	r := &fakeRepo{orders: make(map[string]domain.Order)}
	for _, o := range seed {
		r.orders[o.ID] = o
	}
	return r
}

func (r *fakeRepo) Create(_ context.Context, o domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.orders[o.ID]; !exists {
		r.orders[o.ID] = o
	}
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id string) (domain.Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	return o, ok, nil
}

func (r *fakeRepo) List(_ context.Context, status domain.Status) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Order
	for _, o := range r.orders {
		if status == "" || o.Status == status {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *fakeRepo) UpdateStatus(_ context.Context, id string, status domain.Status, prepStartedAt *time.Time, est *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("order %s not found", id)
	}
	o.Status = status
	r.orders[id] = o
	return nil
}

func (r *fakeRepo) ReplaceItems(_ context.Context, o domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.orders[o.ID]
	if !ok {
		return fmt.Errorf("order %s not found", o.ID)
	}
	cur.Items = o.Items
	cur.Table = o.Table
	cur.CustomerName = o.CustomerName
	r.orders[o.ID] = cur
	return nil
}

var _ repository.Orders = (*fakeRepo)(nil)

type fakePub struct {
	mu     sync.Mutex
	queues []string
	bodies [][]byte
}

func (p *fakePub) Publish(_ context.Context, queue string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queues = append(p.queues, queue)
	p.bodies = append(p.bodies, body)
	return nil
}

func (p *fakePub) last(t *testing.T) domain.Event {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.bodies) == 0 {
		t.Fatal("nothing was published")
	}
	ev, err := domain.DecodeMessage(p.bodies[len(p.bodies)-1])
	if err != nil {
		t.Fatalf("published envelope does not decode: %v", err)
	}
	return ev
}

func testServer(repo repository.Orders, pub *fakePub) *Server {
	lg := logger.NewWithWriter("http-test", io.Discard)
	return NewServer(repo, pub, hub.New(lg), lg, "orders.new")
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func seedOrder(id string, status domain.Status) domain.Order {
	return domain.Order{
		ID:           id,
		Table:        "T7",
		CustomerName: "Mia",
		CreatedAt:    time.Now().UTC(),
		Items:        []domain.OrderItem{{ProductName: "Taco", Quantity: 2, UnitPrice: 4}},
		Status:       status,
	}
}

func TestListOrders(t *testing.T) {
	s := testServer(newFakeRepo(seedOrder("o1", domain.StatusPending)), &fakePub{})

	w := do(t, s, http.MethodGet, "/orders?status=all", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("code=%d", w.Code)
	}
	var orders []domain.Order
	if err := json.Unmarshal(w.Body.Bytes(), &orders); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != "o1" {
		t.Fatalf("unexpected orders: %+v", orders)
	}
}

func TestListOrdersEmptyIsArray(t *testing.T) {
	s := testServer(newFakeRepo(), &fakePub{})
	w := do(t, s, http.MethodGet, "/orders", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("code=%d", w.Code)
	}
	if got := bytes.TrimSpace(w.Body.Bytes()); string(got) != "[]" {
		t.Fatalf("expected empty JSON array, got %s", got)
	}
}

func TestListOrdersInvalidStatusFilter(t *testing.T) {
	s := testServer(newFakeRepo(), &fakePub{})
	if w := do(t, s, http.MethodGet, "/orders?status=burnt", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("code=%d", w.Code)
	}
}

func TestCreateOrderPublishesEnvelope(t *testing.T) {
	pub := &fakePub{}
	s := testServer(newFakeRepo(), pub)

	w := do(t, s, http.MethodPost, "/orders", gin.H{
		"table":        "T3",
		"customerName": "Leo",
		"items": []gin.H{
			{"productName": "Pizza", "quantity": 1, "unitPrice": 12.5},
		},
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
	}

	ev := pub.last(t)
	oc, ok := ev.(domain.OrderCreated)
	if !ok {
		t.Fatalf("expected OrderCreated, got %T", ev)
	}
	if oc.Order.ID == "" || oc.Order.Status != domain.StatusPending {
		t.Fatalf("unexpected order: %+v", oc.Order)
	}
	if pub.queues[0] != "orders.new" {
		t.Fatalf("published to %s", pub.queues[0])
	}
}

func TestCreateOrderValidation(t *testing.T) {
	s := testServer(newFakeRepo(), &fakePub{})

	cases := []gin.H{
		{"customerName": "Leo", "items": []gin.H{{"productName": "Pizza", "quantity": 1}}}, // no table
		{"table": "T3", "customerName": "Leo", "items": []gin.H{}},                         // empty items
		{"table": "T3", "customerName": "Leo", "items": []gin.H{{"productName": "Pizza", "quantity": 0}}},
	}
	for i, body := range cases {
		if w := do(t, s, http.MethodPost, "/orders", body); w.Code != http.StatusBadRequest {
			t.Errorf("case %d: code=%d", i, w.Code)
		}
	}
}

func TestUpdateStatusHappyPath(t *testing.T) {
	pub := &fakePub{}
	s := testServer(newFakeRepo(seedOrder("o1", domain.StatusPending)), pub)

	w := do(t, s, http.MethodPatch, "/orders/o1", gin.H{"status": "preparing"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
	}

	sc, ok := pub.last(t).(domain.StatusChanged)
	if !ok || sc.OrderID != "o1" || sc.NewStatus != domain.StatusPreparing {
		t.Fatalf("unexpected envelope: %+v", sc)
	}
}

func TestUpdateStatusRejections(t *testing.T) {
	pub := &fakePub{}
	s := testServer(newFakeRepo(seedOrder("o1", domain.StatusCompleted)), pub)

	if w := do(t, s, http.MethodPatch, "/orders/o1", gin.H{"status": "frying"}); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown status: code=%d", w.Code)
	}
	if w := do(t, s, http.MethodPatch, "/orders/ghost", gin.H{"status": "preparing"}); w.Code != http.StatusNotFound {
		t.Fatalf("unknown order: code=%d", w.Code)
	}
	if w := do(t, s, http.MethodPatch, "/orders/o1", gin.H{"status": "preparing"}); w.Code != http.StatusConflict {
		t.Fatalf("terminal order: code=%d", w.Code)
	}
	if len(pub.bodies) != 0 {
		t.Fatal("rejected requests must not publish")
	}
}

func TestUpdateOrderReplacesItemsWhilePending(t *testing.T) {
	repo := newFakeRepo(seedOrder("o1", domain.StatusPending))
	s := testServer(repo, &fakePub{})

	w := do(t, s, http.MethodPut, "/orders/o1", gin.H{
		"items": []gin.H{
			{"productName": "Salad", "quantity": 1, "unitPrice": 6},
			{"productName": "Tea", "quantity": 2, "unitPrice": 2},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("code=%d body=%s", w.Code, w.Body.String())
	}
	o, _, _ := repo.GetByID(context.Background(), "o1")
	if len(o.Items) != 2 || o.Items[0].ProductName != "Salad" {
		t.Fatalf("items not replaced: %+v", o.Items)
	}
}

func TestUpdateOrderRejectedOncePreparing(t *testing.T) {
	s := testServer(newFakeRepo(seedOrder("o1", domain.StatusPreparing)), &fakePub{})

	w := do(t, s, http.MethodPut, "/orders/o1", gin.H{
		"items": []gin.H{{"productName": "Salad", "quantity": 1, "unitPrice": 6}},
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("code=%d", w.Code)
	}
}
