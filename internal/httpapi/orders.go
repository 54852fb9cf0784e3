package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"restaurant-orders/internal/domain"
	"restaurant-orders/internal/hub"
)

type orderItemRequest struct {
	ProductName        string  `json:"productName" binding:"required"`
	Quantity           int     `json:"quantity" binding:"required,gt=0"`
	UnitPrice          float64 `json:"unitPrice" binding:"gte=0"`
	Note               string  `json:"note"`
	PrepMinutesPerUnit float64 `json:"prepMinutesPerUnit" binding:"gte=0"`
}

type createOrderRequest struct {
	Table        string             `json:"table" binding:"required"`
	CustomerName string             `json:"customerName" binding:"required"`
	Items        []orderItemRequest `json:"items" binding:"required,min=1,dive"`
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type updateOrderRequest struct {
	Table        string             `json:"table"`
	CustomerName string             `json:"customerName"`
	Items        []orderItemRequest `json:"items" binding:"required,min=1,dive"`
}

func toItems(reqs []orderItemRequest) []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(reqs))
	for _, it := range reqs {
		items = append(items, domain.OrderItem{
			ProductName:        it.ProductName,
			Quantity:           it.Quantity,
			UnitPrice:          it.UnitPrice,
			Note:               it.Note,
			PrepMinutesPerUnit: it.PrepMinutesPerUnit,
		})
	}
	return items
}

// GET /orders?status=all is the resync endpoint: the full current order
// list, also used by viewers on every (re)connect.
func (s *Server) listOrders(c *gin.Context) {
	var filter domain.Status
	if q := c.Query("status"); q != "" && q != "all" {
		st, err := domain.ParseStatus(q)
		if err != nil {
			problem(c, http.StatusBadRequest, "invalid_status", err.Error())
			return
		}
		filter = st
	}
	orders, err := s.repo.List(c.Request.Context(), filter)
	if err != nil {
		problem(c, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	c.JSON(http.StatusOK, orders)
}

// POST /orders validates and publishes an order-creation event; the
// ingestion worker persists and broadcasts it.
func (s *Server) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		problem(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	order := domain.Order{
		ID:           uuid.NewString(),
		Table:        req.Table,
		CustomerName: req.CustomerName,
		CreatedAt:    time.Now().UTC(),
		Items:        toItems(req.Items),
		Status:       domain.StatusPending,
	}

	body, err := domain.EncodeMessage(domain.OrderCreated{Order: order})
	if err != nil {
		problem(c, http.StatusInternalServerError, "encode_error", err.Error())
		return
	}
	if err := s.pub.Publish(c.Request.Context(), s.queue, body); err != nil {
		problem(c, http.StatusServiceUnavailable, "publish_error", err.Error())
		return
	}

	s.log.Info("order_enqueued", map[string]any{"order_id": order.ID, "table": order.Table})
	c.JSON(http.StatusAccepted, gin.H{"id": order.ID, "status": string(order.Status)})
}

// PATCH /orders/:id requests a status change. The transition is checked
// here so the caller gets a real rejection, then the event rides the queue
// through the same worker pipeline as everything else.
func (s *Server) updateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		problem(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	requested, err := domain.ParseStatus(req.Status)
	if err != nil {
		problem(c, http.StatusBadRequest, "invalid_status", err.Error())
		return
	}

	id := c.Param("id")
	cur, ok, err := s.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		problem(c, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	if !ok {
		problem(c, http.StatusNotFound, "not_found", "order not found")
		return
	}
	if _, err := domain.Transition(cur.Status, requested); err != nil {
		problem(c, http.StatusConflict, "invalid_transition", err.Error())
		return
	}

	body, err := domain.EncodeMessage(domain.StatusChanged{OrderID: id, NewStatus: requested})
	if err != nil {
		problem(c, http.StatusInternalServerError, "encode_error", err.Error())
		return
	}
	if err := s.pub.Publish(c.Request.Context(), s.queue, body); err != nil {
		problem(c, http.StatusServiceUnavailable, "publish_error", err.Error())
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"id": id, "status": string(requested)})
}

// PUT /orders/:id replaces the full item list, allowed only while the
// order is still pending. Not part of the status pipeline.
func (s *Server) updateOrder(c *gin.Context) {
	var req updateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		problem(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	id := c.Param("id")
	cur, ok, err := s.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		problem(c, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	if !ok {
		problem(c, http.StatusNotFound, "not_found", "order not found")
		return
	}
	if cur.Status != domain.StatusPending {
		problem(c, http.StatusConflict, "not_editable", "order is already in preparation")
		return
	}

	if req.Table != "" {
		cur.Table = req.Table
	}
	if req.CustomerName != "" {
		cur.CustomerName = req.CustomerName
	}
	cur.Items = toItems(req.Items)

	if err := s.repo.ReplaceItems(c.Request.Context(), cur); err != nil {
		problem(c, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	s.hub.Broadcast(domain.OrderUpdated{Order: cur})
	c.JSON(http.StatusOK, gin.H{"success": true, "id": id})
}

// GET /ws upgrades and hands the socket to the hub.
func (s *Server) serveWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Error("ws_upgrade_failed", err, nil)
		return
	}
	sess := hub.NewSession(conn)
	s.hub.Register(sess)
	sess.Run(s.hub)
}
