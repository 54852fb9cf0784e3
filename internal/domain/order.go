package domain

import "time"

// Order is the canonical order document. It is owned by the ingestion
// worker and the persistence layer; everyone else sees snapshots.
type Order struct {
	ID                   string      `json:"id" validate:"required"`
	Table                string      `json:"table" validate:"required"`
	CustomerName         string      `json:"customerName" validate:"required"`
	CreatedAt            time.Time   `json:"createdAt"`
	Items                []OrderItem `json:"items" validate:"min=1,dive"`
	Status               Status      `json:"status"`
	PrepStartedAt        *time.Time  `json:"prepStartedAt,omitempty"`
	EstimatedPrepMinutes *int        `json:"estimatedPrepMinutes,omitempty"`
}

type OrderItem struct {
	ProductName        string  `json:"productName" validate:"required"`
	Quantity           int     `json:"quantity" validate:"gt=0"`
	UnitPrice          float64 `json:"unitPrice" validate:"gte=0"`
	Note               string  `json:"note,omitempty"`
	PrepMinutesPerUnit float64 `json:"prepMinutesPerUnit,omitempty" validate:"gte=0"`
}

func (o *Order) Total() float64 {
	var t float64
	for _, it := range o.Items {
		t += float64(it.Quantity) * it.UnitPrice
	}
	return t
}
