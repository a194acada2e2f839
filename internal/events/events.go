package events

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventStockMovement      = "StockMovementApplied"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type OrderItemSnapshot struct {
	ProductID   string          `json:"product_id"`
	VariationID *string         `json:"variation_id,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type OrderCreatedPayload struct {
	OrderID     string              `json:"order_id"`
	OrderNumber string              `json:"order_number"`
	CustomerID  string              `json:"customer_id"`
	Items       []OrderItemSnapshot `json:"items"`
	Subtotal    decimal.Decimal     `json:"subtotal"`
	Discount    decimal.Decimal     `json:"discount"`
	Total       decimal.Decimal     `json:"total"`
}

type OrderStatusChangedPayload struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	From        string `json:"from"`
	To          string `json:"to"`
}

type StockMovementPayload struct {
	MovementID  string  `json:"movement_id"`
	ProductID   string  `json:"product_id"`
	VariationID *string `json:"variation_id,omitempty"`
	Kind        string  `json:"kind"`
	Quantity    int     `json:"quantity"`
	Before      int     `json:"quantity_before"`
	After       int     `json:"quantity_after"`
	Reason      string  `json:"reason"`
	OrderID     *string `json:"order_id,omitempty"`
}
