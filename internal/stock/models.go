package stock

import "time"

// Kind is the closed set of movement kinds.
type Kind string

const (
	KindIn         Kind = "in"
	KindOut        Kind = "out"
	KindAdjustment Kind = "adjustment"
)

func (k Kind) IsValid() bool {
	switch k {
	case KindIn, KindOut, KindAdjustment:
		return true
	}
	return false
}

// Movement reasons written by the order workflow.
const (
	ReasonSale               = "sale"
	ReasonCancellationRefund = "cancellation refund"
)

// Movement is one append-only entry in the stock audit trail. Rows are never
// updated or deleted.
type Movement struct {
	ID             string    `json:"id"`
	ProductID      string    `json:"product_id"`
	VariationID    *string   `json:"variation_id,omitempty"`
	Kind           Kind      `json:"kind"`
	Quantity       int       `json:"quantity"`
	QuantityBefore int       `json:"quantity_before"`
	QuantityAfter  int       `json:"quantity_after"`
	Reason         string    `json:"reason"`
	OrderID        *string   `json:"order_id,omitempty"`
	UserID         *string   `json:"user_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Line is one order line the ledger deducts or restores.
type Line struct {
	ProductID   string
	VariationID *string
	Quantity    int
}

// LowStockItem is a product at or below the alert threshold.
type LowStockItem struct {
	ProductID string `json:"product_id"`
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	Stock     int    `json:"stock"`
}
