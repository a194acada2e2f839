package customer

import (
	"time"

	"github.com/shopspring/decimal"
)

// Segment is the derived lifetime classification.
type Segment string

const (
	SegmentNew      Segment = "new"
	SegmentRegular  Segment = "regular"
	SegmentVIP      Segment = "vip"
	SegmentInactive Segment = "inactive"
)

// Customer aggregate fields (TotalOrders, TotalSpent, the order dates and
// Segment) are always recomputed from order history, never incremented, so
// they self-heal from drift.
type Customer struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Phone          string          `json:"phone"` // unique; the natural key for upsert
	Email          *string         `json:"email,omitempty"`
	Address        *string         `json:"address,omitempty"`
	Notes          *string         `json:"notes,omitempty"`
	TotalOrders    int             `json:"total_orders"`
	TotalSpent     decimal.Decimal `json:"total_spent"`
	FirstOrderDate *time.Time      `json:"first_order_date,omitempty"`
	LastOrderDate  *time.Time      `json:"last_order_date,omitempty"`
	Segment        Segment         `json:"segment"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
