package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is created once and immutable afterwards except for Status and the
// update timestamp. Customer contact fields are denormalized at creation
// time; later edits to the customer record never alter the order.
type Order struct {
	ID              string          `json:"id"`
	OrderNumber     string          `json:"order_number"`
	CustomerID      string          `json:"customer_id"`
	CustomerName    string          `json:"customer_name"`
	CustomerPhone   string          `json:"customer_phone"`
	CustomerEmail   *string         `json:"customer_email,omitempty"`
	DeliveryAddress *string         `json:"delivery_address,omitempty"`
	DeliveryNotes   *string         `json:"delivery_notes,omitempty"`
	Status          Status          `json:"status"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	CouponID        *string         `json:"coupon_id,omitempty"`
	Items           []OrderItem     `json:"items"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OrderItem snapshots the product/variation name and unit price at order
// time so catalog edits cannot retroactively change historical orders.
// Never mutated after creation.
type OrderItem struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"order_id"`
	ProductID     string          `json:"product_id"`
	VariationID   *string         `json:"variation_id,omitempty"`
	ProductName   string          `json:"product_name"`
	VariationName *string         `json:"variation_name,omitempty"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Quantity      int             `json:"quantity"`
	Subtotal      decimal.Decimal `json:"subtotal"`
}

type ItemInput struct {
	ProductID   string  `json:"productId"`
	VariationID *string `json:"variationId,omitempty"`
	Quantity    int     `json:"quantity"`
}

type CreateInput struct {
	CustomerName    string      `json:"customerName"`
	CustomerPhone   string      `json:"customerPhone"`
	CustomerEmail   string      `json:"customerEmail,omitempty"`
	DeliveryAddress string      `json:"deliveryAddress,omitempty"`
	DeliveryNotes   string      `json:"deliveryNotes,omitempty"`
	CouponCode      string      `json:"couponCode,omitempty"`
	Items           []ItemInput `json:"items"`
}
