package coupon

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountKind is the closed set of discount computations.
type DiscountKind string

const (
	DiscountPercentage DiscountKind = "percentage"
	DiscountFixed      DiscountKind = "fixed"
)

func (k DiscountKind) IsValid() bool {
	return k == DiscountPercentage || k == DiscountFixed
}

type Coupon struct {
	ID             string
	Code           string // stored upper-cased
	Kind           DiscountKind
	Value          decimal.Decimal
	MinOrderAmount *decimal.Decimal
	MaxUses        *int
	CurrentUses    int
	ExpiresAt      *time.Time
	Active         bool
	CampaignID     *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Usage links a coupon to the order that consumed it with the exact discount
// granted, so later rule edits never corrupt historical orders.
type Usage struct {
	ID             string
	CouponID       string
	OrderID        string
	DiscountAmount decimal.Decimal
	UsedAt         time.Time
}
