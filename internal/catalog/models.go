package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        string
	SKU       string
	Name      string
	BasePrice decimal.Decimal
	Stock     int
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Variation is a sellable variant of a product (bouquet size, vase colour)
// with its own price and stock level.
type Variation struct {
	ID        string
	ProductID string
	Name      string
	Price     decimal.Decimal
	Stock     int
	Active    bool
}
