package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/petaldesk/florist-backoffice/internal/postgres"
	apperrors "github.com/petaldesk/florist-backoffice/pkg/errors"
)

// Rejection reasons returned by Validate. Each failed check yields its own
// reason so the cart preview can tell the customer what went wrong.
const (
	ReasonNotFound     = "coupon not found"
	ReasonInactive     = "coupon is not active"
	ReasonExpired      = "coupon has expired"
	ReasonExhausted    = "coupon usage limit reached"
	ReasonBelowMinimum = "order total is below the coupon minimum"
)

type Validation struct {
	Valid    bool
	Coupon   *Coupon
	Discount decimal.Decimal
	Reason   string
}

type Engine struct {
	Pool  *pgxpool.Pool
	Clock func() time.Time
}

func (e *Engine) now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now()
}

// NormalizeCode is the canonical form codes are stored and looked up in.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// redeemable runs the rule checks in order and returns the first failure
// reason, or "" when the coupon can be applied to the given total.
func redeemable(c Coupon, orderTotal decimal.Decimal, now time.Time) string {
	if !c.Active {
		return ReasonInactive
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return ReasonExpired
	}
	if c.MaxUses != nil && c.CurrentUses >= *c.MaxUses {
		return ReasonExhausted
	}
	if c.MinOrderAmount != nil && orderTotal.LessThan(*c.MinOrderAmount) {
		return ReasonBelowMinimum
	}
	return ""
}

// computeDiscount applies the discount rule to the order total, rounded
// half-up to 2 places. A fixed discount never exceeds the total.
func computeDiscount(kind DiscountKind, value, orderTotal decimal.Decimal) decimal.Decimal {
	switch kind {
	case DiscountPercentage:
		return orderTotal.Mul(value).Div(decimal.NewFromInt(100)).Round(2)
	case DiscountFixed:
		if value.GreaterThan(orderTotal) {
			return orderTotal.Round(2)
		}
		return value.Round(2)
	}
	return decimal.Zero
}

// Validate checks a code against an order total and computes the discount it
// would grant. An invalid code is a Validation result, not an error; errors
// are reserved for infrastructure failures.
func (e *Engine) Validate(ctx context.Context, q postgres.DBTX, code string, orderTotal decimal.Decimal) (Validation, error) {
	c, err := e.getByCode(ctx, q, NormalizeCode(code))
	if errors.Is(err, pgx.ErrNoRows) {
		return Validation{Reason: ReasonNotFound}, nil
	}
	if err != nil {
		return Validation{}, err
	}

	if reason := redeemable(c, orderTotal, e.now()); reason != "" {
		return Validation{Coupon: &c, Reason: reason}, nil
	}
	return Validation{
		Valid:    true,
		Coupon:   &c,
		Discount: computeDiscount(c.Kind, c.Value, orderTotal),
	}, nil
}

// RecordUsage persists the usage row and increments the use counter. The
// check and increment run under a row lock so concurrent redemptions cannot
// push past the max-use ceiling. Call only after the order is durably
// persisted in the same transaction.
func (e *Engine) RecordUsage(ctx context.Context, q postgres.DBTX, couponID, orderID string, amount decimal.Decimal) error {
	var currentUses int
	var maxUses *int
	err := q.QueryRow(ctx, `SELECT current_uses, max_uses FROM coupons WHERE id=$1 FOR UPDATE`, couponID).
		Scan(&currentUses, &maxUses)
	if errors.Is(err, pgx.ErrNoRows) {
		return &apperrors.ErrNotFound{Resource: "coupon", ID: couponID}
	}
	if err != nil {
		return err
	}
	if maxUses != nil && currentUses >= *maxUses {
		return &apperrors.ErrConflict{Message: fmt.Sprintf("coupon %s usage limit reached", couponID)}
	}

	if _, err := q.Exec(ctx, `
		INSERT INTO coupon_usages (id, coupon_id, order_id, discount_amount)
		VALUES ($1,$2,$3,$4)`,
		uuid.NewString(), couponID, orderID, amount); err != nil {
		return err
	}
	_, err = q.Exec(ctx, `UPDATE coupons SET current_uses = current_uses + 1, updated_at = now() WHERE id=$1`, couponID)
	return err
}

func (e *Engine) getByCode(ctx context.Context, q postgres.DBTX, code string) (Coupon, error) {
	var c Coupon
	var kind string
	err := q.QueryRow(ctx, `
		SELECT id, code, kind, value, min_order_amount, max_uses, current_uses,
		       expires_at, active, campaign_id, created_at, updated_at
		FROM coupons WHERE code = $1`, code).
		Scan(&c.ID, &c.Code, &kind, &c.Value, &c.MinOrderAmount, &c.MaxUses,
			&c.CurrentUses, &c.ExpiresAt, &c.Active, &c.CampaignID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Coupon{}, err
	}
	c.Kind = DiscountKind(kind)
	return c, nil
}
