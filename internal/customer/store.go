package customer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/petaldesk/florist-backoffice/internal/postgres"
	apperrors "github.com/petaldesk/florist-backoffice/pkg/errors"
)

// vipOrders / vipSpent / inactiveAfter drive segment classification.
const (
	vipOrders     = 5
	inactiveAfter = 90 * 24 * time.Hour
)

var vipSpent = decimal.NewFromInt(1000)

type Store struct {
	Pool  *pgxpool.Pool
	Clock func() time.Time
}

func (s *Store) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

type UpsertInput struct {
	Name    string
	Phone   string
	Email   string
	Address string
}

// UpsertFromOrder finds-or-creates the customer by phone. Existing customers
// get their name refreshed; email and address are only filled in when
// supplied, never blanked.
func (s *Store) UpsertFromOrder(ctx context.Context, q postgres.DBTX, in UpsertInput) (string, error) {
	var id string
	err := q.QueryRow(ctx, `SELECT id FROM customers WHERE phone=$1`, in.Phone).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		id = uuid.NewString()
		_, err = q.Exec(ctx, `
			INSERT INTO customers (id, name, phone, email, address, segment)
			VALUES ($1, $2, $3, NULLIF($4,''), NULLIF($5,''), $6)`,
			id, in.Name, in.Phone, in.Email, in.Address, string(SegmentNew))
		if err != nil {
			return "", err
		}
		return id, nil
	}
	if err != nil {
		return "", err
	}

	_, err = q.Exec(ctx, `
		UPDATE customers SET
			name = $2,
			email = COALESCE(NULLIF($3,''), email),
			address = COALESCE(NULLIF($4,''), address),
			updated_at = now()
		WHERE id = $1`,
		id, in.Name, in.Email, in.Address)
	if err != nil {
		return "", err
	}
	return id, nil
}

// segmentFor classifies in strict precedence: no orders, then vip volume or
// spend, then recency, else regular.
func segmentFor(totalOrders int, totalSpent decimal.Decimal, lastOrder *time.Time, now time.Time) Segment {
	if totalOrders == 0 {
		return SegmentNew
	}
	if totalOrders >= vipOrders || totalSpent.GreaterThanOrEqual(vipSpent) {
		return SegmentVIP
	}
	if lastOrder != nil && now.Sub(*lastOrder) > inactiveAfter {
		return SegmentInactive
	}
	return SegmentRegular
}

// RecalculateMetrics recomputes the aggregate fields as count/sum/min/max
// over the customer's non-cancelled orders. Idempotent.
func (s *Store) RecalculateMetrics(ctx context.Context, q postgres.DBTX, customerID string) error {
	var totalOrders int
	var totalSpent decimal.Decimal
	var first, last *time.Time
	err := q.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_amount), 0), MIN(created_at), MAX(created_at)
		FROM orders
		WHERE customer_id = $1 AND status <> 'cancelled'`, customerID).
		Scan(&totalOrders, &totalSpent, &first, &last)
	if err != nil {
		return err
	}

	seg := segmentFor(totalOrders, totalSpent, last, s.now())

	ct, err := q.Exec(ctx, `
		UPDATE customers SET
			total_orders = $2,
			total_spent = $3,
			first_order_date = $4,
			last_order_date = $5,
			segment = $6,
			updated_at = now()
		WHERE id = $1`,
		customerID, totalOrders, totalSpent, first, last, string(seg))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return &apperrors.ErrNotFound{Resource: "customer", ID: customerID}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (Customer, error) {
	var c Customer
	var seg string
	err := s.Pool.QueryRow(ctx, `
		SELECT id, name, phone, email, address, notes, total_orders, total_spent,
		       first_order_date, last_order_date, segment, created_at, updated_at
		FROM customers WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.Notes, &c.TotalOrders,
			&c.TotalSpent, &c.FirstOrderDate, &c.LastOrderDate, &seg, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, &apperrors.ErrNotFound{Resource: "customer", ID: id}
	}
	if err != nil {
		return Customer{}, err
	}
	c.Segment = Segment(seg)
	return c, nil
}
