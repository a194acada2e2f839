package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/petaldesk/florist-backoffice/internal/postgres"
	apperrors "github.com/petaldesk/florist-backoffice/pkg/errors"
)

type Repo struct{ Pool *pgxpool.Pool }

// NextNumber computes the next date-scoped order number inside the caller's
// transaction. Locking the day's current maximum serializes same-day
// creators; the unique constraint plus a retry covers the residual race when
// the day has no orders yet. Ordering by length before value keeps the
// numeric maximum first once the sequence widens past three digits, where
// plain text ordering would put "-999" above "-1000".
func (r *Repo) NextNumber(ctx context.Context, q postgres.DBTX, prefix string, day time.Time) (string, error) {
	var last string
	err := q.QueryRow(ctx, `
		SELECT order_number FROM orders
		WHERE order_number LIKE $1
		ORDER BY length(order_number) DESC, order_number DESC
		LIMIT 1
		FOR UPDATE`, dayPrefix(prefix, day)+"%").Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return formatNumber(prefix, day, 1), nil
	}
	if err != nil {
		return "", err
	}
	seq, err := nextSequence(last)
	if err != nil {
		return "", err
	}
	return formatNumber(prefix, day, seq), nil
}

func (r *Repo) Insert(ctx context.Context, q postgres.DBTX, o *Order) error {
	_, err := q.Exec(ctx, `
		INSERT INTO orders
			(id, order_number, customer_id, customer_name, customer_phone, customer_email,
			 delivery_address, delivery_notes, status, subtotal, discount_amount, total_amount,
			 coupon_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$14)`,
		o.ID, o.OrderNumber, o.CustomerID, o.CustomerName, o.CustomerPhone, o.CustomerEmail,
		o.DeliveryAddress, o.DeliveryNotes, string(o.Status), o.Subtotal, o.DiscountAmount,
		o.TotalAmount, o.CouponID, o.CreatedAt)
	if err != nil {
		return err
	}
	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		if _, err := q.Exec(ctx, `
			INSERT INTO order_items
				(id, order_id, product_id, variation_id, product_name, variation_name,
				 unit_price, quantity, subtotal)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			it.ID, it.OrderID, it.ProductID, it.VariationID, it.ProductName,
			it.VariationName, it.UnitPrice, it.Quantity, it.Subtotal); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, q postgres.DBTX, id string) (Order, error) {
	return r.get(ctx, q, id, false)
}

// GetForUpdate locks the order row for the duration of the caller's
// transaction; status updates use it so concurrent transitions serialize.
func (r *Repo) GetForUpdate(ctx context.Context, q postgres.DBTX, id string) (Order, error) {
	return r.get(ctx, q, id, true)
}

func (r *Repo) get(ctx context.Context, q postgres.DBTX, id string, forUpdate bool) (Order, error) {
	query := `
		SELECT id, order_number, customer_id, customer_name, customer_phone, customer_email,
		       delivery_address, delivery_notes, status, subtotal, discount_amount,
		       total_amount, coupon_id, created_at, updated_at
		FROM orders WHERE id=$1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var o Order
	var status string
	err := q.QueryRow(ctx, query, id).Scan(
		&o.ID, &o.OrderNumber, &o.CustomerID, &o.CustomerName, &o.CustomerPhone,
		&o.CustomerEmail, &o.DeliveryAddress, &o.DeliveryNotes, &status, &o.Subtotal,
		&o.DiscountAmount, &o.TotalAmount, &o.CouponID, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, &apperrors.ErrNotFound{Resource: "order", ID: id}
	}
	if err != nil {
		return Order{}, err
	}
	o.Status = Status(status)

	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, variation_id, product_name, variation_name,
		       unit_price, quantity, subtotal
		FROM order_items WHERE order_id=$1
		ORDER BY product_name, id`, id)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.VariationID,
			&it.ProductName, &it.VariationName, &it.UnitPrice, &it.Quantity, &it.Subtotal); err != nil {
			return Order{}, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

func (r *Repo) UpdateStatus(ctx context.Context, q postgres.DBTX, id string, st Status) error {
	ct, err := q.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`, id, string(st))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return &apperrors.ErrNotFound{Resource: "order", ID: id}
	}
	return nil
}
