package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/petaldesk/florist-backoffice/internal/postgres"
	apperrors "github.com/petaldesk/florist-backoffice/pkg/errors"
)

// Ledger owns on-hand quantities and the movement audit trail. Every change
// goes through Apply so quantity and history cannot drift apart.
type Ledger struct{ Pool *pgxpool.Pool }

type ApplyInput struct {
	ProductID   string
	VariationID *string
	Kind        Kind
	Quantity    int
	Reason      string
	OrderID     *string
	UserID      *string
}

// nextQuantity computes the post-movement quantity. Out movements that would
// go below zero are rejected rather than allowing oversell.
func nextQuantity(kind Kind, current, qty int) (int, error) {
	switch kind {
	case KindIn:
		return current + qty, nil
	case KindOut:
		next := current - qty
		if next < 0 {
			return 0, errors.New("below zero")
		}
		return next, nil
	case KindAdjustment:
		return qty, nil
	}
	return 0, fmt.Errorf("unknown movement kind %q", kind)
}

func validateApply(in ApplyInput) error {
	if !in.Kind.IsValid() {
		return &apperrors.ErrInvalidOperation{Message: fmt.Sprintf("unknown movement kind %q", in.Kind)}
	}
	if in.Kind == KindAdjustment {
		if in.Quantity < 0 {
			return &apperrors.ErrInvalidOperation{Message: "adjustment quantity must not be negative"}
		}
		return nil
	}
	if in.Quantity <= 0 {
		return &apperrors.ErrInvalidOperation{Message: "movement quantity must be positive"}
	}
	return nil
}

// Apply locks the product or variation row, writes the new quantity and
// appends the movement snapshotting before/after. Runs inside the caller's
// transaction.
func (l *Ledger) Apply(ctx context.Context, q postgres.DBTX, in ApplyInput) (Movement, error) {
	if err := validateApply(in); err != nil {
		return Movement{}, err
	}

	var before int
	var err error
	if in.VariationID != nil {
		err = q.QueryRow(ctx, `SELECT stock FROM product_variations WHERE id=$1 AND product_id=$2 FOR UPDATE`,
			*in.VariationID, in.ProductID).Scan(&before)
	} else {
		err = q.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1 FOR UPDATE`, in.ProductID).Scan(&before)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if in.VariationID != nil {
			return Movement{}, &apperrors.ErrNotFound{Resource: "variation", ID: *in.VariationID}
		}
		return Movement{}, &apperrors.ErrNotFound{Resource: "product", ID: in.ProductID}
	}
	if err != nil {
		return Movement{}, err
	}

	after, err := nextQuantity(in.Kind, before, in.Quantity)
	if err != nil {
		if in.Kind == KindOut {
			return Movement{}, &apperrors.ErrInsufficientStock{
				ProductID: in.ProductID, Required: in.Quantity, Available: before,
			}
		}
		return Movement{}, err
	}

	if in.VariationID != nil {
		_, err = q.Exec(ctx, `UPDATE product_variations SET stock=$3 WHERE id=$1 AND product_id=$2`,
			*in.VariationID, in.ProductID, after)
	} else {
		_, err = q.Exec(ctx, `UPDATE products SET stock=$2, updated_at=now() WHERE id=$1`, in.ProductID, after)
	}
	if err != nil {
		return Movement{}, err
	}

	m := Movement{
		ID:             uuid.NewString(),
		ProductID:      in.ProductID,
		VariationID:    in.VariationID,
		Kind:           in.Kind,
		Quantity:       in.Quantity,
		QuantityBefore: before,
		QuantityAfter:  after,
		Reason:         in.Reason,
		OrderID:        in.OrderID,
		UserID:         in.UserID,
	}
	err = q.QueryRow(ctx, `
		INSERT INTO stock_movements
			(id, product_id, variation_id, kind, quantity, quantity_before, quantity_after, reason, order_id, user_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at`,
		m.ID, m.ProductID, m.VariationID, string(m.Kind), m.Quantity,
		m.QuantityBefore, m.QuantityAfter, m.Reason, m.OrderID, m.UserID).
		Scan(&m.CreatedAt)
	if err != nil {
		return Movement{}, err
	}
	return m, nil
}

// ApplyStandalone wraps Apply in its own transaction for the admin
// restock/adjustment endpoint.
func (l *Ledger) ApplyStandalone(ctx context.Context, in ApplyInput) (Movement, error) {
	tx, err := l.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Movement{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	m, err := l.Apply(ctx, tx, in)
	if err != nil {
		return Movement{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Movement{}, err
	}
	return m, nil
}

// DeductForOrder applies one out movement per line, tagged with the order.
func (l *Ledger) DeductForOrder(ctx context.Context, q postgres.DBTX, orderID string, lines []Line) ([]Movement, error) {
	out := make([]Movement, 0, len(lines))
	for _, ln := range lines {
		m, err := l.Apply(ctx, q, ApplyInput{
			ProductID:   ln.ProductID,
			VariationID: ln.VariationID,
			Kind:        KindOut,
			Quantity:    ln.Quantity,
			Reason:      ReasonSale,
			OrderID:     &orderID,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// RestoreForOrder mirrors DeductForOrder with in movements on cancellation.
func (l *Ledger) RestoreForOrder(ctx context.Context, q postgres.DBTX, orderID string, lines []Line) ([]Movement, error) {
	out := make([]Movement, 0, len(lines))
	for _, ln := range lines {
		m, err := l.Apply(ctx, q, ApplyInput{
			ProductID:   ln.ProductID,
			VariationID: ln.VariationID,
			Kind:        KindIn,
			Quantity:    ln.Quantity,
			Reason:      ReasonCancellationRefund,
			OrderID:     &orderID,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (l *Ledger) Movements(ctx context.Context, productID string, limit int) ([]Movement, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.Pool.Query(ctx, `
		SELECT id, product_id, variation_id, kind, quantity, quantity_before, quantity_after,
		       reason, order_id, user_id, created_at
		FROM stock_movements
		WHERE ($1::text = '' OR product_id::text = $1)
		ORDER BY created_at DESC
		LIMIT $2`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Movement
	for rows.Next() {
		var m Movement
		var kind string
		if err := rows.Scan(&m.ID, &m.ProductID, &m.VariationID, &kind, &m.Quantity,
			&m.QuantityBefore, &m.QuantityAfter, &m.Reason, &m.OrderID, &m.UserID, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Kind = Kind(kind)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (l *Ledger) LowStock(ctx context.Context, threshold int) ([]LowStockItem, error) {
	rows, err := l.Pool.Query(ctx, `
		SELECT id, sku, name, stock FROM products
		WHERE active AND stock <= $1
		ORDER BY stock, sku`, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LowStockItem
	for rows.Next() {
		var it LowStockItem
		if err := rows.Scan(&it.ProductID, &it.SKU, &it.Name, &it.Stock); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
