package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/petaldesk/florist-backoffice/internal/catalog"
	"github.com/petaldesk/florist-backoffice/internal/coupon"
	"github.com/petaldesk/florist-backoffice/internal/customer"
	"github.com/petaldesk/florist-backoffice/internal/events"
	kafkax "github.com/petaldesk/florist-backoffice/internal/kafka"
	"github.com/petaldesk/florist-backoffice/internal/postgres"
	"github.com/petaldesk/florist-backoffice/internal/stock"
	apperrors "github.com/petaldesk/florist-backoffice/pkg/errors"
)

// Collaborator contracts the orchestrator depends on. The pgx-backed types
// in catalog, stock, coupon and customer implement them; tests substitute
// stubs.
type Catalog interface {
	GetProduct(ctx context.Context, q postgres.DBTX, id string) (catalog.Product, error)
	GetVariation(ctx context.Context, q postgres.DBTX, id, productID string) (catalog.Variation, error)
}

type Ledger interface {
	DeductForOrder(ctx context.Context, q postgres.DBTX, orderID string, lines []stock.Line) ([]stock.Movement, error)
	RestoreForOrder(ctx context.Context, q postgres.DBTX, orderID string, lines []stock.Line) ([]stock.Movement, error)
}

type CouponEngine interface {
	Validate(ctx context.Context, q postgres.DBTX, code string, orderTotal decimal.Decimal) (coupon.Validation, error)
	RecordUsage(ctx context.Context, q postgres.DBTX, couponID, orderID string, amount decimal.Decimal) error
}

type CustomerStore interface {
	UpsertFromOrder(ctx context.Context, q postgres.DBTX, in customer.UpsertInput) (string, error)
	RecalculateMetrics(ctx context.Context, q postgres.DBTX, customerID string) error
}

type Store interface {
	NextNumber(ctx context.Context, q postgres.DBTX, prefix string, day time.Time) (string, error)
	Insert(ctx context.Context, q postgres.DBTX, o *Order) error
	Get(ctx context.Context, q postgres.DBTX, id string) (Order, error)
	GetForUpdate(ctx context.Context, q postgres.DBTX, id string) (Order, error)
	UpdateStatus(ctx context.Context, q postgres.DBTX, id string, st Status) error
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Service runs the order workflow. Creation and status updates each execute
// inside one transaction it begins itself, so a failure partway leaves no
// partial stock deduction or customer-metric update behind.
type Service struct {
	DB     postgres.Beginner
	Reader postgres.DBTX

	Orders    Store
	Catalog   Catalog
	Stock     Ledger
	Coupons   CouponEngine
	Customers CustomerStore

	// Producers are optional; nil producers skip publishing.
	OrderProducer  Publisher // order.created
	StatusProducer Publisher // order.status.changed
	StockProducer  Publisher // stock.movement.applied

	Log   *zap.Logger
	Clock func() time.Time

	NumberPrefix string
	ServiceName  string

	// StrictCoupons turns an unusable supplied coupon code into a hard
	// creation failure instead of silently proceeding without a discount.
	StrictCoupons bool
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock().UTC()
	}
	return time.Now().UTC()
}

func validateCreate(in CreateInput) error {
	if in.CustomerName == "" || in.CustomerPhone == "" {
		return &apperrors.ErrInvalidOperation{Message: "customer name and phone are required"}
	}
	if len(in.Items) == 0 {
		return &apperrors.ErrInvalidOperation{Message: "order must contain at least one item"}
	}
	for _, it := range in.Items {
		if it.ProductID == "" {
			return &apperrors.ErrInvalidOperation{Message: "item product id is required"}
		}
		if it.Quantity <= 0 {
			return &apperrors.ErrInvalidOperation{Message: fmt.Sprintf("invalid quantity for product %s", it.ProductID)}
		}
	}
	return nil
}

// Create prices the cart, applies the coupon, persists the order, deducts
// stock and recomputes the customer aggregate, all in one transaction.
// Conflicts (order-number collision, coupon redemption race) retry the
// whole transaction once before surfacing.
func (s *Service) Create(ctx context.Context, in CreateInput) (Order, error) {
	if err := validateCreate(in); err != nil {
		return Order{}, err
	}

	o, movements, err := s.createOnce(ctx, in)
	if isRetryableConflict(err) {
		s.Log.Warn("order creation conflict, retrying once", zap.Error(err))
		o, movements, err = s.createOnce(ctx, in)
	}
	if err != nil {
		return Order{}, err
	}

	s.publishOrderCreated(o)
	s.PublishMovements(movements)
	s.Log.Info("order created",
		zap.String("order_id", o.ID),
		zap.String("order_number", o.OrderNumber),
		zap.String("total", o.TotalAmount.String()))
	return o, nil
}

func isRetryableConflict(err error) bool {
	if err == nil {
		return false
	}
	if postgres.IsUniqueViolation(err, "") {
		return true
	}
	var conflict *apperrors.ErrConflict
	return errors.As(err, &conflict)
}

func (s *Service) createOnce(ctx context.Context, in CreateInput) (Order, []stock.Movement, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := s.now()

	items, subtotal, err := s.priceItems(ctx, tx, in.Items)
	if err != nil {
		return Order{}, nil, err
	}

	total := subtotal
	discount := decimal.Zero
	var couponID *string
	if in.CouponCode != "" {
		val, err := s.Coupons.Validate(ctx, tx, in.CouponCode, subtotal)
		if err != nil {
			return Order{}, nil, err
		}
		if val.Valid {
			couponID = &val.Coupon.ID
			discount = val.Discount
			total = subtotal.Sub(discount)
		} else if s.StrictCoupons {
			return Order{}, nil, &apperrors.ErrInvalidOperation{
				Message: fmt.Sprintf("coupon %q cannot be applied: %s", in.CouponCode, val.Reason),
			}
		} else {
			s.Log.Info("ignoring unusable coupon",
				zap.String("code", in.CouponCode),
				zap.String("reason", val.Reason))
		}
	}

	customerID, err := s.Customers.UpsertFromOrder(ctx, tx, customer.UpsertInput{
		Name:    in.CustomerName,
		Phone:   in.CustomerPhone,
		Email:   in.CustomerEmail,
		Address: in.DeliveryAddress,
	})
	if err != nil {
		return Order{}, nil, err
	}

	number, err := s.Orders.NextNumber(ctx, tx, s.NumberPrefix, now)
	if err != nil {
		return Order{}, nil, err
	}

	o := Order{
		ID:              uuid.NewString(),
		OrderNumber:     number,
		CustomerID:      customerID,
		CustomerName:    in.CustomerName,
		CustomerPhone:   in.CustomerPhone,
		CustomerEmail:   optional(in.CustomerEmail),
		DeliveryAddress: optional(in.DeliveryAddress),
		DeliveryNotes:   optional(in.DeliveryNotes),
		Status:          StatusNew,
		Subtotal:        subtotal,
		DiscountAmount:  discount,
		TotalAmount:     total,
		CouponID:        couponID,
		Items:           items,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.Orders.Insert(ctx, tx, &o); err != nil {
		return Order{}, nil, err
	}

	// usage is recorded only after the order row exists, so a failed save
	// never consumes the coupon
	if couponID != nil {
		if err := s.Coupons.RecordUsage(ctx, tx, *couponID, o.ID, discount); err != nil {
			return Order{}, nil, err
		}
	}

	movements, err := s.Stock.DeductForOrder(ctx, tx, o.ID, orderLines(o.Items))
	if err != nil {
		return Order{}, nil, err
	}

	if err := s.Customers.RecalculateMetrics(ctx, tx, customerID); err != nil {
		return Order{}, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, nil, err
	}
	return o, movements, nil
}

// priceItems snapshots name and unit price per line from the current
// catalog: variation price when a variation is specified, base price
// otherwise.
func (s *Service) priceItems(ctx context.Context, q postgres.DBTX, inputs []ItemInput) ([]OrderItem, decimal.Decimal, error) {
	items := make([]OrderItem, 0, len(inputs))
	subtotal := decimal.Zero
	for _, in := range inputs {
		p, err := s.Catalog.GetProduct(ctx, q, in.ProductID)
		if err != nil {
			return nil, decimal.Zero, err
		}

		price := p.BasePrice
		var variationName *string
		if in.VariationID != nil {
			v, err := s.Catalog.GetVariation(ctx, q, *in.VariationID, in.ProductID)
			if err != nil {
				return nil, decimal.Zero, err
			}
			price = v.Price
			variationName = &v.Name
		}

		lineSubtotal := price.Mul(decimal.NewFromInt(int64(in.Quantity))).Round(2)
		items = append(items, OrderItem{
			ID:            uuid.NewString(),
			ProductID:     in.ProductID,
			VariationID:   in.VariationID,
			ProductName:   p.Name,
			VariationName: variationName,
			UnitPrice:     price,
			Quantity:      in.Quantity,
			Subtotal:      lineSubtotal,
		})
		subtotal = subtotal.Add(lineSubtotal)
	}
	return items, subtotal, nil
}

// UpdateStatus transitions the order. Entering cancelled is the only
// transition with a side effect: every line's stock is restored and the
// customer aggregate recomputed, in the same transaction.
func (s *Service) UpdateStatus(ctx context.Context, id string, to Status) (Order, error) {
	if !to.IsValid() {
		return Order{}, &apperrors.ErrInvalidOperation{Message: fmt.Sprintf("unknown status %q", to)}
	}

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := s.Orders.GetForUpdate(ctx, tx, id)
	if err != nil {
		return Order{}, err
	}
	from := o.Status
	if !CanTransition(from, to) {
		return Order{}, &apperrors.ErrInvalidStateTransition{From: string(from), To: string(to)}
	}

	if err := s.Orders.UpdateStatus(ctx, tx, id, to); err != nil {
		return Order{}, err
	}

	var movements []stock.Movement
	if to == StatusCancelled {
		movements, err = s.Stock.RestoreForOrder(ctx, tx, id, orderLines(o.Items))
		if err != nil {
			return Order{}, err
		}
		if err := s.Customers.RecalculateMetrics(ctx, tx, o.CustomerID); err != nil {
			return Order{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}

	o.Status = to
	o.UpdatedAt = s.now()
	s.publishStatusChanged(o, from, to)
	s.PublishMovements(movements)
	s.Log.Info("order status changed",
		zap.String("order_id", o.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return o, nil
}

func (s *Service) Get(ctx context.Context, id string) (Order, error) {
	return s.Orders.Get(ctx, s.Reader, id)
}

func orderLines(items []OrderItem) []stock.Line {
	lines := make([]stock.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, stock.Line{
			ProductID:   it.ProductID,
			VariationID: it.VariationID,
			Quantity:    it.Quantity,
		})
	}
	return lines
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *Service) envelope(eventType, correlationID string, payload any) []byte {
	return kafkax.MustMarshal(events.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    s.now(),
		Producer:      s.ServiceName,
		CorrelationID: correlationID,
		Payload:       kafkax.MustMarshal(payload),
	})
}

func (s *Service) publishOrderCreated(o Order) {
	if s.OrderProducer == nil {
		return
	}
	snaps := make([]events.OrderItemSnapshot, 0, len(o.Items))
	for _, it := range o.Items {
		snaps = append(snaps, events.OrderItemSnapshot{
			ProductID:   it.ProductID,
			VariationID: it.VariationID,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}
	value := s.envelope(events.EventOrderCreated, o.ID, events.OrderCreatedPayload{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		CustomerID:  o.CustomerID,
		Items:       snaps,
		Subtotal:    o.Subtotal,
		Discount:    o.DiscountAmount,
		Total:       o.TotalAmount,
	})
	s.OrderProducer.Publish(events.PartitionKey(o.ID), value,
		kafkago.Header{Key: "x-event-type", Value: []byte(events.EventOrderCreated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (s *Service) publishStatusChanged(o Order, from, to Status) {
	if s.StatusProducer == nil {
		return
	}
	value := s.envelope(events.EventOrderStatusChanged, o.ID, events.OrderStatusChangedPayload{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		From:        string(from),
		To:          string(to),
	})
	s.StatusProducer.Publish(events.PartitionKey(o.ID), value,
		kafkago.Header{Key: "x-event-type", Value: []byte(events.EventOrderStatusChanged)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

// PublishMovements emits one stock.movement.applied event per ledger entry.
// The admin stock handler reuses it for manual movements.
func (s *Service) PublishMovements(movements []stock.Movement) {
	if s.StockProducer == nil {
		return
	}
	for _, m := range movements {
		value := s.envelope(events.EventStockMovement, m.ProductID, events.StockMovementPayload{
			MovementID:  m.ID,
			ProductID:   m.ProductID,
			VariationID: m.VariationID,
			Kind:        string(m.Kind),
			Quantity:    m.Quantity,
			Before:      m.QuantityBefore,
			After:       m.QuantityAfter,
			Reason:      m.Reason,
			OrderID:     m.OrderID,
		})
		s.StockProducer.Publish(events.PartitionKey(m.ProductID), value,
			kafkago.Header{Key: "x-event-type", Value: []byte(events.EventStockMovement)},
			kafkago.Header{Key: "x-event-version", Value: []byte("1")},
		)
	}
}
