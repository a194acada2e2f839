package orders

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/petaldesk/florist-backoffice/internal/catalog"
	"github.com/petaldesk/florist-backoffice/internal/coupon"
	"github.com/petaldesk/florist-backoffice/internal/customer"
	"github.com/petaldesk/florist-backoffice/internal/postgres"
	"github.com/petaldesk/florist-backoffice/internal/stock"
	apperrors "github.com/petaldesk/florist-backoffice/pkg/errors"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(ctx context.Context) error { t.committed = true; return nil }
func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type stubDB struct{ txs []*fakeTx }

func (db *stubDB) BeginTx(ctx context.Context, _ pgx.TxOptions) (pgx.Tx, error) {
	tx := &fakeTx{}
	db.txs = append(db.txs, tx)
	return tx, nil
}

type stubCatalog struct {
	products   map[string]catalog.Product
	variations map[string]catalog.Variation
}

func (c *stubCatalog) GetProduct(_ context.Context, _ postgres.DBTX, id string) (catalog.Product, error) {
	p, ok := c.products[id]
	if !ok {
		return catalog.Product{}, &apperrors.ErrNotFound{Resource: "product", ID: id}
	}
	return p, nil
}

func (c *stubCatalog) GetVariation(_ context.Context, _ postgres.DBTX, id, productID string) (catalog.Variation, error) {
	v, ok := c.variations[id]
	if !ok || v.ProductID != productID {
		return catalog.Variation{}, &apperrors.ErrNotFound{Resource: "variation", ID: id}
	}
	return v, nil
}

type stubLedger struct {
	deducted  map[string][]stock.Line
	restored  map[string][]stock.Line
	deductErr error
}

func (l *stubLedger) movements(orderID string, kind stock.Kind, lines []stock.Line) []stock.Movement {
	out := make([]stock.Movement, 0, len(lines))
	for _, ln := range lines {
		out = append(out, stock.Movement{
			ID: "m-" + ln.ProductID, ProductID: ln.ProductID, VariationID: ln.VariationID,
			Kind: kind, Quantity: ln.Quantity, OrderID: &orderID,
		})
	}
	return out
}

func (l *stubLedger) DeductForOrder(_ context.Context, _ postgres.DBTX, orderID string, lines []stock.Line) ([]stock.Movement, error) {
	if l.deductErr != nil {
		return nil, l.deductErr
	}
	if l.deducted == nil {
		l.deducted = map[string][]stock.Line{}
	}
	l.deducted[orderID] = lines
	return l.movements(orderID, stock.KindOut, lines), nil
}

func (l *stubLedger) RestoreForOrder(_ context.Context, _ postgres.DBTX, orderID string, lines []stock.Line) ([]stock.Movement, error) {
	if l.restored == nil {
		l.restored = map[string][]stock.Line{}
	}
	l.restored[orderID] = lines
	return l.movements(orderID, stock.KindIn, lines), nil
}

type usageRec struct {
	couponID, orderID string
	amount            decimal.Decimal
}

type stubCoupons struct {
	validation coupon.Validation
	usages     []usageRec
}

func (c *stubCoupons) Validate(_ context.Context, _ postgres.DBTX, code string, total decimal.Decimal) (coupon.Validation, error) {
	return c.validation, nil
}

func (c *stubCoupons) RecordUsage(_ context.Context, _ postgres.DBTX, couponID, orderID string, amount decimal.Decimal) error {
	c.usages = append(c.usages, usageRec{couponID, orderID, amount})
	return nil
}

type stubCustomers struct {
	id           string
	recalculated []string
}

func (c *stubCustomers) UpsertFromOrder(_ context.Context, _ postgres.DBTX, in customer.UpsertInput) (string, error) {
	return c.id, nil
}

func (c *stubCustomers) RecalculateMetrics(_ context.Context, _ postgres.DBTX, customerID string) error {
	c.recalculated = append(c.recalculated, customerID)
	return nil
}

type stubStore struct {
	orders     map[string]Order
	insertErrs []error
	nextSeq    int
}

func (s *stubStore) NextNumber(_ context.Context, _ postgres.DBTX, prefix string, day time.Time) (string, error) {
	s.nextSeq++
	return formatNumber(prefix, day, s.nextSeq), nil
}

func (s *stubStore) Insert(_ context.Context, _ postgres.DBTX, o *Order) error {
	if len(s.insertErrs) > 0 {
		err := s.insertErrs[0]
		s.insertErrs = s.insertErrs[1:]
		if err != nil {
			return err
		}
	}
	if s.orders == nil {
		s.orders = map[string]Order{}
	}
	s.orders[o.ID] = *o
	return nil
}

func (s *stubStore) Get(_ context.Context, _ postgres.DBTX, id string) (Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return Order{}, &apperrors.ErrNotFound{Resource: "order", ID: id}
	}
	return o, nil
}

func (s *stubStore) GetForUpdate(ctx context.Context, q postgres.DBTX, id string) (Order, error) {
	return s.Get(ctx, q, id)
}

func (s *stubStore) UpdateStatus(_ context.Context, _ postgres.DBTX, id string, st Status) error {
	o, ok := s.orders[id]
	if !ok {
		return &apperrors.ErrNotFound{Resource: "order", ID: id}
	}
	o.Status = st
	s.orders[id] = o
	return nil
}

type stubPublisher struct{ published [][]byte }

func (p *stubPublisher) Publish(key, value []byte, headers ...kafkago.Header) {
	p.published = append(p.published, value)
}

type fixture struct {
	svc       *Service
	db        *stubDB
	store     *stubStore
	ledger    *stubLedger
	coupons   *stubCoupons
	customers *stubCustomers
}

func newFixture() *fixture {
	db := &stubDB{}
	store := &stubStore{}
	ledger := &stubLedger{}
	coupons := &stubCoupons{validation: coupon.Validation{Reason: coupon.ReasonNotFound}}
	customers := &stubCustomers{id: "cust-1"}
	cat := &stubCatalog{
		products: map[string]catalog.Product{
			"prod-a": {ID: "prod-a", Name: "Rose Bouquet", BasePrice: dec("25.00"), Active: true},
			"prod-b": {ID: "prod-b", Name: "Tulip Vase", BasePrice: dec("40.00"), Active: true},
		},
		variations: map[string]catalog.Variation{
			"var-1": {ID: "var-1", ProductID: "prod-a", Name: "Large", Price: dec("35.00"), Active: true},
		},
	}
	svc := &Service{
		DB:           db,
		Orders:       store,
		Catalog:      cat,
		Stock:        ledger,
		Coupons:      coupons,
		Customers:    customers,
		Log:          zap.NewNop(),
		Clock:        func() time.Time { return time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC) },
		NumberPrefix: "FLO",
		ServiceName:  "test",
	}
	return &fixture{svc: svc, db: db, store: store, ledger: ledger, coupons: coupons, customers: customers}
}

func twoItemInput() CreateInput {
	return CreateInput{
		CustomerName:  "Ada",
		CustomerPhone: "555-0101",
		Items: []ItemInput{
			{ProductID: "prod-a", Quantity: 2},
			{ProductID: "prod-b", Quantity: 1},
		},
	}
}

func TestCreateOrder(t *testing.T) {
	t.Run("prices items and totals without coupon", func(t *testing.T) {
		f := newFixture()
		o, err := f.svc.Create(context.Background(), twoItemInput())
		require.NoError(t, err)

		assert.True(t, o.Subtotal.Equal(dec("90.00")), "subtotal %s", o.Subtotal)
		assert.True(t, o.DiscountAmount.IsZero())
		assert.True(t, o.TotalAmount.Equal(dec("90.00")), "total %s", o.TotalAmount)
		assert.Equal(t, "FLO-20260828-001", o.OrderNumber)
		assert.Equal(t, StatusNew, o.Status)
		assert.Equal(t, "cust-1", o.CustomerID)

		require.Len(t, o.Items, 2)
		assert.Equal(t, "Rose Bouquet", o.Items[0].ProductName)
		assert.True(t, o.Items[0].Subtotal.Equal(dec("50.00")))
		assert.True(t, o.Items[1].Subtotal.Equal(dec("40.00")))

		// subtotal == sum of line subtotals, total == subtotal - discount
		sum := decimal.Zero
		for _, it := range o.Items {
			sum = sum.Add(it.Subtotal)
		}
		assert.True(t, o.Subtotal.Equal(sum))
		assert.True(t, o.TotalAmount.Equal(o.Subtotal.Sub(o.DiscountAmount)))

		require.Len(t, f.db.txs, 1)
		assert.True(t, f.db.txs[0].committed)
		assert.Len(t, f.ledger.deducted[o.ID], 2)
		assert.Equal(t, []string{"cust-1"}, f.customers.recalculated)
		assert.Empty(t, f.coupons.usages)
	})

	t.Run("variation overrides price and snapshots name", func(t *testing.T) {
		f := newFixture()
		varID := "var-1"
		in := CreateInput{
			CustomerName:  "Ada",
			CustomerPhone: "555-0101",
			Items:         []ItemInput{{ProductID: "prod-a", VariationID: &varID, Quantity: 1}},
		}
		o, err := f.svc.Create(context.Background(), in)
		require.NoError(t, err)
		assert.True(t, o.Items[0].UnitPrice.Equal(dec("35.00")))
		require.NotNil(t, o.Items[0].VariationName)
		assert.Equal(t, "Large", *o.Items[0].VariationName)
	})

	t.Run("valid coupon reduces total and records one usage", func(t *testing.T) {
		f := newFixture()
		f.coupons.validation = coupon.Validation{
			Valid:    true,
			Coupon:   &coupon.Coupon{ID: "c-save10", Code: "SAVE10"},
			Discount: dec("9.00"),
		}
		in := twoItemInput()
		in.CouponCode = "SAVE10"

		o, err := f.svc.Create(context.Background(), in)
		require.NoError(t, err)
		assert.True(t, o.DiscountAmount.Equal(dec("9.00")))
		assert.True(t, o.TotalAmount.Equal(dec("81.00")), "total %s", o.TotalAmount)
		require.NotNil(t, o.CouponID)
		assert.Equal(t, "c-save10", *o.CouponID)

		require.Len(t, f.coupons.usages, 1)
		assert.Equal(t, "c-save10", f.coupons.usages[0].couponID)
		assert.Equal(t, o.ID, f.coupons.usages[0].orderID)
		assert.True(t, f.coupons.usages[0].amount.Equal(dec("9.00")))
	})

	t.Run("unusable coupon is ignored when lenient", func(t *testing.T) {
		f := newFixture()
		f.coupons.validation = coupon.Validation{Reason: coupon.ReasonExpired}
		in := twoItemInput()
		in.CouponCode = "OLD"

		o, err := f.svc.Create(context.Background(), in)
		require.NoError(t, err)
		assert.True(t, o.DiscountAmount.IsZero())
		assert.True(t, o.TotalAmount.Equal(dec("90.00")))
		assert.Nil(t, o.CouponID)
		assert.Empty(t, f.coupons.usages)
	})

	t.Run("unusable coupon fails creation when strict", func(t *testing.T) {
		f := newFixture()
		f.svc.StrictCoupons = true
		f.coupons.validation = coupon.Validation{Reason: coupon.ReasonExpired}
		in := twoItemInput()
		in.CouponCode = "OLD"

		_, err := f.svc.Create(context.Background(), in)
		var inv *apperrors.ErrInvalidOperation
		require.ErrorAs(t, err, &inv)
		assert.False(t, f.db.txs[0].committed)
		assert.True(t, f.db.txs[0].rolledBack)
	})

	t.Run("empty items rejected before opening a transaction", func(t *testing.T) {
		f := newFixture()
		in := twoItemInput()
		in.Items = nil
		_, err := f.svc.Create(context.Background(), in)
		var inv *apperrors.ErrInvalidOperation
		require.ErrorAs(t, err, &inv)
		assert.Empty(t, f.db.txs)
	})

	t.Run("non-positive quantity rejected", func(t *testing.T) {
		f := newFixture()
		in := twoItemInput()
		in.Items[0].Quantity = 0
		_, err := f.svc.Create(context.Background(), in)
		var inv *apperrors.ErrInvalidOperation
		assert.ErrorAs(t, err, &inv)
	})

	t.Run("unknown product rolls back", func(t *testing.T) {
		f := newFixture()
		in := twoItemInput()
		in.Items[0].ProductID = "prod-missing"
		_, err := f.svc.Create(context.Background(), in)
		var nf *apperrors.ErrNotFound
		require.ErrorAs(t, err, &nf)
		assert.True(t, f.db.txs[0].rolledBack)
		assert.Empty(t, f.store.orders)
	})

	t.Run("variation must belong to the product", func(t *testing.T) {
		f := newFixture()
		varID := "var-1"
		in := CreateInput{
			CustomerName:  "Ada",
			CustomerPhone: "555-0101",
			Items:         []ItemInput{{ProductID: "prod-b", VariationID: &varID, Quantity: 1}},
		}
		_, err := f.svc.Create(context.Background(), in)
		var nf *apperrors.ErrNotFound
		assert.ErrorAs(t, err, &nf)
	})

	t.Run("stock deduction failure aborts the whole creation", func(t *testing.T) {
		f := newFixture()
		f.ledger.deductErr = &apperrors.ErrInsufficientStock{ProductID: "prod-a", Required: 2, Available: 1}
		_, err := f.svc.Create(context.Background(), twoItemInput())
		var ins *apperrors.ErrInsufficientStock
		require.ErrorAs(t, err, &ins)
		assert.True(t, f.db.txs[0].rolledBack)
		assert.Empty(t, f.customers.recalculated)
	})

	t.Run("retries once on order number collision", func(t *testing.T) {
		f := newFixture()
		f.store.insertErrs = []error{&pgconn.PgError{Code: "23505", ConstraintName: "orders_order_number_key"}}
		o, err := f.svc.Create(context.Background(), twoItemInput())
		require.NoError(t, err)
		require.Len(t, f.db.txs, 2)
		assert.True(t, f.db.txs[0].rolledBack)
		assert.True(t, f.db.txs[1].committed)
		assert.Equal(t, "FLO-20260828-002", o.OrderNumber)
	})

	t.Run("publishes order created event after commit", func(t *testing.T) {
		f := newFixture()
		pub := &stubPublisher{}
		f.svc.OrderProducer = pub
		_, err := f.svc.Create(context.Background(), twoItemInput())
		require.NoError(t, err)
		assert.Len(t, pub.published, 1)
	})
}

func TestUpdateStatus(t *testing.T) {
	seed := func(f *fixture, st Status) Order {
		o := Order{
			ID:          "ord-1",
			OrderNumber: "FLO-20260828-001",
			CustomerID:  "cust-1",
			Status:      st,
			Items: []OrderItem{
				{ID: "it-1", OrderID: "ord-1", ProductID: "prod-a", Quantity: 2},
				{ID: "it-2", OrderID: "ord-1", ProductID: "prod-b", Quantity: 1},
			},
		}
		f.store.orders = map[string]Order{o.ID: o}
		return o
	}

	t.Run("plain transition has no side effects", func(t *testing.T) {
		f := newFixture()
		seed(f, StatusNew)
		o, err := f.svc.UpdateStatus(context.Background(), "ord-1", StatusInPreparation)
		require.NoError(t, err)
		assert.Equal(t, StatusInPreparation, o.Status)
		// the returned view carries the transition time, matching the row
		assert.Equal(t, f.svc.Clock().UTC(), o.UpdatedAt)
		assert.Empty(t, f.ledger.restored)
		assert.Empty(t, f.customers.recalculated)
		assert.True(t, f.db.txs[0].committed)
	})

	t.Run("cancellation restores stock and recomputes metrics", func(t *testing.T) {
		f := newFixture()
		seed(f, StatusReady)
		o, err := f.svc.UpdateStatus(context.Background(), "ord-1", StatusCancelled)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, o.Status)

		lines := f.ledger.restored["ord-1"]
		require.Len(t, lines, 2)
		assert.Equal(t, 2, lines[0].Quantity)
		assert.Equal(t, 1, lines[1].Quantity)
		assert.Equal(t, []string{"cust-1"}, f.customers.recalculated)
	})

	t.Run("invalid transition", func(t *testing.T) {
		f := newFixture()
		seed(f, StatusDelivered)
		_, err := f.svc.UpdateStatus(context.Background(), "ord-1", StatusShipped)
		var bad *apperrors.ErrInvalidStateTransition
		require.ErrorAs(t, err, &bad)
		assert.True(t, f.db.txs[0].rolledBack)
	})

	t.Run("cancelling a cancelled order is rejected", func(t *testing.T) {
		f := newFixture()
		seed(f, StatusCancelled)
		_, err := f.svc.UpdateStatus(context.Background(), "ord-1", StatusCancelled)
		var bad *apperrors.ErrInvalidStateTransition
		assert.ErrorAs(t, err, &bad)
		assert.Empty(t, f.ledger.restored)
	})

	t.Run("unknown order", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.UpdateStatus(context.Background(), "ord-404", StatusCancelled)
		var nf *apperrors.ErrNotFound
		assert.ErrorAs(t, err, &nf)
	})

	t.Run("unknown status value", func(t *testing.T) {
		f := newFixture()
		seed(f, StatusNew)
		_, err := f.svc.UpdateStatus(context.Background(), "ord-1", Status("limbo"))
		var inv *apperrors.ErrInvalidOperation
		assert.ErrorAs(t, err, &inv)
	})
}
