package orders_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"go-hospitality/internal/cart"
	"go-hospitality/internal/discount"
	"go-hospitality/internal/models"
	"go-hospitality/internal/orders"
	"go-hospitality/internal/payment"
	"go-hospitality/internal/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type env struct {
	db      *gorm.DB
	fixture testutil.Fixture
	carts   *cart.Store
	svc     *orders.Service
	key     cart.Key
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewDB(t)
	f := testutil.SeedProperty(t, db)
	numbers, err := orders.NewNumberGenerator(1)
	require.NoError(t, err)

	payments := payment.NewService(db, payment.Fees{GatewayPercent: decimal.Zero, PlatformPercent: decimal.Zero})
	svc := orders.NewService(db, discount.NewResolver(db), payments, numbers, zap.NewNop())

	return &env{
		db:      db,
		fixture: f,
		carts:   cart.NewStore(db),
		svc:     svc,
		key:     cart.Key{SessionID: "room-204", PropertyID: f.Property.ID, TenantID: f.TenantID},
	}
}

// fillCart stores a cart whose subtotal is 1000 with no tax or service charge.
func (e *env) fillCart(t *testing.T) *models.Cart {
	t.Helper()
	items := []models.LineItem{
		{SKU: "DIN-01", Name: "Tasting Menu", Quantity: 2, UnitPrice: testutil.Money("450")},
		{SKU: "WIN-07", Name: "Chenin Blanc", Quantity: 1, UnitPrice: testutil.Money("100")},
	}
	c, err := e.carts.Upsert(context.Background(), e.key, items, cart.ComputeTotals(items, decimal.Zero, decimal.Zero, "ZAR"))
	require.NoError(t, err)
	return c
}

func (e *env) seedDiscount(t *testing.T, mutate func(*models.Discount)) models.Discount {
	t.Helper()
	limit := 10
	d := models.Discount{
		ID:                 uuid.New(),
		PropertyID:         e.fixture.Property.ID,
		TenantID:           e.fixture.TenantID,
		Code:               "WELCOME10",
		Type:               models.DiscountTypePercentage,
		Value:              testutil.Money("10"),
		MaxDiscountAmount:  decimal.NewNullDecimal(testutil.Money("50")),
		MinimumOrderAmount: decimal.Zero,
		ValidFrom:          time.Now().UTC().Add(-time.Hour),
		UsageLimit:         &limit,
		IsActive:           true,
	}
	if mutate != nil {
		mutate(&d)
	}
	require.NoError(t, e.db.Create(&d).Error)
	return d
}

func (e *env) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(model).Count(&n).Error)
	return n
}

func TestCheckout_SnapshotsCartAndConvertsIt(t *testing.T) {
	e := newEnv(t)
	c := e.fillCart(t)

	res, err := e.svc.Checkout(context.Background(), orders.CheckoutInput{Cart: e.key, PaymentMethod: models.PaymentMethodCash})
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^ORD-\d{8}-[0-9A-Z]+$`), res.Order.OrderNumber)
	assert.Equal(t, c.LineItems, res.Order.OrderItems)
	assert.Equal(t, models.OrderStatusPending, res.Order.Status)
	assert.Equal(t, models.PaymentStatusPending, res.Payment.Status)
	assert.False(t, res.Replayed)

	var stored models.Order
	require.NoError(t, e.db.First(&stored, "id = ?", res.Order.ID).Error)
	require.Len(t, stored.OrderItems, 2)
	assert.Equal(t, "DIN-01", stored.OrderItems[0].SKU)
	assert.True(t, stored.OrderItems[0].UnitPrice.Equal(testutil.Money("450")))

	var converted models.Cart
	require.NoError(t, e.db.First(&converted, "id = ?", c.ID).Error)
	assert.Equal(t, models.CartStatusConverted, converted.Status)

	var history []models.OrderStatusHistory
	require.NoError(t, e.db.Where("order_id = ?", res.Order.ID).Find(&history).Error)
	require.Len(t, history, 1)
	assert.Equal(t, "Order created", history[0].Reason)

	assert.Equal(t, int64(1), e.count(t, &models.Order{}))
	assert.Equal(t, int64(1), e.count(t, &models.Payment{}))
}

func TestCheckout_SnapshotIsImmutable(t *testing.T) {
	e := newEnv(t)
	e.fillCart(t)

	res, err := e.svc.Checkout(context.Background(), orders.CheckoutInput{Cart: e.key, PaymentMethod: models.PaymentMethodCard})
	require.NoError(t, err)

	// the guest starts a new cart afterwards
	other := []models.LineItem{{SKU: "BAR-01", Name: "Espresso", Quantity: 1, UnitPrice: testutil.Money("25")}}
	_, err = e.carts.Upsert(context.Background(), e.key, other, cart.ComputeTotals(other, decimal.Zero, decimal.Zero, "ZAR"))
	require.NoError(t, err)

	var stored models.Order
	require.NoError(t, e.db.First(&stored, "id = ?", res.Order.ID).Error)
	assert.Len(t, stored.OrderItems, 2)
}

func TestCheckout_EmptyCart(t *testing.T) {
	e := newEnv(t)
	_, err := e.carts.Upsert(context.Background(), e.key, nil, cart.ComputeTotals(nil, decimal.Zero, decimal.Zero, "ZAR"))
	require.NoError(t, err)

	_, err = e.svc.Checkout(context.Background(), orders.CheckoutInput{Cart: e.key, PaymentMethod: models.PaymentMethodCash})
	assert.ErrorIs(t, err, orders.ErrEmptyCart)
	assert.Zero(t, e.count(t, &models.Order{}))

	active, err := e.carts.Get(context.Background(), e.key)
	require.NoError(t, err)
	assert.Equal(t, models.CartStatusActive, active.Status)
}

func TestCheckout_MissingCart(t *testing.T) {
	e := newEnv(t)

	_, err := e.svc.Checkout(context.Background(), orders.CheckoutInput{Cart: e.key, PaymentMethod: models.PaymentMethodCash})
	assert.ErrorIs(t, err, orders.ErrCartNotFound)
}

func TestCheckout_UnsupportedMethodWritesNothing(t *testing.T) {
	e := newEnv(t)
	e.fillCart(t)

	_, err := e.svc.Checkout(context.Background(), orders.CheckoutInput{Cart: e.key, PaymentMethod: "voucher"})
	assert.ErrorIs(t, err, payment.ErrUnsupportedMethod)
	assert.Zero(t, e.count(t, &models.Order{}))
}

func TestCheckout_CappedPercentageDiscount(t *testing.T) {
	e := newEnv(t)
	e.fillCart(t)
	d := e.seedDiscount(t, nil)

	res, err := e.svc.Checkout(context.Background(), orders.CheckoutInput{Cart: e.key, PaymentMethod: models.PaymentMethodCash, DiscountCode: "welcome10"})
	require.NoError(t, err)

	assert.True(t, res.DiscountApplied)
	assert.Equal(t, "50", res.Order.DiscountAmount.String())
	assert.Equal(t, "950", res.Order.Subtotal.String())
	assert.Equal(t, "950", res.Order.TotalAmount.String())
	assert.Equal(t, "WELCOME10", res.Order.DiscountCode)

	var reloaded models.Discount
	require.NoError(t, e.db.First(&reloaded, "id = ?", d.ID).Error)
	assert.Equal(t, 1, reloaded.UsedCount)
}

func TestCheckout_UnusableDiscountIsIgnored(t *testing.T) {
	tests := map[string]func(*models.Discount){
		"expired": func(d *models.Discount) {
			until := time.Now().UTC().Add(-time.Minute)
			d.ValidFrom = until.Add(-48 * time.Hour)
			d.ValidUntil = &until
		},
		"not yet valid": func(d *models.Discount) { d.ValidFrom = time.Now().UTC().Add(time.Hour) },
		"exhausted":     func(d *models.Discount) { d.UsedCount = 10 },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			e := newEnv(t)
			e.fillCart(t)
			e.seedDiscount(t, mutate)

			res, err := e.svc.Checkout(context.Background(), orders.CheckoutInput{Cart: e.key, PaymentMethod: models.PaymentMethodCash, DiscountCode: "WELCOME10"})
			require.NoError(t, err)
			assert.False(t, res.DiscountApplied)
			assert.True(t, res.Order.DiscountAmount.IsZero())
			assert.Equal(t, "1000", res.Order.Subtotal.String())
		})
	}
}

func TestCheckout_DuplicateWithoutKeyIsRejected(t *testing.T) {
	e := newEnv(t)
	e.fillCart(t)
	in := orders.CheckoutInput{Cart: e.key, PaymentMethod: models.PaymentMethodCash}

	_, err := e.svc.Checkout(context.Background(), in)
	require.NoError(t, err)

	_, err = e.svc.Checkout(context.Background(), in)
	assert.ErrorIs(t, err, orders.ErrCartNotActive)
	assert.Equal(t, int64(1), e.count(t, &models.Order{}))
	assert.Equal(t, int64(1), e.count(t, &models.Payment{}))
}

func TestCheckout_IdempotencyKeyReplays(t *testing.T) {
	e := newEnv(t)
	e.fillCart(t)
	in := orders.CheckoutInput{Cart: e.key, PaymentMethod: models.PaymentMethodCard, IdempotencyKey: "c7d1f0a2-retry"}

	first, err := e.svc.Checkout(context.Background(), in)
	require.NoError(t, err)
	second, err := e.svc.Checkout(context.Background(), in)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, first.Payment.PaymentIntentID, second.Payment.PaymentIntentID)
	assert.Equal(t, int64(1), e.count(t, &models.Order{}))
	assert.Equal(t, int64(1), e.count(t, &models.Payment{}))
}

func TestCheckout_IdempotencyKeyForOtherCart(t *testing.T) {
	e := newEnv(t)
	e.fillCart(t)

	_, err := e.svc.Checkout(context.Background(), orders.CheckoutInput{Cart: e.key, PaymentMethod: models.PaymentMethodCash, IdempotencyKey: "k1"})
	require.NoError(t, err)

	other := e.key
	other.SessionID = "room-305"
	_, err = e.svc.Checkout(context.Background(), orders.CheckoutInput{Cart: other, PaymentMethod: models.PaymentMethodCash, IdempotencyKey: "k1"})
	assert.ErrorIs(t, err, orders.ErrIdempotencyMismatch)
}

func TestGetAndList(t *testing.T) {
	e := newEnv(t)
	e.fillCart(t)
	res, err := e.svc.Checkout(context.Background(), orders.CheckoutInput{Cart: e.key, PaymentMethod: models.PaymentMethodCash})
	require.NoError(t, err)

	d, err := e.svc.Get(context.Background(), e.fixture.TenantID, res.Order.OrderNumber)
	require.NoError(t, err)
	assert.Len(t, d.History, 1)
	assert.Len(t, d.Payments, 1)

	_, err = e.svc.Get(context.Background(), uuid.New(), res.Order.OrderNumber)
	assert.ErrorIs(t, err, orders.ErrNotFound)

	list, err := e.svc.List(context.Background(), e.fixture.TenantID, orders.ListFilter{PropertyID: &e.fixture.Property.ID, Status: models.OrderStatusPending})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = e.svc.List(context.Background(), e.fixture.TenantID, orders.ListFilter{Status: models.OrderStatusConfirmed})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCancel(t *testing.T) {
	e := newEnv(t)
	e.fillCart(t)
	d := e.seedDiscount(t, nil)
	res, err := e.svc.Checkout(context.Background(), orders.CheckoutInput{Cart: e.key, PaymentMethod: models.PaymentMethodCash, DiscountCode: "WELCOME10"})
	require.NoError(t, err)

	cancelled, err := e.svc.Cancel(context.Background(), e.fixture.TenantID, res.Order.OrderNumber, "guest left")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)

	p, err := payment.LatestForOrder(e.db, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCancelled, p.PaymentStatus)

	var reloaded models.Discount
	require.NoError(t, e.db.First(&reloaded, "id = ?", d.ID).Error)
	assert.Zero(t, reloaded.UsedCount)

	_, err = e.svc.Cancel(context.Background(), e.fixture.TenantID, res.Order.OrderNumber, "")
	assert.ErrorIs(t, err, orders.ErrInvalidTransition)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, orders.CanTransition(models.OrderStatusPending, models.OrderStatusConfirmed))
	assert.True(t, orders.CanTransition(models.OrderStatusPending, models.OrderStatusCancelled))
	assert.False(t, orders.CanTransition(models.OrderStatusConfirmed, models.OrderStatusCancelled))
	assert.False(t, orders.CanTransition(models.OrderStatusCancelled, models.OrderStatusPending))
}

func TestNumberGenerator_Unique(t *testing.T) {
	g, err := orders.NewNumberGenerator(7)
	require.NoError(t, err)
	at := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		n := g.Next(at)
		assert.False(t, seen[n], "duplicate %s", n)
		seen[n] = true
	}

	_, err = orders.NewNumberGenerator(5000)
	assert.Error(t, err)
}
