package payment_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"go-hospitality/internal/models"
	"go-hospitality/internal/payment"
	"go-hospitality/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var fees = payment.Fees{GatewayPercent: testutil.Money("2.9"), PlatformPercent: testutil.Money("1")}

func seedOrder(t *testing.T, db *gorm.DB, f testutil.Fixture, method string) *models.Order {
	t.Helper()
	o := models.Order{
		ID:            uuid.New(),
		OrderNumber:   "ORD-TEST-" + strings.ToUpper(uuid.NewString()[:8]),
		TenantID:      f.TenantID,
		PropertyID:    f.Property.ID,
		CartID:        uuid.New(),
		OrderItems:    []models.LineItem{{SKU: "SPA-60", Name: "Massage", Quantity: 1, UnitPrice: testutil.Money("1000")}},
		Subtotal:      testutil.Money("1000"),
		TotalAmount:   testutil.Money("1000"),
		Currency:      "ZAR",
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		PaymentMethod: method,
	}
	require.NoError(t, db.Create(&o).Error)
	return &o
}

func TestInitiate_Card(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.SeedProperty(t, db)
	order := seedOrder(t, db, f, models.PaymentMethodCard)

	p, out, err := payment.NewService(db, fees).Initiate(db, order)
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusRequiresPaymentMethod, out.Status)
	assert.True(t, strings.HasPrefix(out.PaymentIntentID, "pi_"))
	assert.True(t, strings.HasPrefix(out.ClientSecret, out.PaymentIntentID+"_secret_"))
	require.NotNil(t, p.PaymentIntentID)
	assert.Equal(t, out.PaymentIntentID, *p.PaymentIntentID)
	assert.True(t, p.Amount.Equal(order.TotalAmount))
}

func TestInitiate_Cash(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.SeedProperty(t, db)
	order := seedOrder(t, db, f, models.PaymentMethodCash)

	p, out, err := payment.NewService(db, fees).Initiate(db, order)
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusPending, out.Status)
	assert.Contains(t, out.Message, "front desk")
	assert.Nil(t, p.PaymentIntentID)
	assert.Empty(t, out.ClientSecret)

	var stored models.Payment
	require.NoError(t, db.First(&stored, "id = ?", p.ID).Error)
	assert.Equal(t, models.PaymentStatusPending, stored.PaymentStatus)
	assert.Equal(t, out, payment.OutcomeFor(&stored))
}

func TestInitiate_UnknownMethod(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.SeedProperty(t, db)
	order := seedOrder(t, db, f, "crypto")

	_, _, err := payment.NewService(db, fees).Initiate(db, order)
	assert.ErrorIs(t, err, payment.ErrUnsupportedMethod)

	var count int64
	require.NoError(t, db.Model(&models.Payment{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestConfirm_CardOpensFundFlow(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.SeedProperty(t, db)
	order := seedOrder(t, db, f, models.PaymentMethodCard)
	collected := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
	svc := payment.NewService(db, fees).WithClock(func() time.Time { return collected })

	p, _, err := svc.Initiate(db, order)
	require.NoError(t, err)

	conf, err := svc.Confirm(context.Background(), f.TenantID, p.ID, "auth-8812")
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusSucceeded, conf.Payment.PaymentStatus)
	assert.Equal(t, "auth-8812", conf.Payment.Metadata["reference"])
	assert.Equal(t, models.OrderStatusConfirmed, conf.Order.Status)
	assert.Equal(t, models.PaymentStatusPaid, conf.Order.PaymentStatus)

	require.NotNil(t, conf.FundFlow)
	assert.Equal(t, "29", conf.FundFlow.GatewayFee.String())
	assert.Equal(t, "10", conf.FundFlow.PlatformFee.String())
	assert.Equal(t, "961", conf.FundFlow.NetAmount.String())
	assert.Equal(t, models.FundFlowCollected, conf.FundFlow.Stage)
	assert.True(t, conf.FundFlow.CollectedAt.Equal(collected))

	var history []models.OrderStatusHistory
	require.NoError(t, db.Where("order_id = ?", order.ID).Find(&history).Error)
	require.Len(t, history, 1)
	assert.Equal(t, models.OrderStatusConfirmed, history[0].Status)

	_, err = svc.Confirm(context.Background(), f.TenantID, p.ID, "")
	assert.ErrorIs(t, err, payment.ErrNotConfirmable)
}

func TestConfirm_CashHasNoFundFlow(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.SeedProperty(t, db)
	order := seedOrder(t, db, f, models.PaymentMethodCash)
	svc := payment.NewService(db, fees)

	p, _, err := svc.Initiate(db, order)
	require.NoError(t, err)

	conf, err := svc.Confirm(context.Background(), f.TenantID, p.ID, "")
	require.NoError(t, err)
	assert.Nil(t, conf.FundFlow)

	var flows int64
	require.NoError(t, db.Model(&models.FundFlow{}).Count(&flows).Error)
	assert.Zero(t, flows)
}

func TestConfirm_OtherTenant(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.SeedProperty(t, db)
	order := seedOrder(t, db, f, models.PaymentMethodCash)
	svc := payment.NewService(db, fees)

	p, _, err := svc.Initiate(db, order)
	require.NoError(t, err)

	_, err = svc.Confirm(context.Background(), uuid.New(), p.ID, "")
	assert.ErrorIs(t, err, payment.ErrNotFound)
}

func TestCancelOpen(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.SeedProperty(t, db)
	order := seedOrder(t, db, f, models.PaymentMethodCash)
	svc := payment.NewService(db, fees)

	p, _, err := svc.Initiate(db, order)
	require.NoError(t, err)
	require.NoError(t, payment.CancelOpen(db, order.ID))

	latest, err := payment.LatestForOrder(db, order.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, latest.ID)
	assert.Equal(t, models.PaymentStatusCancelled, latest.PaymentStatus)
}
