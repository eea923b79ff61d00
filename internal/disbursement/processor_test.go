package disbursement_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go-hospitality/internal/disbursement"
	"go-hospitality/internal/models"
	"go-hospitality/internal/realpay"
	"go-hospitality/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var day = time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)

type fakeGateway struct {
	calls []realpay.Request
	err   error
}

func (g *fakeGateway) Disburse(_ context.Context, req realpay.Request) (*realpay.Response, error) {
	g.calls = append(g.calls, req)
	if g.err != nil {
		return nil, g.err
	}
	return &realpay.Response{Success: true, TransactionID: "RP-" + req.MerchantReference, Status: "processing"}, nil
}

func seedFlow(t *testing.T, db *gorm.DB, f testutil.Fixture, gross, gwFee, platformFee, net string, at time.Time) models.FundFlow {
	t.Helper()
	flow := models.FundFlow{
		ID:          uuid.New(),
		PaymentID:   uuid.New(),
		OrderID:     uuid.New(),
		PropertyID:  f.Property.ID,
		TenantID:    f.TenantID,
		GrossAmount: testutil.Money(gross),
		GatewayFee:  testutil.Money(gwFee),
		PlatformFee: testutil.Money(platformFee),
		NetAmount:   testutil.Money(net),
		Stage:       models.FundFlowCollected,
		CollectedAt: at,
	}
	require.NoError(t, db.Create(&flow).Error)
	return flow
}

func newProcessor(db *gorm.DB, gw realpay.Client) *disbursement.Processor {
	return disbursement.NewProcessor(db, gw, zap.NewNop()).
		WithClock(func() time.Time { return day.Add(26 * time.Hour) })
}

func TestProcess_NothingCollected(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.SeedProperty(t, db)
	gw := &fakeGateway{}

	row, err := newProcessor(db, gw).Process(context.Background(), f.TenantID, f.Property.ID, day)
	require.NoError(t, err)

	assert.Empty(t, gw.calls)
	assert.True(t, row.NetPropertyAmount.IsZero())
	assert.Zero(t, row.TransactionCount)
	assert.Equal(t, models.DisbursementPending, row.Status)
	assert.Nil(t, row.RealpayTransactionID)
}

func TestProcess_Success(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.SeedProperty(t, db)
	a := seedFlow(t, db, f, "1000", "29", "10", "961", day.Add(9*time.Hour))
	b := seedFlow(t, db, f, "200", "5.80", "2", "192.20", day.Add(20*time.Hour))
	nextDay := seedFlow(t, db, f, "500", "14.50", "5", "480.50", day.Add(25*time.Hour))
	gw := &fakeGateway{}

	row, err := newProcessor(db, gw).Process(context.Background(), f.TenantID, f.Property.ID, day.Add(15*time.Hour))
	require.NoError(t, err)

	require.Len(t, gw.calls, 1)
	call := gw.calls[0]
	assert.Equal(t, "1153.2", call.Amount.String())
	assert.Equal(t, "ZAR", call.Currency)
	assert.Equal(t, f.Bank.AccountNumber, call.Beneficiary.AccountNumber)
	assert.True(t, strings.HasPrefix(call.MerchantReference, "DISB-20261014-"))

	assert.Equal(t, models.DisbursementProcessing, row.Status)
	require.NotNil(t, row.RealpayTransactionID)
	assert.Equal(t, "RP-"+call.MerchantReference, *row.RealpayTransactionID)
	assert.Equal(t, 2, row.TransactionCount)
	assert.Equal(t, "1200", row.TotalAmountCollected.String())
	assert.Equal(t, "34.8", row.TotalGatewayFees.String())
	assert.Equal(t, "12", row.TotalPlatformFees.String())

	for _, id := range []uuid.UUID{a.ID, b.ID} {
		var flow models.FundFlow
		require.NoError(t, db.First(&flow, "id = ?", id).Error)
		assert.Equal(t, models.FundFlowDisbursed, flow.Stage)
		require.NotNil(t, flow.DisbursementID)
		assert.Equal(t, row.ID, *flow.DisbursementID)
		assert.NotNil(t, flow.DisbursedAt)
	}

	var untouched models.FundFlow
	require.NoError(t, db.First(&untouched, "id = ?", nextDay.ID).Error)
	assert.Equal(t, models.FundFlowCollected, untouched.Stage)
	assert.Nil(t, untouched.DisbursementID)
}

func TestProcess_AlreadySubmittedIsNotPaidTwice(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.SeedProperty(t, db)
	seedFlow(t, db, f, "1000", "29", "10", "961", day.Add(9*time.Hour))
	gw := &fakeGateway{}
	p := newProcessor(db, gw)

	first, err := p.Process(context.Background(), f.TenantID, f.Property.ID, day)
	require.NoError(t, err)
	second, err := p.Process(context.Background(), f.TenantID, f.Property.ID, day)
	require.NoError(t, err)

	assert.Len(t, gw.calls, 1)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, models.DisbursementProcessing, second.Status)
}

func TestProcess_GatewayFailure(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.SeedProperty(t, db)
	flow := seedFlow(t, db, f, "1000", "29", "10", "961", day.Add(9*time.Hour))
	gw := &fakeGateway{err: errors.Join(realpay.ErrDeclined, errors.New("beneficiary account rejected"))}
	p := newProcessor(db, gw)

	row, err := p.Process(context.Background(), f.TenantID, f.Property.ID, day)
	require.Error(t, err)
	assert.ErrorIs(t, err, realpay.ErrDeclined)

	require.NotNil(t, row)
	assert.Equal(t, models.DisbursementFailed, row.Status)
	require.NotNil(t, row.ErrorMessage)
	assert.Contains(t, *row.ErrorMessage, "beneficiary account rejected")

	var stored models.DailyDisbursement
	require.NoError(t, db.First(&stored, "id = ?", row.ID).Error)
	assert.Equal(t, models.DisbursementFailed, stored.Status)
	assert.NotNil(t, stored.ErrorMessage)

	var reloaded models.FundFlow
	require.NoError(t, db.First(&reloaded, "id = ?", flow.ID).Error)
	assert.Equal(t, models.FundFlowCollected, reloaded.Stage)
	assert.Nil(t, reloaded.DisbursementID)

	_, flows, err := p.Get(context.Background(), f.TenantID, row.ID)
	require.NoError(t, err)
	assert.Empty(t, flows)

	// a later explicit run retries the failed day
	gw.err = nil
	retried, err := p.Process(context.Background(), f.TenantID, f.Property.ID, day)
	require.NoError(t, err)
	assert.Equal(t, row.ID, retried.ID)
	assert.Equal(t, models.DisbursementProcessing, retried.Status)
	assert.Nil(t, retried.ErrorMessage)
	assert.Len(t, gw.calls, 2)
}

func TestProcess_LateFlowsCarryForward(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.SeedProperty(t, db)
	seedFlow(t, db, f, "1000", "29", "10", "961", day.Add(9*time.Hour))
	gw := &fakeGateway{}
	p := newProcessor(db, gw)

	first, err := p.Process(context.Background(), f.TenantID, f.Property.ID, day)
	require.NoError(t, err)
	require.Equal(t, models.DisbursementProcessing, first.Status)

	// confirmed after the day was already paid out
	late := seedFlow(t, db, f, "200", "5.80", "4.20", "190", day.Add(20*time.Hour))

	again, err := p.Process(context.Background(), f.TenantID, f.Property.ID, day)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, 1, again.TransactionCount)
	require.Len(t, gw.calls, 1)

	next, err := p.Process(context.Background(), f.TenantID, f.Property.ID, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, gw.calls, 2)
	assert.Equal(t, "190", gw.calls[1].Amount.String())
	assert.Equal(t, 1, next.TransactionCount)
	assert.Equal(t, models.DisbursementProcessing, next.Status)

	var reloaded models.FundFlow
	require.NoError(t, db.First(&reloaded, "id = ?", late.ID).Error)
	assert.Equal(t, models.FundFlowDisbursed, reloaded.Stage)
	require.NotNil(t, reloaded.DisbursementID)
	assert.Equal(t, next.ID, *reloaded.DisbursementID)
}

func TestProcess_MockGatewayDeclinesZeroAccounts(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.SeedProperty(t, db)
	require.NoError(t, db.Model(&f.Bank).Update("account_number", "1234560000").Error)
	seedFlow(t, db, f, "1000", "29", "10", "961", day.Add(9*time.Hour))

	row, err := newProcessor(db, realpay.NewMockClient()).Process(context.Background(), f.TenantID, f.Property.ID, day)
	assert.ErrorIs(t, err, realpay.ErrDeclined)
	assert.Equal(t, models.DisbursementFailed, row.Status)
}

func TestProcess_NoBankAccount(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.SeedProperty(t, db)
	require.NoError(t, db.Model(&f.Bank).Update("is_active", false).Error)
	seedFlow(t, db, f, "1000", "29", "10", "961", day.Add(9*time.Hour))
	gw := &fakeGateway{}

	row, err := newProcessor(db, gw).Process(context.Background(), f.TenantID, f.Property.ID, day)
	assert.ErrorIs(t, err, disbursement.ErrNoBankAccount)
	assert.Empty(t, gw.calls)
	require.NotNil(t, row)
	assert.Equal(t, models.DisbursementFailed, row.Status)
}

func TestProcess_UnknownProperty(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.SeedProperty(t, db)

	_, err := newProcessor(db, &fakeGateway{}).Process(context.Background(), uuid.New(), f.Property.ID, day)
	assert.ErrorIs(t, err, disbursement.ErrPropertyNotFound)
}

func TestApplyEvent(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.SeedProperty(t, db)
	flow := seedFlow(t, db, f, "1000", "29", "10", "961", day.Add(9*time.Hour))
	p := newProcessor(db, &fakeGateway{})

	row, err := p.Process(context.Background(), f.TenantID, f.Property.ID, day)
	require.NoError(t, err)

	failed, err := p.ApplyEvent(context.Background(), realpay.Event{TransactionID: *row.RealpayTransactionID, Status: realpay.EventFailed, Message: "account closed"})
	require.NoError(t, err)
	assert.Equal(t, models.DisbursementFailed, failed.Status)
	require.NotNil(t, failed.ErrorMessage)
	assert.Equal(t, "account closed", *failed.ErrorMessage)

	var reloaded models.FundFlow
	require.NoError(t, db.First(&reloaded, "id = ?", flow.ID).Error)
	assert.Equal(t, models.FundFlowCollected, reloaded.Stage)
	assert.Nil(t, reloaded.DisbursementID)

	// a late completion for a row that is no longer processing changes nothing
	same, err := p.ApplyEvent(context.Background(), realpay.Event{TransactionID: *row.RealpayTransactionID, Status: realpay.EventCompleted})
	require.NoError(t, err)
	assert.Equal(t, models.DisbursementFailed, same.Status)

	_, err = p.ApplyEvent(context.Background(), realpay.Event{TransactionID: "RP-unknown", Status: realpay.EventCompleted})
	assert.ErrorIs(t, err, disbursement.ErrNotFound)
}

func TestApplyEvent_Completed(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.SeedProperty(t, db)
	seedFlow(t, db, f, "1000", "29", "10", "961", day.Add(9*time.Hour))
	p := newProcessor(db, &fakeGateway{})

	row, err := p.Process(context.Background(), f.TenantID, f.Property.ID, day)
	require.NoError(t, err)

	done, err := p.ApplyEvent(context.Background(), realpay.Event{TransactionID: *row.RealpayTransactionID, Status: realpay.EventCompleted})
	require.NoError(t, err)
	assert.Equal(t, models.DisbursementCompleted, done.Status)
}

func TestListGetAndProcessAll(t *testing.T) {
	db := testutil.NewDB(t)
	f := testutil.SeedProperty(t, db)
	other := testutil.SeedProperty(t, db)
	seedFlow(t, db, f, "1000", "29", "10", "961", day.Add(9*time.Hour))
	p := newProcessor(db, &fakeGateway{})

	rows, err := p.ProcessAll(context.Background(), nil, day)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	list, err := p.List(context.Background(), f.TenantID, disbursement.ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, f.Property.ID, list[0].PropertyID)

	row, flows, err := p.Get(context.Background(), f.TenantID, list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, list[0].ID, row.ID)
	assert.Len(t, flows, 1)

	_, _, err = p.Get(context.Background(), other.TenantID, list[0].ID)
	assert.ErrorIs(t, err, disbursement.ErrNotFound)
}
