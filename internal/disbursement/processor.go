// Package disbursement pays each property's collected card funds out to its
// bank account once per day through RealPay.
package disbursement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-hospitality/internal/models"
	"go-hospitality/internal/realpay"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound         = errors.New("disbursement not found")
	ErrPropertyNotFound = errors.New("property not found")
	ErrNoBankAccount    = errors.New("property has no active bank account")

	errFlowsClaimed = errors.New("fund flows were claimed by a concurrent run")
)

// Processor aggregates fund flows and submits payouts.
type Processor struct {
	db      *gorm.DB
	gateway realpay.Client
	log     *zap.Logger
	now     func() time.Time
}

func NewProcessor(db *gorm.DB, gateway realpay.Client, log *zap.Logger) *Processor {
	return &Processor{
		db:      db,
		gateway: gateway,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time used for processed_at and disbursed_at.
func (p *Processor) WithClock(now func() time.Time) *Processor {
	p.now = now
	return p
}

// Day truncates t to the UTC calendar day it falls on.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// prepared is the outcome of the aggregation transaction.
type prepared struct {
	row    models.DailyDisbursement
	bank   models.PropertyBankAccount
	submit bool
	final  bool
}

// Process runs the day's payout for one property.
//
// Rows already processing or completed come back unchanged. A zero net amount
// never reaches the gateway. On a gateway error the row is left failed with
// the error message and the error is returned together with the row.
func (p *Processor) Process(ctx context.Context, tenantID, propertyID uuid.UUID, day time.Time) (*models.DailyDisbursement, error) {
	day = Day(day)
	log := p.log.With(
		zap.String("tenant_id", tenantID.String()),
		zap.String("property_id", propertyID.String()),
		zap.String("date", day.Format("2006-01-02")),
	)

	prep, err := p.prepare(ctx, tenantID, propertyID, day)
	if err != nil {
		return nil, err
	}
	if prep.final {
		log.Info("disbursement already submitted", zap.String("status", prep.row.Status))
		return &prep.row, nil
	}
	if !prep.submit {
		if prep.row.Status == models.DisbursementFailed {
			log.Warn("disbursement blocked", zap.Stringp("error", prep.row.ErrorMessage))
			return &prep.row, ErrNoBankAccount
		}
		log.Info("nothing to disburse", zap.Int("transactions", prep.row.TransactionCount))
		return &prep.row, nil
	}

	resp, gwErr := p.gateway.Disburse(ctx, realpay.Request{
		MerchantReference: reference(prep.row),
		Amount:            prep.row.NetPropertyAmount,
		Currency:          prep.row.Currency,
		Beneficiary: realpay.BankAccount{
			AccountHolder: prep.bank.AccountHolder,
			BankName:      prep.bank.BankName,
			AccountNumber: prep.bank.AccountNumber,
			BranchCode:    prep.bank.BranchCode,
			AccountType:   prep.bank.AccountType,
		},
		Description: fmt.Sprintf("Daily settlement %s", day.Format("2006-01-02")),
	})
	// the gateway's answer is recorded even if the caller has gone away
	dbCtx := context.WithoutCancel(ctx)

	if gwErr != nil {
		row, err := p.markFailed(dbCtx, prep.row.ID, gwErr.Error())
		if err != nil {
			return nil, errors.Join(gwErr, err)
		}
		log.Error("disbursement failed", zap.String("net", row.NetPropertyAmount.StringFixed(2)), zap.Error(gwErr))
		return row, fmt.Errorf("disburse: %w", gwErr)
	}

	row, err := p.markSubmitted(dbCtx, prep.row.ID, resp.TransactionID)
	if err != nil {
		return nil, err
	}
	log.Info("disbursement submitted",
		zap.String("transaction_id", resp.TransactionID),
		zap.String("net", row.NetPropertyAmount.StringFixed(2)),
		zap.Int("transactions", row.TransactionCount),
	)
	return row, nil
}

// prepare rolls the collected fund flows up into the daily row and, if
// there is money to send, claims the row by moving it to processing.
func (p *Processor) prepare(ctx context.Context, tenantID, propertyID uuid.UUID, day time.Time) (*prepared, error) {
	var prep prepared
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prop models.Property
		err := tx.Where("id = ? AND tenant_id = ?", propertyID, tenantID).First(&prop).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPropertyNotFound
		}
		if err != nil {
			return err
		}

		row := &prep.row
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("property_id = ? AND tenant_id = ? AND disbursement_date = ?", propertyID, tenantID, day).
			First(row).Error
		exists := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if exists && (row.Status == models.DisbursementProcessing || row.Status == models.DisbursementCompleted) {
			prep.final = true
			return nil
		}

		// everything collected by the end of the day and not yet claimed by a
		// payout, so flows confirmed after an earlier run are carried forward
		var flows []models.FundFlow
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("property_id = ? AND tenant_id = ? AND stage = ?", propertyID, tenantID, models.FundFlowCollected).
			Where("disbursement_id IS NULL AND collected_at < ?", day.Add(24*time.Hour)).
			Order("collected_at").
			Find(&flows).Error
		if err != nil {
			return fmt.Errorf("load fund flows: %w", err)
		}

		if !exists {
			*row = models.DailyDisbursement{
				ID:               uuid.New(),
				PropertyID:       propertyID,
				TenantID:         tenantID,
				DisbursementDate: day,
			}
		}
		row.Currency = prop.Currency
		applyTotals(row, flows)
		row.Status = models.DisbursementPending
		row.ErrorMessage = nil

		if row.NetPropertyAmount.IsPositive() {
			err = tx.Where("property_id = ? AND tenant_id = ? AND is_active = ?", propertyID, tenantID, true).First(&prep.bank).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				msg := ErrNoBankAccount.Error()
				row.Status = models.DisbursementFailed
				row.ErrorMessage = &msg
			case err != nil:
				return err
			default:
				row.Status = models.DisbursementProcessing
				prep.submit = true
			}
		}

		if exists {
			err = tx.Model(row).Select("Currency", "TransactionCount", "TotalAmountCollected", "TotalGatewayFees",
				"TotalPlatformFees", "NetPropertyAmount", "Status", "ErrorMessage", "UpdatedAt").Updates(row).Error
		} else {
			err = tx.Create(row).Error
		}
		if err != nil {
			return fmt.Errorf("save disbursement: %w", err)
		}

		if prep.submit && len(flows) > 0 {
			ids := make([]uuid.UUID, len(flows))
			for i, f := range flows {
				ids[i] = f.ID
			}
			res := tx.Model(&models.FundFlow{}).
				Where("id IN ? AND disbursement_id IS NULL", ids).
				Update("disbursement_id", row.ID)
			if res.Error != nil {
				return fmt.Errorf("tag fund flows: %w", res.Error)
			}
			if res.RowsAffected != int64(len(ids)) {
				return errFlowsClaimed
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrPropertyNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("aggregate disbursement: %w", err)
	}
	return &prep, nil
}

func applyTotals(row *models.DailyDisbursement, flows []models.FundFlow) {
	gross, gateway, platform, net := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	for _, f := range flows {
		gross = gross.Add(f.GrossAmount)
		gateway = gateway.Add(f.GatewayFee)
		platform = platform.Add(f.PlatformFee)
		net = net.Add(f.NetAmount)
	}
	row.TransactionCount = len(flows)
	row.TotalAmountCollected = gross
	row.TotalGatewayFees = gateway
	row.TotalPlatformFees = platform
	row.NetPropertyAmount = net
}

func (p *Processor) markSubmitted(ctx context.Context, id uuid.UUID, transactionID string) (*models.DailyDisbursement, error) {
	now := p.now()
	var row models.DailyDisbursement
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.DailyDisbursement{}).Where("id = ?", id).Updates(map[string]any{
			"realpay_transaction_id": transactionID,
			"processed_at":           now,
			"error_message":          nil,
		}).Error
		if err != nil {
			return err
		}
		err = tx.Model(&models.FundFlow{}).
			Where("disbursement_id = ? AND stage = ?", id, models.FundFlowCollected).
			Updates(map[string]any{"stage": models.FundFlowDisbursed, "disbursed_at": now}).Error
		if err != nil {
			return err
		}
		return tx.First(&row, "id = ?", id).Error
	})
	if err != nil {
		return nil, fmt.Errorf("record disbursement: %w", err)
	}
	return &row, nil
}

func (p *Processor) markFailed(ctx context.Context, id uuid.UUID, msg string) (*models.DailyDisbursement, error) {
	var row models.DailyDisbursement
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.DailyDisbursement{}).Where("id = ?", id).Updates(map[string]any{
			"status":        models.DisbursementFailed,
			"error_message": msg,
			"processed_at":  p.now(),
		}).Error
		if err != nil {
			return err
		}
		if err := release(tx, id); err != nil {
			return err
		}
		return tx.First(&row, "id = ?", id).Error
	})
	if err != nil {
		return nil, fmt.Errorf("record disbursement failure: %w", err)
	}
	return &row, nil
}

// release hands a failed payout's fund flows back to the next run.
func release(tx *gorm.DB, id uuid.UUID) error {
	return tx.Model(&models.FundFlow{}).
		Where("disbursement_id = ?", id).
		Updates(map[string]any{"stage": models.FundFlowCollected, "disbursement_id": nil, "disbursed_at": nil}).Error
}

// reference is unique per attempt so a retry after a decline is a new payout.
func reference(row models.DailyDisbursement) string {
	return fmt.Sprintf("DISB-%s-%s", row.DisbursementDate.Format("20060102"), strings.ToUpper(uuid.NewString()[:8]))
}
