package disbursement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-hospitality/internal/models"
	"go-hospitality/internal/realpay"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ListFilter narrows List.
type ListFilter struct {
	PropertyID *uuid.UUID
	Status     string
	From, To   *time.Time
	Limit      int
}

// List returns the tenant's disbursements, newest day first.
func (p *Processor) List(ctx context.Context, tenantID uuid.UUID, f ListFilter) ([]models.DailyDisbursement, error) {
	limit := f.Limit
	if limit <= 0 || limit > 366 {
		limit = 31
	}

	q := p.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if f.PropertyID != nil {
		q = q.Where("property_id = ?", *f.PropertyID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.From != nil {
		q = q.Where("disbursement_date >= ?", Day(*f.From))
	}
	if f.To != nil {
		q = q.Where("disbursement_date <= ?", Day(*f.To))
	}

	rows := []models.DailyDisbursement{}
	if err := q.Order("disbursement_date desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list disbursements: %w", err)
	}
	return rows, nil
}

// Get returns one disbursement with the fund flows it paid out.
func (p *Processor) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.DailyDisbursement, []models.FundFlow, error) {
	db := p.db.WithContext(ctx)
	var row models.DailyDisbursement
	err := db.Where("id = ? AND tenant_id = ?", id, tenantID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get disbursement: %w", err)
	}

	flows := []models.FundFlow{}
	if err := db.Where("disbursement_id = ?", id).Order("collected_at").Find(&flows).Error; err != nil {
		return nil, nil, fmt.Errorf("get disbursement flows: %w", err)
	}
	return &row, flows, nil
}

// ApplyEvent settles a processing disbursement from a RealPay webhook.
// A failed payout puts its fund flows back to collected for the next run.
// Events for rows that are no longer processing are ignored.
func (p *Processor) ApplyEvent(ctx context.Context, ev realpay.Event) (*models.DailyDisbursement, error) {
	var row models.DailyDisbursement
	changed := false
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("realpay_transaction_id = ?", ev.TransactionID).
			First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if row.Status != models.DisbursementProcessing {
			return nil
		}

		changed = true
		updates := map[string]any{"processed_at": p.now()}
		switch ev.Status {
		case realpay.EventCompleted:
			updates["status"] = models.DisbursementCompleted
		case realpay.EventFailed:
			msg := ev.Message
			if msg == "" {
				msg = "payout failed at gateway"
			}
			updates["status"] = models.DisbursementFailed
			updates["error_message"] = msg
			if err := release(tx, row.ID); err != nil {
				return err
			}
		}
		if err := tx.Model(&row).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&row, "id = ?", row.ID).Error
	})
	if errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("apply gateway event: %w", err)
	}

	if changed {
		p.log.Info("disbursement settled by gateway",
			zap.String("transaction_id", ev.TransactionID),
			zap.String("status", row.Status),
		)
	}
	return &row, nil
}

// ProcessAll runs Process for every property, or every property of one tenant.
// It keeps going past failures and returns them joined.
func (p *Processor) ProcessAll(ctx context.Context, tenantID *uuid.UUID, day time.Time) ([]models.DailyDisbursement, error) {
	q := p.db.WithContext(ctx).Model(&models.Property{})
	if tenantID != nil {
		q = q.Where("tenant_id = ?", *tenantID)
	}
	var props []models.Property
	if err := q.Order("created_at").Find(&props).Error; err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}

	var (
		out  []models.DailyDisbursement
		errs []error
	)
	for _, prop := range props {
		row, err := p.Process(ctx, prop.TenantID, prop.ID, day)
		if row != nil {
			out = append(out, *row)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("property %s: %w", prop.ID, err))
		}
	}
	return out, errors.Join(errs...)
}
