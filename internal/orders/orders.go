package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go-hospitality/internal/models"
	"go-hospitality/internal/payment"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// transitions lists the statuses an order may move to from each status.
var transitions = map[string][]string{
	models.OrderStatusPending:   {models.OrderStatusConfirmed, models.OrderStatusCancelled},
	models.OrderStatusConfirmed: {},
	models.OrderStatusCancelled: {},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Detail is an order with its audit trail and payment attempts.
type Detail struct {
	Order    models.Order                `json:"order"`
	History  []models.OrderStatusHistory `json:"status_history"`
	Payments []models.Payment            `json:"payments"`
}

// Get loads one order of the tenant by its number.
func (s *Service) Get(ctx context.Context, tenantID uuid.UUID, orderNumber string) (*Detail, error) {
	db := s.db.WithContext(ctx)
	var d Detail
	err := db.Where("tenant_id = ? AND order_number = ?", tenantID, orderNumber).First(&d.Order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	d.History = []models.OrderStatusHistory{}
	if err := db.Where("order_id = ?", d.Order.ID).Order("id").Find(&d.History).Error; err != nil {
		return nil, fmt.Errorf("get order history: %w", err)
	}
	d.Payments = []models.Payment{}
	if err := db.Where("order_id = ?", d.Order.ID).Order("created_at").Find(&d.Payments).Error; err != nil {
		return nil, fmt.Errorf("get order payments: %w", err)
	}
	return &d, nil
}

// ListFilter narrows List.
type ListFilter struct {
	PropertyID *uuid.UUID
	Status     string
	Limit      int
}

// List returns the tenant's most recent orders.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, f ListFilter) ([]models.Order, error) {
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	q := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if f.PropertyID != nil {
		q = q.Where("property_id = ?", *f.PropertyID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	orders := []models.Order{}
	if err := q.Order("created_at desc").Limit(limit).Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// Cancel cancels a pending order, its open payments and gives back the
// discount use it consumed.
func (s *Service) Cancel(ctx context.Context, tenantID uuid.UUID, orderNumber, reason string) (*models.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "Cancelled by staff"
	}

	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("tenant_id = ? AND order_number = ?", tenantID, orderNumber).
			First(&order).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if !CanTransition(order.Status, models.OrderStatusCancelled) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, models.OrderStatusCancelled)
		}

		order.Status = models.OrderStatusCancelled
		order.PaymentStatus = models.PaymentStatusCancelled
		if err := tx.Model(&order).Select("Status", "PaymentStatus", "UpdatedAt").Updates(&order).Error; err != nil {
			return err
		}
		if err := payment.CancelOpen(tx, order.ID); err != nil {
			return err
		}
		if order.DiscountID != nil {
			if err := tx.Model(&models.Discount{}).
				Where("id = ? AND used_count > 0", *order.DiscountID).
				UpdateColumn("used_count", gorm.Expr("used_count - 1")).Error; err != nil {
				return err
			}
		}
		return appendHistory(tx, order.ID, models.OrderStatusCancelled, reason)
	})
	if err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}

	s.log.Info("order cancelled", zap.String("order_number", order.OrderNumber), zap.String("reason", reason))
	return &order, nil
}
