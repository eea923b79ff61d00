package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-hospitality/internal/cart"
	"go-hospitality/internal/discount"
	"go-hospitality/internal/models"
	"go-hospitality/internal/payment"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrCartNotFound        = errors.New("cart not found")
	ErrCartNotActive       = errors.New("cart has already been checked out or cleared")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrIdempotencyMismatch = errors.New("idempotency key was used for a different cart")
)

// CheckoutInput is one checkout request.
type CheckoutInput struct {
	Cart           cart.Key
	DiscountCode   string
	PaymentMethod  string
	IdempotencyKey string
	GuestName      string
	GuestEmail     string
	Notes          string
}

// CheckoutResult is the created (or replayed) order and how to pay for it.
type CheckoutResult struct {
	Order           *models.Order   `json:"order"`
	Payment         payment.Outcome `json:"payment"`
	DiscountApplied bool            `json:"discount_applied"`
	Replayed        bool            `json:"replayed"`
}

// Service writes and manages orders.
type Service struct {
	db        *gorm.DB
	discounts *discount.Resolver
	payments  *payment.Service
	numbers   *NumberGenerator
	log       *zap.Logger
	now       func() time.Time
}

func NewService(db *gorm.DB, discounts *discount.Resolver, payments *payment.Service, numbers *NumberGenerator, log *zap.Logger) *Service {
	return &Service{
		db:        db,
		discounts: discounts,
		payments:  payments,
		numbers:   numbers,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Checkout converts the active cart into an order and initiates payment.
// Every write happens in one transaction; a failure leaves the cart active
// and no order, payment or discount redemption behind.
func (s *Service) Checkout(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	if !payment.SupportedMethod(in.PaymentMethod) {
		return nil, fmt.Errorf("%w: %q", payment.ErrUnsupportedMethod, in.PaymentMethod)
	}
	key := strings.TrimSpace(in.IdempotencyKey)

	if key != "" {
		replay, err := s.replay(ctx, in.Cart, key)
		if err != nil || replay != nil {
			return replay, err
		}
	}

	var result CheckoutResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := cart.LockActive(tx, in.Cart)
		if errors.Is(err, cart.ErrNotFound) {
			return s.missingCartError(tx, in.Cart)
		}
		if err != nil {
			return err
		}
		if len(c.LineItems) == 0 {
			return ErrEmptyCart
		}

		disc, err := s.discounts.Resolve(tx, in.DiscountCode, discount.Scope{PropertyID: c.PropertyID, TenantID: c.TenantID}, c.Subtotal)
		if err != nil {
			return err
		}
		if disc.Applied() {
			redeemed, err := s.discounts.Redeem(tx, disc.Discount.ID)
			if err != nil {
				return err
			}
			if !redeemed {
				disc = discount.Result{}
			}
		}

		now := s.now()
		order := newOrder(c, in, disc, s.numbers.Next(now))
		if key != "" {
			order.IdempotencyKey = &key
		}
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		converted, err := cart.MarkConverted(tx, c.ID)
		if err != nil {
			return fmt.Errorf("convert cart: %w", err)
		}
		if !converted {
			return ErrCartNotActive
		}

		if err := appendHistory(tx, order.ID, models.OrderStatusPending, "Order created"); err != nil {
			return err
		}

		_, outcome, err := s.payments.Initiate(tx, order)
		if err != nil {
			return err
		}

		result = CheckoutResult{Order: order, Payment: outcome, DiscountApplied: disc.Applied()}
		return nil
	})
	if err != nil {
		// a concurrent request with the same key may have won the unique index
		if key != "" {
			if replay, rerr := s.replay(ctx, in.Cart, key); rerr == nil && replay != nil {
				return replay, nil
			}
		}
		return nil, err
	}

	s.log.Info("order created",
		zap.String("order_number", result.Order.OrderNumber),
		zap.String("tenant_id", result.Order.TenantID.String()),
		zap.String("property_id", result.Order.PropertyID.String()),
		zap.String("payment_method", result.Order.PaymentMethod),
		zap.String("total", result.Order.TotalAmount.StringFixed(2)),
		zap.Bool("discount_applied", result.DiscountApplied),
	)
	return &result, nil
}

func newOrder(c *models.Cart, in CheckoutInput, disc discount.Result, number string) *models.Order {
	snapshot := make([]models.LineItem, len(c.LineItems))
	copy(snapshot, c.LineItems)

	subtotal := c.Subtotal.Sub(disc.Amount)
	order := &models.Order{
		ID:             uuid.New(),
		OrderNumber:    number,
		TenantID:       c.TenantID,
		PropertyID:     c.PropertyID,
		CartID:         c.ID,
		SessionID:      c.SessionID,
		OrderItems:     snapshot,
		Subtotal:       subtotal,
		DiscountAmount: disc.Amount,
		TaxAmount:      c.TaxAmount,
		ServiceCharge:  c.ServiceCharge,
		TotalAmount:    subtotal.Add(c.TaxAmount).Add(c.ServiceCharge),
		Currency:       c.Currency,
		Status:         models.OrderStatusPending,
		PaymentStatus:  models.PaymentStatusPending,
		PaymentMethod:  in.PaymentMethod,
		GuestName:      strings.TrimSpace(in.GuestName),
		GuestEmail:     strings.TrimSpace(in.GuestEmail),
		Notes:          strings.TrimSpace(in.Notes),
	}
	if disc.Applied() {
		order.DiscountID = &disc.Discount.ID
		order.DiscountCode = disc.Discount.Code
	}
	return order
}

func (s *Service) replay(ctx context.Context, key cart.Key, idempotencyKey string) (*CheckoutResult, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND idempotency_key = ?", key.TenantID, idempotencyKey).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}
	if order.PropertyID != key.PropertyID || order.SessionID != key.SessionID {
		return nil, ErrIdempotencyMismatch
	}

	p, err := payment.LatestForOrder(s.db.WithContext(ctx), order.ID)
	if err != nil {
		return nil, fmt.Errorf("idempotency replay: %w", err)
	}

	s.log.Info("checkout replayed", zap.String("order_number", order.OrderNumber))
	return &CheckoutResult{
		Order:           &order,
		Payment:         payment.OutcomeFor(p),
		DiscountApplied: order.DiscountAmount.IsPositive(),
		Replayed:        true,
	}, nil
}

// missingCartError separates "never had a cart" from "cart already checked out".
func (s *Service) missingCartError(tx *gorm.DB, key cart.Key) error {
	var last models.Cart
	err := tx.Where("session_id = ? AND property_id = ? AND tenant_id = ?", key.SessionID, key.PropertyID, key.TenantID).
		Order("updated_at desc").
		First(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrCartNotFound
	}
	if err != nil {
		return err
	}
	if last.Status == models.CartStatusConverted {
		return ErrCartNotActive
	}
	return ErrCartNotFound
}

func appendHistory(tx *gorm.DB, orderID uuid.UUID, status, reason string) error {
	err := tx.Create(&models.OrderStatusHistory{OrderID: orderID, Status: status, Reason: reason}).Error
	if err != nil {
		return fmt.Errorf("append status history: %w", err)
	}
	return nil
}
