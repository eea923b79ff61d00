package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-hospitality/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const cashMessage = "Please collect payment at the front desk"

var (
	ErrUnsupportedMethod = errors.New("unsupported payment method")
	ErrNotFound          = errors.New("payment not found")
	ErrNotConfirmable    = errors.New("payment cannot be confirmed in its current state")
)

// SupportedMethod reports whether checkout can take method.
func SupportedMethod(method string) bool {
	return method == models.PaymentMethodCard || method == models.PaymentMethodCash
}

// Outcome is what the client needs to finish paying.
type Outcome struct {
	PaymentID       uuid.UUID `json:"payment_id"`
	Status          string    `json:"status"`
	PaymentIntentID string    `json:"payment_intent_id,omitempty"`
	ClientSecret    string    `json:"client_secret,omitempty"`
	Message         string    `json:"message,omitempty"`
}

// Fees are the percentages withheld from card settlements.
type Fees struct {
	GatewayPercent  decimal.Decimal
	PlatformPercent decimal.Decimal
}

// Service records payments for orders.
type Service struct {
	db   *gorm.DB
	fees Fees
	now  func() time.Time
}

func NewService(db *gorm.DB, fees Fees) *Service {
	return &Service{db: db, fees: fees, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the time used to stamp settlements.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Initiate records the first payment for order inside tx.
// Card payments get a locally generated placeholder intent; no processor is called.
func (s *Service) Initiate(tx *gorm.DB, order *models.Order) (*models.Payment, Outcome, error) {
	p := models.Payment{
		ID:            uuid.New(),
		OrderID:       order.ID,
		TenantID:      order.TenantID,
		PropertyID:    order.PropertyID,
		Amount:        order.TotalAmount,
		Currency:      order.Currency,
		PaymentMethod: order.PaymentMethod,
	}
	out := Outcome{PaymentID: p.ID}

	switch order.PaymentMethod {
	case models.PaymentMethodCard:
		intentID := "pi_" + randomHex(24)
		out.PaymentIntentID = intentID
		out.ClientSecret = intentID + "_secret_" + randomHex(24)
		out.Status = models.PaymentStatusRequiresPaymentMethod
		p.PaymentIntentID = &intentID
		p.Metadata = map[string]any{"processor": "placeholder"}
	case models.PaymentMethodCash:
		out.Status = models.PaymentStatusPending
		out.Message = cashMessage
		p.Metadata = map[string]any{"instructions": cashMessage}
	default:
		return nil, Outcome{}, fmt.Errorf("%w: %q", ErrUnsupportedMethod, order.PaymentMethod)
	}
	p.PaymentStatus = out.Status

	if err := tx.Create(&p).Error; err != nil {
		return nil, Outcome{}, fmt.Errorf("create payment: %w", err)
	}
	return &p, out, nil
}

// OutcomeFor rebuilds the client view of an existing payment.
// Client secrets are not stored, so replays do not return one.
func OutcomeFor(p *models.Payment) Outcome {
	out := Outcome{PaymentID: p.ID, Status: p.PaymentStatus}
	if p.PaymentIntentID != nil {
		out.PaymentIntentID = *p.PaymentIntentID
	}
	if p.PaymentMethod == models.PaymentMethodCash && p.PaymentStatus == models.PaymentStatusPending {
		out.Message = cashMessage
	}
	return out
}

// LatestForOrder returns the most recent payment attempt for an order.
func LatestForOrder(tx *gorm.DB, orderID uuid.UUID) (*models.Payment, error) {
	var p models.Payment
	err := tx.Where("order_id = ?", orderID).Order("created_at desc").First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CancelOpen cancels every unsettled payment of an order.
func CancelOpen(tx *gorm.DB, orderID uuid.UUID) error {
	return tx.Model(&models.Payment{}).
		Where("order_id = ? AND payment_status IN ?", orderID, openStatuses).
		Update("payment_status", models.PaymentStatusCancelled).Error
}

var openStatuses = []string{models.PaymentStatusPending, models.PaymentStatusRequiresPaymentMethod}

// Confirmation is the result of settling a payment.
type Confirmation struct {
	Payment  *models.Payment  `json:"payment"`
	Order    *models.Order    `json:"order"`
	FundFlow *models.FundFlow `json:"fund_flow,omitempty"`
}

// Confirm settles a pending payment, confirms its order and, for card
// payments collected by the platform, opens a fund-flow row for payout.
func (s *Service) Confirm(ctx context.Context, tenantID, paymentID uuid.UUID, reference string) (*Confirmation, error) {
	var result Confirmation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Payment
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND tenant_id = ?", paymentID, tenantID).
			First(&p).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if p.PaymentStatus != models.PaymentStatusPending && p.PaymentStatus != models.PaymentStatusRequiresPaymentMethod {
			return fmt.Errorf("%w: status is %s", ErrNotConfirmable, p.PaymentStatus)
		}

		var order models.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, "id = ?", p.OrderID).Error; err != nil {
			return err
		}
		if order.Status == models.OrderStatusCancelled {
			return fmt.Errorf("%w: order is cancelled", ErrNotConfirmable)
		}

		now := s.now()
		if p.Metadata == nil {
			p.Metadata = map[string]any{}
		}
		p.Metadata["confirmed_at"] = now.Format(time.RFC3339)
		if reference = strings.TrimSpace(reference); reference != "" {
			p.Metadata["reference"] = reference
		}
		p.PaymentStatus = models.PaymentStatusSucceeded
		if err := tx.Model(&p).Select("PaymentStatus", "Metadata", "UpdatedAt").Updates(&p).Error; err != nil {
			return err
		}

		order.PaymentStatus = models.PaymentStatusPaid
		order.Status = models.OrderStatusConfirmed
		if err := tx.Model(&order).Select("PaymentStatus", "Status", "UpdatedAt").Updates(&order).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.OrderStatusHistory{
			OrderID: order.ID,
			Status:  models.OrderStatusConfirmed,
			Reason:  "Payment received (" + p.PaymentMethod + ")",
		}).Error; err != nil {
			return err
		}

		if p.PaymentMethod == models.PaymentMethodCard {
			flow := s.fundFlow(&p, now)
			if err := tx.Create(flow).Error; err != nil {
				return err
			}
			result.FundFlow = flow
		}

		result.Payment = &p
		result.Order = &order
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("confirm payment: %w", err)
	}
	return &result, nil
}

var hundred = decimal.NewFromInt(100)

func (s *Service) fundFlow(p *models.Payment, collectedAt time.Time) *models.FundFlow {
	gatewayFee := p.Amount.Mul(s.fees.GatewayPercent).Div(hundred).Round(2)
	platformFee := p.Amount.Mul(s.fees.PlatformPercent).Div(hundred).Round(2)
	return &models.FundFlow{
		ID:          uuid.New(),
		PaymentID:   p.ID,
		OrderID:     p.OrderID,
		PropertyID:  p.PropertyID,
		TenantID:    p.TenantID,
		GrossAmount: p.Amount,
		GatewayFee:  gatewayFee,
		PlatformFee: platformFee,
		NetAmount:   p.Amount.Sub(gatewayFee).Sub(platformFee),
		Stage:       models.FundFlowCollected,
		CollectedAt: collectedAt,
	}
}

func randomHex(n int) string {
	s := strings.ReplaceAll(uuid.NewString(), "-", "")
	return s[:n]
}
