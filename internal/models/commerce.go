package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	CartStatusActive    = "active"
	CartStatusConverted = "converted"
	CartStatusCancelled = "cancelled"
)

const (
	DiscountTypePercentage = "percentage"
	DiscountTypeFlat       = "flat"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusCancelled = "cancelled"
)

const (
	PaymentMethodCard = "card"
	PaymentMethodCash = "cash"
)

// Payment statuses. Orders reuse pending/paid/cancelled for their payment_status.
const (
	PaymentStatusRequiresPaymentMethod = "requires_payment_method"
	PaymentStatusPending               = "pending"
	PaymentStatusSucceeded             = "succeeded"
	PaymentStatusCancelled             = "cancelled"
	PaymentStatusPaid                  = "paid"
)

// LineItem - One line of a cart, copied verbatim into the order snapshot
type LineItem struct {
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Total is quantity * unit price.
func (l LineItem) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart - A guest's staging area before checkout.
// ActiveKey is only set while Status is active, so the unique index allows
// exactly one active cart per (session, property, tenant).
type Cart struct {
	ID            uuid.UUID       `gorm:"type:char(36);primaryKey" json:"id"`
	SessionID     string          `gorm:"size:128;index:idx_cart_owner;not null" json:"session_id"`
	PropertyID    uuid.UUID       `gorm:"type:char(36);index:idx_cart_owner;not null" json:"property_id"`
	TenantID      uuid.UUID       `gorm:"type:char(36);index:idx_cart_owner;not null" json:"tenant_id"`
	ActiveKey     *string         `gorm:"size:255;uniqueIndex" json:"-"`
	LineItems     []LineItem      `gorm:"serializer:json" json:"line_items"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	TaxAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"tax_amount"`
	ServiceCharge decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"service_charge"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	Currency      string          `gorm:"size:3;not null" json:"currency"`
	Status        string          `gorm:"size:20;index;not null" json:"status"` // 'active', 'converted', 'cancelled'
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Discount - A promotional code scoped to one property
type Discount struct {
	ID                 uuid.UUID           `gorm:"type:char(36);primaryKey" json:"id"`
	PropertyID         uuid.UUID           `gorm:"type:char(36);uniqueIndex:idx_discount_code;not null" json:"property_id"`
	TenantID           uuid.UUID           `gorm:"type:char(36);uniqueIndex:idx_discount_code;not null" json:"tenant_id"`
	Code               string              `gorm:"size:50;uniqueIndex:idx_discount_code;not null" json:"code"`
	Type               string              `gorm:"size:20;not null" json:"type"` // 'percentage' or 'flat'
	Value              decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"value"`
	MaxDiscountAmount  decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"max_discount_amount"`
	MinimumOrderAmount decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"minimum_order_amount"`
	ValidFrom          time.Time           `gorm:"not null" json:"valid_from"`
	ValidUntil         *time.Time          `json:"valid_until"`
	UsageLimit         *int                `json:"usage_limit"`
	UsedCount          int                 `gorm:"not null;default:0" json:"used_count"`
	IsActive           bool                `gorm:"not null" json:"is_active"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// Order - Immutable snapshot of a converted cart plus computed totals
type Order struct {
	ID             uuid.UUID       `gorm:"type:char(36);primaryKey" json:"id"`
	OrderNumber    string          `gorm:"size:40;uniqueIndex;not null" json:"order_number"`
	TenantID       uuid.UUID       `gorm:"type:char(36);index;uniqueIndex:idx_order_idempotency;not null" json:"tenant_id"`
	PropertyID     uuid.UUID       `gorm:"type:char(36);index;not null" json:"property_id"`
	CartID         uuid.UUID       `gorm:"type:char(36);index;not null" json:"cart_id"`
	SessionID      string          `gorm:"size:128" json:"session_id"`
	IdempotencyKey *string         `gorm:"size:255;uniqueIndex:idx_order_idempotency" json:"idempotency_key,omitempty"`
	OrderItems     []LineItem      `gorm:"serializer:json" json:"order_items"`
	DiscountID     *uuid.UUID      `gorm:"type:char(36)" json:"discount_id,omitempty"`
	DiscountCode   string          `gorm:"size:50" json:"discount_code,omitempty"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"discount_amount"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"tax_amount"`
	ServiceCharge  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"service_charge"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	Currency       string          `gorm:"size:3;not null" json:"currency"`
	Status         string          `gorm:"size:20;index;not null" json:"status"`
	PaymentStatus  string          `gorm:"size:30;not null" json:"payment_status"`
	PaymentMethod  string          `gorm:"size:20;not null" json:"payment_method"`
	GuestName      string          `gorm:"size:200" json:"guest_name,omitempty"`
	GuestEmail     string          `gorm:"size:254" json:"guest_email,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	CreatedAt      time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// OrderStatusHistory - Audit trail of order status changes
type OrderStatusHistory struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OrderID   uuid.UUID `gorm:"type:char(36);index;not null" json:"order_id"`
	Status    string    `gorm:"size:20;not null" json:"status"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// Payment - One payment attempt against an order
type Payment struct {
	ID              uuid.UUID       `gorm:"type:char(36);primaryKey" json:"id"`
	OrderID         uuid.UUID       `gorm:"type:char(36);index;not null" json:"order_id"`
	TenantID        uuid.UUID       `gorm:"type:char(36);index;not null" json:"tenant_id"`
	PropertyID      uuid.UUID       `gorm:"type:char(36);index;not null" json:"property_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency        string          `gorm:"size:3;not null" json:"currency"`
	PaymentMethod   string          `gorm:"size:20;not null" json:"payment_method"`
	PaymentStatus   string          `gorm:"size:30;not null" json:"payment_status"`
	PaymentIntentID *string         `gorm:"size:100" json:"payment_intent_id,omitempty"`
	Metadata        map[string]any  `gorm:"serializer:json" json:"metadata"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
