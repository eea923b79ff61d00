package discount

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
)

var (
	ErrNotFound  = errors.New("discount not found")
	ErrInvalid   = errors.New("invalid discount")
	ErrDuplicate = errors.New("discount code already exists for this property")
)

var hundred = decimal.NewFromInt(100)

// Scope is the property a code belongs to.
type Scope struct {
	PropertyID uuid.UUID
	TenantID   uuid.UUID
}

// Result is what checkout needs to know about a code.
type Result struct {
	Discount *models.Discount
	Amount   decimal.Decimal
}

// Applied reports whether the code reduced the subtotal.
func (r Result) Applied() bool {
	return r.Discount != nil && r.Amount.IsPositive()
}

// Amount computes the reduction for subtotal. Percentages are capped by
// MaxDiscountAmount; no discount is ever larger than the subtotal.
func Amount(d *models.Discount, subtotal decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch d.Type {
	case models.DiscountTypePercentage:
		amount = subtotal.Mul(d.Value).Div(hundred)
		if d.MaxDiscountAmount.Valid && amount.GreaterThan(d.MaxDiscountAmount.Decimal) {
			amount = d.MaxDiscountAmount.Decimal
		}
	case models.DiscountTypeFlat:
		amount = d.Value
	default:
		return decimal.Zero
	}
	if amount.GreaterThan(subtotal) {
		amount = subtotal
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount.Round(2)
}

// Ineligibility explains why a discount cannot be used, or returns "".
func Ineligibility(d *models.Discount, subtotal decimal.Decimal, now time.Time) string {
	switch {
	case !d.IsActive:
		return "discount is not active"
	case now.Before(d.ValidFrom):
		return "discount is not valid yet"
	case d.ValidUntil != nil && now.After(*d.ValidUntil):
		return "discount has expired"
	case d.UsageLimit != nil && d.UsedCount >= *d.UsageLimit:
		return "discount usage limit reached"
	case subtotal.LessThan(d.MinimumOrderAmount):
		return fmt.Sprintf("order subtotal must be at least %s", d.MinimumOrderAmount.StringFixed(2))
	}
	return ""
}

// Resolver looks up and redeems discount codes.
type Resolver struct {
	db  *gorm.DB
	now func() time.Time
}

func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the resolver's notion of now.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// Resolve finds a usable code for subtotal. An unknown, expired, exhausted or
// below-minimum code yields a zero Result and no error.
func (r *Resolver) Resolve(tx *gorm.DB, code string, scope Scope, subtotal decimal.Decimal) (Result, error) {
	code = normalize(code)
	if code == "" {
		return Result{Amount: decimal.Zero}, nil
	}
	now := r.now().UTC()

	var d models.Discount
	err := tx.Where("code = ? AND property_id = ? AND tenant_id = ?", code, scope.PropertyID, scope.TenantID).
		Where("is_active = ?", true).
		Where("valid_from <= ?", now).
		Where("valid_until IS NULL OR valid_until >= ?", now).
		Where("usage_limit IS NULL OR used_count < usage_limit").
		Where("minimum_order_amount <= ?", subtotal).
		First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Result{Amount: decimal.Zero}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("resolve discount: %w", err)
	}

	return Result{Discount: &d, Amount: Amount(&d, subtotal)}, nil
}

// Redeem increments used_count unless the limit was reached in the meantime.
// It reports false when another checkout took the last use.
func (r *Resolver) Redeem(tx *gorm.DB, discountID uuid.UUID) (bool, error) {
	res := tx.Model(&models.Discount{}).
		Where("id = ?", discountID).
		Where("usage_limit IS NULL OR used_count < usage_limit").
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return false, fmt.Errorf("redeem discount: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Validate reports, without redeeming, how a code would apply to subtotal.
func (r *Resolver) Validate(ctx context.Context, code string, scope Scope, subtotal decimal.Decimal) (*models.Discount, decimal.Decimal, string, error) {
	d, err := r.find(ctx, code, scope)
	if err != nil {
		return nil, decimal.Zero, "", err
	}
	if reason := Ineligibility(d, subtotal, r.now()); reason != "" {
		return d, decimal.Zero, reason, nil
	}
	return d, Amount(d, subtotal), "", nil
}

// CreateInput is an admin request to add a code.
type CreateInput struct {
	Scope              Scope
	Code               string
	Type               string
	Value              decimal.Decimal
	MaxDiscountAmount  *decimal.Decimal
	MinimumOrderAmount decimal.Decimal
	ValidFrom          *time.Time
	ValidUntil         *time.Time
	UsageLimit         *int
}

// Create stores a new active discount.
func (r *Resolver) Create(ctx context.Context, in CreateInput) (*models.Discount, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	d := models.Discount{
		ID:                 uuid.New(),
		PropertyID:         in.Scope.PropertyID,
		TenantID:           in.Scope.TenantID,
		Code:               normalize(in.Code),
		Type:               in.Type,
		Value:              in.Value,
		MinimumOrderAmount: in.MinimumOrderAmount,
		ValidFrom:          r.now(),
		UsageLimit:         in.UsageLimit,
		IsActive:           true,
	}
	// stored in UTC so the window compares correctly on every driver
	if in.ValidFrom != nil {
		d.ValidFrom = in.ValidFrom.UTC()
	}
	if in.ValidUntil != nil {
		until := in.ValidUntil.UTC()
		d.ValidUntil = &until
	}
	if in.MaxDiscountAmount != nil {
		d.MaxDiscountAmount = decimal.NewNullDecimal(*in.MaxDiscountAmount)
	}

	var existing int64
	if err := r.db.WithContext(ctx).Model(&models.Discount{}).
		Where("code = ? AND property_id = ? AND tenant_id = ?", d.Code, d.PropertyID, d.TenantID).
		Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("create discount: %w", err)
	}
	if existing > 0 {
		return nil, ErrDuplicate
	}

	if err := r.db.WithContext(ctx).Create(&d).Error; err != nil {
		return nil, fmt.Errorf("create discount: %w", err)
	}
	return &d, nil
}

// List returns the property's discounts, newest first.
func (r *Resolver) List(ctx context.Context, scope Scope) ([]models.Discount, error) {
	discounts := []models.Discount{}
	err := r.db.WithContext(ctx).
		Where("property_id = ? AND tenant_id = ?", scope.PropertyID, scope.TenantID).
		Order("created_at desc").
		Find(&discounts).Error
	if err != nil {
		return nil, fmt.Errorf("list discounts: %w", err)
	}
	return discounts, nil
}

func (r *Resolver) find(ctx context.Context, code string, scope Scope) (*models.Discount, error) {
	var d models.Discount
	err := r.db.WithContext(ctx).
		Where("code = ? AND property_id = ? AND tenant_id = ?", normalize(code), scope.PropertyID, scope.TenantID).
		First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find discount: %w", err)
	}
	return &d, nil
}

func validateInput(in CreateInput) error {
	if normalize(in.Code) == "" {
		return fmt.Errorf("%w: code is required", ErrInvalid)
	}
	if !in.Value.IsPositive() {
		return fmt.Errorf("%w: value must be positive", ErrInvalid)
	}
	switch in.Type {
	case models.DiscountTypePercentage:
		if in.Value.GreaterThan(hundred) {
			return fmt.Errorf("%w: percentage cannot exceed 100", ErrInvalid)
		}
	case models.DiscountTypeFlat:
		if in.MaxDiscountAmount != nil {
			return fmt.Errorf("%w: max_discount_amount only applies to percentage discounts", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: type must be percentage or flat", ErrInvalid)
	}
	if in.MinimumOrderAmount.IsNegative() {
		return fmt.Errorf("%w: minimum_order_amount cannot be negative", ErrInvalid)
	}
	if in.UsageLimit != nil && *in.UsageLimit <= 0 {
		return fmt.Errorf("%w: usage_limit must be positive", ErrInvalid)
	}
	if in.ValidFrom != nil && in.ValidUntil != nil && in.ValidUntil.Before(*in.ValidFrom) {
		return fmt.Errorf("%w: valid_until is before valid_from", ErrInvalid)
	}
	return nil
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
