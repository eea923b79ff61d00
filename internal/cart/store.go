package cart

import (
	"context"
	"errors"
	"fmt"

	"go-hospitality/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound means no active cart exists for the key.
var ErrNotFound = errors.New("active cart not found")

// Key identifies a guest's cart at one property.
type Key struct {
	SessionID  string
	PropertyID uuid.UUID
	TenantID   uuid.UUID
}

func (k Key) activeKey() *string {
	s := fmt.Sprintf("%s|%s|%s", k.TenantID, k.PropertyID, k.SessionID)
	return &s
}

// Totals are the computed money fields of a cart.
type Totals struct {
	Subtotal      decimal.Decimal
	TaxAmount     decimal.Decimal
	ServiceCharge decimal.Decimal
	TotalAmount   decimal.Decimal
	Currency      string
}

var hundred = decimal.NewFromInt(100)

// ComputeTotals derives cart totals from line items and percentage rates.
func ComputeTotals(items []models.LineItem, taxRate, serviceRate decimal.Decimal, currency string) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.Total())
	}
	subtotal = subtotal.Round(2)
	tax := subtotal.Mul(taxRate).Div(hundred).Round(2)
	service := subtotal.Mul(serviceRate).Div(hundred).Round(2)

	return Totals{
		Subtotal:      subtotal,
		TaxAmount:     tax,
		ServiceCharge: service,
		TotalAmount:   subtotal.Add(tax).Add(service),
		Currency:      currency,
	}
}

// Store persists carts.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Upsert replaces the items and totals of the active cart, creating it on first write.
// Concurrent writers to the same key are last-write-wins.
func (s *Store) Upsert(ctx context.Context, key Key, items []models.LineItem, totals Totals) (*models.Cart, error) {
	var cart models.Cart
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fresh := models.Cart{
			ID:         uuid.New(),
			SessionID:  key.SessionID,
			PropertyID: key.PropertyID,
			TenantID:   key.TenantID,
			ActiveKey:  key.activeKey(),
			Status:     models.CartStatusActive,
		}
		applyTotals(&fresh, items, totals)

		// the unique active_key decides the race between two first writes
		res := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "active_key"}}, DoNothing: true}).Create(&fresh)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			cart = fresh
			return nil
		}

		err := activeQuery(tx, key).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&cart).Error
		if err != nil {
			return err
		}
		applyTotals(&cart, items, totals)
		return tx.Model(&cart).Select("LineItems", "Subtotal", "TaxAmount", "ServiceCharge", "TotalAmount", "Currency", "UpdatedAt").
			Updates(&cart).Error
	})
	if err != nil {
		return nil, fmt.Errorf("upsert cart: %w", err)
	}
	return &cart, nil
}

// Get returns the active cart for the key.
func (s *Store) Get(ctx context.Context, key Key) (*models.Cart, error) {
	var cart models.Cart
	err := activeQuery(s.db.WithContext(ctx), key).First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return &cart, nil
}

// Clear cancels the active cart for the key.
func (s *Store) Clear(ctx context.Context, key Key) error {
	res := activeQuery(s.db.WithContext(ctx).Model(&models.Cart{}), key).
		Updates(map[string]any{"status": models.CartStatusCancelled, "active_key": nil})
	if res.Error != nil {
		return fmt.Errorf("clear cart: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// LockActive loads the active cart inside tx with a row lock.
func LockActive(tx *gorm.DB, key Key) (*models.Cart, error) {
	var cart models.Cart
	err := activeQuery(tx, key).Clauses(clause.Locking{Strength: "UPDATE"}).First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// MarkConverted flips an active cart to converted. It reports false if the
// cart was no longer active, so two checkouts cannot convert the same cart.
func MarkConverted(tx *gorm.DB, cartID uuid.UUID) (bool, error) {
	res := tx.Model(&models.Cart{}).
		Where("id = ? AND status = ?", cartID, models.CartStatusActive).
		Updates(map[string]any{"status": models.CartStatusConverted, "active_key": nil})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func activeQuery(db *gorm.DB, key Key) *gorm.DB {
	return db.Where("session_id = ? AND property_id = ? AND tenant_id = ? AND status = ?",
		key.SessionID, key.PropertyID, key.TenantID, models.CartStatusActive)
}

func applyTotals(cart *models.Cart, items []models.LineItem, totals Totals) {
	if items == nil {
		items = []models.LineItem{}
	}
	cart.LineItems = items
	cart.Subtotal = totals.Subtotal
	cart.TaxAmount = totals.TaxAmount
	cart.ServiceCharge = totals.ServiceCharge
	cart.TotalAmount = totals.TotalAmount
	cart.Currency = totals.Currency
}
