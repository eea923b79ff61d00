// Package testutil provides fixtures shared by package tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"go-hospitality/internal/database"
	"go-hospitality/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns a migrated in-memory SQLite database private to the test.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// one connection keeps the shared in-memory database alive and serialises writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Fixture is a tenant with one property and its bank account.
type Fixture struct {
	TenantID uuid.UUID
	Property models.Property
	Bank     models.PropertyBankAccount
}

// SeedProperty creates a ZAR property with 15% tax and 10% service charge.
func SeedProperty(t testing.TB, db *gorm.DB) Fixture {
	t.Helper()

	tenantID := uuid.New()
	prop := models.Property{
		ID:                uuid.New(),
		TenantID:          tenantID,
		Name:              "Harbour View Hotel",
		Currency:          "ZAR",
		TaxRate:           decimal.NewFromInt(15),
		ServiceChargeRate: decimal.NewFromInt(10),
	}
	if err := db.Create(&prop).Error; err != nil {
		t.Fatalf("seed property: %v", err)
	}

	bank := models.PropertyBankAccount{
		ID:            uuid.New(),
		PropertyID:    prop.ID,
		TenantID:      tenantID,
		AccountHolder: "Harbour View (Pty) Ltd",
		BankName:      "First National",
		AccountNumber: "62812345678",
		BranchCode:    "250655",
		AccountType:   "cheque",
		IsActive:      true,
	}
	if err := db.Create(&bank).Error; err != nil {
		t.Fatalf("seed bank account: %v", err)
	}

	return Fixture{TenantID: tenantID, Property: prop, Bank: bank}
}

// SeedMenuItem adds one available catalog item to the property.
func SeedMenuItem(t testing.TB, db *gorm.DB, f Fixture, sku, name, price string) models.MenuItem {
	t.Helper()

	item := models.MenuItem{
		ID:          uuid.New(),
		PropertyID:  f.Property.ID,
		TenantID:    f.TenantID,
		SKU:         sku,
		Name:        name,
		Category:    "Food",
		Price:       decimal.RequireFromString(price),
		IsAvailable: true,
	}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("seed menu item: %v", err)
	}
	return item
}

// Money parses a decimal literal.
func Money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
