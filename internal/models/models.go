package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Staff roles
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// User - A staff member of a tenant (front desk, manager)
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	TenantID     uuid.UUID `gorm:"type:char(36);index" json:"tenant_id"`
	Username     string    `gorm:"uniqueIndex;size:50" json:"username"`
	PasswordHash string    `json:"-"`    // Never return this in JSON
	Role         string    `json:"role"` // 'admin', 'staff'
	CreatedAt    time.Time `json:"created_at"`
}

// Property - A hotel, restaurant or venue owned by a tenant
type Property struct {
	ID                uuid.UUID       `gorm:"type:char(36);primaryKey" json:"id"`
	TenantID          uuid.UUID       `gorm:"type:char(36);index;not null" json:"tenant_id"`
	Name              string          `gorm:"size:200;not null" json:"name"`
	Currency          string          `gorm:"size:3;not null" json:"currency"`
	TaxRate           decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"tax_rate"`            // percent
	ServiceChargeRate decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"service_charge_rate"` // percent
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// PropertyBankAccount - Where the property's daily payout goes
type PropertyBankAccount struct {
	ID            uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	PropertyID    uuid.UUID `gorm:"type:char(36);uniqueIndex;not null" json:"property_id"`
	TenantID      uuid.UUID `gorm:"type:char(36);index;not null" json:"tenant_id"`
	AccountHolder string    `gorm:"size:200" json:"account_holder"`
	BankName      string    `gorm:"size:100" json:"bank_name"`
	AccountNumber string    `gorm:"size:34" json:"account_number"`
	BranchCode    string    `gorm:"size:20" json:"branch_code"`
	AccountType   string    `gorm:"size:20" json:"account_type"` // 'cheque', 'savings'
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MenuItem - The property's sellable catalog (food, drinks, services)
type MenuItem struct {
	ID          uuid.UUID       `gorm:"type:char(36);primaryKey" json:"id"`
	PropertyID  uuid.UUID       `gorm:"type:char(36);uniqueIndex:idx_menu_sku;not null" json:"property_id"`
	TenantID    uuid.UUID       `gorm:"type:char(36);index;not null" json:"tenant_id"`
	SKU         string          `gorm:"size:64;uniqueIndex:idx_menu_sku;not null" json:"sku"`
	Name        string          `gorm:"size:200;not null" json:"name"`
	Category    string          `gorm:"size:100" json:"category"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	IsAvailable bool            `json:"is_available"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// RateLimitCounter - One fixed window of requests for a client key
type RateLimitCounter struct {
	Key         string    `gorm:"primaryKey;size:255"`
	WindowStart time.Time `gorm:"not null"`
	Count       int       `gorm:"not null"`
}
