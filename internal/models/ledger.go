package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	FundFlowCollected = "collected"
	FundFlowDisbursed = "disbursed"
)

const (
	DisbursementPending    = "pending"
	DisbursementProcessing = "processing"
	DisbursementCompleted  = "completed"
	DisbursementFailed     = "failed"
)

// FundFlow - Ledger row following one settled payment until it is paid out
type FundFlow struct {
	ID             uuid.UUID       `gorm:"type:char(36);primaryKey" json:"id"`
	PaymentID      uuid.UUID       `gorm:"type:char(36);uniqueIndex;not null" json:"payment_id"`
	OrderID        uuid.UUID       `gorm:"type:char(36);index;not null" json:"order_id"`
	PropertyID     uuid.UUID       `gorm:"type:char(36);index:idx_fund_flow_day;not null" json:"property_id"`
	TenantID       uuid.UUID       `gorm:"type:char(36);index:idx_fund_flow_day;not null" json:"tenant_id"`
	GrossAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"gross_amount"`
	GatewayFee     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"gateway_fee"`
	PlatformFee    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"platform_fee"`
	NetAmount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"net_amount"`
	Stage          string          `gorm:"size:20;index;not null" json:"stage"` // 'collected', 'disbursed'
	CollectedAt    time.Time       `gorm:"index:idx_fund_flow_day;not null" json:"collected_at"`
	DisbursementID *uuid.UUID      `gorm:"type:char(36);index" json:"disbursement_id,omitempty"`
	DisbursedAt    *time.Time      `json:"disbursed_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// DailyDisbursement - One day's payout for one property
type DailyDisbursement struct {
	ID                   uuid.UUID       `gorm:"type:char(36);primaryKey" json:"id"`
	PropertyID           uuid.UUID       `gorm:"type:char(36);uniqueIndex:idx_disbursement_day;not null" json:"property_id"`
	TenantID             uuid.UUID       `gorm:"type:char(36);uniqueIndex:idx_disbursement_day;not null" json:"tenant_id"`
	DisbursementDate     time.Time       `gorm:"uniqueIndex:idx_disbursement_day;not null" json:"disbursement_date"`
	Currency             string          `gorm:"size:3;not null" json:"currency"`
	TransactionCount     int             `gorm:"not null" json:"transaction_count"`
	TotalAmountCollected decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount_collected"`
	TotalGatewayFees     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_gateway_fees"`
	TotalPlatformFees    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_platform_fees"`
	NetPropertyAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"net_property_amount"`
	Status               string          `gorm:"size:20;index;not null" json:"status"`
	RealpayTransactionID *string         `gorm:"size:100;index" json:"realpay_transaction_id,omitempty"`
	ErrorMessage         *string         `json:"error_message,omitempty"`
	ProcessedAt          *time.Time      `json:"processed_at,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}
