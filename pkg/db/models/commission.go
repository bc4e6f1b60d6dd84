package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kasuwa-market/kasuwa-backend/pkg/enums"
)

// Commission is the platform's cut of one order, computed exactly once.
// Invariant: SellerAmountCents + CommissionAmountCents == OrderAmountCents.
// Rate is a snapshot; later rate changes never touch existing rows.
type Commission struct {
	ID                    uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID               uuid.UUID              `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	SellerID              uuid.UUID              `gorm:"column:seller_id;type:uuid;not null;index"`
	OrderAmountCents      int64                  `gorm:"column:order_amount_cents;not null"`
	CommissionRate        decimal.Decimal        `gorm:"column:commission_rate;type:numeric(5,2);not null"`
	CommissionAmountCents int64                  `gorm:"column:commission_amount_cents;not null"`
	SellerAmountCents     int64                  `gorm:"column:seller_amount_cents;not null"`
	Status                enums.CommissionStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	ProcessedAt           *time.Time             `gorm:"column:processed_at"`
	CreatedAt             time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
