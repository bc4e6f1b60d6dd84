package models

import (
	"time"

	"github.com/google/uuid"
)

// PlatformEarning mirrors one Commission 1:1 for platform revenue reporting.
type PlatformEarning struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CommissionID uuid.UUID `gorm:"column:commission_id;type:uuid;not null;uniqueIndex"`
	OrderID      uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	SellerID     uuid.UUID `gorm:"column:seller_id;type:uuid;not null"`
	AmountCents  int64     `gorm:"column:amount_cents;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}
