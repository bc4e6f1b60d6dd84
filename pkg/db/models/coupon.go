package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Coupon is a seller-issued discount code. A coupon always belongs to
// exactly one seller and must never discount another seller's sub-order.
type Coupon struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code            string          `gorm:"column:code;not null;uniqueIndex"`
	SellerID        uuid.UUID       `gorm:"column:seller_id;type:uuid;not null;index"`
	DiscountPercent decimal.Decimal `gorm:"column:discount_percent;type:numeric(5,2);not null"`
	Active          bool            `gorm:"column:active;not null;default:true"`
	ExpiresAt       *time.Time      `gorm:"column:expires_at"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// IsUsable reports whether the coupon may currently be applied.
func (c Coupon) IsUsable(now time.Time) bool {
	if !c.Active {
		return false
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return false
	}
	return true
}
