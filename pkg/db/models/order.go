package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/kasuwa-market/kasuwa-backend/pkg/enums"
)

// Order is one seller-scoped purchase. Orders created from a multi-vendor
// cart share a CheckoutSessionID for joint payment. All money columns are
// exact integer cents; Total is always re-derived server-side as
// subtotal - coupon discount + delivery fee + processing fee.
type Order struct {
	ID                  uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber         string               `gorm:"column:order_number;not null;unique"`
	CheckoutSessionID   *uuid.UUID           `gorm:"column:checkout_session_id;type:uuid;index"`
	BuyerID             uuid.UUID            `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID            uuid.UUID            `gorm:"column:seller_id;type:uuid;not null;index"`
	StoreID             *uuid.UUID           `gorm:"column:store_id;type:uuid"`
	RiderID             *uuid.UUID           `gorm:"column:rider_id;type:uuid"`
	Status              enums.OrderStatus    `gorm:"column:status;type:order_status;not null;default:'pending'"`
	PaymentStatus       enums.PaymentStatus  `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	PaymentReference    *string              `gorm:"column:payment_reference;index"`
	Currency            enums.Currency       `gorm:"column:currency;type:text;not null;default:'NGN'"`
	SubtotalCents       int64                `gorm:"column:subtotal_cents;not null"`
	DeliveryFeeCents    int64                `gorm:"column:delivery_fee_cents;not null;default:0"`
	ProcessingFeeCents  int64                `gorm:"column:processing_fee_cents;not null;default:0"`
	CouponCode          *string              `gorm:"column:coupon_code"`
	CouponDiscountCents *int64               `gorm:"column:coupon_discount_cents"`
	TotalCents          int64                `gorm:"column:total_cents;not null"`
	Items               []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	StatusHistory       []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	DeliveredAt         *time.Time           `gorm:"column:delivered_at"`
	CreatedAt           time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// DiscountCents returns the coupon discount applied to the order, zero when
// no coupon was applied.
func (o Order) DiscountCents() int64 {
	if o.CouponDiscountCents == nil {
		return 0
	}
	return *o.CouponDiscountCents
}
