package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/kasuwa-market/kasuwa-backend/pkg/db/types"
	"github.com/kasuwa-market/kasuwa-backend/pkg/enums"
)

// SellerPayout is a seller withdrawal request backed by an exact subset of
// pending commissions. Invariant: the sum of seller amounts over
// CommissionIDs equals AmountCents to the cent.
type SellerPayout struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID      uuid.UUID          `gorm:"column:seller_id;type:uuid;not null;index"`
	AmountCents   int64              `gorm:"column:amount_cents;not null"`
	Method        enums.PayoutMethod `gorm:"column:method;type:text;not null"`
	BankName      *string            `gorm:"column:bank_name"`
	AccountNumber *string            `gorm:"column:account_number"`
	AccountName   *string            `gorm:"column:account_name"`
	MobileNetwork *string            `gorm:"column:mobile_network"`
	MobileNumber  *string            `gorm:"column:mobile_number"`
	Status        enums.PayoutStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	CommissionIDs dbtypes.UUIDArray  `gorm:"column:commission_ids;type:uuid[];not null"`
	ProcessedBy   *uuid.UUID         `gorm:"column:processed_by;type:uuid"`
	ProcessedAt   *time.Time         `gorm:"column:processed_at"`
	FailureReason *string            `gorm:"column:failure_reason"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
