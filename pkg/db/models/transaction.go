package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/kasuwa-market/kasuwa-backend/pkg/enums"
)

// Transaction records one gateway payment event accepted into the ledger.
// The unique Reference column is the idempotency anchor: at most one row
// may ever exist per payment reference.
type Transaction struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Reference         string                  `gorm:"column:reference;not null;uniqueIndex"`
	CheckoutSessionID *uuid.UUID              `gorm:"column:checkout_session_id;type:uuid"`
	BuyerID           uuid.UUID               `gorm:"column:buyer_id;type:uuid;not null"`
	Status            enums.TransactionStatus `gorm:"column:status;type:text;not null"`
	AmountCents       int64                   `gorm:"column:amount_cents;not null"`
	Currency          enums.Currency          `gorm:"column:currency;type:text;not null"`
	GatewayResponse   json.RawMessage         `gorm:"column:gateway_response;type:jsonb"`
	CreatedAt         time.Time               `gorm:"column:created_at;autoCreateTime"`
}
