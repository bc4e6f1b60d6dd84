package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/kasuwa-market/kasuwa-backend/pkg/enums"
)

// OrderStatusHistory is the append-only audit log of accepted transitions.
// Rows are never updated or deleted; one row per accepted transition.
type OrderStatusHistory struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	FromStatus    enums.OrderStatus `gorm:"column:from_status;type:order_status;not null"`
	ToStatus      enums.OrderStatus `gorm:"column:to_status;type:order_status;not null"`
	ChangedBy     uuid.UUID         `gorm:"column:changed_by;type:uuid;not null"`
	ChangedByRole enums.ActorRole   `gorm:"column:changed_by_role;type:text;not null"`
	Reason        *string           `gorm:"column:reason"`
	Metadata      json.RawMessage   `gorm:"column:metadata;type:jsonb"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
}
