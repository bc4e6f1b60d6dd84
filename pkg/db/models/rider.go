package models

import (
	"time"

	"github.com/google/uuid"
)

// Rider is a delivery rider eligible for dispatch assignment.
type Rider struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	Approved     bool      `gorm:"column:approved;not null;default:false"`
	Active       bool      `gorm:"column:active;not null;default:false"`
	ActiveOrders int       `gorm:"column:active_orders;not null;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
