package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/kasuwa-market/kasuwa-backend/pkg/db/models"
	"github.com/kasuwa-market/kasuwa-backend/pkg/enums"
)

// TransitionInput carries one requested lifecycle move.
type TransitionInput struct {
	OrderID uuid.UUID
	Target  enums.OrderStatus
	ActorID uuid.UUID
	Role    enums.ActorRole
	Reason  *string
}

// Filters describe the inputs supported by the order list endpoints.
type Filters struct {
	Status        *enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
	DateFrom      *time.Time
	DateTo        *time.Time
}

// OrderList is one cursor page of orders.
type OrderList struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
	HasMore    bool           `json:"has_more"`
}
