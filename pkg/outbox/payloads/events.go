package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/kasuwa-market/kasuwa-backend/pkg/enums"
)

// OrderCreatedEvent signals a checkout session split into per-seller orders.
type OrderCreatedEvent struct {
	CheckoutSessionID uuid.UUID   `json:"checkout_session_id"`
	BuyerID           uuid.UUID   `json:"buyer_id"`
	OrderIDs          []uuid.UUID `json:"order_ids"`
	GrandTotalCents   int64       `json:"grand_total_cents"`
}

// OrderStatusChangedEvent records one audited transition on an order.
type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	SellerID   uuid.UUID         `json:"seller_id"`
	FromStatus enums.OrderStatus `json:"from_status"`
	ToStatus   enums.OrderStatus `json:"to_status"`
	ChangedBy  uuid.UUID         `json:"changed_by"`
	Role       enums.ActorRole   `json:"role"`
	Reason     string            `json:"reason,omitempty"`
	ChangedAt  time.Time         `json:"changed_at"`
}

// PaymentCompletedEvent is emitted once per gateway reference after the
// session's orders have been marked paid.
type PaymentCompletedEvent struct {
	CheckoutSessionID uuid.UUID   `json:"checkout_session_id"`
	PaymentReference  string      `json:"payment_reference"`
	OrderIDs          []uuid.UUID `json:"order_ids"`
	AmountCents       int64       `json:"amount_cents"`
	Currency          string      `json:"currency"`
	TransactionID     uuid.UUID   `json:"transaction_id"`
}

// PaymentFailedEvent reports a gateway-confirmed failure for a reference.
type PaymentFailedEvent struct {
	CheckoutSessionID uuid.UUID `json:"checkout_session_id"`
	PaymentReference  string    `json:"payment_reference"`
	GatewayResponse   string    `json:"gateway_response,omitempty"`
}

// PayoutProcessedEvent carries the composed payout after admin completion.
type PayoutProcessedEvent struct {
	PayoutID      uuid.UUID          `json:"payout_id"`
	SellerID      uuid.UUID          `json:"seller_id"`
	AmountCents   int64              `json:"amount_cents"`
	CommissionIDs []uuid.UUID        `json:"commission_ids"`
	Method        enums.PayoutMethod `json:"method"`
	ProcessedAt   time.Time          `json:"processed_at"`
}

// RiderAssignedEvent is emitted when dispatch attaches a rider to an order.
type RiderAssignedEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	RiderID    uuid.UUID `json:"rider_id"`
	AssignedAt time.Time `json:"assigned_at"`
}
