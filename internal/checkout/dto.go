package checkout

import (
	"github.com/google/uuid"

	"github.com/kasuwa-market/kasuwa-backend/pkg/db/models"
)

// CartLine is one client-submitted cart line. The declared price is used for
// tamper detection only; the authoritative price is re-read from the catalog.
type CartLine struct {
	ProductID              uuid.UUID `json:"product_id" validate:"required"`
	Quantity               int       `json:"quantity" validate:"required,gt=0"`
	DeclaredUnitPriceCents int64     `json:"declared_unit_price_cents"`
}

// Input carries everything one checkout call needs.
type Input struct {
	BuyerID               uuid.UUID
	Lines                 []CartLine
	CouponCode            *string
	DeliveryFeeCents      int64
	DeclaredSubtotalCents int64
	DeclaredTotalCents    int64
}

// Result reports the orders created by one checkout split.
type Result struct {
	CheckoutSessionID uuid.UUID      `json:"checkout_session_id"`
	Orders            []models.Order `json:"orders"`
	GrandTotalCents   int64          `json:"grand_total_cents"`
}
