package payments

import (
	"github.com/google/uuid"

	"github.com/kasuwa-market/kasuwa-backend/pkg/enums"
)

// InitializeInput starts payment for one checkout session.
type InitializeInput struct {
	BuyerID           uuid.UUID `validate:"required"`
	BuyerEmail        string    `validate:"required,email"`
	CheckoutSessionID uuid.UUID `validate:"required"`
}

// InitializeResult carries the gateway redirect plus the single-use token
// the buyer must present at verification.
type InitializeResult struct {
	Reference         string `json:"reference"`
	AuthorizationURL  string `json:"authorization_url"`
	AccessCode        string `json:"access_code"`
	VerificationToken string `json:"verification_token"`
	AmountCents       int64  `json:"amount_cents"`
	Currency          string `json:"currency"`
}

// VerifyInput is the buyer-initiated verification call after the gateway
// redirects back.
type VerifyInput struct {
	Reference string `json:"reference" validate:"required"`
	Token     string `json:"token" validate:"required"`
	BuyerID   uuid.UUID
}

// VerifyResult reports the reconciliation outcome for one reference.
type VerifyResult struct {
	Reference        string              `json:"reference"`
	PaymentStatus    enums.PaymentStatus `json:"payment_status"`
	TransactionID    uuid.UUID           `json:"transaction_id"`
	OrderIDs         []uuid.UUID         `json:"order_ids"`
	AlreadyProcessed bool                `json:"already_processed"`
}
