package payouts

import (
	"github.com/google/uuid"

	"github.com/kasuwa-market/kasuwa-backend/pkg/enums"
)

// RequestInput is a seller withdrawal request.
type RequestInput struct {
	SellerID    uuid.UUID          `validate:"required"`
	AmountCents int64              `json:"amount_cents" validate:"required,gt=0"`
	Method      enums.PayoutMethod `json:"method" validate:"required"`

	BankName      *string `json:"bank_name,omitempty"`
	AccountNumber *string `json:"account_number,omitempty"`
	AccountName   *string `json:"account_name,omitempty"`
	MobileNetwork *string `json:"mobile_network,omitempty"`
	MobileNumber  *string `json:"mobile_number,omitempty"`
}

// AdvanceInput moves a payout through its lifecycle. FailureReason is
// required when the target is failed.
type AdvanceInput struct {
	PayoutID      uuid.UUID
	Target        enums.PayoutStatus
	AdminID       uuid.UUID
	FailureReason *string
}
