package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/kasuwa-market/kasuwa-backend/api/middleware"
	"github.com/kasuwa-market/kasuwa-backend/api/responses"
	"github.com/kasuwa-market/kasuwa-backend/api/validators"
	"github.com/kasuwa-market/kasuwa-backend/internal/payments"
	"github.com/kasuwa-market/kasuwa-backend/pkg/logger"
)

type initializePaymentRequest struct {
	BuyerEmail        string    `json:"buyer_email" validate:"required,email"`
	CheckoutSessionID uuid.UUID `json:"checkout_session_id" validate:"required"`
}

type verifyPaymentRequest struct {
	Reference string `json:"reference" validate:"required"`
	Token     string `json:"token" validate:"required"`
}

// InitializePayment starts gateway collection for one checkout session and
// returns the redirect URL plus the single-use verification token.
func InitializePayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := middleware.ActorFromContext(r.Context())

		var req initializePaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Initialize(r.Context(), payments.InitializeInput{
			BuyerID:           actor.ID,
			BuyerEmail:        req.BuyerEmail,
			CheckoutSessionID: req.CheckoutSessionID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// VerifyPayment settles a reference after the gateway redirect. The token is
// burned on first use, so a retry after success reports the stored outcome
// only through the webhook path.
func VerifyPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := middleware.ActorFromContext(r.Context())

		var req verifyPaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Verify(r.Context(), payments.VerifyInput{
			Reference: req.Reference,
			Token:     req.Token,
			BuyerID:   actor.ID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
