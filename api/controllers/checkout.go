package controllers

import (
	"net/http"

	"github.com/kasuwa-market/kasuwa-backend/api/middleware"
	"github.com/kasuwa-market/kasuwa-backend/api/responses"
	"github.com/kasuwa-market/kasuwa-backend/api/validators"
	"github.com/kasuwa-market/kasuwa-backend/internal/checkout"
	"github.com/kasuwa-market/kasuwa-backend/pkg/logger"
)

type checkoutRequest struct {
	Lines                 []checkout.CartLine `json:"lines" validate:"required,min=1,dive"`
	CouponCode            *string             `json:"coupon_code,omitempty"`
	DeliveryFeeCents      int64               `json:"delivery_fee_cents" validate:"gte=0"`
	DeclaredSubtotalCents int64               `json:"declared_subtotal_cents" validate:"required,gt=0"`
	DeclaredTotalCents    int64               `json:"declared_total_cents" validate:"required,gt=0"`
}

// Checkout splits the buyer's cart into per-seller orders and responds with
// the created orders plus the session grand total.
func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := middleware.ActorFromContext(r.Context())

		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if req.CouponCode != nil {
			code := validators.SanitizeString(*req.CouponCode, 64)
			req.CouponCode = &code
		}

		result, err := svc.Execute(r.Context(), checkout.Input{
			BuyerID:               actor.ID,
			Lines:                 req.Lines,
			CouponCode:            req.CouponCode,
			DeliveryFeeCents:      req.DeliveryFeeCents,
			DeclaredSubtotalCents: req.DeclaredSubtotalCents,
			DeclaredTotalCents:    req.DeclaredTotalCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
