package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kasuwa-market/kasuwa-backend/api/middleware"
	"github.com/kasuwa-market/kasuwa-backend/api/responses"
	"github.com/kasuwa-market/kasuwa-backend/api/validators"
	"github.com/kasuwa-market/kasuwa-backend/internal/commissions"
	"github.com/kasuwa-market/kasuwa-backend/internal/payouts"
	"github.com/kasuwa-market/kasuwa-backend/pkg/enums"
	pkgerrors "github.com/kasuwa-market/kasuwa-backend/pkg/errors"
	"github.com/kasuwa-market/kasuwa-backend/pkg/logger"
	"github.com/kasuwa-market/kasuwa-backend/pkg/pagination"
)

type requestPayoutBody struct {
	AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`
	Method      string `json:"method" validate:"required"`

	BankName      *string `json:"bank_name,omitempty"`
	AccountNumber *string `json:"account_number,omitempty"`
	AccountName   *string `json:"account_name,omitempty"`
	MobileNetwork *string `json:"mobile_network,omitempty"`
	MobileNumber  *string `json:"mobile_number,omitempty"`
}

type advancePayoutBody struct {
	Target        string  `json:"target" validate:"required"`
	FailureReason *string `json:"failure_reason,omitempty"`
}

// RequestPayout lets a seller withdraw an exact amount composed from their
// pending commissions.
func RequestPayout(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := middleware.ActorFromContext(r.Context())

		var req requestPayoutBody
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePayoutMethod(req.Method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "unknown payout method").
					WithDetails(map[string]any{"method": req.Method}))
			return
		}

		payout, err := svc.Request(r.Context(), payouts.RequestInput{
			SellerID:      actor.ID,
			AmountCents:   req.AmountCents,
			Method:        method,
			BankName:      req.BankName,
			AccountNumber: req.AccountNumber,
			AccountName:   req.AccountName,
			MobileNetwork: req.MobileNetwork,
			MobileNumber:  req.MobileNumber,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, payout)
	}
}

// AdvancePayout moves a payout through its lifecycle. Admin only.
func AdvancePayout(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := middleware.ActorFromContext(r.Context())

		payoutID, err := parseUUIDParam(r, "payoutID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req advancePayoutBody
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		target, err := enums.ParsePayoutStatus(req.Target)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "unknown payout status").
					WithDetails(map[string]any{"target": req.Target}))
			return
		}

		payout, err := svc.Advance(r.Context(), payouts.AdvanceInput{
			PayoutID:      payoutID,
			Target:        target,
			AdminID:       actor.ID,
			FailureReason: req.FailureReason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, payout)
	}
}

// GetPayout returns one payout. Sellers may only read their own.
func GetPayout(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := middleware.ActorFromContext(r.Context())

		payoutID, err := parseUUIDParam(r, "payoutID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payout, err := svc.Get(r.Context(), payoutID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if actor.Role == enums.RoleSeller && payout.SellerID != actor.ID {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeNotFound, "payout not found"))
			return
		}

		responses.WriteSuccess(w, payout)
	}
}

// ListPayouts returns the calling seller's payout history, newest first.
func ListPayouts(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := middleware.ActorFromContext(r.Context())

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListBySeller(r.Context(), actor.ID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

// SellerBalance reports the calling seller's withdrawable commission total.
func SellerBalance(svc commissions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := middleware.ActorFromContext(r.Context())

		balance, err := svc.SellerBalance(r.Context(), actor.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, balance)
	}
}

func parseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "path parameter must be a UUID").
			WithDetails(map[string]any{"field": name})
	}
	return id, nil
}
