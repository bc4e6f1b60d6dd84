package orders

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kasuwa-market/kasuwa-backend/api/middleware"
	"github.com/kasuwa-market/kasuwa-backend/api/responses"
	"github.com/kasuwa-market/kasuwa-backend/api/validators"
	internalorders "github.com/kasuwa-market/kasuwa-backend/internal/orders"
	"github.com/kasuwa-market/kasuwa-backend/pkg/enums"
	pkgerrors "github.com/kasuwa-market/kasuwa-backend/pkg/errors"
	"github.com/kasuwa-market/kasuwa-backend/pkg/logger"
	"github.com/kasuwa-market/kasuwa-backend/pkg/pagination"
)

type transitionRequest struct {
	Target string  `json:"target" validate:"required"`
	Reason *string `json:"reason,omitempty"`
}

// Transition applies one lifecycle move on behalf of the calling actor. The
// service enforces which roles may request which move.
func Transition(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := middleware.ActorFromContext(r.Context())

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req transitionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		target, err := enums.ParseOrderStatus(req.Target)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").
					WithDetails(map[string]any{"target": req.Target}))
			return
		}

		order, err := svc.Transition(r.Context(), internalorders.TransitionInput{
			OrderID: orderID,
			Target:  target,
			ActorID: actor.ID,
			Role:    actor.Role,
			Reason:  req.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, order)
	}
}

// Detail returns one order, restricted to actors with a stake in it.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := middleware.ActorFromContext(r.Context())

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !canReadOrder(actor, order.BuyerID, order.SellerID, order.RiderID) {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}

		responses.WriteSuccess(w, order)
	}
}

// History returns the append-only transition log for one order.
func History(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := middleware.ActorFromContext(r.Context())

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !canReadOrder(actor, order.BuyerID, order.SellerID, order.RiderID) {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}

		history, err := svc.History(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, history)
	}
}

// List pages the calling actor's orders: buyers see their purchases,
// sellers see their sales.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := middleware.ActorFromContext(r.Context())

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		filters, err := buildFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var list *internalorders.OrderList
		switch actor.Role {
		case enums.RoleBuyer:
			list, err = svc.ListByBuyer(r.Context(), actor.ID, params, filters)
		case enums.RoleSeller:
			list, err = svc.ListBySeller(r.Context(), actor.ID, params, filters)
		default:
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeRoleViolation, "only buyers and sellers have order lists"))
			return
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

func canReadOrder(actor middleware.Actor, buyerID, sellerID uuid.UUID, riderID *uuid.UUID) bool {
	if actor.Role.IsAdmin() {
		return true
	}
	switch actor.Role {
	case enums.RoleBuyer:
		return actor.ID == buyerID
	case enums.RoleSeller:
		return actor.ID == sellerID
	case enums.RoleRider:
		return riderID != nil && actor.ID == *riderID
	}
	return false
}

func buildFilters(r *http.Request) (internalorders.Filters, error) {
	var filters internalorders.Filters
	query := r.URL.Query()

	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return filters, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").
				WithDetails(map[string]any{"field": "status"})
		}
		filters.Status = &status
	}
	if raw := strings.TrimSpace(query.Get("payment_status")); raw != "" {
		status, err := enums.ParsePaymentStatus(raw)
		if err != nil {
			return filters, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment status").
				WithDetails(map[string]any{"field": "payment_status"})
		}
		filters.PaymentStatus = &status
	}
	if from, err := parseDateParam(query.Get("date_from"), "date_from"); err != nil {
		return filters, err
	} else if from != nil {
		filters.DateFrom = from
	}
	if to, err := parseDateParam(query.Get("date_to"), "date_to"); err != nil {
		return filters, err
	} else if to != nil {
		filters.DateTo = to
	}
	return filters, nil
}

func parseDateParam(raw, field string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "date must be RFC3339").
			WithDetails(map[string]any{"field": field})
	}
	return &parsed, nil
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "orderID")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "path parameter must be a UUID").
			WithDetails(map[string]any{"field": "orderID"})
	}
	return id, nil
}
