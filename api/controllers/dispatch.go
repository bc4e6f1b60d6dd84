package controllers

import (
	"net/http"

	"github.com/kasuwa-market/kasuwa-backend/api/responses"
	"github.com/kasuwa-market/kasuwa-backend/internal/dispatch"
	"github.com/kasuwa-market/kasuwa-backend/pkg/logger"
)

// AssignRider picks the least-loaded eligible rider for a paid order.
// Settlement dispatches automatically; this endpoint covers orders left
// unassigned when the fleet was at capacity.
func AssignRider(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseUUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		assignment, err := svc.Assign(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, assignment)
	}
}
