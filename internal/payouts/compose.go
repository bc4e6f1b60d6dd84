package payouts

import (
	"github.com/kasuwa-market/kasuwa-backend/pkg/db/models"
	pkgerrors "github.com/kasuwa-market/kasuwa-backend/pkg/errors"
)

// Compose selects pending commissions that sum exactly to the requested
// amount. The scan is greedy and oldest-first: each commission is taken
// unless it would overshoot the remainder, so the oldest earnings leave the
// books first. Inputs must already be sorted oldest-first.
func Compose(pending []models.Commission, amountCents int64) ([]models.Commission, error) {
	if amountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout amount must be positive")
	}

	selected := make([]models.Commission, 0, len(pending))
	remaining := amountCents
	for _, commission := range pending {
		if commission.SellerAmountCents <= 0 || commission.SellerAmountCents > remaining {
			continue
		}
		selected = append(selected, commission)
		remaining -= commission.SellerAmountCents
		if remaining == 0 {
			return selected, nil
		}
	}

	available := make([]int64, 0, len(pending))
	var total int64
	for _, commission := range pending {
		available = append(available, commission.SellerAmountCents)
		total += commission.SellerAmountCents
	}
	return nil, pkgerrors.New(pkgerrors.CodePrecondition,
		"no combination of pending commissions matches the requested amount").WithDetails(map[string]any{
		"requested_cents":         amountCents,
		"short_by_cents":          remaining,
		"available_amounts_cents": available,
		"available_total_cents":   total,
	})
}
