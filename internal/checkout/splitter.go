package checkout

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kasuwa-market/kasuwa-backend/pkg/db/models"
	pkgerrors "github.com/kasuwa-market/kasuwa-backend/pkg/errors"
	"github.com/kasuwa-market/kasuwa-backend/pkg/money"
)

// PricedLine is one cart line after server-side repricing.
type PricedLine struct {
	ProductID      uuid.UUID
	SellerID       uuid.UUID
	StoreID        *uuid.UUID
	Name           string
	Quantity       int
	UnitPriceCents money.Cents
	LineTotalCents money.Cents
}

// SellerDraft is one seller's sub-order before persistence.
type SellerDraft struct {
	SellerID            uuid.UUID
	StoreID             *uuid.UUID
	Lines               []PricedLine
	SubtotalCents       money.Cents
	DeliveryFeeCents    money.Cents
	CouponDiscountCents money.Cents
	ProcessingFeeCents  money.Cents
	TotalCents          money.Cents
}

var oneHundred = decimal.NewFromInt(100)

// Reprice recomputes every line from the authoritative catalog rows. The
// unit price is `originalPrice * (1 - discount/100)` rounded to the cent;
// client-declared prices never enter the calculation.
func Reprice(lines []CartLine, products map[uuid.UUID]*models.Product) ([]PricedLine, money.Cents, error) {
	if len(lines) == 0 {
		return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
	}

	priced := make([]PricedLine, 0, len(lines))
	var subtotal money.Cents
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be positive")
		}
		product, ok := products[line.ProductID]
		if !ok || product == nil {
			return nil, 0, pkgerrors.New(pkgerrors.CodeNotFound,
				fmt.Sprintf("product %s not found", line.ProductID))
		}
		if !product.IsActive {
			return nil, 0, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("product %q is no longer available", product.Name))
		}

		unit := money.Cents(decimal.NewFromInt(product.PriceCents).
			Mul(oneHundred.Sub(product.DiscountPercent)).
			Div(oneHundred).
			Round(0).
			IntPart())
		lineTotal := unit * money.Cents(line.Quantity)

		priced = append(priced, PricedLine{
			ProductID:      product.ID,
			SellerID:       product.SellerID,
			StoreID:        product.StoreID,
			Name:           product.Name,
			Quantity:       line.Quantity,
			UnitPriceCents: unit,
			LineTotalCents: lineTotal,
		})
		subtotal += lineTotal
	}
	return priced, subtotal, nil
}

// Split groups priced lines by seller and computes each sub-order's money
// columns: proportional delivery fee, single-owner coupon discount, and a
// per-seller processing fee on (subtotal - discount + delivery). It is pure;
// persistence happens elsewhere.
func Split(lines []PricedLine, deliveryFee money.Cents, coupon *models.Coupon, processingFeePercent decimal.Decimal) ([]SellerDraft, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no lines to split")
	}
	if deliveryFee < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery fee must not be negative")
	}

	grouped := make(map[uuid.UUID][]PricedLine)
	for _, line := range lines {
		grouped[line.SellerID] = append(grouped[line.SellerID], line)
	}

	sellerIDs := make([]uuid.UUID, 0, len(grouped))
	for sellerID := range grouped {
		sellerIDs = append(sellerIDs, sellerID)
	}
	sort.Slice(sellerIDs, func(i, j int) bool {
		return sellerIDs[i].String() < sellerIDs[j].String()
	})

	weights := make([]money.AllocationWeight, 0, len(sellerIDs))
	subtotals := make(map[uuid.UUID]money.Cents, len(sellerIDs))
	for _, sellerID := range sellerIDs {
		var subtotal money.Cents
		for _, line := range grouped[sellerID] {
			subtotal += line.LineTotalCents
		}
		subtotals[sellerID] = subtotal
		weights = append(weights, money.AllocationWeight{Key: sellerID, Weight: subtotal})
	}

	deliveryShares, err := money.AllocateProportionally(deliveryFee, weights)
	if err != nil {
		return nil, err
	}

	drafts := make([]SellerDraft, 0, len(sellerIDs))
	for _, sellerID := range sellerIDs {
		sellerLines := grouped[sellerID]
		subtotal := subtotals[sellerID]
		delivery := deliveryShares[sellerID]

		// A coupon belongs to exactly one seller; other sellers' sub-orders
		// are computed with zero discount.
		var discount money.Cents
		if coupon != nil && coupon.SellerID == sellerID {
			discount = money.PercentageOf(subtotal, coupon.DiscountPercent)
		}
		if discount > subtotal {
			discount = subtotal
		}

		processing := money.PercentageOf(subtotal-discount+delivery, processingFeePercent)
		total := subtotal - discount + delivery + processing

		drafts = append(drafts, SellerDraft{
			SellerID:            sellerID,
			StoreID:             sellerLines[0].StoreID,
			Lines:               sellerLines,
			SubtotalCents:       subtotal,
			DeliveryFeeCents:    delivery,
			CouponDiscountCents: discount,
			ProcessingFeeCents:  processing,
			TotalCents:          total,
		})
	}
	return drafts, nil
}

// GrandTotal sums the per-seller totals owed to the gateway.
func GrandTotal(drafts []SellerDraft) money.Cents {
	var total money.Cents
	for _, draft := range drafts {
		total += draft.TotalCents
	}
	return total
}
