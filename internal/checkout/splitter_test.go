package checkout

import (
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kasuwa-market/kasuwa-backend/pkg/db/models"
	pkgerrors "github.com/kasuwa-market/kasuwa-backend/pkg/errors"
	"github.com/kasuwa-market/kasuwa-backend/pkg/money"
)

func activeProduct(sellerID uuid.UUID, priceCents int64) *models.Product {
	return &models.Product{
		ID:              uuid.New(),
		SellerID:        sellerID,
		Name:            "test product",
		PriceCents:      priceCents,
		DiscountPercent: decimal.Zero,
		IsActive:        true,
	}
}

func TestRepriceUsesCatalogNotClient(t *testing.T) {
	sellerID := uuid.New()
	product := activeProduct(sellerID, 5000)
	product.DiscountPercent = decimal.NewFromInt(20)
	products := map[uuid.UUID]*models.Product{product.ID: product}

	lines := []CartLine{{
		ProductID:              product.ID,
		Quantity:               2,
		DeclaredUnitPriceCents: 1, // attacker-declared, must be ignored
	}}
	priced, subtotal, err := Reprice(lines, products)
	if err != nil {
		t.Fatalf("Reprice: %v", err)
	}
	if priced[0].UnitPriceCents != 4000 {
		t.Fatalf("expected discounted unit 4000, got %d", priced[0].UnitPriceCents)
	}
	if subtotal != 8000 {
		t.Fatalf("expected subtotal 8000, got %d", subtotal)
	}
}

func TestRepriceRejectsInactiveAndMissing(t *testing.T) {
	sellerID := uuid.New()
	inactive := activeProduct(sellerID, 1000)
	inactive.IsActive = false
	products := map[uuid.UUID]*models.Product{inactive.ID: inactive}

	_, _, err := Reprice([]CartLine{{ProductID: inactive.ID, Quantity: 1}}, products)
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for inactive product, got %v", err)
	}

	_, _, err = Reprice([]CartLine{{ProductID: uuid.New(), Quantity: 1}}, products)
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for missing product, got %v", err)
	}
}

// Mirrors the two-seller cart walk-through: seller X at $50 and seller Y at
// $30 with a $10 cart-level delivery fee and X's 10% coupon.
func TestSplitTwoSellerCartWithCoupon(t *testing.T) {
	sellerX := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	sellerY := uuid.MustParse("00000000-0000-0000-0000-00000000000b")

	lines := []PricedLine{
		{ProductID: uuid.New(), SellerID: sellerX, Name: "x item", Quantity: 1, UnitPriceCents: 5000, LineTotalCents: 5000},
		{ProductID: uuid.New(), SellerID: sellerY, Name: "y item", Quantity: 1, UnitPriceCents: 3000, LineTotalCents: 3000},
	}
	coupon := &models.Coupon{
		Code:            "SAVE10",
		SellerID:        sellerX,
		DiscountPercent: decimal.NewFromInt(10),
		Active:          true,
	}

	drafts, err := Split(lines, 1000, coupon, decimal.Zero)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(drafts) != 2 {
		t.Fatalf("expected 2 drafts, got %d", len(drafts))
	}

	byID := make(map[uuid.UUID]SellerDraft, 2)
	for _, d := range drafts {
		byID[d.SellerID] = d
	}

	x := byID[sellerX]
	if x.SubtotalCents != 5000 || x.DeliveryFeeCents != 625 || x.CouponDiscountCents != 500 {
		t.Fatalf("seller X split wrong: %+v", x)
	}
	if x.TotalCents != 5125 {
		t.Fatalf("seller X total expected 5125, got %d", x.TotalCents)
	}

	y := byID[sellerY]
	if y.SubtotalCents != 3000 || y.DeliveryFeeCents != 375 {
		t.Fatalf("seller Y split wrong: %+v", y)
	}
	if y.CouponDiscountCents != 0 {
		t.Fatalf("coupon must not discount seller Y, got %d", y.CouponDiscountCents)
	}
	if y.TotalCents != 3375 {
		t.Fatalf("seller Y total expected 3375, got %d", y.TotalCents)
	}
}

func TestSplitProcessingFeePerSeller(t *testing.T) {
	sellerID := uuid.New()
	lines := []PricedLine{
		{ProductID: uuid.New(), SellerID: sellerID, Quantity: 1, UnitPriceCents: 5000, LineTotalCents: 5000},
	}

	drafts, err := Split(lines, 1000, nil, decimal.NewFromFloat(1.5))
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	d := drafts[0]
	// fee = round((5000 + 1000) * 1.5%) = 90
	if d.ProcessingFeeCents != 90 {
		t.Fatalf("expected processing fee 90, got %d", d.ProcessingFeeCents)
	}
	if d.TotalCents != d.SubtotalCents+d.DeliveryFeeCents+d.ProcessingFeeCents {
		t.Fatalf("total does not reconcile: %+v", d)
	}
}

func TestSplitDeliveryFeeReconcilesExactly(t *testing.T) {
	// Three sellers with weights that do not divide the fee evenly.
	sellers := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	sort.Slice(sellers, func(i, j int) bool { return sellers[i].String() < sellers[j].String() })

	lines := []PricedLine{
		{ProductID: uuid.New(), SellerID: sellers[0], Quantity: 1, UnitPriceCents: 3333, LineTotalCents: 3333},
		{ProductID: uuid.New(), SellerID: sellers[1], Quantity: 1, UnitPriceCents: 3333, LineTotalCents: 3333},
		{ProductID: uuid.New(), SellerID: sellers[2], Quantity: 1, UnitPriceCents: 3334, LineTotalCents: 3334},
	}

	drafts, err := Split(lines, 1000, nil, decimal.Zero)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	var total money.Cents
	for _, d := range drafts {
		total += d.DeliveryFeeCents
	}
	if total != 1000 {
		t.Fatalf("delivery allocation does not reconcile: got %d", total)
	}
}

func TestSplitDiscountCappedAtSubtotal(t *testing.T) {
	sellerID := uuid.New()
	lines := []PricedLine{
		{ProductID: uuid.New(), SellerID: sellerID, Quantity: 1, UnitPriceCents: 100, LineTotalCents: 100},
	}
	coupon := &models.Coupon{
		SellerID:        sellerID,
		DiscountPercent: decimal.NewFromInt(100),
		Active:          true,
	}

	drafts, err := Split(lines, 0, coupon, decimal.Zero)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if drafts[0].CouponDiscountCents != 100 || drafts[0].TotalCents != 0 {
		t.Fatalf("expected fully discounted order, got %+v", drafts[0])
	}
}
