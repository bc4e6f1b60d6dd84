package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kasuwa-market/kasuwa-backend/pkg/config"
	"github.com/kasuwa-market/kasuwa-backend/pkg/db/models"
	"github.com/kasuwa-market/kasuwa-backend/pkg/enums"
	pkgerrors "github.com/kasuwa-market/kasuwa-backend/pkg/errors"
	"github.com/kasuwa-market/kasuwa-backend/pkg/metrics"
	"github.com/kasuwa-market/kasuwa-backend/pkg/money"
	"github.com/kasuwa-market/kasuwa-backend/pkg/outbox"
	"github.com/kasuwa-market/kasuwa-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service executes the checkout split.
type Service interface {
	Execute(ctx context.Context, input Input) (*Result, error)
}

type service struct {
	repo              Repository
	tx                txRunner
	outbox            outboxPublisher
	metrics           *metrics.SettlementMetrics
	mode              enums.PlatformMode
	processingPercent decimal.Decimal
	currency          enums.Currency
	now               func() time.Time
}

// NewService builds the checkout service from platform configuration.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher, settlement *metrics.SettlementMetrics, platform config.PlatformConfig, currency enums.Currency) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	mode := enums.PlatformMode(platform.Mode)
	if !mode.IsValid() {
		return nil, fmt.Errorf("invalid platform mode %q", platform.Mode)
	}
	if !currency.IsValid() {
		return nil, fmt.Errorf("invalid currency %q", currency)
	}
	return &service{
		repo:              repo,
		tx:                tx,
		outbox:            publisher,
		metrics:           settlement,
		mode:              mode,
		processingPercent: platform.ProcessingFeePercent(),
		currency:          currency,
		now:               time.Now,
	}, nil
}

func (s *service) Execute(ctx context.Context, input Input) (*Result, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
	}
	if input.DeliveryFeeCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery fee must not be negative")
	}

	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		ids := make([]uuid.UUID, 0, len(input.Lines))
		for _, line := range input.Lines {
			ids = append(ids, line.ProductID)
		}
		products, err := repo.LoadProducts(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
		}

		priced, serverSubtotal, err := Reprice(input.Lines, products)
		if err != nil {
			return err
		}
		if !money.WithinEpsilon(serverSubtotal, money.Cents(input.DeclaredSubtotalCents), money.DefaultEpsilonCents) {
			return pkgerrors.New(pkgerrors.CodeValidation,
				"cart subtotal does not match catalog prices").WithDetails(map[string]any{
				"server_subtotal_cents":   int64(serverSubtotal),
				"declared_subtotal_cents": input.DeclaredSubtotalCents,
			})
		}

		var coupon *models.Coupon
		if input.CouponCode != nil && strings.TrimSpace(*input.CouponCode) != "" {
			coupon, err = repo.FindCouponByCode(ctx, strings.TrimSpace(*input.CouponCode))
			if err != nil {
				if err == gorm.ErrRecordNotFound {
					return pkgerrors.New(pkgerrors.CodeValidation, "unknown coupon code")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
			}
			if !coupon.IsUsable(s.now()) {
				return pkgerrors.New(pkgerrors.CodeValidation, "coupon is expired or inactive")
			}
		}

		sellers := countSellers(priced)
		if s.mode == enums.PlatformModeSingleVendor && sellers > 1 {
			return pkgerrors.New(pkgerrors.CodeValidation,
				"platform is configured single-vendor; cart spans multiple sellers")
		}

		drafts, err := Split(priced, money.Cents(input.DeliveryFeeCents), coupon, s.processingPercent)
		if err != nil {
			return err
		}

		grand := GrandTotal(drafts)
		if !money.WithinEpsilon(grand, money.Cents(input.DeclaredTotalCents), money.DefaultEpsilonCents) {
			return pkgerrors.New(pkgerrors.CodeValidation,
				"cart total does not match server calculation").WithDetails(map[string]any{
				"server_total_cents":   int64(grand),
				"declared_total_cents": input.DeclaredTotalCents,
			})
		}

		now := s.now()
		sessionID := uuid.New()
		orders := make([]*models.Order, 0, len(drafts))
		orderIDs := make([]uuid.UUID, 0, len(drafts))
		for _, draft := range drafts {
			order := buildOrder(sessionID, input, draft, s.currency, coupon, now)
			orders = append(orders, order)
			orderIDs = append(orderIDs, order.ID)
		}

		if err := repo.CreateOrders(ctx, orders); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create orders")
		}
		if err := repo.ClearCart(ctx, input.BuyerID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateCheckoutSession,
			AggregateID:   sessionID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.BuyerID, Role: enums.RoleBuyer.String()},
			Data: payloads.OrderCreatedEvent{
				CheckoutSessionID: sessionID,
				BuyerID:           input.BuyerID,
				OrderIDs:          orderIDs,
				GrandTotalCents:   int64(grand),
			},
		}); err != nil {
			return err
		}

		plain := make([]models.Order, len(orders))
		for i, order := range orders {
			plain[i] = *order
		}
		result = &Result{
			CheckoutSessionID: sessionID,
			Orders:            plain,
			GrandTotalCents:   int64(grand),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncCheckoutSplit()
	return result, nil
}

func countSellers(lines []PricedLine) int {
	seen := make(map[uuid.UUID]struct{}, len(lines))
	for _, line := range lines {
		seen[line.SellerID] = struct{}{}
	}
	return len(seen)
}

func buildOrder(sessionID uuid.UUID, input Input, draft SellerDraft, currency enums.Currency, coupon *models.Coupon, now time.Time) *models.Order {
	session := sessionID
	order := &models.Order{
		ID:                 uuid.New(),
		OrderNumber:        NewOrderNumber(now),
		CheckoutSessionID:  &session,
		BuyerID:            input.BuyerID,
		SellerID:           draft.SellerID,
		StoreID:            draft.StoreID,
		Status:             enums.OrderStatusPending,
		PaymentStatus:      enums.PaymentStatusPending,
		Currency:           currency,
		SubtotalCents:      int64(draft.SubtotalCents),
		DeliveryFeeCents:   int64(draft.DeliveryFeeCents),
		ProcessingFeeCents: int64(draft.ProcessingFeeCents),
		TotalCents:         int64(draft.TotalCents),
	}
	if draft.CouponDiscountCents > 0 && coupon != nil {
		code := coupon.Code
		discount := int64(draft.CouponDiscountCents)
		order.CouponCode = &code
		order.CouponDiscountCents = &discount
	}
	for _, line := range draft.Lines {
		order.Items = append(order.Items, models.OrderItem{
			OrderID:        order.ID,
			ProductID:      line.ProductID,
			ProductName:    line.Name,
			Quantity:       line.Quantity,
			UnitPriceCents: int64(line.UnitPriceCents),
			LineTotalCents: int64(line.LineTotalCents),
		})
	}
	return order
}
