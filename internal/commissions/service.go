package commissions

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kasuwa-market/kasuwa-backend/pkg/config"
	"github.com/kasuwa-market/kasuwa-backend/pkg/db/models"
	"github.com/kasuwa-market/kasuwa-backend/pkg/enums"
	pkgerrors "github.com/kasuwa-market/kasuwa-backend/pkg/errors"
	"github.com/kasuwa-market/kasuwa-backend/pkg/metrics"
	"github.com/kasuwa-market/kasuwa-backend/pkg/money"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Balance reports a seller's withdrawable commission position.
type Balance struct {
	SellerID     uuid.UUID `json:"seller_id"`
	PendingCents int64     `json:"pending_cents"`
	PendingCount int64     `json:"pending_count"`
}

// Service computes the platform's cut of paid orders.
type Service interface {
	Compute(ctx context.Context, orderID uuid.UUID) (*models.Commission, error)
	// ComputeInTx runs the same computation inside a caller-owned
	// transaction, for callers that settle payment and commission together.
	ComputeInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Commission, error)
	SellerBalance(ctx context.Context, sellerID uuid.UUID) (*Balance, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	metrics *metrics.SettlementMetrics
	rate    decimal.Decimal
}

// NewService builds the commission engine. The configured rate is
// snapshotted onto every row it writes.
func NewService(repo Repository, tx txRunner, settlement *metrics.SettlementMetrics, platform config.PlatformConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("commissions repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	rate := platform.CommissionRatePercent()
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("commission rate %s out of range", rate)
	}
	return &service{repo: repo, tx: tx, metrics: settlement, rate: rate}, nil
}

func (s *service) Compute(ctx context.Context, orderID uuid.UUID) (*models.Commission, error) {
	var result *models.Commission
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		commission, err := s.computeLocked(ctx, tx, orderID)
		if err != nil {
			return err
		}
		result = commission
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) ComputeInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Commission, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required")
	}
	return s.computeLocked(ctx, tx, orderID)
}

func (s *service) computeLocked(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Commission, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	repo := s.repo.WithTx(tx)

	// Recomputation returns the original row untouched.
	if existing, err := repo.FindByOrder(ctx, orderID); err == nil {
		s.metrics.IncCommission("duplicate")
		return existing, nil
	} else if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing commission")
	}

	order, err := repo.FindOrderForUpdate(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.PaymentStatus != enums.PaymentStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodePaymentRequired,
			"commission requires a completed payment").WithDetails(map[string]any{
			"order_id":       order.ID,
			"payment_status": order.PaymentStatus.String(),
		})
	}

	platformCut, sellerCut, err := money.SplitByRate(money.Cents(order.TotalCents), s.rate)
	if err != nil {
		return nil, err
	}

	commission := &models.Commission{
		ID:                    uuid.New(),
		OrderID:               order.ID,
		SellerID:              order.SellerID,
		OrderAmountCents:      order.TotalCents,
		CommissionRate:        s.rate,
		CommissionAmountCents: int64(platformCut),
		SellerAmountCents:     int64(sellerCut),
		Status:                enums.CommissionStatusPending,
	}
	if err := repo.CreateCommission(ctx, commission); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create commission")
	}
	if err := repo.CreatePlatformEarning(ctx, &models.PlatformEarning{
		ID:           uuid.New(),
		CommissionID: commission.ID,
		OrderID:      order.ID,
		SellerID:     order.SellerID,
		AmountCents:  commission.CommissionAmountCents,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create platform earning")
	}

	s.metrics.IncCommission("computed")
	return commission, nil
}

func (s *service) SellerBalance(ctx context.Context, sellerID uuid.UUID) (*Balance, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	total, count, err := s.repo.PendingBalance(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum pending commissions")
	}
	return &Balance{SellerID: sellerID, PendingCents: total, PendingCount: count}, nil
}
