package payouts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kasuwa-market/kasuwa-backend/pkg/db/models"
	"github.com/kasuwa-market/kasuwa-backend/pkg/enums"
)

// Repository defines the persistence surface the payout engine needs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// ListPendingForUpdate returns the seller's pending commissions oldest
	// first, row-locked so two concurrent requests cannot reserve the same
	// earnings.
	ListPendingForUpdate(ctx context.Context, sellerID uuid.UUID) ([]models.Commission, error)
	MarkCommissions(ctx context.Context, ids []uuid.UUID, status enums.CommissionStatus, processedAt *time.Time) error
	CreatePayout(ctx context.Context, payout *models.SellerPayout) error
	FindPayoutForUpdate(ctx context.Context, payoutID uuid.UUID) (*models.SellerPayout, error)
	FindPayout(ctx context.Context, payoutID uuid.UUID) (*models.SellerPayout, error)
	UpdatePayout(ctx context.Context, payoutID uuid.UUID, updates map[string]any) error
	ListBySeller(ctx context.Context, sellerID uuid.UUID, limit int) ([]models.SellerPayout, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payouts repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListPendingForUpdate(ctx context.Context, sellerID uuid.UUID) ([]models.Commission, error) {
	var commissions []models.Commission
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("seller_id = ? AND status = ?", sellerID, enums.CommissionStatusPending).
		Order("created_at ASC, id ASC").
		Find(&commissions).Error
	if err != nil {
		return nil, err
	}
	return commissions, nil
}

func (r *repository) MarkCommissions(ctx context.Context, ids []uuid.UUID, status enums.CommissionStatus, processedAt *time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	updates := map[string]any{"status": status}
	if processedAt != nil {
		updates["processed_at"] = *processedAt
	}
	return r.db.WithContext(ctx).
		Model(&models.Commission{}).
		Where("id IN ?", ids).
		Updates(updates).Error
}

func (r *repository) CreatePayout(ctx context.Context, payout *models.SellerPayout) error {
	return r.db.WithContext(ctx).Create(payout).Error
}

func (r *repository) FindPayoutForUpdate(ctx context.Context, payoutID uuid.UUID) (*models.SellerPayout, error) {
	var payout models.SellerPayout
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", payoutID).
		First(&payout).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) FindPayout(ctx context.Context, payoutID uuid.UUID) (*models.SellerPayout, error) {
	var payout models.SellerPayout
	err := r.db.WithContext(ctx).
		Where("id = ?", payoutID).
		First(&payout).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) UpdatePayout(ctx context.Context, payoutID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.SellerPayout{}).
		Where("id = ?", payoutID).
		Updates(updates).Error
}

func (r *repository) ListBySeller(ctx context.Context, sellerID uuid.UUID, limit int) ([]models.SellerPayout, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var payouts []models.SellerPayout
	err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&payouts).Error
	if err != nil {
		return nil, err
	}
	return payouts, nil
}
