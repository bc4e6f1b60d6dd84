package commissions

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kasuwa-market/kasuwa-backend/pkg/db/models"
	"github.com/kasuwa-market/kasuwa-backend/pkg/enums"
)

// Repository defines the persistence surface the commission engine needs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.Commission, error)
	CreateCommission(ctx context.Context, commission *models.Commission) error
	CreatePlatformEarning(ctx context.Context, earning *models.PlatformEarning) error
	// PendingBalance sums seller_amount_cents over the seller's pending
	// commissions.
	PendingBalance(ctx context.Context, sellerID uuid.UUID) (int64, int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a commissions repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.Commission, error) {
	var commission models.Commission
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&commission).Error
	if err != nil {
		return nil, err
	}
	return &commission, nil
}

func (r *repository) CreateCommission(ctx context.Context, commission *models.Commission) error {
	return r.db.WithContext(ctx).Create(commission).Error
}

func (r *repository) CreatePlatformEarning(ctx context.Context, earning *models.PlatformEarning) error {
	return r.db.WithContext(ctx).Create(earning).Error
}

func (r *repository) PendingBalance(ctx context.Context, sellerID uuid.UUID) (int64, int64, error) {
	var result struct {
		Total int64
		Count int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Commission{}).
		Select("COALESCE(SUM(seller_amount_cents), 0) AS total, COUNT(*) AS count").
		Where("seller_id = ? AND status = ?", sellerID, enums.CommissionStatusPending).
		Scan(&result).Error
	if err != nil {
		return 0, 0, err
	}
	return result.Total, result.Count, nil
}
