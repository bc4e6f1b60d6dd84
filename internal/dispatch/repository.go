package dispatch

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kasuwa-market/kasuwa-backend/pkg/db/models"
)

// Repository defines the persistence surface rider dispatch needs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	// LeastLoadedRiderForUpdate locks and returns the eligible rider with
	// the fewest active orders, ties broken by earliest signup.
	LeastLoadedRiderForUpdate(ctx context.Context, maxLoad int) (*models.Rider, error)
	IncrementRiderLoad(ctx context.Context, riderID uuid.UUID) error
	AssignRider(ctx context.Context, orderID, riderID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a dispatch repository bound to the provided DB.
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

func (r *repository) LeastLoadedRiderForUpdate(ctx context.Context, maxLoad int) (*models.Rider, error) {
	var rider models.Rider
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("approved = TRUE AND active = TRUE AND active_orders < ?", maxLoad).
		Order("active_orders ASC, created_at ASC").
		First(&rider).Error
	if err != nil {
		return nil, err
	}
	return &rider, nil
}

func (r *repository) IncrementRiderLoad(ctx context.Context, riderID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Rider{}).
		Where("id = ?", riderID).
		Update("active_orders", gorm.Expr("active_orders + 1")).Error
}

func (r *repository) AssignRider(ctx context.Context, orderID, riderID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("rider_id", riderID).Error
}
