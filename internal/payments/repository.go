package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kasuwa-market/kasuwa-backend/pkg/db/models"
)

// Repository defines the persistence surface payment reconciliation needs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindSessionOrders(ctx context.Context, sessionID uuid.UUID) ([]models.Order, error)
	// FindOrdersByReferenceForUpdate loads and row-locks every order carrying
	// the payment reference.
	FindOrdersByReferenceForUpdate(ctx context.Context, reference string) ([]models.Order, error)
	SetPaymentReference(ctx context.Context, sessionID uuid.UUID, reference string) error
	FindTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error)
	CreateTransaction(ctx context.Context, txn *models.Transaction) error
	MarkOrdersPayment(ctx context.Context, orderIDs []uuid.UUID, status string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindSessionOrders(ctx context.Context, sessionID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("checkout_session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) FindOrdersByReferenceForUpdate(ctx context.Context, reference string) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("payment_reference = ?", reference).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) SetPaymentReference(ctx context.Context, sessionID uuid.UUID, reference string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("checkout_session_id = ?", sessionID).
		Update("payment_reference", reference).Error
}

func (r *repository) FindTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).
		Where("reference = ?", reference).
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) MarkOrdersPayment(ctx context.Context, orderIDs []uuid.UUID, status string) error {
	if len(orderIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id IN ?", orderIDs).
		Update("payment_status", status).Error
}
