package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kasuwa-market/kasuwa-backend/pkg/db/models"
	"github.com/kasuwa-market/kasuwa-backend/pkg/pagination"
)

// Repository defines persistence operations for order lifecycle tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	// FindForUpdate loads the order under SELECT ... FOR UPDATE. Callers must
	// be inside a transaction; every lifecycle decision is made against the
	// row returned here, never against an earlier unlocked read.
	FindForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindByCheckoutSession(ctx context.Context, sessionID uuid.UUID) ([]models.Order, error)
	FindByPaymentReference(ctx context.Context, reference string) ([]models.Order, error)
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	AppendStatusHistory(ctx context.Context, entry *models.OrderStatusHistory) error
	ListStatusHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params, filters Filters) (*OrderList, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params, filters Filters) (*OrderList, error)
}
