//go:build db
// +build db

package orders

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/kasuwa-market/kasuwa-backend/pkg/db/models"
	"github.com/kasuwa-market/kasuwa-backend/pkg/enums"
	"github.com/kasuwa-market/kasuwa-backend/pkg/pagination"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("KASUWA_DB_DSN")
	if dsn == "" {
		t.Skip("KASUWA_DB_DSN is not set")
	}

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	return conn
}

func seedOrder(t *testing.T, tx *gorm.DB, buyerID, sellerID uuid.UUID) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   fmt.Sprintf("KSW-20260831-%s", uuid.NewString()[:6]),
		BuyerID:       buyerID,
		SellerID:      sellerID,
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusPending,
		Currency:      enums.CurrencyNGN,
		SubtotalCents: 5000,
		TotalCents:    5000,
	}
	if err := tx.Create(order).Error; err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

func TestRepositoryOrderLifecycle(t *testing.T) {
	conn := openTestDB(t)
	tx := conn.Begin()
	if tx.Error != nil {
		t.Fatalf("begin tx: %v", tx.Error)
	}
	t.Cleanup(func() {
		_ = tx.Rollback()
	})

	repo := NewRepository(tx)
	ctx := context.Background()

	buyerID := uuid.New()
	order := seedOrder(t, tx, buyerID, uuid.New())

	locked, err := repo.FindForUpdate(ctx, order.ID)
	if err != nil {
		t.Fatalf("find for update: %v", err)
	}
	if locked.Status != enums.OrderStatusPending {
		t.Fatalf("unexpected status %s", locked.Status)
	}

	if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
		"status": enums.OrderStatusCancelled,
	}); err != nil {
		t.Fatalf("update order: %v", err)
	}

	reason := "changed my mind"
	if err := repo.AppendStatusHistory(ctx, &models.OrderStatusHistory{
		OrderID:       order.ID,
		FromStatus:    enums.OrderStatusPending,
		ToStatus:      enums.OrderStatusCancelled,
		ChangedBy:     buyerID,
		ChangedByRole: enums.RoleBuyer,
		Reason:        &reason,
	}); err != nil {
		t.Fatalf("append history: %v", err)
	}

	history, err := repo.ListStatusHistory(ctx, order.ID)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 history row, got %d", len(history))
	}
	if history[0].ToStatus != enums.OrderStatusCancelled {
		t.Fatalf("unexpected history target %s", history[0].ToStatus)
	}

	reloaded, err := repo.FindByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", reloaded.Status)
	}
}

func TestRepositoryListByBuyerPagination(t *testing.T) {
	conn := openTestDB(t)
	tx := conn.Begin()
	if tx.Error != nil {
		t.Fatalf("begin tx: %v", tx.Error)
	}
	t.Cleanup(func() {
		_ = tx.Rollback()
	})

	repo := NewRepository(tx)
	ctx := context.Background()

	buyerID := uuid.New()
	sellerID := uuid.New()
	for i := 0; i < 3; i++ {
		seedOrder(t, tx, buyerID, sellerID)
	}

	page, err := repo.ListByBuyer(ctx, buyerID, pagination.Params{Limit: 2}, Filters{})
	if err != nil {
		t.Fatalf("list buyer orders: %v", err)
	}
	if len(page.Orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(page.Orders))
	}
	if !page.HasMore || page.NextCursor == "" {
		t.Fatal("expected a next page cursor")
	}

	rest, err := repo.ListByBuyer(ctx, buyerID, pagination.Params{Limit: 2, Cursor: page.NextCursor}, Filters{})
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if len(rest.Orders) != 1 {
		t.Fatalf("expected 1 order on second page, got %d", len(rest.Orders))
	}
	if rest.HasMore {
		t.Fatal("expected final page")
	}
}
