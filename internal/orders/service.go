package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kasuwa-market/kasuwa-backend/pkg/db/models"
	"github.com/kasuwa-market/kasuwa-backend/pkg/enums"
	pkgerrors "github.com/kasuwa-market/kasuwa-backend/pkg/errors"
	"github.com/kasuwa-market/kasuwa-backend/pkg/outbox"
	"github.com/kasuwa-market/kasuwa-backend/pkg/outbox/payloads"
	"github.com/kasuwa-market/kasuwa-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// LedgerChecker reports whether settlement rows already exist for an order.
// Cancellation is refused once money has been split.
type LedgerChecker interface {
	CommissionExists(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error)
}

// RiderReleaser returns dispatch capacity when an order leaves the rider's
// hands (delivered or returned).
type RiderReleaser interface {
	Release(ctx context.Context, tx *gorm.DB, riderID uuid.UUID) error
}

// Service defines order lifecycle operations.
type Service interface {
	Transition(ctx context.Context, input TransitionInput) (*models.Order, error)
	// TransitionInTx applies one transition inside a caller-owned
	// transaction, so payment reconciliation can advance orders atomically
	// with its own writes.
	TransitionInTx(ctx context.Context, tx *gorm.DB, input TransitionInput) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	History(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params, filters Filters) (*OrderList, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params, filters Filters) (*OrderList, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	ledger LedgerChecker
	riders RiderReleaser
}

// NewService builds an order lifecycle service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, ledger LedgerChecker, riders RiderReleaser) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger checker required")
	}
	if riders == nil {
		return nil, fmt.Errorf("rider releaser required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		outbox: outboxSvc,
		ledger: ledger,
		riders: riders,
	}, nil
}

func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.Order, error) {
	if err := validateTransitionInput(input); err != nil {
		return nil, err
	}
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.transitionLocked(ctx, tx, input)
		if err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) TransitionInTx(ctx context.Context, tx *gorm.DB, input TransitionInput) (*models.Order, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required")
	}
	if err := validateTransitionInput(input); err != nil {
		return nil, err
	}
	return s.transitionLocked(ctx, tx, input)
}

func validateTransitionInput(input TransitionInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Target.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown target status")
	}
	if input.ActorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if !input.Role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown actor role")
	}
	return nil
}

// transitionLocked takes the row lock and applies one transition. All
// decisions run against the locked row: a stale status read before the lock
// must never gate the transition.
func (s *service) transitionLocked(ctx context.Context, tx *gorm.DB, input TransitionInput) (*models.Order, error) {
	repo := s.repo.WithTx(tx)
	order, err := repo.FindForUpdate(ctx, input.OrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	r, ok := transitionRules[edge{order.Status, input.Target}]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition,
			fmt.Sprintf("cannot move order from %s to %s", order.Status, input.Target))
	}
	if !r.allows(input.Role) {
		return nil, pkgerrors.New(pkgerrors.CodeRoleViolation,
			fmt.Sprintf("role %s may not move order to %s", input.Role, input.Target))
	}
	if err := checkOwnership(order, input); err != nil {
		return nil, err
	}
	if r.requiresReason && (input.Reason == nil || *input.Reason == "") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a reason is required for this transition")
	}
	if r.requiresPayment && order.PaymentStatus != enums.PaymentStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodePaymentRequired, "order is not paid")
	}
	if r.requiresNoLedger {
		exists, err := s.ledger.CommissionExists(ctx, tx, order.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check commission")
		}
		if exists {
			return nil, pkgerrors.New(pkgerrors.CodePrecondition, "order already settled, cancellation refused")
		}
	}

	now := time.Now()
	updates := map[string]any{"status": input.Target}
	if input.Target == enums.OrderStatusDelivered {
		updates["delivered_at"] = now
	}
	if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}

	entry := &models.OrderStatusHistory{
		OrderID:       order.ID,
		FromStatus:    order.Status,
		ToStatus:      input.Target,
		ChangedBy:     input.ActorID,
		ChangedByRole: input.Role,
		Reason:        input.Reason,
	}
	if err := repo.AppendStatusHistory(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
	}

	// Delivered and returned both end the rider's involvement.
	if order.RiderID != nil && riderDone(input.Target) {
		if err := s.riders.Release(ctx, tx, *order.RiderID); err != nil {
			return nil, err
		}
	}

	fromStatus := order.Status
	order.Status = input.Target
	if input.Target == enums.OrderStatusDelivered {
		deliveredAt := now
		order.DeliveredAt = &deliveredAt
	}

	reason := ""
	if input.Reason != nil {
		reason = *input.Reason
	}
	err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         &outbox.ActorRef{UserID: input.ActorID, Role: input.Role.String()},
		Data: payloads.OrderStatusChangedEvent{
			OrderID:    order.ID,
			SellerID:   order.SellerID,
			FromStatus: fromStatus,
			ToStatus:   input.Target,
			ChangedBy:  input.ActorID,
			Role:       input.Role,
			Reason:     reason,
			ChangedAt:  now,
		},
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) History(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	entries, err := s.repo.ListStatusHistory(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load status history")
	}
	return entries, nil
}

func (s *service) ListByBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params, filters Filters) (*OrderList, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	list, err := s.repo.ListByBuyer(ctx, buyerID, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list buyer orders")
	}
	return list, nil
}

func (s *service) ListBySeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params, filters Filters) (*OrderList, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	list, err := s.repo.ListBySeller(ctx, sellerID, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list seller orders")
	}
	return list, nil
}

// checkOwnership binds buyer and rider roles to their own orders. Admin and
// system actors are not scoped to a party.
func checkOwnership(order *models.Order, input TransitionInput) error {
	switch input.Role {
	case enums.RoleBuyer:
		if order.BuyerID != input.ActorID {
			return pkgerrors.New(pkgerrors.CodeRoleViolation, "order does not belong to buyer")
		}
	case enums.RoleSeller:
		if order.SellerID != input.ActorID {
			return pkgerrors.New(pkgerrors.CodeRoleViolation, "order does not belong to seller")
		}
	case enums.RoleRider:
		if order.RiderID == nil || *order.RiderID != input.ActorID {
			return pkgerrors.New(pkgerrors.CodeRoleViolation, "order is not assigned to rider")
		}
	}
	return nil
}

func riderDone(target enums.OrderStatus) bool {
	return target == enums.OrderStatusDelivered || target == enums.OrderStatusReturned
}

type ledgerCheckerImpl struct{}

// NewLedgerChecker exposes the default commission existence check.
func NewLedgerChecker() LedgerChecker {
	return ledgerCheckerImpl{}
}

func (ledgerCheckerImpl) CommissionExists(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error) {
	if tx == nil {
		return false, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for commission check")
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&models.Commission{}).
		Where("order_id = ?", orderID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

type riderReleaserImpl struct{}

// NewRiderReleaser exposes the default rider capacity release implementation.
func NewRiderReleaser() RiderReleaser {
	return riderReleaserImpl{}
}

func (riderReleaserImpl) Release(ctx context.Context, tx *gorm.DB, riderID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for rider release")
	}
	res := tx.WithContext(ctx).Exec(`
		UPDATE riders
		SET active_orders = active_orders - 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND active_orders > 0
	`, riderID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release rider capacity")
	}
	return nil
}
