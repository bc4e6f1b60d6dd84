package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kasuwa-market/kasuwa-backend/pkg/config"
	"github.com/kasuwa-market/kasuwa-backend/pkg/enums"
	pkgerrors "github.com/kasuwa-market/kasuwa-backend/pkg/errors"
	"github.com/kasuwa-market/kasuwa-backend/pkg/metrics"
	"github.com/kasuwa-market/kasuwa-backend/pkg/outbox"
	"github.com/kasuwa-market/kasuwa-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Assignment reports which rider took an order.
type Assignment struct {
	OrderID    uuid.UUID `json:"order_id"`
	RiderID    uuid.UUID `json:"rider_id"`
	RiderLoad  int       `json:"rider_load"`
	AssignedAt time.Time `json:"assigned_at"`
}

// Service assigns riders to paid orders. Assign opens its own transaction
// for the manual path; AssignInTx joins the caller's transaction so payment
// settlement can dispatch in the same unit of work.
type Service interface {
	Assign(ctx context.Context, orderID uuid.UUID) (*Assignment, error)
	AssignInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*Assignment, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	metrics *metrics.SettlementMetrics
	ceiling int
}

// NewService builds the dispatch service. The load ceiling caps how many
// active orders one rider may carry.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher, settlement *metrics.SettlementMetrics, platform config.PlatformConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("dispatch repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	ceiling := platform.RiderLoadCeiling
	if ceiling <= 0 {
		ceiling = 10
	}
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  publisher,
		metrics: settlement,
		ceiling: ceiling,
	}, nil
}

func (s *service) Assign(ctx context.Context, orderID uuid.UUID) (*Assignment, error) {
	var assignment *Assignment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		assignment, err = s.AssignInTx(ctx, tx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return assignment, nil
}

func (s *service) AssignInTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*Assignment, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	assignment, err := s.assign(ctx, tx, orderID)
	if err != nil {
		s.metrics.IncRiderDispatch("rejected")
		return nil, err
	}
	s.metrics.IncRiderDispatch("assigned")
	return assignment, nil
}

func (s *service) assign(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*Assignment, error) {
	repo := s.repo.WithTx(tx)

	order, err := repo.FindOrderForUpdate(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.RiderID != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already has a rider")
	}
	if order.Status != enums.OrderStatusProcessing {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition,
			fmt.Sprintf("orders in %s cannot be dispatched", order.Status))
	}

	rider, err := repo.LeastLoadedRiderForUpdate(ctx, s.ceiling)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodePrecondition, "no rider has free capacity")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find rider")
	}

	if err := repo.IncrementRiderLoad(ctx, rider.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment rider load")
	}
	if err := repo.AssignRider(ctx, order.ID, rider.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign rider")
	}

	now := time.Now()
	assignment := &Assignment{
		OrderID:    order.ID,
		RiderID:    rider.ID,
		RiderLoad:  rider.ActiveOrders + 1,
		AssignedAt: now,
	}
	err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventRiderAssigned,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Data: payloads.RiderAssignedEvent{
			OrderID:    order.ID,
			RiderID:    rider.ID,
			AssignedAt: now,
		},
	})
	if err != nil {
		return nil, err
	}
	return assignment, nil
}
