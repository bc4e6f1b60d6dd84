package dispatch

import (
	"context"
	"sort"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kasuwa-market/kasuwa-backend/pkg/config"
	"github.com/kasuwa-market/kasuwa-backend/pkg/db/models"
	"github.com/kasuwa-market/kasuwa-backend/pkg/enums"
	pkgerrors "github.com/kasuwa-market/kasuwa-backend/pkg/errors"
	"github.com/kasuwa-market/kasuwa-backend/pkg/outbox"
)

type stubDispatchRepo struct {
	order  *models.Order
	riders []models.Rider

	incremented []uuid.UUID
	assigned    map[uuid.UUID]uuid.UUID
}

func (s *stubDispatchRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubDispatchRepo) FindOrderForUpdate(_ context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubDispatchRepo) LeastLoadedRiderForUpdate(_ context.Context, maxLoad int) (*models.Rider, error) {
	eligible := make([]models.Rider, 0, len(s.riders))
	for _, rider := range s.riders {
		if rider.Approved && rider.Active && rider.ActiveOrders < maxLoad {
			eligible = append(eligible, rider)
		}
	}
	if len(eligible) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].ActiveOrders != eligible[j].ActiveOrders {
			return eligible[i].ActiveOrders < eligible[j].ActiveOrders
		}
		return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
	})
	rider := eligible[0]
	return &rider, nil
}

func (s *stubDispatchRepo) IncrementRiderLoad(_ context.Context, riderID uuid.UUID) error {
	s.incremented = append(s.incremented, riderID)
	return nil
}

func (s *stubDispatchRepo) AssignRider(_ context.Context, orderID, riderID uuid.UUID) error {
	if s.assigned == nil {
		s.assigned = make(map[uuid.UUID]uuid.UUID)
	}
	s.assigned[orderID] = riderID
	return nil
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubOutbox) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

func dispatchableOrder() *models.Order {
	return &models.Order{
		ID:            uuid.New(),
		Status:        enums.OrderStatusProcessing,
		PaymentStatus: enums.PaymentStatusCompleted,
	}
}

func rider(load int, approved, active bool) models.Rider {
	return models.Rider{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		Approved:     approved,
		Active:       active,
		ActiveOrders: load,
	}
}

func newDispatchService(t *testing.T, repo *stubDispatchRepo, pub *stubOutbox, ceiling int) Service {
	t.Helper()
	svc, err := NewService(repo, stubTx{}, pub, nil, config.PlatformConfig{RiderLoadCeiling: ceiling})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestAssignPicksLeastLoadedRider(t *testing.T) {
	light := rider(1, true, true)
	heavy := rider(5, true, true)
	repo := &stubDispatchRepo{
		order:  dispatchableOrder(),
		riders: []models.Rider{heavy, light},
	}
	pub := &stubOutbox{}
	svc := newDispatchService(t, repo, pub, 10)

	assignment, err := svc.Assign(context.Background(), repo.order.ID)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if assignment.RiderID != light.ID {
		t.Fatalf("expected the least-loaded rider, got %s", assignment.RiderID)
	}
	if assignment.RiderLoad != 2 {
		t.Fatalf("expected load to report 2, got %d", assignment.RiderLoad)
	}
	if len(repo.incremented) != 1 || repo.incremented[0] != light.ID {
		t.Fatalf("rider load must be incremented")
	}
	if repo.assigned[repo.order.ID] != light.ID {
		t.Fatalf("order must point at the assigned rider")
	}
	if len(pub.events) != 1 || pub.events[0].EventType != enums.EventRiderAssigned {
		t.Fatalf("rider assigned event missing")
	}
}

func TestAssignSkipsIneligibleRiders(t *testing.T) {
	unapproved := rider(0, false, true)
	inactive := rider(0, true, false)
	atCeiling := rider(10, true, true)
	available := rider(7, true, true)
	repo := &stubDispatchRepo{
		order:  dispatchableOrder(),
		riders: []models.Rider{unapproved, inactive, atCeiling, available},
	}
	svc := newDispatchService(t, repo, &stubOutbox{}, 10)

	assignment, err := svc.Assign(context.Background(), repo.order.ID)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if assignment.RiderID != available.ID {
		t.Fatalf("only the approved, active, below-ceiling rider is eligible")
	}
}

func TestAssignFailsWhenNoCapacity(t *testing.T) {
	repo := &stubDispatchRepo{
		order:  dispatchableOrder(),
		riders: []models.Rider{rider(10, true, true)},
	}
	svc := newDispatchService(t, repo, &stubOutbox{}, 10)

	_, err := svc.Assign(context.Background(), repo.order.ID)
	if !pkgerrors.HasCode(err, pkgerrors.CodePrecondition) {
		t.Fatalf("expected precondition failure, got %v", err)
	}
	if len(repo.incremented) != 0 || repo.assigned != nil {
		t.Fatalf("failed dispatch must not mutate anything")
	}
}

func TestAssignInTxJoinsCallerTransaction(t *testing.T) {
	repo := &stubDispatchRepo{
		order:  dispatchableOrder(),
		riders: []models.Rider{rider(0, true, true)},
	}
	pub := &stubOutbox{}
	svc := newDispatchService(t, repo, pub, 10)

	assignment, err := svc.AssignInTx(context.Background(), &gorm.DB{}, repo.order.ID)
	if err != nil {
		t.Fatalf("AssignInTx: %v", err)
	}
	if repo.assigned[repo.order.ID] != assignment.RiderID {
		t.Fatalf("order must point at the assigned rider")
	}
	if len(pub.events) != 1 || pub.events[0].EventType != enums.EventRiderAssigned {
		t.Fatalf("rider assigned event missing")
	}
}

func TestAssignRejectsWrongStateOrders(t *testing.T) {
	repo := &stubDispatchRepo{riders: []models.Rider{rider(0, true, true)}}
	svc := newDispatchService(t, repo, &stubOutbox{}, 10)

	// unknown order
	if _, err := svc.Assign(context.Background(), uuid.New()); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	// unpaid pending order
	repo.order = dispatchableOrder()
	repo.order.Status = enums.OrderStatusPending
	if _, err := svc.Assign(context.Background(), repo.order.ID); !pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}

	// already assigned
	repo.order = dispatchableOrder()
	existing := uuid.New()
	repo.order.RiderID = &existing
	if _, err := svc.Assign(context.Background(), repo.order.ID); !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}
